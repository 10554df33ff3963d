package product

import "time"

// DefaultActivityLimit bounds an ActivityLog when no limit is configured.
const DefaultActivityLimit = 50

// Entry is one activity log line.
type Entry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// ActivityLog is an append-only list of the most recent entries. Once full, the
// oldest entry is evicted.
type ActivityLog struct {
	limit   int
	entries []Entry
}

// NewActivityLog returns a log holding at most limit entries, seeded with the newest
// of the given entries.
func NewActivityLog(limit int, entries ...Entry) *ActivityLog {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	l := &ActivityLog{limit: limit}
	for _, e := range entries {
		l.append(e)
	}
	return l
}

// Record appends a message stamped with the current time.
func (l *ActivityLog) Record(message string) {
	if l == nil {
		return
	}
	l.append(Entry{At: time.Now().UTC(), Message: message})
}

// Entries returns a copy, oldest first.
func (l *ActivityLog) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

func (l *ActivityLog) append(e Entry) {
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, e)
}
