package auth

import (
	"errors"
	"fmt"
)

// State is the position of a browser session in the login flow.
type State int

const (
	LoggedOut State = iota
	Authenticating
	LoggedIn
	LoginFailed
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Authenticating:
		return "authenticating"
	case LoggedIn:
		return "logged_in"
	case LoginFailed:
		return "login_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrIllegalTransition is returned when an event does not apply to the current state.
var ErrIllegalTransition = errors.New("auth: illegal state transition")

// Gate tracks the login form state and the message shown next to it.
//
//	LoggedOut --Submit--> Authenticating --Succeed--> LoggedIn --Logout--> LoggedOut
//	                      Authenticating --Fail-----> LoginFailed --Retry--> LoggedOut
type Gate struct {
	state   State
	message string
}

// NewGate starts a gate in LoggedIn when a user is present, LoggedOut otherwise.
func NewGate(signedIn bool) Gate {
	if signedIn {
		return Gate{state: LoggedIn}
	}
	return Gate{state: LoggedOut}
}

// State returns the current state.
func (g Gate) State() State {
	return g.state
}

// Message returns the last failure text. It is cleared by a successful sign in.
func (g Gate) Message() string {
	return g.message
}

// CanSubmit reports whether the credential form accepts a submission.
func (g Gate) CanSubmit() bool {
	return g.state == LoggedOut
}

// Submit moves LoggedOut to Authenticating.
func (g *Gate) Submit() error {
	return g.move(LoggedOut, Authenticating)
}

// Succeed moves Authenticating to LoggedIn and clears any prior message.
func (g *Gate) Succeed() error {
	if err := g.move(Authenticating, LoggedIn); err != nil {
		return err
	}
	g.message = ""
	return nil
}

// Fail moves Authenticating to LoginFailed and records message.
func (g *Gate) Fail(message string) error {
	if err := g.move(Authenticating, LoginFailed); err != nil {
		return err
	}
	g.message = message
	return nil
}

// Retry moves LoginFailed back to LoggedOut. The failure message is kept for display.
func (g *Gate) Retry() error {
	return g.move(LoginFailed, LoggedOut)
}

// Attempt runs signIn as one credential submission. On success the gate ends in
// LoggedIn; on failure it records failure and returns to LoggedOut so the form
// accepts the next try. signIn's error is returned wrapped; a gate that cannot
// take a submission returns ErrIllegalTransition without calling signIn.
func (g *Gate) Attempt(failure string, signIn func() error) error {
	if err := g.Submit(); err != nil {
		return err
	}
	if err := signIn(); err != nil {
		return errors.Join(err, g.Fail(failure), g.Retry())
	}
	return g.Succeed()
}

// Logout moves LoggedIn to LoggedOut.
func (g *Gate) Logout() error {
	return g.move(LoggedIn, LoggedOut)
}

func (g *Gate) move(from, to State) error {
	if g.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.state, to)
	}
	g.state = to
	return nil
}
