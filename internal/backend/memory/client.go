// Package memory provides a process-local backend.Client: tables held in memory and a
// bcrypt protected user list. It backs local development and tests.
package memory

import (
	"sync"

	"github.com/stockeasy/stockeasy/internal/backend"
)

// Client is an in-memory backend.
type Client struct {
	mu     sync.Mutex
	tables map[string]*Table
	auth   *Auth
}

// NewClient provisions the named tables.
func NewClient(tables ...string) *Client {
	c := &Client{tables: make(map[string]*Table, len(tables)), auth: NewAuth()}
	for _, name := range tables {
		c.tables[name] = newTable(name)
	}
	return c
}

// From returns the named table. Unknown tables fail every call with backend.ErrUnknownTable.
func (c *Client) From(name string) backend.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[name]; ok {
		return t
	}
	return missingTable(name)
}

// Table returns the concrete table for test setup.
func (c *Client) Table(name string) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables[name]
}

// Auth returns the auth service.
func (c *Client) Auth() backend.Auth {
	return c.auth
}

// Users exposes the auth service for registering accounts.
func (c *Client) Users() *Auth {
	return c.auth
}

var _ backend.Client = (*Client)(nil)
