// Package postgres implements backend.Table directly on the Postgres database behind
// the hosted service, for deployments that run next to it. Authentication is still
// delegated to the hosted auth service.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockeasy/stockeasy/internal/backend"
)

// Client serves tables from a pgx pool.
type Client struct {
	pool *pgxpool.Pool
	auth backend.Auth
}

// NewClient constructs a Client. auth serves the Auth() side of backend.Client.
func NewClient(pool *pgxpool.Pool, auth backend.Auth) *Client {
	return &Client{pool: pool, auth: auth}
}

// From returns the named table.
func (c *Client) From(name string) backend.Table {
	return &Table{pool: c.pool, name: name}
}

// Auth returns the delegated auth service.
func (c *Client) Auth() backend.Auth {
	return c.auth
}

var _ backend.Client = (*Client)(nil)
