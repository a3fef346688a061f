// Package store persists queued offline requests. The queue manager depends
// only on the Store interface; backends are selected through the factory so
// the core never assumes a particular environment (tests, CLI, long-running
// daemon sharing state through redis).
package store

import (
	"context"
	"time"
)

// Request is one queued outgoing call, captured at the moment the original
// attempt failed offline. Every field round-trips losslessly through any
// backend, RetryCount included.
type Request struct {
	ID         string            `json:"id"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Body       []byte            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Seq        int64             `json:"seq"`
	RetryCount int               `json:"retry_count"`
}

// Store is the minimal persistence capability the queue manager needs.
//
// List returns entries in insertion (Seq) order. Append is an upsert keyed by
// Request.ID: re-appending an existing ID replaces the stored entry without
// moving it, which is how retry-count increments persist without breaking
// FIFO order. All operations serialize their own mutations; concurrent
// appends never corrupt the collection.
type Store interface {
	List(ctx context.Context) ([]Request, error)
	Append(ctx context.Context, req Request) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Driver identifiers supported by the factory.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Config describes the backend selection parameters.
type Config struct {
	Driver string

	// Path locates the JSON file for the file driver.
	Path string

	Redis *RedisConfig
}

// RedisConfig captures connection options for the redis driver.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
