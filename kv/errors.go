package kv

import "github.com/pkg/errors"

// ErrClosed is returned by Store.Collection once the Store has been closed.
var ErrClosed = errors.New("kv: store is closed")

// ErrNotFound mirrors pebble.ErrNotFound without leaking the pebble
// dependency into callers that only need the substrate contract.
var ErrNotFound = errors.New("kv: key not found")
