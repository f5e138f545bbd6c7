package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected        = errors.New("not connected to a server")
	ErrDuplicateConnection = errors.New("a connection already exists")
)

// NetworkError wraps a transport failure reported while sending.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
