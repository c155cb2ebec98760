package service

import (
	"errors"
	"fmt"

	"github.com/rapidcluster/rapid/internal/wire"
)

// ErrJoinExhausted is returned by Join when joinAttempts elapse without a
// SAFE_TO_JOIN response (spec.md §6 "user-visible failure behavior").
var ErrJoinExhausted = errors.New("service: join attempts exhausted")

// ErrUnexpectedResponse is returned when a JoinMessage RPC settles with a
// response of the wrong kind (a malfunctioning or non-Rapid peer).
var ErrUnexpectedResponse = errors.New("service: unexpected response to join request")

// JoinError wraps a terminal, non-retryable JoinResponse status code
// (spec.md §7 JoinError). SAME_NODE_ALREADY_IN_RING is not terminal — the
// retry loop treats it as success, since it means a prior attempt's
// response was lost in flight, not that the join failed.
type JoinError struct {
	StatusCode wire.JoinStatusCode
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("service: join rejected with status %s", e.StatusCode)
}
