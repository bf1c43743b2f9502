package genai

import (
	"context"
	"errors"
)

// Backend is the generation backend contract. Implementations serve one
// request against the named region and either return a response or an
// error; a resource-exhausted condition must be distinguishable via
// ErrResourceExhausted so the failover loop can move to the next region.
type Backend interface {
	Generate(ctx context.Context, region string, req *Request) (*Response, error)
}

var (
	// ErrResourceExhausted is the one failure condition that triggers
	// regional failover.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrEmptyCandidates signals a response with zero candidates.
	ErrEmptyCandidates = errors.New("generation returned no candidates")
)

// IsResourceExhausted reports whether the error carries the
// resource-exhausted condition.
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
