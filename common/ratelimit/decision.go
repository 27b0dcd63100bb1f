// Package ratelimit defines the narrow shape the core consumes from the
// externally owned rate-limit collaborator (spec §1: "the core consumes a
// rate-limit decision but does not implement it"). The token-bucket
// implementation itself is intentionally absent — only the decision the
// Coordinator reacts to lives here.
package ratelimit

import "context"

// Decision is the externally produced verdict the Coordinator (C8) consumes
// before admitting a request.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// Provider is implemented by whatever external component actually owns
// token-bucket accounting. A nil Provider is treated as "always allow" by
// the Coordinator's checkRateLimit — rate limiting is opt-in
// infrastructure the core never assumes is present.
type Provider interface {
	Check(ctx context.Context, key string) (Decision, error)
}
