package shared

import (
	"context"
	"time"
)

// Claims hands out short-lived exclusive claims on string keys. It guards
// background VAT validations against being queued twice.
type Claims interface {
	// Claim takes key for ttl. It reports false when an unexpired claim
	// is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Held(ctx context.Context, key string) (bool, error)
	// Release gives key up before its ttl runs out.
	Release(ctx context.Context, key string) error
	Close() error
}
