package throttle

import (
	"errors"
	"time"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// maxCooldown caps how long a single Retry-After can pause the transport.
const maxCooldown = 5 * time.Minute

// Config defines the throttler's
// Requests Per Second and Burst Rate
type Config struct {
	RPS   int
	Burst int
}
