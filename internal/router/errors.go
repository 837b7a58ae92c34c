package router

import "errors"

// Typed routing failures (spec §7). They never reach the log as
// validation errors would; they are mapped to human-readable strings for
// the client and to the matching HTTP status.
var (
	ErrNoLeader          = errors.New("no active leader")
	ErrLeaderUnreachable = errors.New("leader unreachable")
	ErrLeaderTimeout     = errors.New("leader request timed out")
)

// humanMessage renders err the way a human operator reads it, per spec §7.
func humanMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoLeader):
		return "No active leader found in the cluster. Please try again in a few moments."
	case errors.Is(err, ErrLeaderTimeout):
		return "Connection to leader timed out."
	case errors.Is(err, ErrLeaderUnreachable):
		return "Unable to connect to leader node."
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoLeader):
		return 503
	case errors.Is(err, ErrLeaderTimeout):
		return 504
	case errors.Is(err, ErrLeaderUnreachable):
		return 502
	default:
		return 500
	}
}
