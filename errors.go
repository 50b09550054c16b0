package inngestgo

import (
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
)

// NoRetryError wraps an error, preventing future retries of the current
// function or step.  Use this when the input is invalid in a way a retry will
// never fix.
func NoRetryError(err error) error {
	return sdkerrors.NoRetryError(err)
}

// RetryAtError wraps an error, delaying the next retry until at least the
// given time.  Use this when an external dependency rate limits us with a
// known backoff.
func RetryAtError(err error, at time.Time) error {
	return sdkerrors.RetryAtError(err, at)
}

func isNoRetryError(err error) bool {
	return sdkerrors.IsNoRetryError(err)
}

func getRetryAtTime(err error) *time.Time {
	return sdkerrors.GetRetryAtTime(err)
}
