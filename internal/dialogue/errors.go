package dialogue

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage rejects sends whose text is empty or whitespace-only.
	ErrEmptyMessage = errors.New("dialogue: message text is empty")

	// ErrSendInFlight rejects a send while another is still outstanding on
	// the same session.
	ErrSendInFlight = errors.New("dialogue: a send is already in flight")
)

// RemoteError reports a failed remote dialogue call. The originating user
// message stays in history with status failed; the caller may resubmit,
// which produces a new message.
type RemoteError struct {
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dialogue: remote failure: %s", e.Reason)
	}
	return fmt.Sprintf("dialogue: remote failure: %s: %v", e.Reason, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
