package nvlp

import (
	"fmt"

	"github.com/thelarryrutledge/nvlp-go/internal/client/queue"
)

// ErrQueueFull surfaces the offline queue's reject-new overflow outcome
// through the façade so callers need not import the queue package.
var ErrQueueFull = queue.ErrQueueFull

// QueuedError is the documented "accepted but not performed" outcome: the
// request failed under offline conditions and was captured by the offline
// queue for replay. It wraps the original transport failure, so errors.As
// against the engine taxonomy still works, and carries the queue entry ID.
//
// Callers must treat this as "queued for later", never as success.
type QueuedError struct {
	ID  string
	Err error
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("request queued for replay (id %s): %v", e.ID, e.Err)
}

func (e *QueuedError) Unwrap() error { return e.Err }
