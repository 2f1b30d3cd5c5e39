// Package notify sends short operator-facing status messages (upload
// started/completed/suspended, trigger aborts). The delivery mechanism
// itself is out of scope; this
// package only fixes the call-site contract the orchestrator uses.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Notifier delivers a single status message. Implementations may fan out to
// email, webhook, or desktop notification backends; none of that is
// implemented here.
type Notifier interface {
	Send(message string) error
}

// WriterNotifier is the default Notifier: it appends each message to w,
// guarded by a mutex so concurrent senders (throttle monitor, orchestrator)
// don't interleave lines.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier builds a Notifier that writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Send writes message followed by a newline.
func (n *WriterNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.w, message)
	return err
}

// Noop discards every message; used where notifications are disabled.
type Noop struct{}

func (Noop) Send(message string) error { return nil }
