// Package shortcode maps numeric SMS destinations to in-process command
// handlers and defines the directives a handler can return.
package shortcode

import (
	"time"

	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/hlr"
)

// Action is a handler's instruction to the queue engine.
type Action int

const (
	// Reply sends the handler's reply text back to the sender from the
	// short code and deletes the triggering entry.
	Reply Action = iota
	// Done deletes the triggering entry with no reply.
	Done
	// InternalError routes the entry through NO_STATE for deletion.
	InternalError
	// RetryAfterDelay bumps the retry count and restarts the entry at
	// the from-address lookup.
	RetryAfterDelay
	// AwaitRegister parks the entry until the directory shows the new
	// number assignment.
	AwaitRegister
	// Register synthesizes the handset REGISTER immediately.
	Register
	// TreatAsOrdinary falls through to normal message handling.
	TreatAsOrdinary
	// RestartProcessing sends the entry back to INITIAL.
	RestartProcessing
	// Exec asks the controller to stop and re-exec the process.
	Exec
	// Quit asks the controller to stop.
	Quit
)

// Env is what handlers may reach: configuration, the subscriber
// directory, and a narrow view of the queue. No globals.
type Env interface {
	Config() *config.Config
	Directory() hlr.Directory
	QueueLen() int
	// QueueDump renders every queued entry for diagnostic output.
	QueueDump() []string
	// SaveQueue dumps the queue to the named file.
	SaveQueue(path string) error
	// ZapTag removes the queued entry with the given tag, returning the
	// number removed (0 or 1).
	ZapTag(tag string) int
	// ZapLongDelayed removes every entry due further out than minDelay,
	// returning the number removed.
	ZapLongDelayed(minDelay time.Duration) int
}

// Params is the in/out argument bundle for one handler invocation.
type Params struct {
	Retries int
	Reply   string
	Env     Env
}

// Handler processes one short-code message. imsi is the sender, body the
// message text.
type Handler func(imsi, body string, p *Params) Action

// Map is the short-code routing table. Constant after initialization.
type Map map[string]Handler

// Codes returns the registered short codes.
func (m Map) Codes() []string {
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}
