// Package engine is the queue processor: it admits datagrams, walks each
// entry through its lookup and delivery states, correlates responses, and
// persists the queue across restarts.
package engine

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/smqueue/internal/smqueue/cdr"
	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/hlr"
	"github.com/sebas/smqueue/internal/smqueue/message"
	"github.com/sebas/smqueue/internal/smqueue/queue"
	"github.com/sebas/smqueue/internal/smqueue/shortcode"
	"github.com/sebas/smqueue/internal/smqueue/transport"
)

// Engine ties the queue, the subscriber directory, the SIP socket and the
// short-code handlers together. One reader goroutine admits datagrams, one
// writer goroutine drives due entries through the state machine.
type Engine struct {
	cfg   *config.Config
	dir   hlr.Directory
	cdrs  cdr.Recorder
	conn  transport.Conn
	q     *queue.Queue
	codes shortcode.Map
	val   *message.Validator

	timeouts Timeouts

	myIP   string
	myPort int

	// REGISTER resends share one Call-ID with a climbing sequence
	// number, so the registrar sees them as one registration.
	regMu     sync.Mutex
	regCallID string
	regCSeq   uint32

	// Timestamp of the last delivery attempt, for SMS.RateLimit pacing.
	lastDelivery time.Time

	stopping atomic.Bool
	reexec   atomic.Bool
	quitOnce sync.Once
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New builds an Engine over an already-bound SIP socket.
func New(cfg *config.Config, dir hlr.Directory, rec cdr.Recorder, conn transport.Conn) *Engine {
	e := &Engine{
		cfg:      cfg,
		dir:      dir,
		cdrs:     rec,
		conn:     conn,
		q:        queue.New(),
		timeouts: newTimeouts(cfg),
		myIP:     cfg.GetStr("SIP.myIP"),
		myPort:   cfg.GetInt("SIP.myPort"),
		quit:     make(chan struct{}),
	}
	e.codes = shortcode.NewMap(e)
	e.val = &message.Validator{
		MyIP:          e.myIP,
		My2ndIP:       cfg.GetStr("SIP.my2ndIP"),
		RelayHost:     cfg.GetStr("SIP.GlobalRelay.IP"),
		RelayPort:     cfg.GetStr("SIP.GlobalRelay.Port"),
		RelaxedVerify: cfg.GetBool("SIP.GlobalRelay.RelaxedVerify"),
		Deliverable:   e.toIsDeliverable,
		Debug:         cfg.GetBool("Debug.print_as_we_validate"),
	}
	return e
}

// Start launches the reader and writer goroutines.
func (e *Engine) Start() {
	e.wg.Add(2)
	go e.readerLoop()
	go e.writerLoop()
	slog.Info("smqueue engine started",
		"bind", fmt.Sprintf("%s:%d", e.myIP, e.myPort),
		"short_codes", e.codes.Codes())
}

// Stop halts both loops and waits for them. The socket is closed to kick
// the reader out of its blocking receive.
func (e *Engine) Stop() {
	e.stopping.Store(true)
	e.conn.Close()
	e.wg.Wait()
}

// Done is closed when a short-code command asked the server to exit.
func (e *Engine) Done() <-chan struct{} { return e.quit }

// ReexecRequested reports whether shutdown should re-exec the process.
func (e *Engine) ReexecRequested() bool { return e.reexec.Load() }

func (e *Engine) requestQuit(reexec bool) {
	if reexec {
		e.reexec.Store(true)
	}
	e.quitOnce.Do(func() { close(e.quit) })
}

// Queue exposes the queue for the ops API.
func (e *Engine) Queue() *queue.Queue { return e.q }

// Validator exposes the admission validator, for save-file reload.
func (e *Engine) Validator() *message.Validator { return e.val }

// shortcode.Env.

func (e *Engine) Config() *config.Config   { return e.cfg }
func (e *Engine) Directory() hlr.Directory { return e.dir }
func (e *Engine) QueueLen() int            { return e.q.Len() }

// QueueDump renders every entry for diagnostic output.
func (e *Engine) QueueDump() []string {
	var out []string
	e.q.Lock()
	e.q.ForEachLocked(func(p *message.Pending) bool {
		out = append(out, fmt.Sprintf("%s due=%s tag=%q src=%s retries=%d",
			p.State, p.NextActionTime.Format(time.RFC3339), p.Tag,
			p.SrcAddr, p.Retries))
		return true
	})
	e.q.Unlock()
	return out
}

// SaveQueue dumps the queue to the named file.
func (e *Engine) SaveQueue(path string) error {
	return queue.Save(e.q, path)
}

// ZapTag removes the queued entry with the given tag.
func (e *Engine) ZapTag(tag string) int {
	e.q.Lock()
	defer e.q.Unlock()
	if p := e.q.FindByTagLocked(tag, message.TagHashOf(tag)); p != nil {
		e.q.RemoveLocked(p)
		return 1
	}
	return 0
}

// ZapLongDelayed removes every entry parked further out than minDelay.
func (e *Engine) ZapLongDelayed(minDelay time.Duration) int {
	cutoff := time.Now().Add(minDelay)
	e.q.Lock()
	defer e.q.Unlock()
	var victims []*message.Pending
	e.q.ForEachLocked(func(p *message.Pending) bool {
		if p.NextActionTime.After(cutoff) {
			victims = append(victims, p)
		}
		return true
	})
	for _, p := range victims {
		e.q.RemoveLocked(p)
	}
	return len(victims)
}

// LoadQueue restores entries saved by a previous run. Saved entries keep
// their state and due time, so they resume where they left off.
func (e *Engine) LoadQueue(path string) error {
	return queue.Load(path,
		func(p *message.Pending) int { return e.val.Validate(p, false) },
		func(p *message.Pending) { e.q.Insert(p) })
}

// setStateLocked assigns the next state, computes the due time from the
// delay matrix, and places the entry in the queue. The entry must be out
// of the queue and the caller must hold the queue lock.
func (e *Engine) setStateLocked(p *message.Pending, next message.State) {
	delay := e.timeouts[p.State][next]
	p.State = next
	p.NextActionTime = time.Now().Add(time.Duration(delay) * time.Millisecond)
	e.q.InsertLocked(p)
}

// rescheduleLocked moves a queued entry to a new state.
func (e *Engine) rescheduleLocked(p *message.Pending, next message.State) {
	e.q.RemoveLocked(p)
	e.setStateLocked(p, next)
}

// insertNewMessage admits a fresh entry at the given state.
func (e *Engine) insertNewMessage(p *message.Pending, state message.State) {
	e.q.Lock()
	e.setStateLocked(p, state)
	e.q.Unlock()
}

// newCallID mints a Call-ID scoped to our address.
func (e *Engine) newCallID() string {
	return uuid.NewString() + "@" + e.myIP
}

// toIsDeliverable reports whether user names a short code or a phone
// number the directory can turn into an IMSI. Used to refuse relay
// traffic for subscribers we do not serve.
func (e *Engine) toIsDeliverable(user string) bool {
	if _, ok := e.codes[user]; ok {
		return true
	}
	imsi, err := e.dir.PhoneToIMSI(user)
	return err == nil && hasIMSIPrefix(imsi)
}

// relayConfigured reports whether a global relay is set up.
func (e *Engine) relayConfigured() bool {
	return e.cfg.Defined("SIP.GlobalRelay.IP") && e.cfg.Defined("SIP.GlobalRelay.Port")
}

// relayHostPort returns the relay address as host and numeric port.
func (e *Engine) relayHostPort() (string, int) {
	return e.cfg.GetStr("SIP.GlobalRelay.IP"), e.cfg.GetInt("SIP.GlobalRelay.Port")
}

// registrarHost splits Asterisk.address into host and port.
func (e *Engine) registrarHost() (string, int) {
	addr := e.cfg.GetStr("Asterisk.address")
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 5060
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 5060
	}
	return host, port
}

func netJoin(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func hasIMSIPrefix(s string) bool {
	return len(s) >= 4 && (s[:4] == "IMSI" || s[:4] == "imsi")
}

// globalCLID maps a local caller ID to its global form for relay
// traffic. Numbers already in global form pass through.
func globalCLID(number string) string {
	if number == "" || number[0] == '+' {
		return number
	}
	return "+" + number
}
