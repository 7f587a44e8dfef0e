package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sebas/smqueue/internal/smqueue/message"
	"github.com/sebas/smqueue/internal/smqueue/transport"
)

// Largest datagram we accept. SIP MESSAGE bodies are SMS-sized, anything
// bigger than this is garbage.
const maxDatagram = 5000

// readerLoop admits datagrams: validate, queue, ack. It exits when the
// engine is stopping or the socket is closed.
func (e *Engine) readerLoop() {
	defer e.wg.Done()
	buf := make([]byte, maxDatagram)
	for !e.stopping.Load() {
		n, src, err := e.conn.GetNextDatagram(buf, time.Second)
		if errors.Is(err, transport.ErrTimeout) {
			continue
		}
		if err != nil {
			if e.stopping.Load() {
				return
			}
			slog.Error("receive failed, reader exiting", "err", err)
			return
		}
		if n == 0 {
			continue
		}

		p := message.NewFromRaw(buf[:n], src)
		p.MSToSC = true
		code := e.val.Validate(p, true)
		if code != 0 {
			slog.Warn("received bad message", "error", code, "src", src)
			e.respondSIPAck(code, p)
			continue
		}

		if req, ok := p.Request(); ok {
			slog.Info("got SMS request", "tag", p.Tag,
				"from", p.SIP().From().Address.User,
				"for", req.Recipient.User)
		} else if resp, ok := p.Response(); ok {
			slog.Info("got SMS response", "tag", p.Tag,
				"status", int(resp.StatusCode))
		}
		// Ack before inserting; once queued the writer goroutine owns
		// the entry.
		e.respondSIPAck(202, p)
		e.insertNewMessage(p, message.InitialState)
	}
}

// writerLoop drives the state machine: process everything due, sleep
// until the head comes due or new work can have arrived.
func (e *Engine) writerLoop() {
	defer e.wg.Done()
	for !e.stopping.Load() {
		wait := e.ProcessDue()
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		time.Sleep(wait)
	}
}
