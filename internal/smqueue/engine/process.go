package engine

import (
	"log/slog"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/smqueue/internal/smqueue/message"
	"github.com/sebas/smqueue/internal/smqueue/shortcode"
)

// ProcessDue pops and handles due entries until the queue head is in the
// future. Returns how long until the next entry comes due, capped for the
// caller's sleep.
func (e *Engine) ProcessDue() time.Duration {
	const maxSleep = time.Second
	for {
		e.q.Lock()
		p := e.q.PopDueLocked(time.Now())
		if p == nil {
			wait := maxSleep
			if headTime, ok := e.q.HeadTimeLocked(); ok {
				if d := time.Until(headTime); d < wait {
					wait = d
				}
			}
			e.q.Unlock()
			if wait < 0 {
				wait = 0
			}
			return wait
		}
		e.q.Unlock()
		e.processTimeout(p)
	}
}

// processTimeout drives one popped entry through its current state. The
// entry is reinserted with its next state and due time, or dropped when
// it is finished.
func (e *Engine) processTimeout(p *message.Pending) {
	state := p.State

	switch state {
	case message.InitialState:
		if p.IsResponse() {
			// Responses are processed once and discarded.
			e.handleResponse(p)
			return
		}
		if p.Method() != sip.MESSAGE {
			slog.Warn("non-MESSAGE request in initial state",
				"method", string(p.Method()))
			e.insertNewMessage(p, message.NoState)
			return
		}
		if next, handled := e.handleShortCode(p); handled {
			switch next {
			case message.AwaitingRegisterHandset, message.AskedToRegisterHandset:
				// Entering the register cycle from here uses the
				// cycle's own short poll interval, not the long
				// initial-state delay.
				delay := e.timeouts[next][message.AwaitingRegisterHandset]
				p.State = next
				p.NextActionTime = time.Now().Add(time.Duration(delay) * time.Millisecond)
				e.q.Insert(p)
			default:
				e.dispose(p, next)
			}
			return
		}
		e.insertNewMessage(p, message.RequestFromAddressLookup)

	case message.NoState:
		slog.Info("discarding message with no state", "tag", p.Tag)
		// Dropped. Same path as DeleteMe.

	case message.DeleteMe:
		// Dropped.

	case message.RequestFromAddressLookup:
		e.dispose(p, e.lookupFromAddress(p))

	case message.RequestDestIMSI:
		e.dispose(p, e.lookupURIIMSI(p))

	case message.RequestDestSIPURL:
		e.dispose(p, e.lookupURIHostport(p))

	case message.AwaitingTryMsgDelivery:
		p.State = message.RequestMsgDelivery
		e.deliver(p)

	case message.RequestMsgDelivery:
		e.deliver(p)

	case message.AskedForMsgDelivery:
		// No response within the transaction timeout. Back off, then
		// the delivery will be retried.
		e.insertNewMessage(p, message.AwaitingTryMsgDelivery)

	case message.AwaitingRegisterHandset:
		if !e.readyToRegister(p) {
			e.insertNewMessage(p, message.AwaitingRegisterHandset)
			return
		}
		p.State = message.RegisterHandset
		e.dispose(p, e.registerHandset(p))

	case message.RegisterHandset:
		e.dispose(p, e.registerHandset(p))

	case message.AskedToRegisterHandset:
		e.insertNewMessage(p, message.AwaitingRegisterHandset)

	default:
		slog.Error("message found in unexpected state, reprocessing",
			"state", state, "tag", p.Tag)
		p.State = message.InitialState
		e.dispose(p, e.lookupFromAddress(p))
	}
}

// dispose routes an entry to its next state, dropping it when the state
// machine says it is done.
func (e *Engine) dispose(p *message.Pending, next message.State) {
	switch next {
	case message.DeleteMe:
		// Dropped.
	default:
		e.insertNewMessage(p, next)
	}
}

// deliver sends (or resends) the message to the address in its request
// URI. The entry lands in AskedForMsgDelivery whether or not the send
// succeeded; a lost datagram and a failed send retry the same way.
func (e *Engine) deliver(p *message.Pending) {
	p.Retries++

	if p.NeedRepack {
		if err := p.ConvertContentType(message.ContentVnd3GPP); err != nil {
			slog.Error("delivery repack failed", "tag", p.Tag, "err", err)
			e.insertNewMessage(p, message.NoState)
			return
		}
	}

	if max := e.cfg.GetInt("SMS.MaxRetries"); max > 0 && p.Retries > max {
		slog.Warn("giving up on message after max retries",
			"tag", p.Tag, "retries", p.Retries)
		return
	}

	if limit := time.Duration(e.cfg.GetInt("SMS.RateLimit")) * time.Second; limit > 0 {
		if elapsed := time.Since(e.lastDelivery); elapsed < limit {
			// Too soon. Push the entry back without a state change.
			p.NextActionTime = p.NextActionTime.Add(limit)
			e.q.Insert(p)
			return
		}
		e.lastDelivery = time.Now()
	}

	req, ok := p.Request()
	if !ok {
		e.insertNewMessage(p, message.NoState)
		return
	}
	dest := req.Recipient.Host
	if req.Recipient.Port != 0 {
		dest = netJoin(req.Recipient.Host, req.Recipient.Port)
	}
	if err := e.conn.SendDatagram(p.Text(), dest); err != nil {
		slog.Warn("delivery send failed", "dest", dest, "tag", p.Tag, "err", err)
	} else {
		slog.Debug("delivery attempt sent", "dest", dest, "tag", p.Tag,
			"retries", p.Retries)
	}
	e.insertNewMessage(p, message.AskedForMsgDelivery)
}

// readyToRegister reports whether the directory now shows a number for
// the sender, meaning the registration short code finished its database
// half and the handset REGISTER can go out.
func (e *Engine) readyToRegister(p *message.Pending) bool {
	from := p.SIP().From()
	if from == nil {
		return false
	}
	_, err := e.dir.IMSIToPhone(from.Address.User)
	return err == nil
}

// handleShortCode runs the handler for the short code named by the
// request-URI username, if it names one. The second return is false when
// the message should be treated as an ordinary destination instead.
func (e *Engine) handleShortCode(p *message.Pending) (message.State, bool) {
	req, ok := p.Request()
	if !ok {
		return 0, false
	}
	code := req.Recipient.User
	handler, ok := e.codes[code]
	if !ok {
		return 0, false
	}
	from := req.From()
	if from == nil {
		return message.NoState, true
	}
	imsi := from.Address.User
	body := string(req.Body())

	params := &shortcode.Params{Retries: p.Retries, Env: e}
	action := handler(imsi, body, params)
	slog.Info("short code handled", "code", code, "imsi", imsi,
		"action", int(action))

	switch action {
	case shortcode.Reply:
		err := e.originateSM(code, imsi, params.Reply,
			message.RequestDestSIPURL)
		if err != nil {
			slog.Error("short code reply failed", "err", err)
			return message.NoState, true
		}
		return message.DeleteMe, true
	case shortcode.Done:
		return message.DeleteMe, true
	case shortcode.InternalError:
		return message.NoState, true
	case shortcode.RetryAfterDelay:
		p.Retries++
		return message.RequestFromAddressLookup, true
	case shortcode.AwaitRegister:
		return message.AwaitingRegisterHandset, true
	case shortcode.Register:
		return e.registerHandset(p), true
	case shortcode.RestartProcessing:
		return message.InitialState, true
	case shortcode.Exec:
		e.requestQuit(true)
		return message.DeleteMe, true
	case shortcode.Quit:
		e.requestQuit(false)
		return message.DeleteMe, true
	case shortcode.TreatAsOrdinary:
		return 0, false
	default:
		return message.NoState, true
	}
}
