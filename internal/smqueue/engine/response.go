package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/smqueue/internal/smqueue/cdr"
	"github.com/sebas/smqueue/internal/smqueue/message"
)

// locationSetter is the optional directory capability of recording the
// cell a handset registered through.
type locationSetter interface {
	SetLocation(imsi, hostport string) error
}

// handleResponse correlates an incoming response with the request we
// sent, by tag, and advances or retires that request. The response entry
// itself is already out of the queue and is dropped on return.
func (e *Engine) handleResponse(p *message.Pending) {
	resp, ok := p.Response()
	if !ok {
		return
	}

	e.q.Lock()

	sent := e.q.FindByTagLocked(p.Tag, p.TagHash)
	if sent == nil {
		e.q.Unlock()
		// A retransmitted response for a request we already retired.
		slog.Info("response for unknown message, ignoring",
			"tag", p.Tag, "status", int(resp.StatusCode))
		return
	}

	switch sent.State {
	case message.AskedForMsgDelivery, message.RequestMsgDelivery,
		message.RequestDestSIPURL, message.AwaitingTryMsgDelivery:
		// Expected.
	default:
		slog.Warn("response for message in unexpected state",
			"tag", p.Tag, "state", sent.State)
	}

	code := int(resp.StatusCode)
	switch code / 100 {
	case 1:
		// Provisional. The destination is working on it, give it more
		// time before we resend.
		e.increaseAckedMsgTimeoutLocked(sent)

	case 2:
		if sent.Method() == sip.REGISTER {
			// The registration completed. Record the serving cell and
			// wake the short-code message that asked for it so it
			// re-runs and sends the welcome.
			if setter, ok := e.dir.(locationSetter); ok && sent.SrcAddr != "" {
				if from := sent.SIP().From(); from != nil {
					if err := setter.SetLocation(from.Address.User, sent.SrcAddr); err != nil {
						slog.Warn("failed to record serving cell", "err", err)
					}
				}
			}
			if linked := e.q.FindByTagLocked(sent.LinkTag,
				message.TagHashOf(sent.LinkTag)); linked != nil {
				switch linked.State {
				case message.AskedToRegisterHandset,
					message.RegisterHandset,
					message.AwaitingRegisterHandset:
					// Wake it now, not on the matrix delay. The
					// handler reruns and sends the welcome.
					e.q.RemoveLocked(linked)
					linked.State = message.InitialState
					linked.NextActionTime = time.Now()
					e.q.InsertLocked(linked)
				}
			}
		} else if sent.Method() == sip.MESSAGE {
			e.writeCDR(sent)
		}
		slog.Info("message delivered", "tag", sent.Tag, "status", code)
		e.q.RemoveLocked(sent)

	case 3, 6:
		// Redirected or rejected by this destination. Look the
		// destination up again from scratch.
		e.rescheduleLocked(sent, message.RequestDestIMSI)

	case 4:
		if code == 480 || code == 486 {
			// Temporarily unavailable. Keep trying.
			e.increaseAckedMsgTimeoutLocked(sent)
			break
		}
		// Permanent failure. Bounce outside the lock, the bounce
		// originates a new queue entry.
		e.q.RemoveLocked(sent)
		e.q.Unlock()
		errstr := fmt.Sprintf("%d %s", code, resp.Reason)
		e.insertNewMessage(sent, e.bounceMessage(sent, errstr))
		return

	case 5:
		slog.Warn("destination reports server failure", "tag", sent.Tag,
			"status", code)
		e.increaseAckedMsgTimeoutLocked(sent)

	default:
		slog.Warn("unknown status code in SIP response", "status", code)
	}
	e.q.Unlock()
}

// increaseAckedMsgTimeoutLocked pushes an acknowledged request's next
// resend out by the configured interval, without changing its state.
func (e *Engine) increaseAckedMsgTimeoutLocked(sent *message.Pending) {
	e.q.RemoveLocked(sent)
	resend := time.Duration(e.cfg.GetInt("SIP.Timeout.ACKedMessageResend")) * time.Second
	sent.NextActionTime = time.Now().Add(resend)
	e.q.InsertLocked(sent)
}

// writeCDR records one completed delivery.
func (e *Engine) writeCDR(sent *message.Pending) {
	msg := sent.SIP()
	if msg == nil || msg.From() == nil || msg.To() == nil {
		return
	}
	fromUser := msg.From().Address.User
	fromIMSI := fromUser
	if !hasIMSIPrefix(fromIMSI) {
		if imsi, err := e.dir.PhoneToIMSI(fromUser); err == nil {
			fromIMSI = imsi
		}
	}
	rec := cdr.Record{
		From:        fromUser,
		FromIMSI:    fromIMSI,
		Dest:        msg.To().Address.User,
		CompletedAt: time.Now(),
	}
	if err := e.cdrs.Record(rec); err != nil {
		slog.Error("CDR write failed", "err", err)
	}
}
