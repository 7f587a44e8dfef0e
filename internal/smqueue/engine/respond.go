package engine

import (
	"log/slog"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

// sipReason maps the status codes we emit to their reason phrases.
func sipReason(code int) string {
	switch code {
	case 100:
		return "Trying..."
	case 200:
		return "Okay!"
	case 202:
		return "Queued"
	case 400:
		return "Bad Request"
	case 401:
		return "Un Author Ized"
	case 403:
		return "Forbidden - first register, by texting your 10-digit phone number to 101."
	case 404:
		return "Phone Number Not Registered"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Message Body Size Error"
	case 415:
		return "Unsupported Content Type"
	case 416:
		return "Unsupported URI scheme (not SIP)"
	case 480:
		return "Recipient Temporarily Unavailable"
	case 484:
		return "Address Incomplete"
	default:
		return "Error Message Table Needs Updating"
	}
}

// respondSIPAck sends the ack for an incoming request back to its source.
// Responses are never acked, that way lies an infinite loop. Per RFC 3261
// 8.2.6.2 the response copies the request's Via chain and adds none of
// its own.
func (e *Engine) respondSIPAck(code int, p *message.Pending) {
	req, ok := p.Request()
	if !ok {
		slog.Debug("not acking a response", "code", code)
		return
	}
	if p.SrcAddr == "" {
		slog.Warn("cannot ack message with no source address", "code", code)
		return
	}

	resp := sip.NewResponseFromRequest(req, sip.StatusCode(code), sipReason(code), nil)
	switch code {
	case 405:
		resp.AppendHeader(sip.NewHeader("Allow", "MESSAGE"))
	case 415:
		resp.AppendHeader(sip.NewHeader("Accept", "text/plain, application/vnd.3gpp.sms"))
	}

	if err := e.conn.SendDatagram([]byte(resp.String()), p.SrcAddr); err != nil {
		slog.Warn("failed to send SIP ack", "code", code, "dest", p.SrcAddr, "err", err)
	}
}
