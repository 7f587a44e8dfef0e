package message

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/emiago/sipgo/sip"
)

// Validator centralizes every validity check on incoming datagrams. The
// rest of the code can use any part of an admitted message without
// re-checking it. Validate also computes the correlation tag on accept.
type Validator struct {
	// Local addresses recognized as ours, beyond localhost.
	MyIP    string
	My2ndIP string

	// Global relay, empty when no relay is configured.
	RelayHost     string
	RelayPort     string
	RelaxedVerify bool

	// Deliverable reports whether a destination username is either a
	// short code or a number the directory can resolve.
	Deliverable func(user string) bool

	// Debug dumps each message before validation.
	Debug bool
}

// Hosts other than ours are accepted anyway: behind NAT we cannot know
// our own public address. Warn the first time only.
var hostWarnOnce sync.Once

// Validate checks p and returns 0 to accept, or the SIP status code to
// reject with. allowEarlyCheck enables the relay early-resolution path,
// which applies only to fresh datagrams, not to reloaded ones.
func (v *Validator) Validate(p *Pending, allowEarlyCheck bool) int {
	if v.Debug {
		slog.Debug("validating message", "msg", string(p.Text()))
	}

	if err := p.MakeParsedValid(); err != nil {
		slog.Debug("invalid parse", "err", err)
		return 400
	}
	p.trimBodyToContentLength()
	msg := p.SIP()

	if resp, ok := p.Response(); ok {
		if code := v.validateResponse(resp); code != 0 {
			return code
		}
	} else if req, ok := p.Request(); ok {
		if code := v.validateRequest(req); code != 0 {
			return code
		}
	} else {
		return 400
	}

	if msg.CallID() == nil {
		slog.Debug("no call-id")
		return 400
	}

	// A from-tag is optional; the From header itself is not.
	if msg.From() == nil {
		slog.Debug("invalid from header")
		return 400
	}

	if h := getHeader(msg, "MIME-Version"); h != nil && h.Value() != "1.0" {
		slog.Debug("wrong mime version", "version", h.Value())
		return 415
	}

	to := msg.To()
	if to == nil || to.Address.Scheme != "sip" ||
		!v.checkHostPort(to.Address.Host) || to.Address.User == "" {
		// A tag on To is tolerated here despite RFC 3261 8.1.1.2:
		// Asterisk puts one on its REGISTER responses.
		slog.Debug("invalid to header")
		return 400
	}

	if req, ok := p.Request(); ok && allowEarlyCheck && req.Method == sip.MESSAGE && v.fromRelay(p) {
		if v.Deliverable == nil || !v.Deliverable(req.Recipient.User) {
			slog.Debug("destination not deliverable", "dest", req.Recipient.User)
			return 404
		}
		p.FromRelay = true
		slog.Debug("inbound message is from relay",
			"from", msg.From().Address.User, "dest", req.Recipient.User)
	}

	if err := p.ComputeTag(); err != nil {
		switch {
		case errors.Is(err, errNoCallID):
			return 401
		case errors.Is(err, errNoCSeq):
			return 402
		default:
			return 400
		}
	}
	return 0
}

func (v *Validator) validateResponse(resp *sip.Response) int {
	if resp.StatusCode < 0 || resp.Reason == "" {
		slog.Debug("status code invalid or no reason")
		return 400
	}
	// Responses carry no content.
	if contentLength(resp) != 0 || len(resp.Body()) != 0 {
		slog.Debug("response has a body")
		return 400
	}
	return 0
}

func (v *Validator) validateRequest(req *sip.Request) int {
	if req.Recipient.Scheme == "" {
		slog.Debug("no scheme on request uri")
		return 400
	}
	if req.Recipient.Scheme != "sip" {
		slog.Debug("not sip scheme", "scheme", req.Recipient.Scheme)
		return 416
	}
	if !v.checkHostPort(req.Recipient.Host) {
		slog.Debug("host port check failed", "host", req.Recipient.Host)
		return 484
	}

	switch req.Method {
	case sip.MESSAGE:
		if req.Recipient.User == "" {
			return 484
		}
		if !supportedContentType(req) {
			slog.Debug("content type not supported")
			return 415
		}
		if clen := contentLength(req); clen > 0 && len(req.Body()) == 0 {
			slog.Debug("message entity-body too large")
			return 413
		}
		cseq := req.CSeq()
		if cseq == nil || cseq.MethodName != sip.MESSAGE {
			slog.Debug("invalid sequence number")
			return 400
		}
	case sip.REGISTER:
		// Empty username, content-type and body are all fine here.
		cseq := req.CSeq()
		if cseq == nil || cseq.MethodName != sip.REGISTER {
			slog.Debug("invalid REGISTER")
			return 400
		}
	default:
		slog.Debug("unknown SIP datagram", "method", req.Method)
		return 405
	}
	return 0
}

// checkHostPort accepts localhost and our configured addresses, and
// accepts anything else with a one-time warning. We are probably behind
// NAT at an address that never appears on any local interface, so a
// strict check would reject our own traffic.
func (v *Validator) checkHostPort(host string) bool {
	if host == "" {
		return false
	}
	switch host {
	case "localhost", "127.0.0.1", v.MyIP:
		return true
	}
	if v.My2ndIP != "" && host == v.My2ndIP {
		return true
	}
	hostWarnOnce.Do(func() {
		slog.Warn("accepting SIP message for SMS delivery even though it is not from localhost", "host", host)
	})
	return true
}

// fromRelay reports whether the datagram came from the configured global
// relay: by source address, or with relaxed verification by any Via.
func (v *Validator) fromRelay(p *Pending) bool {
	if v.RelayHost == "" {
		return false
	}
	if host, port, err := net.SplitHostPort(p.SrcAddr); err == nil {
		if strings.EqualFold(host, v.RelayHost) && port == v.RelayPort {
			return true
		}
	}
	if !v.RelaxedVerify {
		return false
	}
	relayPort, err := strconv.Atoi(v.RelayPort)
	if err != nil {
		return false
	}
	for _, h := range p.SIP().GetHeaders("Via") {
		via, ok := h.(*sip.ViaHeader)
		if !ok {
			continue
		}
		if strings.EqualFold(via.Host, v.RelayHost) && via.Port == relayPort {
			return true
		}
	}
	return false
}

func supportedContentType(msg sip.Message) bool {
	h := getHeader(msg, "Content-Type")
	if h == nil {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(h.Value()))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "text/plain" || ct == "application/vnd.3gpp.sms"
}

func contentLength(msg sip.Message) int {
	h := getHeader(msg, "Content-Length")
	if h == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h.Value()))
	if err != nil {
		return 0
	}
	return n
}
