package engine

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

// isDigits reports whether s is non-empty and all ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// lookupFromAddress rewrites the sender's From address from IMSI form to
// the phone number the recipient can reply to. It also stamps our Via on
// the request, since from here on we forward it. A sender we cannot map
// keeps the IMSI as the caller ID rather than losing the message.
func (e *Engine) lookupFromAddress(p *message.Pending) message.State {
	msg := p.SIP()
	from := msg.From()
	if from == nil || from.Address.Scheme != "sip" {
		slog.Warn("message from address is not a SIP URI")
		return message.NoState
	}
	if from.Address.User == "" || from.Address.Host == "" {
		slog.Warn("message from address has no user or host")
		return message.NoState
	}

	via := &sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            e.myIP,
		Port:            e.myPort,
		Params:          sip.NewParams(),
	}
	via.Params.Add("branch", sip.GenerateBranch())
	msg.PrependHeader(via)
	p.MarkParsedChanged()

	user := from.Address.User
	if user[0] == '+' || (user[0] >= '0' && user[0] <= '9') {
		// Already a phone number.
		return message.RequestDestIMSI
	}
	if !hasIMSIPrefix(user) {
		slog.Warn("message from address is neither a number nor an IMSI",
			"from", user)
		return message.NoState
	}
	imsiDigits := user[4:]
	if len(imsiDigits) < 14 || len(imsiDigits) > 15 || !isDigits(imsiDigits) {
		slog.Warn("malformed IMSI in from address", "from", user)
		return message.NoState
	}

	phone, err := e.dir.IMSIToPhone(user)
	if err != nil {
		// Unprovisioned sender. Deliver anyway with the IMSI showing.
		slog.Info("no phone number found for sender", "imsi", user)
		return message.RequestDestIMSI
	}
	from.Address.User = phone
	from.DisplayName = phone
	p.MarkParsedChanged()
	return message.RequestDestIMSI
}

// lookupURIIMSI rewrites the request URI's username from a phone number
// to the destination IMSI. Unknown numbers go to the global relay when
// one is configured, otherwise the message bounces.
func (e *Engine) lookupURIIMSI(p *message.Pending) message.State {
	req, ok := p.Request()
	if !ok || req.Recipient.Scheme != "sip" {
		slog.Warn("request URI is not a SIP URI")
		return message.NoState
	}
	user := req.Recipient.User
	if user == "" {
		slog.Warn("request URI has no username")
		return message.NoState
	}

	if user[0] == '+' || !hasIMSIPrefix(user) {
		// Phone number. Find who holds it.
		imsi, err := e.dir.PhoneToIMSI(user)
		if err != nil || !hasIMSIPrefix(imsi) {
			if !e.relayConfigured() {
				slog.Warn("no global relay defined, bouncing message",
					"dest", user)
				return e.bounceMessage(p, e.cfg.GetStr("Bounce.Message.NotRegistered"))
			}
			// Hand it to the relay as-is, with the sender's number
			// mapped to its global form.
			slog.Info("routing message via global relay", "dest", user)
			if from := req.From(); from != nil {
				from.Address.User = globalCLID(from.Address.User)
			}
			if err := p.ConvertContentType(e.cfg.GetStr("SIP.GlobalRelay.ContentType")); err != nil {
				slog.Error("relay content conversion failed", "err", err)
				return message.NoState
			}
			p.MarkParsedChanged()
			return message.RequestDestSIPURL
		}
		req.Recipient.User = imsi
		p.MarkParsedChanged()
		return message.RequestDestSIPURL
	}

	imsiDigits := user[4:]
	if len(imsiDigits) < 14 || len(imsiDigits) > 15 || !isDigits(imsiDigits) {
		slog.Warn("malformed IMSI in request URI", "dest", user)
		return message.NoState
	}
	return message.RequestDestSIPURL
}

// lookupURIHostport rewrites the request URI's host and port to the cell
// currently serving the destination IMSI, or to the global relay for
// numbers we do not serve. A fresh Call-ID is minted so each delivery
// attempt is its own transaction at the destination.
func (e *Engine) lookupURIHostport(p *message.Pending) message.State {
	req, ok := p.Request()
	if !ok || req.Recipient.User == "" {
		slog.Warn("request URI has no username")
		return message.NoState
	}
	user := req.Recipient.User

	host := "127.0.0.1"
	port := e.cfg.GetInt("SIP.Default.BTSPort")
	if !hasIMSIPrefix(user) {
		host, port = e.relayHostPort()
		if err := p.ConvertContentType(e.cfg.GetStr("SIP.GlobalRelay.ContentType")); err != nil {
			slog.Error("relay content conversion failed", "err", err)
			return message.NoState
		}
	} else {
		loc, err := e.dir.IMSIToLocation(user)
		if err != nil {
			slog.Info("destination has no registered cell, using default",
				"imsi", user)
		} else if h, prt, splitErr := net.SplitHostPort(loc); splitErr == nil {
			host = h
			if n, convErr := strconv.Atoi(prt); convErr == nil {
				port = n
			}
		} else {
			host = loc
		}
	}
	req.Recipient.Host = host
	req.Recipient.Port = port

	cid := sip.CallIDHeader(e.newCallID())
	req.ReplaceHeader(&cid)
	p.MarkParsedChanged()
	if err := p.ComputeTag(); err != nil {
		slog.Error("tag recomputation failed", "err", err)
		return message.NoState
	}
	return message.RequestMsgDelivery
}
