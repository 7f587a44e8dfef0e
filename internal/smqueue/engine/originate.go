package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

// Longest SMS text we will originate. Longer bounce texts get truncated
// rather than rejected.
const maxSMSLength = 160

// originateHalfSM builds the skeleton of a locally-originated request:
// Via, Max-Forwards, Call-ID and CSeq. The caller fills in From, To, the
// request URI and any body. REGISTER requests reuse one shared Call-ID
// with a climbing sequence number; everything else gets a fresh Call-ID
// and a random sequence number.
func (e *Engine) originateHalfSM(method sip.RequestMethod) (*message.Pending, *sip.Request) {
	req := sip.NewRequest(method, sip.Uri{})

	via := &sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            e.myIP,
		Port:            e.myPort,
		Params:          sip.NewParams(),
	}
	via.Params.Add("branch", sip.GenerateBranch())
	req.AppendHeader(via)

	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)

	var callID string
	var seq uint32
	if method == sip.REGISTER {
		e.regMu.Lock()
		if e.regCallID == "" {
			e.regCallID = e.newCallID()
			e.regCSeq = 0
		}
		e.regCSeq++
		callID, seq = e.regCallID, e.regCSeq
		e.regMu.Unlock()
	} else {
		callID = e.newCallID()
		seq = uint32(rand.Int() & 0xFFFF)
	}
	cid := sip.CallIDHeader(callID)
	req.AppendHeader(&cid)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: seq, MethodName: method})

	p := message.NewFromSIP(req)
	p.RegCallID = callID
	p.RegCSeq = seq
	return p, req
}

// originateSM synthesizes a MESSAGE from us (bounces, short-code replies)
// and queues it at firststate.
func (e *Engine) originateSM(from, to, text string, firststate message.State) error {
	p, req := e.originateHalfSM(sip.MESSAGE)
	p.NeedRepack = true

	if len(text) > maxSMSLength {
		text = text[:maxSMSLength]
	}

	seq := req.CSeq().SeqNo
	fromHdr := &sip.FromHeader{
		DisplayName: from,
		Address:     sip.Uri{Scheme: "sip", User: from, Host: e.myIP},
		Params:      sip.NewParams(),
	}
	fromHdr.Params.Add("tag", strconv.FormatUint(uint64(seq), 10))
	req.AppendHeader(fromHdr)
	req.AppendHeader(&sip.ToHeader{
		Address: sip.Uri{Scheme: "sip", User: to, Host: e.myIP},
		Params:  sip.NewParams(),
	})
	req.Recipient = sip.Uri{
		Scheme: "sip",
		User:   to,
		Host:   e.myIP,
		Port:   e.cfg.GetInt("SIP.Default.BTSPort"),
	}
	ct := sip.ContentTypeHeader(message.ContentTextPlain)
	req.AppendHeader(&ct)
	req.SetBody([]byte(text))
	p.MarkParsedChanged()

	if err := p.ComputeTag(); err != nil {
		return fmt.Errorf("originate message tag: %w", err)
	}
	if code := e.val.Validate(p, false); code != 0 {
		return fmt.Errorf("originated message failed validation with code %d", code)
	}

	slog.Info("originating message", "from", from, "to", to,
		"state", firststate, "tag", p.Tag)
	e.insertNewMessage(p, firststate)
	return nil
}

// bounceMessage originates an error report back to the sender of a
// message we could not deliver. Returns the state the failed entry should
// move to: DeleteMe once the bounce is on its way, NoState if we could
// not or would not bounce.
func (e *Engine) bounceMessage(sent *message.Pending, errstr string) message.State {
	msg := sent.SIP()
	if msg == nil || msg.To() == nil || msg.From() == nil {
		return message.NoState
	}
	toUser := msg.To().Address.User
	body := string(msg.Body())

	var text string
	if errstr != "" {
		text = fmt.Sprintf("Can't send your SMS to %s: %s: %s", toUser, errstr, body)
	} else {
		text = fmt.Sprintf("can't send: %s", body)
	}

	bounceCode := e.cfg.GetStr("Bounce.Code")
	bounceTo := msg.From().Address.User
	if bounceTo == bounceCode {
		// A bounce of a bounce. Stop the loop here.
		slog.Warn("not bouncing a message from the bounce code", "to", toUser)
		return message.NoState
	}

	firststate := message.RequestDestIMSI
	if hasIMSIPrefix(bounceTo) {
		// Already an IMSI, skip the number lookup.
		firststate = message.RequestDestSIPURL
	}
	slog.Info("bouncing message", "to", bounceTo, "reason", errstr)
	if err := e.originateSM(bounceCode, bounceTo, text, firststate); err != nil {
		slog.Error("failed to originate bounce", "to", bounceTo, "err", err)
		return message.NoState
	}
	return message.DeleteMe
}

// registerHandset synthesizes the REGISTER that points the registrar at
// the cell the short-code sender is camped on. The REGISTER carries the
// triggering entry's tag as its link, so the 200 can wake that entry.
func (e *Engine) registerHandset(qmsg *message.Pending) message.State {
	from := qmsg.SIP().From()
	if from == nil {
		return message.DeleteMe
	}
	imsi := from.Address.User

	p, req := e.originateHalfSM(sip.REGISTER)
	p.NeedRepack = false
	p.SrcAddr = qmsg.SrcAddr

	regHost, regPort := e.registrarHost()
	seq := req.CSeq().SeqNo
	fromHdr := &sip.FromHeader{
		DisplayName: imsi,
		Address:     sip.Uri{Scheme: "sip", User: imsi, Host: regHost, Port: regPort},
		Params:      sip.NewParams(),
	}
	fromHdr.Params.Add("tag", strconv.FormatUint(uint64(seq), 10))
	req.AppendHeader(fromHdr)
	req.AppendHeader(&sip.ToHeader{
		DisplayName: imsi,
		Address:     sip.Uri{Scheme: "sip", User: imsi, Host: regHost, Port: regPort},
		Params:      sip.NewParams(),
	})
	req.Recipient = sip.Uri{Scheme: "sip", Host: regHost, Port: regPort}
	req.AppendHeader(sip.NewHeader("Contact",
		fmt.Sprintf("<sip:%s@%s>;expires=3600", imsi, qmsg.SrcAddr)))
	p.MarkParsedChanged()

	if err := p.ComputeTag(); err != nil {
		slog.Error("register tag computation failed", "imsi", imsi, "err", err)
		return message.DeleteMe
	}
	p.LinkTag = qmsg.Tag
	if code := e.val.Validate(p, false); code != 0 {
		slog.Error("synthesized REGISTER failed validation",
			"imsi", imsi, "code", code)
		return message.DeleteMe
	}

	slog.Info("registering handset", "imsi", imsi, "cell", qmsg.SrcAddr)
	e.insertNewMessage(p, message.RequestMsgDelivery)
	return message.AskedToRegisterHandset
}
