// Package message models a queued SMS-over-SIP message: the raw datagram,
// its parsed view, the correlation tag, and the validation rules that
// gate admission to the queue.
package message

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
)

var parser = sip.NewParser()

// Pending is one in-flight message. It keeps both the wire form and the
// parsed form; exactly one of the two is authoritative at any moment,
// tracked by the validity flags. Mutate through SetRaw/SetParsed (or
// MarkParsedChanged after editing headers in place) so the other view is
// invalidated and regenerated before use.
type Pending struct {
	raw         []byte
	parsed      sip.Message
	textValid   bool
	parsedValid bool

	State          State
	NextActionTime time.Time

	// Tag identifies the logical message for response correlation:
	// CSeq number and from-tag, joined by "--". The Call-ID is left
	// out because resends mint new Call-IDs. TagHash is a one-byte
	// prefilter for queue scans.
	Tag     string
	TagHash byte

	// LinkTag names (by tag) the entry that spawned this one. A
	// synthesized REGISTER carries the tag of the shortcode MESSAGE
	// it is registering for, so its 200 can wake that entry.
	LinkTag string

	SrcAddr   string
	Retries   int
	FromRelay bool

	NeedRepack bool
	MSToSC     bool

	// REGISTER resends share one Call-ID with a climbing CSeq. Both
	// live on the originating entry, not on the REGISTER itself.
	RegCallID string
	RegCSeq   uint32
}

// NewFromRaw wraps a received datagram. Nothing is parsed yet. Entries
// start in NoState; the queue engine moves them to their first real state
// on insert, which makes the first action immediate.
func NewFromRaw(data []byte, srcAddr string) *Pending {
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Pending{
		raw:        raw,
		textValid:  true,
		State:      NoState,
		SrcAddr:    srcAddr,
		NeedRepack: true,
	}
}

// NewFromSIP wraps a message synthesized in-process.
func NewFromSIP(msg sip.Message) *Pending {
	return &Pending{
		parsed:      msg,
		parsedValid: true,
		State:       NoState,
	}
}

// MakeTextValid regenerates the wire form from the parsed view.
func (p *Pending) MakeTextValid() {
	if p.textValid {
		return
	}
	p.raw = []byte(p.parsed.String())
	p.textValid = true
}

// MakeParsedValid regenerates the parsed view from the wire form.
func (p *Pending) MakeParsedValid() error {
	if p.parsedValid {
		return nil
	}
	msg, err := parser.ParseSIP(p.raw)
	if err != nil {
		return err
	}
	p.parsed = msg
	p.parsedValid = true
	return nil
}

// Text returns the wire form, regenerating it if the parsed view is
// authoritative.
func (p *Pending) Text() []byte {
	p.MakeTextValid()
	return p.raw
}

// SIP returns the parsed view. It is nil until MakeParsedValid (or
// Validate) has succeeded at least once since the last raw mutation.
func (p *Pending) SIP() sip.Message {
	return p.parsed
}

// SetRaw replaces the wire form and drops the parsed view.
func (p *Pending) SetRaw(data []byte) {
	p.raw = data
	p.textValid = true
	p.parsed = nil
	p.parsedValid = false
}

// SetParsed replaces the parsed view and drops the wire form.
func (p *Pending) SetParsed(msg sip.Message) {
	p.parsed = msg
	p.parsedValid = true
	p.textValid = false
}

// MarkParsedChanged declares that the parsed view was edited in place,
// invalidating the cached wire form.
func (p *Pending) MarkParsedChanged() {
	p.textValid = false
}

// Request returns the parsed view as a request, if it is one.
func (p *Pending) Request() (*sip.Request, bool) {
	req, ok := p.parsed.(*sip.Request)
	return req, ok
}

// Response returns the parsed view as a response, if it is one.
func (p *Pending) Response() (*sip.Response, bool) {
	resp, ok := p.parsed.(*sip.Response)
	return resp, ok
}

// IsResponse reports whether the parsed view is a SIP response.
func (p *Pending) IsResponse() bool {
	_, ok := p.parsed.(*sip.Response)
	return ok
}

// Method returns the request method, or "" for responses.
func (p *Pending) Method() sip.RequestMethod {
	if req, ok := p.Request(); ok {
		return req.Method
	}
	return ""
}

// ContentType returns the Content-Type header value, or "".
func (p *Pending) ContentType() string {
	if p.parsed == nil {
		return ""
	}
	if h := getHeader(p.parsed, "Content-Type"); h != nil {
		return h.Value()
	}
	return ""
}

// getHeader returns the first header with the given name, or nil.
func getHeader(msg sip.Message, name string) sip.Header {
	if hdrs := msg.GetHeaders(name); len(hdrs) > 0 {
		return hdrs[0]
	}
	return nil
}

// trimBodyToContentLength cuts the parsed body down to the declared
// Content-Length. The parser sizes the body as everything after the
// blank line, so a datagram's trailing CRLF would otherwise leak into
// the payload. A missing or malformed header leaves the body alone: over
// UDP the body then runs to the end of the datagram (RFC 3261 20.14).
func (p *Pending) trimBodyToContentLength() {
	h := getHeader(p.parsed, "Content-Length")
	if h == nil {
		return
	}
	clen, err := strconv.Atoi(strings.TrimSpace(h.Value()))
	if err != nil || clen < 0 {
		return
	}
	if body := p.parsed.Body(); len(body) > clen {
		p.parsed.SetBody(body[:clen])
		p.MarkParsedChanged()
	}
}

var (
	errNoFrom   = errors.New("message has no From header")
	errNoCallID = errors.New("message has no Call-ID header")
	errNoCSeq   = errors.New("message has no CSeq header")
)

// ComputeTag derives the correlation tag from the current headers.
// Whenever CSeq or the from-tag change, the tag must be recomputed.
func (p *Pending) ComputeTag() error {
	if err := p.MakeParsedValid(); err != nil {
		return err
	}
	from := p.parsed.From()
	if from == nil {
		return errNoFrom
	}
	if p.parsed.CallID() == nil {
		return errNoCallID
	}
	cseq := p.parsed.CSeq()
	if cseq == nil {
		return errNoCSeq
	}
	fromTag, _ := from.Params.Get("tag")
	p.Tag = strconv.FormatUint(uint64(cseq.SeqNo), 10) + "--" + fromTag
	p.TagHash = TagHashOf(p.Tag)
	return nil
}

// TagHashOf is the cheap one-byte prefilter hash over a tag.
func TagHashOf(tag string) byte {
	if tag == "" {
		return 0
	}
	return tag[0]
}
