package message

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// Supported body content types.
const (
	ContentTextPlain = "text/plain"
	ContentVnd3GPP   = "application/vnd.3gpp.sms"
)

// ConvertContentType transcodes the body toward target and rewrites the
// Content-Type header. The 3GPP form carries the payload hex-encoded;
// converting to text/plain decodes it back. Converting to the type the
// message already has is a no-op.
func (p *Pending) ConvertContentType(target string) error {
	if err := p.MakeParsedValid(); err != nil {
		return fmt.Errorf("repack parse: %w", err)
	}
	current := strings.ToLower(p.ContentType())
	if i := strings.IndexByte(current, ';'); i >= 0 {
		current = strings.TrimSpace(current[:i])
	}
	if current == target {
		return nil
	}

	msg := p.SIP()
	body := msg.Body()
	switch target {
	case ContentVnd3GPP:
		body = []byte(strings.ToUpper(hex.EncodeToString(body)))
	case ContentTextPlain:
		decoded, err := hex.DecodeString(strings.TrimSpace(string(body)))
		if err != nil {
			return fmt.Errorf("repack body: %w", err)
		}
		body = decoded
	default:
		return fmt.Errorf("repack: unsupported content type %q", target)
	}

	ct := sip.ContentTypeHeader(target)
	switch m := msg.(type) {
	case *sip.Request:
		m.ReplaceHeader(&ct)
	case *sip.Response:
		m.ReplaceHeader(&ct)
	}
	msg.SetBody(body)
	p.NeedRepack = false
	p.MarkParsedChanged()
	return nil
}
