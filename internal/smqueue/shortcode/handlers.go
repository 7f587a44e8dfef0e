package shortcode

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sebas/smqueue/internal/smqueue/hlr"
)

// NewMap builds the routing table from the configured short codes.
func NewMap(env Env) Map {
	cfg := env.Config()
	m := Map{}
	m[cfg.GetStr("SC.Register.Code")] = RegisterHandler
	m[cfg.GetStr("SC.Info.Code")] = InfoHandler
	m[cfg.GetStr("SC.QuickChk.Code")] = QuickChkHandler
	m[cfg.GetStr("SC.DebugDump.Code")] = DebugDumpHandler
	m[cfg.GetStr("SC.ZapQueued.Code")] = ZapQueuedHandler
	m[cfg.GetStr("SC.WhiplashQuit.Code")] = WhiplashQuitHandler
	return m
}

// RegisterHandler assigns the requested phone number to the sender's
// IMSI. The welcome reply is not sent on the first pass: the entry waits
// for the handset REGISTER round trip and runs this handler again once
// the directory shows the mapping.
func RegisterHandler(imsi, body string, p *Params) Action {
	cfg := p.Env.Config()
	dir := p.Env.Directory()
	wanted := strings.TrimSpace(body)
	digits := strings.TrimPrefix(wanted, "+")

	if !cfg.GetBool("SC.Register.Digits.Override") {
		min := cfg.GetInt("SC.Register.Digits.Min")
		max := cfg.GetInt("SC.Register.Digits.Max")
		if len(digits) < min || len(digits) > max || !allDigits(digits) {
			p.Reply = fmt.Sprintf("%s %s %s %s",
				cfg.GetStr("SC.Register.Msg.ErrorA"), wanted,
				cfg.GetStr("SC.Register.Msg.ErrorB"), imsi)
			return Reply
		}
	}

	current, err := dir.IMSIToPhone(imsi)
	switch {
	case err == nil && current == wanted:
		// Either a re-registration or the post-REGISTER re-run of
		// the original request. Welcome them.
		p.Reply = fmt.Sprintf("%s %s%s",
			cfg.GetStr("SC.Register.Msg.WelcomeA"), current,
			cfg.GetStr("SC.Register.Msg.WelcomeB"))
		return Reply
	case err == nil:
		p.Reply = fmt.Sprintf("%s %s%s",
			cfg.GetStr("SC.Register.Msg.AlreadyA"), current,
			cfg.GetStr("SC.Register.Msg.AlreadyB"))
		return Reply
	case !errors.Is(err, hlr.ErrNotFound):
		slog.Error("registration lookup failed", "imsi", imsi, "err", err)
		return InternalError
	}

	taken, err := dir.PhoneTaken(wanted)
	if err != nil {
		slog.Error("phone taken check failed", "phone", wanted, "err", err)
		return InternalError
	}
	if taken {
		p.Reply = fmt.Sprintf("%s %s %s",
			cfg.GetStr("SC.Register.Msg.TakenA"), wanted,
			cfg.GetStr("SC.Register.Msg.TakenB"))
		return Reply
	}

	if err := dir.AssignPhone(imsi, wanted); err != nil {
		slog.Error("phone assignment failed", "imsi", imsi, "phone", wanted, "err", err)
		p.Reply = fmt.Sprintf("%s %s %s %s",
			cfg.GetStr("SC.Register.Msg.ErrorA"), wanted,
			cfg.GetStr("SC.Register.Msg.ErrorB"), imsi)
		return Reply
	}

	slog.Info("registered phone number", "imsi", imsi, "phone", wanted)
	// The number is linked to the IMSI, but the IMSI still has to be
	// linked to its cell's address before we can deliver to it.
	return AwaitRegister
}

// InfoHandler tells the sender their own number and registration state.
func InfoHandler(imsi, body string, p *Params) Action {
	phone, err := p.Env.Directory().IMSIToPhone(imsi)
	if err != nil {
		p.Reply = "Your phone is not registered here."
	} else {
		p.Reply = fmt.Sprintf("Your phone number is %s.", phone)
	}
	return Reply
}

// QuickChkHandler reports the queue depth.
func QuickChkHandler(imsi, body string, p *Params) Action {
	p.Reply = fmt.Sprintf("There are currently %d messages in the queue.", p.Env.QueueLen())
	return Reply
}

// DebugDumpHandler dumps the queue to the log. No reply.
func DebugDumpHandler(imsi, body string, p *Params) Action {
	for _, line := range p.Env.QueueDump() {
		slog.Info("queue dump", "entry", line)
	}
	return Done
}

// The password form of the zap code clears out entries stuck on very
// long timers.
const zapLongDelay = 5000 * time.Second

// ZapQueuedHandler removes a queued message named by its tag in the
// body. A leading "-" suppresses the reply. If the body is the
// configured password instead, every entry parked further out than
// zapLongDelay is removed.
func ZapQueuedHandler(imsi, body string, p *Params) Action {
	cfg := p.Env.Config()
	arg := strings.TrimSpace(body)
	quiet := strings.HasPrefix(arg, "-")
	arg = strings.TrimPrefix(arg, "-")

	var n int
	if arg == cfg.GetStr("SC.ZapQueued.Password") {
		n = p.Env.ZapLongDelayed(zapLongDelay)
	} else {
		n = p.Env.ZapTag(arg)
	}
	slog.Info("zapped queued messages", "imsi", imsi, "count", n)
	if quiet {
		return Done
	}
	p.Reply = fmt.Sprintf("Zapped %d messages.", n)
	return Reply
}

// WhiplashQuitHandler stops the server if the message carries the
// configured password, dumping the queue to the configured file first.
func WhiplashQuitHandler(imsi, body string, p *Params) Action {
	cfg := p.Env.Config()
	if strings.TrimSpace(body) != cfg.GetStr("SC.WhiplashQuit.Password") {
		slog.Warn("quit short code with wrong password", "imsi", imsi)
		return Done
	}
	if path := cfg.GetStr("SC.WhiplashQuit.SaveFile"); path != "" {
		if err := p.Env.SaveQueue(path); err != nil {
			slog.Error("quit short code queue dump failed", "err", err)
		}
	}
	return Quit
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
