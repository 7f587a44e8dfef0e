package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

func sipText(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func savedMessage(callID string) []byte {
	return sipText(
		"MESSAGE sip:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKsave",
		"From: <sip:IMSI666410186585295@127.0.0.1>;tag=sv1",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: "+callID+"@127.0.0.1",
		"CSeq: 7 MESSAGE",
		"Content-Type: text/plain",
		"Content-Length: 5",
		"",
		"hello",
	)
}

func parseOK(p *message.Pending) int {
	if err := p.MakeParsedValid(); err != nil {
		return 400
	}
	return 0
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save")

	q := New()
	when := time.Unix(time.Now().Add(time.Minute).Unix(), 0)
	p := message.NewFromRaw(savedMessage("one"), "192.168.0.4:5062")
	p.State = message.RequestMsgDelivery
	p.NextActionTime = when
	p.MSToSC = true
	p.NeedRepack = false
	q.Insert(p)

	p2 := message.NewFromRaw(savedMessage("two"), "192.168.0.5:5062")
	p2.State = message.AwaitingTryMsgDelivery
	p2.NextActionTime = when.Add(time.Minute)
	q.Insert(p2)

	require.NoError(t, Save(q, path))

	var loaded []*message.Pending
	err := Load(path, parseOK, func(p *message.Pending) { loaded = append(loaded, p) })
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Save walks the queue latest-first, so the later entry leads the
	// file and comes back first.
	first := loaded[0]
	assert.Equal(t, message.AwaitingTryMsgDelivery, first.State)
	assert.Equal(t, when.Add(time.Minute), first.NextActionTime)
	assert.Equal(t, "192.168.0.5:5062", first.SrcAddr)
	assert.False(t, first.MSToSC)
	assert.True(t, first.NeedRepack)
	assert.Equal(t, string(savedMessage("two")), string(first.Text()))

	second := loaded[1]
	assert.Equal(t, message.RequestMsgDelivery, second.State)
	assert.Equal(t, when, second.NextActionTime)
	assert.Equal(t, "192.168.0.4:5062", second.SrcAddr)
	assert.True(t, second.MSToSC)
	assert.False(t, second.NeedRepack)
	assert.Equal(t, string(savedMessage("one")), string(second.Text()))
}

func TestLoadMissingFileIsFine(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope"), parseOK, func(*message.Pending) {
		t.Fatal("unexpected insert")
	})
	assert.NoError(t, err)
}

func TestLoadDropsResponsesAndClearsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save")

	resp := sipText(
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/UDP 127.0.0.1:5063;branch=z9hG4bKsave",
		"From: <sip:+17074700741@127.0.0.1>;tag=sv2",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: r@127.0.0.1",
		"CSeq: 7 MESSAGE",
		"Content-Length: 0",
		"",
		"",
	)
	q := New()
	p := message.NewFromRaw(resp, "127.0.0.1:5062")
	require.NoError(t, p.MakeParsedValid())
	p.State = message.InitialState
	p.NextActionTime = time.Now()
	q.Insert(p)
	require.NoError(t, Save(q, path))

	inserted := 0
	require.NoError(t, Load(path, parseOK, func(*message.Pending) { inserted++ }))
	assert.Equal(t, 0, inserted)

	// The file is cleared after a load with errors.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoadRejectsFailedValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save")
	q := New()
	p := message.NewFromRaw(savedMessage("bad"), "127.0.0.1:5062")
	p.State = message.InitialState
	p.NextActionTime = time.Now()
	q.Insert(p)
	require.NoError(t, Save(q, path))

	inserted := 0
	reject := func(*message.Pending) int { return 400 }
	require.NoError(t, Load(path, reject, func(*message.Pending) { inserted++ }))
	assert.Equal(t, 0, inserted)
}
