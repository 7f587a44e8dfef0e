package shortcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/hlr"
)

// fakeDirectory is an in-memory hlr.Directory for handler tests.
type fakeDirectory struct {
	imsiToPhone map[string]string
	phoneToIMSI map[string]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		imsiToPhone: map[string]string{},
		phoneToIMSI: map[string]string{},
	}
}

func (d *fakeDirectory) PhoneToIMSI(phone string) (string, error) {
	if imsi, ok := d.phoneToIMSI[phone]; ok {
		return imsi, nil
	}
	return "", hlr.ErrNotFound
}

func (d *fakeDirectory) IMSIToPhone(imsi string) (string, error) {
	if phone, ok := d.imsiToPhone[imsi]; ok {
		return phone, nil
	}
	return "", hlr.ErrNotFound
}

func (d *fakeDirectory) IMSIToLocation(imsi string) (string, error) {
	return "", hlr.ErrNotFound
}

func (d *fakeDirectory) AssignPhone(imsi, phone string) error {
	d.imsiToPhone[imsi] = phone
	d.phoneToIMSI[phone] = imsi
	return nil
}

func (d *fakeDirectory) PhoneTaken(phone string) (bool, error) {
	_, ok := d.phoneToIMSI[phone]
	return ok, nil
}

type fakeEnv struct {
	cfg         *config.Config
	dir         *fakeDirectory
	zappedTags  []string
	zappedDelay time.Duration
}

func (e *fakeEnv) Config() *config.Config      { return e.cfg }
func (e *fakeEnv) Directory() hlr.Directory    { return e.dir }
func (e *fakeEnv) QueueLen() int               { return 3 }
func (e *fakeEnv) QueueDump() []string         { return nil }
func (e *fakeEnv) SaveQueue(path string) error { return nil }

func (e *fakeEnv) ZapTag(tag string) int {
	e.zappedTags = append(e.zappedTags, tag)
	return 1
}

func (e *fakeEnv) ZapLongDelayed(minDelay time.Duration) int {
	e.zappedDelay = minDelay
	return 7
}

func newEnv() *fakeEnv {
	return &fakeEnv{cfg: config.New(), dir: newFakeDirectory()}
}

const testIMSI = "IMSI666410186585295"

func TestNewMapRegistersConfiguredCodes(t *testing.T) {
	env := newEnv()
	m := NewMap(env)
	assert.Contains(t, m, "101")
	assert.Contains(t, m, "411")
	assert.Contains(t, m, "2337")
	assert.Contains(t, m, "2336")
	assert.Contains(t, m, "2338")
	assert.Contains(t, m, "314158")
}

func TestRegisterAssignsNumber(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	action := RegisterHandler(testIMSI, "7074700749", p)
	assert.Equal(t, AwaitRegister, action)

	phone, err := env.dir.IMSIToPhone(testIMSI)
	require.NoError(t, err)
	assert.Equal(t, "7074700749", phone)
}

func TestRegisterRerunSendsWelcome(t *testing.T) {
	env := newEnv()
	require.NoError(t, env.dir.AssignPhone(testIMSI, "7074700749"))

	p := &Params{Env: env}
	action := RegisterHandler(testIMSI, "7074700749", p)
	assert.Equal(t, Reply, action)
	assert.Contains(t, p.Reply, "7074700749")
	assert.Contains(t, p.Reply, env.cfg.GetStr("SC.Register.Msg.WelcomeA"))
}

func TestRegisterAlreadyRegistered(t *testing.T) {
	env := newEnv()
	require.NoError(t, env.dir.AssignPhone(testIMSI, "7074700749"))

	p := &Params{Env: env}
	action := RegisterHandler(testIMSI, "7074700755", p)
	assert.Equal(t, Reply, action)
	assert.Contains(t, p.Reply, env.cfg.GetStr("SC.Register.Msg.AlreadyA"))
	assert.Contains(t, p.Reply, "7074700749")
}

func TestRegisterNumberTaken(t *testing.T) {
	env := newEnv()
	require.NoError(t, env.dir.AssignPhone("IMSI777100223456161", "7074700749"))

	p := &Params{Env: env}
	action := RegisterHandler(testIMSI, "7074700749", p)
	assert.Equal(t, Reply, action)
	assert.Contains(t, p.Reply, env.cfg.GetStr("SC.Register.Msg.TakenA"))
}

func TestRegisterRejectsBadDigits(t *testing.T) {
	env := newEnv()
	for _, body := range []string{"12345", "123456789012345", "707470abcd"} {
		p := &Params{Env: env}
		action := RegisterHandler(testIMSI, body, p)
		assert.Equal(t, Reply, action, "body %q", body)
		assert.Contains(t, p.Reply, env.cfg.GetStr("SC.Register.Msg.ErrorA"))
	}
}

func TestRegisterDigitOverrideSkipsBounds(t *testing.T) {
	env := newEnv()
	env.cfg.Set("SC.Register.Digits.Override", "1")
	p := &Params{Env: env}
	action := RegisterHandler(testIMSI, "12345", p)
	assert.Equal(t, AwaitRegister, action)
}

func TestInfoHandler(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	assert.Equal(t, Reply, InfoHandler(testIMSI, "", p))
	assert.Contains(t, p.Reply, "not registered")

	require.NoError(t, env.dir.AssignPhone(testIMSI, "7074700749"))
	p = &Params{Env: env}
	assert.Equal(t, Reply, InfoHandler(testIMSI, "", p))
	assert.Contains(t, p.Reply, "7074700749")
}

func TestQuickChkHandler(t *testing.T) {
	p := &Params{Env: newEnv()}
	assert.Equal(t, Reply, QuickChkHandler(testIMSI, "", p))
	assert.Contains(t, p.Reply, "3 messages")
}

func TestZapQueuedByTag(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	assert.Equal(t, Reply, ZapQueuedHandler(testIMSI, "9--d3f9", p))
	assert.Equal(t, []string{"9--d3f9"}, env.zappedTags)
	assert.Contains(t, p.Reply, "Zapped 1")
}

func TestZapQueuedQuiet(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	assert.Equal(t, Done, ZapQueuedHandler(testIMSI, "-9--d3f9", p))
	assert.Equal(t, []string{"9--d3f9"}, env.zappedTags)
}

func TestZapQueuedPasswordClearsLongDelayed(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	assert.Equal(t, Reply, ZapQueuedHandler(testIMSI, "6000", p))
	assert.Equal(t, 5000*time.Second, env.zappedDelay)
	assert.Empty(t, env.zappedTags)
	assert.Contains(t, p.Reply, "Zapped 7")
}

func TestWhiplashQuit(t *testing.T) {
	env := newEnv()
	p := &Params{Env: env}
	assert.Equal(t, Done, WhiplashQuitHandler(testIMSI, "wrong", p))
	assert.Equal(t, Quit, WhiplashQuitHandler(testIMSI, "Snidely", p))
}
