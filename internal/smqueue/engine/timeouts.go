package engine

import (
	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/message"
)

// Timeouts maps (current state, next state) to the delay in milliseconds
// before the entry comes due again. Rows are the state being left, columns
// the state being entered.
type Timeouts [message.StateMax][message.StateMax]int

// Delay sentinels. NeverTimeout marks transitions that should not happen
// on their own; if one fires anyway, fifty minutes is long enough that an
// operator will notice the log spam first.
const (
	NeverTimeout   = 3000 * 1000
	ReasonableTime = 300 * 1000
	TranTimeout    = 60 * 1000
)

// State column order within each row:
//
//	NS IS RF AF  WD RD AD  WS RS AS  WM RM AM  DM  WR RH AR
var defaultTimeouts = Timeouts{
	// NO_STATE
	{NeverTimeout, 0, 0, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// INITIAL_STATE
	{0, 0, 0, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// REQUEST_FROM_ADDRESS_LOOKUP
	{0, NeverTimeout, 10, 10,
		NeverTimeout, 0, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		1, 0, NeverTimeout},
	// ASKED_FOR_FROM_ADDRESS_LOOKUP
	{0, NeverTimeout, 60, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// AWAITING_TRY_DESTINATION_IMSI
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// REQUEST_DESTINATION_IMSI
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// ASKED_FOR_DESTINATION_IMSI
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// AWAITING_TRY_DESTINATION_SIPURL
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// REQUEST_DESTINATION_SIPURL
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, 0, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// ASKED_FOR_DESTINATION_SIPURL
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// AWAITING_TRY_MSG_DELIVERY
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		75000, 0, NeverTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// REQUEST_MSG_DELIVERY
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, 15000, NeverTimeout,
		75000, 75000, 15000,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// ASKED_FOR_MSG_DELIVERY
	{0, NeverTimeout, ReasonableTime, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		60000, 10000, TranTimeout,
		0,
		NeverTimeout, NeverTimeout, NeverTimeout},
	// DELETE_ME_STATE
	{0, 0, 0, 0,
		0, 0, 0,
		0, 0, 0,
		0, 0, 0,
		0,
		0, 0, 0},
	// AWAITING_REGISTER_HANDSET
	{0, NeverTimeout, 0, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		1000, 0, NeverTimeout},
	// REGISTER_HANDSET
	{0, NeverTimeout, 0, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		1000, 1000, 2000},
	// ASKED_TO_REGISTER_HANDSET
	{0, NeverTimeout, 0, NeverTimeout,
		ReasonableTime, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		NeverTimeout, NeverTimeout, NeverTimeout,
		0,
		1000, 1000, 10000},
}

// newTimeouts returns the delay matrix with the configured overrides
// applied. SIP.Timeout.MessageBounce shortens how long a bounced message
// lingers before deletion.
func newTimeouts(cfg *config.Config) Timeouts {
	t := defaultTimeouts
	if cfg.Defined("SIP.Timeout.MessageBounce") {
		t[message.RequestDestIMSI][message.DeleteMe] =
			cfg.GetInt("SIP.Timeout.MessageBounce")
	}
	return t
}
