package message

// State is the processing state of a queued message. The numeric values
// are part of the save-file format and must stay stable.
type State int

const (
	NoState State = iota
	InitialState
	RequestFromAddressLookup
	AskedForFromAddressLookup

	AwaitingTryDestIMSI
	RequestDestIMSI
	AskedForDestIMSI

	AwaitingTryDestSIPURL
	RequestDestSIPURL
	AskedForDestSIPURL

	AwaitingTryMsgDelivery
	RequestMsgDelivery
	AskedForMsgDelivery

	DeleteMe

	AwaitingRegisterHandset
	RegisterHandset
	AskedToRegisterHandset

	StateMax
)

var stateNames = [StateMax]string{
	"NO_STATE",
	"INITIAL_STATE",
	"REQUEST_FROM_ADDRESS_LOOKUP",
	"ASKED_FOR_FROM_ADDRESS_LOOKUP",
	"AWAITING_TRY_DESTINATION_IMSI",
	"REQUEST_DESTINATION_IMSI",
	"ASKED_FOR_DESTINATION_IMSI",
	"AWAITING_TRY_DESTINATION_SIPURL",
	"REQUEST_DESTINATION_SIPURL",
	"ASKED_FOR_DESTINATION_SIPURL",
	"AWAITING_TRY_MSG_DELIVERY",
	"REQUEST_MSG_DELIVERY",
	"ASKED_FOR_MSG_DELIVERY",
	"DELETE_ME_STATE",
	"AWAITING_REGISTER_HANDSET",
	"REGISTER_HANDSET",
	"ASKED_TO_REGISTER_HANDSET",
}

func (s State) String() string {
	if s < 0 || s >= StateMax {
		return "INVALID_STATE"
	}
	return stateNames[s]
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s >= 0 && s < StateMax
}
