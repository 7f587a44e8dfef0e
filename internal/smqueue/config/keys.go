package config

// Keys is the full key table: name, default, units, optional flag and the
// operator documentation. The --gensql and --gentex emitters walk this
// table in order.
var Keys = []Key{
	{"Asterisk.address", "127.0.0.1:5060", "", false,
		"The Asterisk/SIP PBX IP address and port."},
	{"Bounce.Code", "101", "", false,
		"The short code that bounced messages originate from."},
	{"Bounce.Message.IMSILookupFailed",
		"Cannot determine return address; bouncing message.  Text your phone number to 101 to register and try again.",
		"", false,
		"The bounce message that is sent when the originating IMSI cannot be verified."},
	{"Bounce.Message.NotRegistered", "Phone not registered here.", "", false,
		"Bounce message indicating that the destination phone is not registered."},
	{"CDRFile", "/var/lib/smqueue/smq.cdr", "", false,
		"Log CDRs here.  To enable, specify an absolute path to where the CDRs should be logged.  To disable, set the key empty."},
	{"Debug.print_as_we_validate", "0", "", false,
		"Generate lots of output during validation."},
	{"Log.Level", "info", "", false,
		"Log level: debug, info, warn or error."},
	{"NodeManager.API.Bind", "127.0.0.1:45063", "", false,
		"Bind address of the HTTP operations API."},
	{"savefile", "/tmp/save", "", false,
		"The file to save SMS messages to when exiting."},
	{"SC.DebugDump.Code", "2336", "", false,
		"Short code to the application which dumps debug information to the log.  Intended for administrator use."},
	{"SC.Info.Code", "411", "", false,
		"Short code to the application which tells the sender their own number and registration status."},
	{"SC.QuickChk.Code", "2337", "", false,
		"Short code to the application which tells the sender how many messages are currently queued.  Intended for administrator use."},
	{"SC.Register.Code", "101", "", false,
		"Short code to the application which registers the sender to the system."},
	{"SC.Register.Digits.Max", "10", "digits", false,
		"The maximum number of digits a phone number can have."},
	{"SC.Register.Digits.Min", "7", "digits", false,
		"The minimum number of digits a phone number must have."},
	{"SC.Register.Digits.Override", "0", "", false,
		"Ignore phone number digit length checks."},
	{"SC.Register.Msg.AlreadyA", "Your phone is already registered as", "", false,
		"First part of message sent during registration if the handset is already registered, followed by the current handset number."},
	{"SC.Register.Msg.AlreadyB", ".", "", false,
		"Second part of message sent during registration if the handset is already registered."},
	{"SC.Register.Msg.ErrorA", "Error in assigning", "", false,
		"First part of message sent during registration if the handset fails to register, followed by the attempted handset number."},
	{"SC.Register.Msg.ErrorB", "to IMSI", "", false,
		"Second part of message sent during registration if the handset fails to register, followed by the handset IMSI."},
	{"SC.Register.Msg.TakenA", "The phone number", "", false,
		"First part of message sent during registration if the handset fails to register because the desired number is already taken, followed by the attempted handset number."},
	{"SC.Register.Msg.TakenB", "is already in use. Try another, then call that one to talk to whoever took yours.", "", false,
		"Second part of message sent during registration if the handset fails to register because the desired number is already taken."},
	{"SC.Register.Msg.WelcomeA", "Hello", "", false,
		"First part of message sent during registration if the handset registers successfully, followed by the assigned handset number."},
	{"SC.Register.Msg.WelcomeB", "! Text to 411 for system status.", "", false,
		"Second part of message sent during registration if the handset registers successfully."},
	{"SC.WhiplashQuit.Code", "314158", "", false,
		"Short code to the application which will make the server quit cleanly.  Intended for developer use only."},
	{"SC.WhiplashQuit.Password", "Snidely", "", false,
		"Password which must be sent in the message to the application at SC.WhiplashQuit.Code."},
	{"SC.WhiplashQuit.SaveFile", "testsave.txt", "", false,
		"Contents of the queue will be dumped to this file when SC.WhiplashQuit.Code is activated."},
	{"SC.ZapQueued.Code", "2338", "", false,
		"Short code to the application which will remove a message from the queue, by its tag.  If first char is \"-\", do not reply, just do it.  If argument is SC.ZapQueued.Password, then delete any queued message with timeout greater than 5000 seconds."},
	{"SC.ZapQueued.Password", "6000", "", false,
		"Password which must be sent in the message to the application at SC.ZapQueued.Code."},
	{"SIP.Default.BTSPort", "5062", "", false,
		"The default BTS port to try when none is available."},
	{"SIP.GlobalRelay.ContentType", "application/vnd.3gpp.sms", "", true,
		"The content type that the global relay expects."},
	{"SIP.GlobalRelay.IP", "", "", true,
		"IP address of global relay to send unresolvable messages to.  By default, this is disabled.  To override, specify an IP address."},
	{"SIP.GlobalRelay.Port", "", "", true,
		"Port of global relay to send unresolvable messages to."},
	{"SIP.GlobalRelay.RelaxedVerify", "0", "", true,
		"Relax relay verification by only using SIP Header."},
	{"SIP.myIP", "127.0.0.1", "", false,
		"The IP address that smqueue advertises in the URIs it generates."},
	{"SIP.my2ndIP", "", "", true,
		"A second local IP address accepted as ours when validating request URIs."},
	{"SIP.myPort", "5063", "", false,
		"The port that smqueue should bind to."},
	{"SIP.Timeout.ACKedMessageResend", "60", "seconds", false,
		"Number of seconds to delay resending ACK messages."},
	{"SIP.Timeout.MessageBounce", "120", "seconds", true,
		"Timeout, in seconds, between bounced message sending tries."},
	{"SIP.Timeout.MessageResend", "120", "seconds", true,
		"Timeout, in seconds, between message sending tries.  Accepted but currently inert."},
	{"SMS.FakeSrcSMSC", "0000", "", false,
		"Use this to fill in L4 SMSC address in SMS delivery."},
	{"SMS.MaxRetries", "2160", "", false,
		"Messages will only be attempted to be sent this many times before giving up and being dropped. Set to 0 to allow infinite retries."},
	{"SMS.RateLimit", "0", "seconds", false,
		"Limit delivery rate to one message every X seconds. Set to 0 to disable rate limiting."},
	{"SubscriberRegistry.A3A8", "../comp128", "", true,
		"Path to the program that implements the A3/A8 algorithm.  Accepted for compatibility; not consulted here."},
	{"SubscriberRegistry.db", "/var/lib/smqueue/subscribers.db", "", false,
		"The location of the sqlite3 database holding the subscriber registry."},
	{"SubscriberRegistry.UpstreamServer", "", "", true,
		"URL of the subscriber registry HTTP interface on the upstream server.  By default, this feature is disabled."},
}
