package domain

type CallState int

const (
	StateUninitialized CallState = iota
	StateInitializing
	StateConnected
	StatePublishing
	StateDisconnecting
	StateDisconnected
)

func (s CallState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StatePublishing:
		return "publishing"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	ThemeBlur  = "blur"
	ThemeImage = "theme"
)

// CallProps is the configuration a host supplies when mounting a call.
type CallProps struct {
	Token              string
	SessionID          string
	APIKey             string
	EntityGUID         string
	Theme              string
	InterruptAction    string
	OfflineAction      string
	EndCallAction      string
	Origin             Origin
	SessionEntity      string
	EnableInterruption bool
	OfflineAttribute   string
}
