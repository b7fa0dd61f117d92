package imapkit

import "fmt"

// ConnState is the session lifecycle state machine: Disconnected ->
// Connected -> Authenticated -> Selected (-> Idling) -> LoggedOut. A fatal
// framing or I/O error moves the session to Disconnected from any state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateAuthenticated
	StateSelected
	StateIdling
	StateLoggedOut
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateIdling:
		return "idling"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// requireAtLeast returns an error unless the session is currently in one of
// the given states. Used to reject FETCH/STORE/SEARCH issued outside
// Selected or Idling.
func requireAtLeast(current ConnState, allowed ...ConnState) error {
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return fmt.Errorf("imapkit: command not valid in state %s", current)
}
