package session

// State is a handshake state. Transitions are strictly sequential.
type State int

const (
	AwaitVersion State = iota
	AwaitAccountName
	IssueChallenge
	AwaitSignedToken
	Verify
	AwaitCredentials
	AwaitArguments
	ResolveBinary
	Handoff
	Terminated
)

var stateNames = [...]string{
	AwaitVersion:     "await_version",
	AwaitAccountName: "await_account_name",
	IssueChallenge:   "issue_challenge",
	AwaitSignedToken: "await_signed_token",
	Verify:           "verify",
	AwaitCredentials: "await_credentials",
	AwaitArguments:   "await_arguments",
	ResolveBinary:    "resolve_binary",
	Handoff:          "handoff",
	Terminated:       "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// next returns the successor on success. Handoff and Terminated are final.
func (s State) next() State {
	if s < Handoff {
		return s + 1
	}
	return s
}
