package domain

// Status classifies the result of one account's check-in attempt
type Status string

const (
	StatusSuccess          Status = "success"
	StatusAlreadyCheckedIn Status = "already_checked_in"
	StatusAuthFailed       Status = "auth_failed"
	StatusNetworkFailed    Status = "network_failed"
	StatusChallengeFailed  Status = "challenge_failed"
	StatusUnknown          Status = "unknown"
)

// Succeeded reports whether the status counts as a successful check-in.
// AlreadyCheckedIn is idempotent success, not a failure.
func (s Status) Succeeded() bool {
	return s == StatusSuccess || s == StatusAlreadyCheckedIn
}

// Terminal reports whether retrying could change the outcome.
// Only network-class failures are worth another attempt.
func (s Status) Terminal() bool {
	return s != StatusNetworkFailed
}

// AuthMethod identifies how an account authenticates
type AuthMethod string

const (
	MethodCookies AuthMethod = "cookies"
	MethodLinuxDo AuthMethod = "linux.do"
	MethodGitHub  AuthMethod = "github"
)
