package domain

import "time"

// Audit actions recorded by the registration coordinator.
const (
	ActionRegistrationRequested    = "registration_requested"
	ActionRegistrationConfirmed    = "registration_confirmed"
	ActionRegistrationCommitFailed = "registration_commit_failed"
	ActionLoginSuccess             = "login_success"
	ActionLoginFailure             = "login_failure"
	ActionDirectoryUnavailable     = "directory_unavailable"
)

// AuditLog represents an audit event. Subject is the email or username the
// event concerns.
type AuditLog struct {
	ID        string
	Subject   string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
