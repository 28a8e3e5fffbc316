package engine

import "context"

// RegistrationInput is what the admission policy sees about a registration.
type RegistrationInput struct {
	Email    string
	Username string
}

// Decision is the admission policy result. Reasons is set when denied.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Evaluator decides whether a registration may proceed.
type Evaluator interface {
	// EvaluateRegistration returns the policy decision. Engine failures fail
	// open (Allowed) and are logged by the implementation.
	EvaluateRegistration(ctx context.Context, in RegistrationInput) (Decision, error)
}
