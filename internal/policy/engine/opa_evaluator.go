package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
)

const registrationQuery = "data.auth_gateway.registration"

// DefaultRegistrationPolicy denies empty usernames, malformed emails and
// blocked email domains (data.auth_gateway.blocked_domains).
const DefaultRegistrationPolicy = `package auth_gateway.registration

default allow := false

allow if count(deny) == 0

deny contains "username is required" if trim_space(input.username) == ""

deny contains "email is malformed" if not contains(input.email, "@")

deny contains msg if {
	some d in data.auth_gateway.blocked_domains
	lower(input.email_domain) == lower(d)
	msg := sprintf("email domain %s is not accepted", [input.email_domain])
}
`

// OPAEvaluator evaluates the registration admission policy with OPA Rego.
// The policy and data are compiled once and immutable afterwards.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	logger *slog.Logger
}

// Options configure NewOPAEvaluator.
type Options struct {
	// Policy is Rego source for package auth_gateway.registration. Empty
	// selects DefaultRegistrationPolicy.
	Policy         string
	BlockedDomains []string
	Logger         *slog.Logger
}

// LoadPolicyFile reads a Rego policy from path. An empty path returns "".
func LoadPolicyFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("policy: read %s: %w", path, err)
	}
	return string(b), nil
}

// NewOPAEvaluator compiles the policy. A policy that does not compile is a
// startup error.
func NewOPAEvaluator(ctx context.Context, opts Options) (*OPAEvaluator, error) {
	policy := opts.Policy
	if strings.TrimSpace(policy) == "" {
		policy = DefaultRegistrationPolicy
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	q, err := prepare(ctx, policy, opts.BlockedDomains)
	if err != nil {
		return nil, err
	}
	return &OPAEvaluator{query: q, logger: logger}, nil
}

func prepare(ctx context.Context, policy string, blocked []string) (rego.PreparedEvalQuery, error) {
	compiler, err := ast.CompileModules(map[string]string{"registration.rego": policy})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile registration policy: %w", err)
	}
	domains := make([]interface{}, 0, len(blocked))
	for _, d := range blocked {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	store := inmem.NewFromObject(map[string]interface{}{
		"auth_gateway": map[string]interface{}{"blocked_domains": domains},
	})
	q, err := rego.New(
		rego.Query(registrationQuery),
		rego.Compiler(compiler),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare registration policy: %w", err)
	}
	return q, nil
}

// HealthCheck verifies that the default policy compiles and evaluates.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	q, err := prepare(ctx, DefaultRegistrationPolicy, nil)
	if err != nil {
		return err
	}
	if _, err := eval(ctx, q, RegistrationInput{Email: "health@example.com", Username: "health"}); err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	return nil
}

// EvaluateRegistration evaluates the compiled policy for in. Evaluation
// errors are logged and the registration is allowed.
func (e *OPAEvaluator) EvaluateRegistration(ctx context.Context, in RegistrationInput) (Decision, error) {
	d, err := eval(ctx, e.query, in)
	if err != nil {
		e.logger.WarnContext(ctx, "registration policy evaluation failed, allowing", "error", err)
		return Decision{Allowed: true}, nil
	}
	return d, nil
}

func eval(ctx context.Context, q rego.PreparedEvalQuery, in RegistrationInput) (Decision, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"email":        in.Email,
		"username":     in.Username,
		"email_domain": EmailDomain(in.Email),
	}))
	if err != nil {
		return Decision{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy result has type %T", rs[0].Expressions[0].Value)
	}
	allowed, _ := doc["allow"].(bool)
	d := Decision{Allowed: allowed}
	if deny, ok := doc["deny"].([]interface{}); ok {
		for _, r := range deny {
			if s, ok := r.(string); ok {
				d.Reasons = append(d.Reasons, s)
			}
		}
		sort.Strings(d.Reasons)
	}
	if !d.Allowed && len(d.Reasons) == 0 {
		d.Reasons = []string{"registration not allowed"}
	}
	return d, nil
}

// EmailDomain returns the lower-cased part after the last '@', or "".
func EmailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}
