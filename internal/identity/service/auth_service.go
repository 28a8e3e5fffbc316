package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auth-gateway/backend/internal/audit"
	auditdomain "auth-gateway/backend/internal/audit/domain"
	"auth-gateway/backend/internal/directory"
	directorydomain "auth-gateway/backend/internal/directory/domain"
	"auth-gateway/backend/internal/notify"
	"auth-gateway/backend/internal/otp"
	"auth-gateway/backend/internal/platform/ratelimiter"
	policyengine "auth-gateway/backend/internal/policy/engine"
	"auth-gateway/backend/internal/registration/domain"
	"auth-gateway/backend/internal/registration/store"
	"auth-gateway/backend/internal/security"
	"auth-gateway/backend/internal/telemetry"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrValidation                    = errors.New("invalid request")
	ErrDuplicateAccount              = errors.New("an account with this email already exists")
	ErrRegistrationNotFoundOrExpired = errors.New("registration not found or expired")
	ErrInvalidCode                   = errors.New("invalid one-time code")
	ErrNotificationFailure           = errors.New("failed to send one-time code")
	ErrAccountCommitFailed           = errors.New("failed to create account")
	ErrAccountNotFound               = errors.New("account not found")
	ErrInvalidCredentials            = errors.New("invalid credentials")
	ErrDependencyUnavailable         = errors.New("user directory unavailable")
	ErrRegistrationRejected          = errors.New("registration rejected")
	ErrTooManyAttempts               = errors.New("too many attempts")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Options holds the optional collaborators of AuthService. Zero values
// disable the corresponding concern.
type Options struct {
	// TTL is the pending registration lifetime; zero means domain.DefaultTTL.
	TTL time.Duration
	// StrictDuplicateCheck fails register with ErrDependencyUnavailable when
	// the directory cannot answer the duplicate-email lookup. When false the
	// lookup failure is treated as NotFound.
	StrictDuplicateCheck bool
	Policy               policyengine.Evaluator
	RegisterLimiter      *ratelimiter.KeyLimiter
	ConfirmLimiter       *ratelimiter.KeyLimiter
	Audit                audit.AuditLogger
	Metrics              *telemetry.Metrics
	Logger               *slog.Logger
	GenerateCode         otp.Generator
	Now                  func() time.Time
}

// RegistrationTicket describes a pending registration after register returns.
type RegistrationTicket struct {
	Email     string
	ExpiresAt time.Time
}

// LoginResult is a signed session plus the minimal public profile.
type LoginResult struct {
	Session *security.Session
	Account *directorydomain.Account
}

// AuthService coordinates register, confirm and login against the remote
// user directory. It holds no lock of its own; the pending store owns all
// shared state.
type AuthService struct {
	pending   store.Store
	directory directory.Client
	notifier  notify.Notifier
	hasher    *security.Hasher
	tokens    *security.TokenProvider

	ttl             time.Duration
	strict          bool
	policy          policyengine.Evaluator
	registerLimiter *ratelimiter.KeyLimiter
	confirmLimiter  *ratelimiter.KeyLimiter
	audit           audit.AuditLogger
	metrics         *telemetry.Metrics
	logger          *slog.Logger
	genCode         otp.Generator
	nowF            func() time.Time
	tracer          trace.Tracer
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	pending store.Store,
	dir directory.Client,
	notifier notify.Notifier,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	opts Options,
) *AuthService {
	s := &AuthService{
		pending:         pending,
		directory:       dir,
		notifier:        notifier,
		hasher:          hasher,
		tokens:          tokens,
		ttl:             opts.TTL,
		strict:          opts.StrictDuplicateCheck,
		policy:          opts.Policy,
		registerLimiter: opts.RegisterLimiter,
		confirmLimiter:  opts.ConfirmLimiter,
		audit:           opts.Audit,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		genCode:         opts.GenerateCode,
		nowF:            opts.Now,
		tracer:          otel.Tracer("auth-gateway/identity"),
	}
	if s.ttl <= 0 {
		s.ttl = domain.DefaultTTL
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.genCode == nil {
		s.genCode = otp.Generate
	}
	if s.nowF == nil {
		s.nowF = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Register starts a registration: it checks the directory for an existing
// account, stores a pending entry with a fresh code (replacing any earlier
// one for the email) and hands the code to the notifier.
func (s *AuthService) Register(ctx context.Context, payload domain.Payload) (ticket *RegistrationTicket, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer func() { s.finish(ctx, span, err, s.metrics.Registration) }()

	p := payload.Normalize()
	if err := validateRegistration(p); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.email_domain", policyengine.EmailDomain(p.Email)))
	now := s.nowF()
	if !s.registerLimiter.Allow(p.Email, now) {
		return nil, ErrTooManyAttempts
	}
	if s.policy != nil {
		decision, perr := s.policy.EvaluateRegistration(ctx, policyengine.RegistrationInput{Email: p.Email, Username: p.Username})
		if perr != nil {
			s.logger.WarnContext(ctx, "registration policy evaluation failed; allowing", "error", perr)
		} else if !decision.Allowed {
			if len(decision.Reasons) == 0 {
				return nil, ErrRegistrationRejected
			}
			return nil, fmt.Errorf("%w: %s", ErrRegistrationRejected, strings.Join(decision.Reasons, "; "))
		}
	}

	res := s.directory.ByEmail(ctx, p.Email)
	s.metrics.DirectoryCall(ctx, "by_email", res.Outcome.String())
	switch res.Outcome {
	case directory.Found:
		return nil, ErrDuplicateAccount
	case directory.Unavailable:
		s.logAudit(ctx, p.Email, auditdomain.ActionDirectoryUnavailable, "register", res.Err)
		if s.strict {
			return nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, res.Err)
		}
		s.logger.WarnContext(ctx, "directory unavailable during duplicate check; proceeding as not found", "error", res.Err)
	}

	code, err := s.genCode()
	if err != nil {
		return nil, fmt.Errorf("generate one-time code: %w", err)
	}
	entry := domain.NewPending(p, code, now, s.ttl)
	if err := s.pending.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("store pending registration: %w", err)
	}
	if err := s.notifier.SendOTP(ctx, p.Email, code, entry.ExpiresAt); err != nil {
		s.logger.ErrorContext(ctx, "one-time code dispatch failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotificationFailure, err)
	}
	s.logAudit(ctx, p.Email, auditdomain.ActionRegistrationRequested, "register", nil)
	return &RegistrationTicket{Email: p.Email, ExpiresAt: entry.ExpiresAt}, nil
}

// ConfirmRegistration consumes the pending entry for email if code matches
// and commits the account to the directory. A wrong code leaves the entry in
// place; a failed commit loses it and the caller must register again.
func (s *AuthService) ConfirmRegistration(ctx context.Context, email, code string) (account *directorydomain.Account, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.confirm_registration")
	defer func() { s.finish(ctx, span, err, s.metrics.Confirmation) }()

	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and otp are required", ErrValidation)
	}
	now := s.nowF()
	if !s.confirmLimiter.Allow(email, now) {
		return nil, ErrTooManyAttempts
	}

	payload, err := s.pending.TakeIfValid(ctx, email, code, now)
	switch {
	case errors.Is(err, store.ErrAbsent), errors.Is(err, store.ErrExpired):
		return nil, ErrRegistrationNotFoundOrExpired
	case errors.Is(err, store.ErrCodeMismatch):
		return nil, ErrInvalidCode
	case err != nil:
		return nil, fmt.Errorf("take pending registration: %w", err)
	}

	digest, err := s.hasher.Hash([]byte(payload.Password))
	if err != nil {
		s.logAudit(ctx, email, auditdomain.ActionRegistrationCommitFailed, "confirm", err)
		return nil, fmt.Errorf("%w: hash password: %w", ErrAccountCommitFailed, err)
	}
	res := s.directory.Create(ctx, directorydomain.CreateRequest{
		Username:    payload.Username,
		Email:       payload.Email,
		FullName:    payload.FullName,
		PhoneNumber: payload.PhoneNumber,
		Password:    digest,
	})
	s.metrics.DirectoryCall(ctx, "create", res.Outcome.String())
	if res.Outcome != directory.Found {
		s.logAudit(ctx, email, auditdomain.ActionRegistrationCommitFailed, "confirm", res.Err)
		if errors.Is(res.Err, directory.ErrConflict) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: %w", ErrAccountCommitFailed, res.Err)
	}
	s.logAudit(ctx, email, auditdomain.ActionRegistrationConfirmed, "confirm", nil)
	if res.Account == nil {
		return &directorydomain.Account{Username: payload.Username, Email: payload.Email, FullName: payload.FullName, Phone: payload.PhoneNumber}, nil
	}
	return res.Account, nil
}

// Login verifies email and password against the directory and issues a
// session token whose subject is the account username.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer func() { s.finish(ctx, span, err, s.metrics.Login) }()

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	res := s.directory.ByEmail(ctx, email)
	s.metrics.DirectoryCall(ctx, "by_email", res.Outcome.String())
	if res.Outcome != directory.Found || res.Account == nil {
		if res.Outcome == directory.Unavailable {
			s.logger.WarnContext(ctx, "directory unavailable during login", "error", res.Err)
			s.logAudit(ctx, email, auditdomain.ActionDirectoryUnavailable, "login", res.Err)
		}
		s.logAudit(ctx, email, auditdomain.ActionLoginFailure, "login", ErrAccountNotFound)
		return nil, ErrAccountNotFound
	}
	acct := res.Account
	if !s.hasher.Verify(password, acct.PasswordHash) {
		s.logAudit(ctx, acct.Username, auditdomain.ActionLoginFailure, "login", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	session, err := s.tokens.Issue(acct.Username)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.logAudit(ctx, acct.Username, auditdomain.ActionLoginSuccess, "login", nil)
	return &LoginResult{Session: session, Account: acct}, nil
}

// Authenticate validates a session token and returns its subject.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Validate(strings.TrimSpace(token))
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// Profile loads the directory account for a session subject.
func (s *AuthService) Profile(ctx context.Context, username string) (*directorydomain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "auth.profile")
	defer span.End()
	res := s.directory.ByUsername(ctx, username)
	s.metrics.DirectoryCall(ctx, "by_username", res.Outcome.String())
	switch res.Outcome {
	case directory.Found:
		if res.Account != nil {
			return res.Account, nil
		}
		return nil, ErrAccountNotFound
	case directory.NotFound:
		return nil, ErrAccountNotFound
	default:
		span.RecordError(res.Err)
		return nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, res.Err)
	}
}

func (s *AuthService) finish(ctx context.Context, span trace.Span, err error, count func(context.Context, string)) {
	outcome := Outcome(err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	count(ctx, outcome)
}

// Outcome names err for metrics and span attributes.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrDuplicateAccount):
		return "duplicate"
	case errors.Is(err, ErrRegistrationNotFoundOrExpired):
		return "not_found_or_expired"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrNotificationFailure):
		return "notification_failure"
	case errors.Is(err, ErrAccountCommitFailed):
		return "commit_failed"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrDependencyUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, ErrRegistrationRejected):
		return "rejected"
	case errors.Is(err, ErrTooManyAttempts):
		return "rate_limited"
	default:
		return "error"
	}
}

func (s *AuthService) logAudit(ctx context.Context, subject, action, resource string, cause error) {
	if s.audit == nil {
		return
	}
	var metadata string
	if cause != nil {
		b, err := json.Marshal(map[string]string{"error": cause.Error()})
		if err == nil {
			metadata = string(b)
		}
	}
	s.audit.LogEvent(ctx, subject, action, resource, metadata)
}

func validateRegistration(p domain.Payload) error {
	if p.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !emailPattern.MatchString(p.Email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if p.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if err := security.CheckPasswordLength(p.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
