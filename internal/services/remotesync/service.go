package remotesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// MinPasswordLength is the shortest accepted sync password.
const MinPasswordLength = 6

// Options configure a Service. Zero values mean defaults.
type Options struct {
	// Cost is the bcrypt cost; tests lower it to bcrypt.MinCost.
	Cost   int
	Logger *slog.Logger
	Now    func() time.Time
}

// Service shares route records through an optional remote backend. Every
// route operation is authorized by a session token obtained from SignIn or
// SignUp.
type Service struct {
	routes   ports.RouteStore
	accounts ports.AccountStore
	cost     int
	logger   *slog.Logger
	now      func() time.Time
}

// NewService returns a disabled service when either store is nil.
func NewService(routes ports.RouteStore, accounts ports.AccountStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	s := &Service{cost: opts.Cost, logger: opts.Logger, now: opts.Now}
	if routes != nil && accounts != nil {
		s.routes, s.accounts = routes, accounts
	}
	return s
}

func (s *Service) Enabled() bool { return s.routes != nil }

func (s *Service) enabled() error {
	if !s.Enabled() {
		return domain.ErrSyncDisabled
	}
	return nil
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (_ *domain.Session, err error) {
	defer obs.Time(ctx, "sync.SignUp")(&err)

	if err := s.enabled(); err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, &domain.FieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("sign up: hash password: %w", err)
	}

	acc := &domain.Account{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: s.now()}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.logger.Info("sync account created", "user_id", acc.ID)
	return s.newSession(ctx, acc)
}

// SignIn checks the password and opens a session. Unknown emails and wrong
// passwords both fail with domain.ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (_ *domain.Session, err error) {
	defer obs.Time(ctx, "sync.SignIn")(&err)

	if err := s.enabled(); err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.AccountByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.newSession(ctx, acc)
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.enabled(); err != nil {
		return err
	}
	if token == "" {
		return domain.ErrNotAuthenticated
	}
	if err := s.accounts.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Authenticate resolves token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrNotAuthenticated
	}
	sess, err := s.accounts.SessionByToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return sess, nil
}

func (s *Service) newSession(ctx context.Context, acc *domain.Account) (*domain.Session, error) {
	sess := domain.Session{Token: uuid.NewString(), UserID: acc.ID, Email: acc.Email, CreatedAt: s.now()}
	if err := s.accounts.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "", &domain.FieldError{Field: "email", Reason: "must be a valid address"}
	}
	return email, nil
}
