package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/tacticmap/internal/auth"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
)

// DefaultKey is the storage namespace of the session record
const DefaultKey = "tacticmap-auth"

// Store owns identity, consents, clinical profile and the onboarding step.
// Every mutation is persisted before it becomes visible to readers.
type Store struct {
	kv       storage.KeyValue
	key      string
	verifier domain.CredentialVerifier
	now      func() time.Time
	newID    func() string

	mu    sync.RWMutex
	state domain.SessionState
}

// Option configures a Store
type Option func(*Store)

// WithVerifier replaces the default AcceptAny credential verifier
func WithVerifier(v domain.CredentialVerifier) Option {
	return func(s *Store) { s.verifier = v }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides user id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// InitialState is the state of a fresh installation
func InitialState() domain.SessionState {
	return domain.SessionState{
		OnboardingStep: domain.StepLogin,
	}
}

// Open rehydrates the record stored under key, or starts from InitialState
func Open(ctx context.Context, kv storage.KeyValue, key string, opts ...Option) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		kv:       kv,
		key:      key,
		verifier: auth.AcceptAny{},
		now:      time.Now,
		newID:    func() string { return "u_" + uuid.NewString() },
		state:    InitialState(),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Debug("No persisted session, starting fresh", "key", key)
		return s, nil
	case err != nil:
		return nil, err
	}

	state, err := decode(raw)
	if err != nil {
		return nil, apperrors.NewStorageError(err, "session_decode").WithContext("key", key)
	}
	s.state = state
	logger.Debug("Session rehydrated", "key", key, "step", state.OnboardingStep)
	return s, nil
}

// Key returns the storage key of this session
func (s *Store) Key() string {
	return s.key
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Step returns the current onboarding step
func (s *Store) Step() domain.OnboardingStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.OnboardingStep
}

// User returns the registered user, if any
func (s *Store) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return domain.User{}, false
	}
	return *s.state.User, true
}

// ClinicalProfile returns the stored profile, if any
func (s *Store) ClinicalProfile() (domain.ClinicalProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ClinicalProfile == nil {
		return domain.ClinicalProfile{}, false
	}
	return *s.state.ClinicalProfile, true
}

// Consents returns the recorded consents
func (s *Store) Consents() domain.Consents {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Consents
}

// Register stores a new user and moves to the consent step. Fields are not validated.
func (s *Store) Register(ctx context.Context, in domain.NewUser) (domain.User, error) {
	user := domain.User{
		ID:        s.newID(),
		Name:      in.Name,
		Email:     in.Email,
		Birthdate: in.Birthdate,
		Country:   in.Country,
		Gender:    in.Gender,
		CreatedAt: s.now().UTC().Round(0),
	}

	err := s.mutate(ctx, "register", func(st *domain.SessionState) {
		st.User = &user
		st.OnboardingStep = domain.StepConsent
	})
	if err != nil {
		return domain.User{}, err
	}
	logger.Info("User registered", "user_id", user.ID)
	return user, nil
}

// Login succeeds when the stored user's email matches case-insensitively and the
// verifier accepts the password for this session's key. A failed login leaves the step unchanged.
func (s *Store) Login(ctx context.Context, email, password string) (bool, error) {
	user, ok := s.User()
	if !ok || !strings.EqualFold(user.Email, strings.TrimSpace(email)) {
		logger.Info("Login rejected: no matching local user")
		return false, nil
	}

	if err := s.verifier.Verify(ctx, s.key, email, password); err != nil {
		if apperrors.TypeOf(err) == apperrors.ErrorTypeAuth {
			logger.Info("Login rejected by verifier", "user_id", user.ID)
			return false, nil
		}
		return false, err
	}

	err := s.mutate(ctx, "login", func(st *domain.SessionState) {
		if st.OnboardingStep == domain.StepDone || st.ClinicalProfile != nil {
			st.OnboardingStep = domain.StepDone
		} else {
			st.OnboardingStep = domain.StepClinical
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AcceptConsents records consents as given and moves to the clinical step.
// The all-accepted gate belongs to the caller.
func (s *Store) AcceptConsents(ctx context.Context, consents domain.Consents) error {
	return s.mutate(ctx, "accept_consents", func(st *domain.SessionState) {
		st.Consents = consents
		st.OnboardingStep = domain.StepClinical
	})
}

// SaveClinicalProfile replaces the profile wholesale, marking it complete
func (s *Store) SaveClinicalProfile(ctx context.Context, profile domain.ClinicalProfile) error {
	profile.IsComplete = true
	return s.mutate(ctx, "save_clinical_profile", func(st *domain.SessionState) {
		st.ClinicalProfile = &profile
		st.OnboardingStep = domain.StepDone
	})
}

// SkipClinicalProfile installs an empty, incomplete profile
func (s *Store) SkipClinicalProfile(ctx context.Context) error {
	profile := domain.SkippedClinicalProfile()
	return s.mutate(ctx, "skip_clinical_profile", func(st *domain.SessionState) {
		st.ClinicalProfile = &profile
		st.OnboardingStep = domain.StepDone
	})
}

// Logout returns to the login step and clears consents.
// The user and clinical profile are kept so the same email resumes onboarding.
func (s *Store) Logout(ctx context.Context) error {
	return s.mutate(ctx, "logout", func(st *domain.SessionState) {
		st.OnboardingStep = domain.StepLogin
		st.Consents = domain.Consents{}
	})
}

// GoToRegister switches to the register screen
func (s *Store) GoToRegister(ctx context.Context) error {
	return s.mutate(ctx, "go_to_register", func(st *domain.SessionState) {
		st.OnboardingStep = domain.StepRegister
	})
}

// GoToLogin switches to the login screen
func (s *Store) GoToLogin(ctx context.Context) error {
	return s.mutate(ctx, "go_to_login", func(st *domain.SessionState) {
		st.OnboardingStep = domain.StepLogin
	})
}

// mutate applies fn to a copy, persists it and only then commits it
func (s *Store) mutate(ctx context.Context, op string, fn func(*domain.SessionState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneState(s.state)
	fn(&next)

	raw, err := encode(next)
	if err != nil {
		return apperrors.NewInternalError(err).WithContext("operation", op)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return apperrors.NewStorageError(err, op).WithContext("key", s.key)
	}

	from := s.state.OnboardingStep
	s.state = next
	logger.Debug("Session updated", "op", op, "from", from, "to", next.OnboardingStep)
	return nil
}

func cloneState(st domain.SessionState) domain.SessionState {
	out := st
	if st.User != nil {
		u := *st.User
		out.User = &u
	}
	if st.ClinicalProfile != nil {
		p := *st.ClinicalProfile
		out.ClinicalProfile = &p
	}
	return out
}

var _ domain.SessionStore = (*Store)(nil)
