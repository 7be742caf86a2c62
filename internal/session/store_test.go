package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/tacticmap/internal/auth"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)

// MockKeyValue lets tests inject storage failures
type MockKeyValue struct {
	storage.KeyValue
	SetFunc      func(ctx context.Context, key string, value []byte) error
	SetCallCount int
}

func (m *MockKeyValue) Set(ctx context.Context, key string, value []byte) error {
	m.SetCallCount++
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	return m.KeyValue.Set(ctx, key, value)
}

func newTestStore(t *testing.T, kv storage.KeyValue, opts ...Option) *Store {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "u_test" }),
	}, opts...)
	s, err := Open(context.Background(), kv, "", opts...)
	require.NoError(t, err)
	return s
}

func ana() domain.NewUser {
	return domain.NewUser{
		Name:      "Ana Pérez",
		Email:     "ana@x.com",
		Birthdate: "1990-01-01",
		Country:   "CO",
		Gender:    domain.GenderFemale,
	}
}

func fullProfile() domain.ClinicalProfile {
	return domain.ClinicalProfile{
		Weight:                 "62",
		Height:                 "165",
		BloodType:              "O+",
		PriorCancerDx:          false,
		FamilyHistory:          true,
		LastExamDate:           "2025-06-01",
		PhysicalActivity:       domain.ActivityModerate,
		Breastfeeding:          false,
		HormonalContraceptives: true,
	}
}

func allConsents() domain.Consents {
	return domain.Consents{TermsOfUse: true, HealthDataGDPR: true, SaMDDisclaimer: true, PrivacyPolicy: true}
}

func TestInitialState(t *testing.T) {
	s := newTestStore(t, nil)

	assert.Equal(t, domain.StepLogin, s.Step())
	assert.False(t, s.Step().Unlocked())
	_, ok := s.User()
	assert.False(t, ok)
	_, ok = s.ClinicalProfile()
	assert.False(t, ok)
	assert.Equal(t, domain.Consents{}, s.Consents())
}

func TestRegister(t *testing.T) {
	s := newTestStore(t, nil)

	user, err := s.Register(context.Background(), ana())
	require.NoError(t, err)

	assert.Equal(t, "u_test", user.ID)
	assert.Equal(t, fixedNow, user.CreatedAt)
	assert.Equal(t, "Ana Pérez", user.Name)
	assert.Equal(t, domain.StepConsent, s.Step())

	stored, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, user, stored)
}

func TestRegisterDefaultIDsAreUnique(t *testing.T) {
	s, err := Open(context.Background(), storage.NewMemory(), "")
	require.NoError(t, err)

	first, err := s.Register(context.Background(), ana())
	require.NoError(t, err)
	second, err := s.Register(context.Background(), ana())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.ID, "u_"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLoginAfterRegisterAnyCase(t *testing.T) {
	for _, email := range []string{"ana@x.com", "ANA@X.COM", "Ana@x.Com"} {
		t.Run(email, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, nil)
			_, err := s.Register(ctx, ana())
			require.NoError(t, err)

			ok, err := s.Login(ctx, email, "anything")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, domain.StepClinical, s.Step())
		})
	}
}

func TestLoginFailureLeavesStepUnchanged(t *testing.T) {
	ctx := context.Background()

	t.Run("no user registered", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, s.GoToRegister(ctx))

		ok, err := s.Login(ctx, "ana@x.com", "pw")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, domain.StepRegister, s.Step())
	})

	t.Run("different email", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.Register(ctx, ana())
		require.NoError(t, err)

		ok, err := s.Login(ctx, "bob@x.com", "pw")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, domain.StepConsent, s.Step())
	})
}

func TestLoginResumesAtDoneWhenProfileExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.Register(ctx, ana())
	require.NoError(t, err)
	require.NoError(t, s.AcceptConsents(ctx, allConsents()))
	require.NoError(t, s.SkipClinicalProfile(ctx))
	require.NoError(t, s.Logout(ctx))

	ok, err := s.Login(ctx, "ana@x.com", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StepDone, s.Step())
}

func TestLoginWhenAlreadyDone(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, DefaultKey, []byte(`{"version":1,"user":{"id":"u_1","email":"ana@x.com"},"onboardingStep":"done"}`)))
	s := newTestStore(t, kv)

	ok, err := s.Login(ctx, "ana@x.com", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StepDone, s.Step())
}

func TestLoginWithPasswordVerifier(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	verifier := auth.NewPasswordVerifier(kv).WithCost(bcrypt.MinCost)
	s := newTestStore(t, kv, WithVerifier(verifier))

	_, err := s.Register(ctx, ana())
	require.NoError(t, err)
	require.NoError(t, verifier.SetPassword(ctx, s.Key(), "ana@x.com", "correct horse"))

	ok, err := s.Login(ctx, "ana@x.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.StepConsent, s.Step())

	ok, err = s.Login(ctx, "ANA@x.com", "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StepClinical, s.Step())
}

func TestSameEmailInTwoSessionsKeepsPasswordsApart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	verifier := auth.NewPasswordVerifier(kv).WithCost(bcrypt.MinCost)

	register := func(key, password string) *Store {
		s, err := Open(ctx, kv, key, WithClock(func() time.Time { return fixedNow }), WithVerifier(verifier))
		require.NoError(t, err)
		require.NoError(t, verifier.SetPassword(ctx, s.Key(), "ana@x.com", password))
		_, err = s.Register(ctx, ana())
		require.NoError(t, err)
		require.NoError(t, s.Logout(ctx))
		return s
	}
	chat1 := register("tacticmap-auth:1", "secret-A-123")
	chat2 := register("tacticmap-auth:2", "other-B-456")

	ok, err := chat1.Login(ctx, "ana@x.com", "other-B-456")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.StepLogin, chat1.Step())

	ok, err = chat1.Login(ctx, "ana@x.com", "secret-A-123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = chat2.Login(ctx, "ana@x.com", "other-B-456")
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingVerifier struct{ err error }

func (f failingVerifier) Verify(ctx context.Context, scope, email, password string) error {
	return f.err
}

func TestLoginVerifierInfrastructureError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("redis down")
	s := newTestStore(t, nil, WithVerifier(failingVerifier{err: boom}))
	_, err := s.Register(ctx, ana())
	require.NoError(t, err)

	ok, err := s.Login(ctx, "ana@x.com", "pw")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.StepConsent, s.Step())
}

func TestAcceptConsentsRecordsExactly(t *testing.T) {
	ctx := context.Background()
	partial := domain.Consents{TermsOfUse: true, PrivacyPolicy: true}

	for _, c := range []domain.Consents{allConsents(), partial, {}} {
		s := newTestStore(t, nil)
		require.NoError(t, s.AcceptConsents(ctx, c))
		assert.Equal(t, c, s.Consents())
		assert.Equal(t, domain.StepClinical, s.Step())
	}
}

func TestSaveClinicalProfileForcesComplete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	in := fullProfile()
	in.IsComplete = false
	require.NoError(t, s.SaveClinicalProfile(ctx, in))

	got, ok := s.ClinicalProfile()
	require.True(t, ok)
	assert.True(t, got.IsComplete)
	in.IsComplete = true
	assert.Equal(t, in, got)
	assert.Equal(t, domain.StepDone, s.Step())
	assert.True(t, s.Step().Unlocked())
}

func TestSaveClinicalProfileOverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	require.NoError(t, s.SaveClinicalProfile(ctx, fullProfile()))

	require.NoError(t, s.SaveClinicalProfile(ctx, domain.ClinicalProfile{Weight: "70"}))
	got, _ := s.ClinicalProfile()
	assert.Equal(t, domain.ClinicalProfile{Weight: "70", IsComplete: true}, got)
}

func TestSkipClinicalProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	require.NoError(t, s.SaveClinicalProfile(ctx, fullProfile()))

	require.NoError(t, s.SkipClinicalProfile(ctx))

	got, ok := s.ClinicalProfile()
	require.True(t, ok)
	assert.False(t, got.IsComplete)
	assert.Equal(t, domain.ClinicalProfile{PhysicalActivity: domain.ActivitySedentary}, got)
	assert.Equal(t, domain.StepDone, s.Step())
}

// Logout intentionally keeps the user and the clinical profile.
func TestLogoutKeepsIdentityAndProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	user, err := s.Register(ctx, ana())
	require.NoError(t, err)
	require.NoError(t, s.AcceptConsents(ctx, allConsents()))
	require.NoError(t, s.SaveClinicalProfile(ctx, fullProfile()))
	profileBefore, _ := s.ClinicalProfile()

	require.NoError(t, s.Logout(ctx))

	assert.Equal(t, domain.StepLogin, s.Step())
	assert.Equal(t, domain.Consents{}, s.Consents())

	userAfter, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, user, userAfter)
	profileAfter, ok := s.ClinicalProfile()
	require.True(t, ok)
	assert.Equal(t, profileBefore, profileAfter)
}

func TestNavigationTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	require.NoError(t, s.GoToRegister(ctx))
	assert.Equal(t, domain.StepRegister, s.Step())
	require.NoError(t, s.GoToLogin(ctx))
	assert.Equal(t, domain.StepLogin, s.Step())

	_, ok := s.User()
	assert.False(t, ok, "navigation does not touch data")
}

func TestOnboardingScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	_, err := s.Register(ctx, ana())
	require.NoError(t, err)
	assert.Equal(t, domain.StepConsent, s.Step())

	require.NoError(t, s.AcceptConsents(ctx, allConsents()))
	assert.Equal(t, domain.StepClinical, s.Step())

	require.NoError(t, s.SkipClinicalProfile(ctx))
	assert.Equal(t, domain.StepDone, s.Step())

	profile, ok := s.ClinicalProfile()
	require.True(t, ok)
	assert.False(t, profile.IsComplete)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.Register(ctx, ana())
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.User.Email = "mallory@x.com"

	user, _ := s.User()
	assert.Equal(t, "ana@x.com", user.Email)
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	kv := &MockKeyValue{KeyValue: storage.NewMemory()}
	s := newTestStore(t, kv)

	kv.SetFunc = func(ctx context.Context, key string, value []byte) error { return boom }

	_, err := s.Register(ctx, ana())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperrors.ErrorTypeStorage, apperrors.TypeOf(err))
	assert.Equal(t, domain.StepLogin, s.Step())
	_, ok := s.User()
	assert.False(t, ok)
	assert.Equal(t, 1, kv.SetCallCount)
}
