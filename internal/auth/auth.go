package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a verifier rejects a pair
var ErrInvalidCredentials = apperrors.ErrInvalidCredentials

const credentialPrefix = "tacticmap-cred:"

// AcceptAny accepts every password; the session store still matches the email
type AcceptAny struct{}

// Verify always succeeds
func (AcceptAny) Verify(ctx context.Context, scope, email, password string) error {
	return nil
}

// PasswordVerifier checks bcrypt hashes kept in key-value storage.
// Hashes are scoped to the session key, so two chats may register the same email.
type PasswordVerifier struct {
	kv   storage.KeyValue
	cost int
}

// NewPasswordVerifier creates a verifier backed by kv
func NewPasswordVerifier(kv storage.KeyValue) *PasswordVerifier {
	return &PasswordVerifier{
		kv:   kv,
		cost: bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost
func (v *PasswordVerifier) WithCost(cost int) *PasswordVerifier {
	v.cost = cost
	return v
}

func credentialKey(scope, email string) string {
	return credentialPrefix + scope + ":" + strings.ToLower(strings.TrimSpace(email))
}

// SetPassword stores the hash of password for email within scope
func (v *PasswordVerifier) SetPassword(ctx context.Context, scope, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return v.kv.Set(ctx, credentialKey(scope, email), hash)
}

// Verify compares password with the stored hash for email within scope
func (v *PasswordVerifier) Verify(ctx context.Context, scope, email, password string) error {
	hash, err := v.kv.Get(ctx, credentialKey(scope, email))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}
