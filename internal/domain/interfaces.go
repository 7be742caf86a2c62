package domain

import (
	"context"
)

// SessionStore handles identity, consents, clinical profile and onboarding progression
type SessionStore interface {
	Register(ctx context.Context, user NewUser) (User, error)
	Login(ctx context.Context, email, password string) (bool, error)
	AcceptConsents(ctx context.Context, consents Consents) error
	SaveClinicalProfile(ctx context.Context, profile ClinicalProfile) error
	SkipClinicalProfile(ctx context.Context) error
	Logout(ctx context.Context) error
	GoToRegister(ctx context.Context) error
	GoToLogin(ctx context.Context) error
	Snapshot() SessionState
	Step() OnboardingStep
}

// TelemetryStore handles sensor readings, BLE status and lesion markers
type TelemetryStore interface {
	SetData(patch ReadingPatch)
	SetBleStatus(status BleStatus, deviceName string)
	SetManual(manual bool)
	AddLesion(lesion Lesion)
	UpdateLesion(id string, patch LesionPatch) bool
	RemoveLesion(id string) bool
	SelectLesion(id string)
	Snapshot() TelemetryState
}

// CredentialVerifier checks an email/password pair within one session scope
type CredentialVerifier interface {
	Verify(ctx context.Context, scope, email, password string) error
}
