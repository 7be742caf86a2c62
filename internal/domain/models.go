package domain

import (
	"time"
)

// Gender of a registered user
type Gender string

const (
	GenderFemale    Gender = "female"
	GenderMale      Gender = "male"
	GenderOther     Gender = "other"
	GenderPreferNot Gender = "prefer_not"
)

// Valid reports whether g is one of the known genders
func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderOther, GenderPreferNot:
		return true
	}
	return false
}

// User represents the single locally registered user
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Birthdate string    `json:"birthdate"` // Format: "YYYY-MM-DD"
	Country   string    `json:"country"`
	Gender    Gender    `json:"gender"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser holds the registration fields supplied by the caller
type NewUser struct {
	Name      string
	Email     string
	Birthdate string
	Country   string
	Gender    Gender
}

// ActivityLevel is the self-reported physical activity
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityLight     ActivityLevel = "light"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityActive    ActivityLevel = "active"
)

// ClinicalProfile holds self-reported health attributes
type ClinicalProfile struct {
	Weight    string `json:"weight"` // kg
	Height    string `json:"height"` // cm
	BloodType string `json:"bloodType"`

	PriorCancerDx bool   `json:"priorCancerDx"`
	FamilyHistory bool   `json:"familyHistory"`
	LastExamDate  string `json:"lastExamDate"`

	PhysicalActivity       ActivityLevel `json:"physicalActivity"`
	Breastfeeding          bool          `json:"breastfeeding"`
	HormonalContraceptives bool          `json:"hormonalContraceptives"`

	IsComplete bool `json:"isComplete"`
}

// SkippedClinicalProfile returns the profile installed when the user skips the form
func SkippedClinicalProfile() ClinicalProfile {
	return ClinicalProfile{
		PhysicalActivity: ActivitySedentary,
		IsComplete:       false,
	}
}

// Consents are the four legal flags accepted during onboarding
type Consents struct {
	TermsOfUse     bool `json:"termsOfUse"`
	HealthDataGDPR bool `json:"healthDataGdpr"`
	SaMDDisclaimer bool `json:"samdDisclaimer"`
	PrivacyPolicy  bool `json:"privacyPolicy"`
}

// AllAccepted reports whether every consent flag is set
func (c Consents) AllAccepted() bool {
	return c.TermsOfUse && c.HealthDataGDPR && c.SaMDDisclaimer && c.PrivacyPolicy
}

// OnboardingStep gates which pre-authentication screen is shown
type OnboardingStep string

const (
	StepLogin    OnboardingStep = "login"
	StepRegister OnboardingStep = "register"
	StepConsent  OnboardingStep = "consent"
	StepClinical OnboardingStep = "clinical"
	StepDone     OnboardingStep = "done"
)

// Valid reports whether s is a known step
func (s OnboardingStep) Valid() bool {
	switch s {
	case StepLogin, StepRegister, StepConsent, StepClinical, StepDone:
		return true
	}
	return false
}

// Unlocked reports whether the main application is reachable
func (s OnboardingStep) Unlocked() bool {
	return s == StepDone
}

// SessionState is the persisted session record
type SessionState struct {
	User            *User            `json:"user"`
	ClinicalProfile *ClinicalProfile `json:"clinicalProfile"`
	Consents        Consents         `json:"consents"`
	OnboardingStep  OnboardingStep   `json:"onboardingStep"`
}

// SensorReading is the latest value per glove channel
type SensorReading struct {
	Pulse       float64 `json:"pulse"`       // bpm
	Pressure    float64 `json:"pressure"`    // kPa
	Ultrasound  float64 `json:"ultrasound"`  // m/s
	Temperature float64 `json:"temperature"` // °C
	Density     float64 `json:"density"`     // g/cm³
}

// DefaultSensorReading returns the resting values shown before any input
func DefaultSensorReading() SensorReading {
	return SensorReading{
		Pulse:       72,
		Pressure:    12.0,
		Ultrasound:  1540,
		Temperature: 36.5,
		Density:     1.05,
	}
}

// ReadingPatch is a partial sensor update; nil channels keep their value
type ReadingPatch struct {
	Pulse       *float64
	Pressure    *float64
	Ultrasound  *float64
	Temperature *float64
	Density     *float64
}

// Apply merges the patch into r
func (p ReadingPatch) Apply(r SensorReading) SensorReading {
	if p.Pulse != nil {
		r.Pulse = *p.Pulse
	}
	if p.Pressure != nil {
		r.Pressure = *p.Pressure
	}
	if p.Ultrasound != nil {
		r.Ultrasound = *p.Ultrasound
	}
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if p.Density != nil {
		r.Density = *p.Density
	}
	return r
}

// BleStatus is the simulated glove connection state
type BleStatus string

const (
	BleDisconnected BleStatus = "disconnected"
	BleScanning     BleStatus = "scanning"
	BleConnecting   BleStatus = "connecting"
	BleConnected    BleStatus = "connected"
	BleError        BleStatus = "error"
	BleUnavailable  BleStatus = "unavailable"
)

// Severity of a lesion marker
type Severity int

const (
	SeverityLow    Severity = 1
	SeverityMedium Severity = 2
	SeverityHigh   Severity = 3
)

// Valid reports whether s is 1, 2 or 3
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityHigh
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Lesion radius bounds used by the UI; the store does not enforce them
const (
	MinLesionRadius = 0.05
	MaxLesionRadius = 0.3
)

// Lesion is an annotation placed on the 3D model
type Lesion struct {
	ID        string     `json:"id"`
	Position  [3]float64 `json:"position"`
	Radius    float64    `json:"radius"`
	Severity  Severity   `json:"severity"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"createdAt"`
}

// LesionPatch is a partial lesion update; the id is never patched
type LesionPatch struct {
	Position  *[3]float64
	Radius    *float64
	Severity  *Severity
	Notes     *string
	CreatedAt *time.Time
}

// Apply merges the patch into l
func (p LesionPatch) Apply(l Lesion) Lesion {
	if p.Position != nil {
		l.Position = *p.Position
	}
	if p.Radius != nil {
		l.Radius = *p.Radius
	}
	if p.Severity != nil {
		l.Severity = *p.Severity
	}
	if p.Notes != nil {
		l.Notes = *p.Notes
	}
	if p.CreatedAt != nil {
		l.CreatedAt = *p.CreatedAt
	}
	return l
}

// TelemetryState is a point-in-time copy of the telemetry store
type TelemetryState struct {
	Data             SensorReading
	BleStatus        BleStatus
	BleDeviceName    string // empty when none
	IsManual         bool
	Lesions          []Lesion
	SelectedLesionID string // empty when none
}
