package handlers

import (
	"math/rand"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/auth"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/telemetry"
)

// Dependencies holds everything the handlers need besides the sender
type Dependencies struct {
	Registry *sessions.Registry
	// Passwords stores registration passwords; nil when AUTH_MODE=local
	Passwords *auth.PasswordVerifier
	Now       func() time.Time
	Rand      *rand.Rand
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Temp data keys kept in the state manager
const (
	tempName      = "name"
	tempEmail     = "email"
	tempBirthdate = "birthdate"
	tempCountry   = "country"
	tempGender    = "gender"
	tempPassword  = "password"
	tempConsents  = "consents"
	tempClinical  = "clinical"
	tempYesNo     = "yesno_field"
	tempChannel   = "channel"
	tempLesionID  = "lesion_id"
)

const minPasswordLength = 8

// Clinical yes/no questions, asked in this order around the other fields
const (
	fieldPriorCancer   = "prior_cancer"
	fieldFamilyHistory = "family_history"
	fieldBreastfeeding = "breastfeeding"
	fieldHormonal      = "hormonal"
)

var yesNoQuestions = map[string]string{
	fieldPriorCancer:   "¿Has tenido un diagnóstico previo de cáncer de mama?",
	fieldFamilyHistory: "¿Hay antecedentes familiares de cáncer de mama?",
	fieldBreastfeeding: "¿Estás en periodo de lactancia?",
	fieldHormonal:      "¿Usas anticonceptivos hormonales?",
}

// newRandomLesion places a marker at a random spot of the model
func newRandomLesion(rnd *rand.Rand, now time.Time) domain.Lesion {
	coord := func() float64 { return rnd.Float64()*1.6 - 0.8 }
	radius := domain.MinLesionRadius + rnd.Float64()*(domain.MaxLesionRadius-domain.MinLesionRadius)
	return domain.Lesion{
		ID:        telemetry.NewLesionID(),
		Position:  [3]float64{coord(), coord(), coord()},
		Radius:    radius,
		Severity:  domain.Severity(rnd.Intn(3) + 1),
		CreatedAt: now,
	}
}
