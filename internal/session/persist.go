package session

import (
	"encoding/json"
	"fmt"

	"github.com/vladimiradmaev/tacticmap/internal/domain"
)

// SchemaVersion is written into every persisted record.
// Records without a version field predate versioning and are read as version 1.
const SchemaVersion = 1

type record struct {
	Version int `json:"version"`
	domain.SessionState
}

func encode(st domain.SessionState) ([]byte, error) {
	return json.Marshal(record{Version: SchemaVersion, SessionState: st})
}

func decode(raw []byte) (domain.SessionState, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionState{}, err
	}

	switch {
	case rec.Version == 0:
		rec.Version = 1
	case rec.Version > SchemaVersion:
		return domain.SessionState{}, fmt.Errorf("session record version %d is newer than supported version %d", rec.Version, SchemaVersion)
	}

	st := rec.SessionState
	if st.OnboardingStep == "" {
		st.OnboardingStep = domain.StepLogin
	}
	if !st.OnboardingStep.Valid() {
		return domain.SessionState{}, fmt.Errorf("unknown onboarding step %q", st.OnboardingStep)
	}
	return st, nil
}
