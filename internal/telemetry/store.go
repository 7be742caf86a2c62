package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
)

// Store holds the sensor snapshot, BLE status and lesion markers in memory
type Store struct {
	mu    sync.RWMutex
	state domain.TelemetryState
}

// Option configures a Store
type Option func(*Store)

// WithDemoLesion seeds the marker shown on a fresh model
func WithDemoLesion(createdAt time.Time) Option {
	return func(s *Store) {
		s.state.Lesions = append(s.state.Lesions, domain.Lesion{
			ID:        "demo-1",
			Position:  [3]float64{0.3, 0.2, 0.4},
			Radius:    0.12,
			Severity:  domain.SeverityMedium,
			Notes:     "Zona de alta densidad detectada",
			CreatedAt: createdAt,
		})
	}
}

// NewStore creates a store with default readings and no lesions
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: domain.TelemetryState{
			Data:      domain.DefaultSensorReading(),
			BleStatus: domain.BleDisconnected,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLesionID generates an id for a new marker
func NewLesionID() string {
	return "lesion-" + uuid.NewString()
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() domain.TelemetryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Lesions = append([]domain.Lesion(nil), s.state.Lesions...)
	return out
}

// Data returns the current sensor reading
func (s *Store) Data() domain.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Data
}

// BleStatus returns the connection status and device name
func (s *Store) BleStatus() (domain.BleStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.BleStatus, s.state.BleDeviceName
}

// IsManual reports whether readings are operator-entered
func (s *Store) IsManual() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsManual
}

// Lesions returns a copy of the markers in insertion order
func (s *Store) Lesions() []domain.Lesion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Lesion(nil), s.state.Lesions...)
}

// Lesion looks up a marker by id
func (s *Store) Lesion(id string) (domain.Lesion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.state.Lesions[i], true
	}
	return domain.Lesion{}, false
}

// SelectedLesionID returns the selected id, empty when none
func (s *Store) SelectedLesionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SelectedLesionID
}

// SetData merges the patch; channels left nil keep their value. No range checks.
func (s *Store) SetData(patch domain.ReadingPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Data = patch.Apply(s.state.Data)
}

// SetBleStatus replaces the status; an empty device name clears it
func (s *Store) SetBleStatus(status domain.BleStatus, deviceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BleStatus = status
	s.state.BleDeviceName = deviceName
	logger.Debug("BLE status changed", "status", status, "device", deviceName)
}

// SetManual toggles operator-entered readings
func (s *Store) SetManual(manual bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsManual = manual
}

// AddLesion appends the marker as given
func (s *Store) AddLesion(lesion domain.Lesion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Lesions = append(s.state.Lesions, lesion)
}

// UpdateLesion merges the patch into every marker with the given id.
// It reports false and changes nothing when id is unknown.
func (s *Store) UpdateLesion(id string, patch domain.LesionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return false
	}
	lesions := make([]domain.Lesion, len(s.state.Lesions))
	for i, l := range s.state.Lesions {
		if l.ID == id {
			l = patch.Apply(l)
		}
		lesions[i] = l
	}
	s.state.Lesions = lesions
	return true
}

// RemoveLesion deletes every marker with the given id and clears the selection if it pointed at it.
// It reports false and changes nothing when id is unknown.
func (s *Store) RemoveLesion(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return false
	}
	lesions := make([]domain.Lesion, 0, len(s.state.Lesions)-1)
	for _, l := range s.state.Lesions {
		if l.ID != id {
			lesions = append(lesions, l)
		}
	}
	s.state.Lesions = lesions
	if s.state.SelectedLesionID == id {
		s.state.SelectedLesionID = ""
	}
	return true
}

// SelectLesion sets the inspected marker; empty clears it. The id is not checked.
func (s *Store) SelectLesion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelectedLesionID = id
}

func (s *Store) indexOf(id string) int {
	for i, l := range s.state.Lesions {
		if l.ID == id {
			return i
		}
	}
	return -1
}

var _ domain.TelemetryStore = (*Store)(nil)
