package state

import "sync"

// Conversation states: which form field a chat is expected to type next
const (
	None = "none"

	WaitingForLoginEmail    = "waiting_for_login_email"
	WaitingForLoginPassword = "waiting_for_login_password"

	WaitingForName            = "waiting_for_name"
	WaitingForEmail           = "waiting_for_email"
	WaitingForBirthdate       = "waiting_for_birthdate"
	WaitingForCountry         = "waiting_for_country"
	WaitingForGender          = "waiting_for_gender"
	WaitingForPassword        = "waiting_for_password"
	WaitingForPasswordConfirm = "waiting_for_password_confirm"

	WaitingForWeight       = "waiting_for_weight"
	WaitingForHeight       = "waiting_for_height"
	WaitingForBloodType    = "waiting_for_blood_type"
	WaitingForLastExamDate = "waiting_for_last_exam_date"
	WaitingForActivity     = "waiting_for_activity"
	WaitingForYesNo        = "waiting_for_yes_no"

	WaitingForSensorValue = "waiting_for_sensor_value"
	WaitingForLesionNotes = "waiting_for_lesion_notes"
	Capturing             = "capturing"
)

// StateManager tracks per-chat conversation state and form data
type StateManager interface {
	SetUserState(chatID int64, state string)
	GetUserState(chatID int64) string
	ClearUserState(chatID int64)
	SetTempData(chatID int64, key string, value interface{})
	GetTempData(chatID int64, key string) (interface{}, bool)
	ClearTempData(chatID int64)
}

// Manager manages conversation states and temporary data in memory
type Manager struct {
	userStates map[int64]string
	tempData   map[int64]map[string]interface{}
	mu         sync.RWMutex
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{
		userStates: make(map[int64]string),
		tempData:   make(map[int64]map[string]interface{}),
	}
}

// SetUserState sets the state for a chat
func (m *Manager) SetUserState(chatID int64, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userStates[chatID] = state
}

// GetUserState gets the state for a chat
func (m *Manager) GetUserState(chatID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, exists := m.userStates[chatID]
	if !exists {
		return None
	}
	return state
}

// ClearUserState clears the state for a chat
func (m *Manager) ClearUserState(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userStates, chatID)
}

// SetTempData sets temporary data for a chat
func (m *Manager) SetTempData(chatID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tempData[chatID] == nil {
		m.tempData[chatID] = make(map[string]interface{})
	}
	m.tempData[chatID][key] = value
}

// GetTempData gets temporary data for a chat
func (m *Manager) GetTempData(chatID int64, key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, exists := m.tempData[chatID]
	if !exists {
		return nil, false
	}
	value, exists := data[key]
	return value, exists
}

// ClearTempData clears all temporary data for a chat
func (m *Manager) ClearTempData(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tempData, chatID)
}

// GetString returns a string temp value or ""
func GetString(m StateManager, chatID int64, key string) string {
	v, ok := m.GetTempData(chatID, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

var _ StateManager = (*Manager)(nil)
