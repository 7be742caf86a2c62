package handlers

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/tacticmap/internal/auth"
	"github.com/vladimiradmaev/tacticmap/internal/bot/keyboards"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/session"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
)

const chatID int64 = 1001

// fakeSender records every outgoing message
type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	deleted  []int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg)
	}
	return tgbotapi.Message{MessageID: len(f.messages)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if del, ok := c.(tgbotapi.DeleteMessageConfig); ok {
		f.deleted = append(f.deleted, del.MessageID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].Text
}

func (f *fakeSender) allText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, m := range f.messages {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "\n---\n")
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	handler  *UpdateHandler
	sender   *fakeSender
	registry *sessions.Registry
	states   *state.Manager
	kv       storage.KeyValue
}

func newHarness(t *testing.T, opts ...func(*Dependencies)) *harness {
	t.Helper()
	kv := storage.NewMemory()
	delays := sessions.Delays{
		BLEScan:    time.Millisecond,
		BLEConnect: time.Millisecond,
		StreamTick: time.Millisecond,
	}
	deps := Dependencies{
		Registry: sessions.NewRegistry(kv, "", delays, false),
		Now:      func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		Rand:     rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	t.Cleanup(deps.Registry.Close)

	sender := &fakeSender{}
	states := state.NewManager()
	return &harness{
		t:        t,
		ctx:      context.Background(),
		handler:  NewUpdateHandler(sender, deps, states),
		sender:   sender,
		registry: deps.Registry,
		states:   states,
		kv:       kv,
	}
}

func (f *fakeSender) lastChat() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return 0
	}
	return f.messages[len(f.messages)-1].ChatID
}

// eventuallyLast waits for a background reply containing want
func (h *harness) eventuallyLast(want string) {
	h.t.Helper()
	assert.Eventually(h.t, func() bool {
		return strings.Contains(h.sender.lastText(), want)
	}, 2*time.Second, time.Millisecond, "last message never contained %q", want)
}

func (h *harness) chat() *sessions.Chat {
	chat, err := h.registry.Get(h.ctx, chatID)
	require.NoError(h.t, err)
	return chat
}

func (h *harness) text(text string) {
	h.t.Helper()
	require.NoError(h.t, h.handler.Handle(h.ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 77,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID},
		Text:      text,
	}}))
}

func (h *harness) command(cmd string) {
	h.t.Helper()
	require.NoError(h.t, h.handler.Handle(h.ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID},
		Text:     cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}))
}

func (h *harness) press(data string) {
	h.t.Helper()
	require.NoError(h.t, h.handler.Handle(h.ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}))
}

func (h *harness) photo() {
	h.t.Helper()
	require.NoError(h.t, h.handler.Handle(h.ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: chatID},
		From:  &tgbotapi.User{ID: chatID},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}}))
}

// unlock registers a user directly through the store and finishes onboarding
func (h *harness) unlock() *sessions.Chat {
	h.t.Helper()
	chat := h.chat()
	_, err := chat.Session.Register(h.ctx, domain.NewUser{Name: "Ana", Email: "ana@example.com"})
	require.NoError(h.t, err)
	require.NoError(h.t, chat.Session.AcceptConsents(h.ctx, domain.Consents{TermsOfUse: true, HealthDataGDPR: true, SaMDDisclaimer: true, PrivacyPolicy: true}))
	require.NoError(h.t, chat.Session.SkipClinicalProfile(h.ctx))
	return chat
}

func TestAllowed(t *testing.T) {
	assert.True(t, allowed(keyboards.GoRegister, domain.StepLogin))
	assert.False(t, allowed(keyboards.GoRegister, domain.StepDone))
	assert.True(t, allowed(keyboards.ConsentAccept, domain.StepConsent))
	assert.False(t, allowed(keyboards.ConsentAccept, domain.StepClinical))
	assert.True(t, allowed(keyboards.ClinicalSkip, domain.StepClinical))
	assert.False(t, allowed(keyboards.Sensors, domain.StepClinical))
	assert.True(t, allowed(keyboards.Sensors, domain.StepDone))
	assert.True(t, allowed(keyboards.MainMenu, domain.StepLogin))
}

func TestHandleIgnoresEmptyUpdates(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.handler.Handle(h.ctx, tgbotapi.Update{}))
	assert.Empty(t, h.sender.messages)
}

func TestOnboardingFlow(t *testing.T) {
	h := newHarness(t)

	h.command("/start")
	assert.Contains(t, h.sender.lastText(), "Inicia sesión")

	h.press(keyboards.GoRegister)
	assert.Equal(t, domain.StepRegister, h.chat().Session.Step())

	h.text("Ana Pérez")
	h.text("ana@example.com")
	h.text("1990-05-01")
	h.text("España")
	h.press(keyboards.Data(keyboards.Gender, domain.GenderFemale))
	h.text("secreto123")
	h.text("secreto123")

	chat := h.chat()
	assert.Equal(t, domain.StepConsent, chat.Session.Step())
	user, ok := chat.Session.User()
	require.True(t, ok)
	assert.Equal(t, "Ana Pérez", user.Name)
	assert.Equal(t, "1990-05-01", user.Birthdate)
	assert.Equal(t, domain.GenderFemale, user.Gender)
	assert.Len(t, h.sender.deleted, 2, "password messages are removed")

	h.press(keyboards.ConsentAccept)
	assert.Equal(t, domain.StepConsent, chat.Session.Step(), "accept needs every toggle")

	for _, c := range []string{keyboards.ConsentTerms, keyboards.ConsentGDPR, keyboards.ConsentSaMD, keyboards.ConsentPrivacy} {
		h.press(keyboards.Data(keyboards.ConsentToggle, c))
	}
	h.press(keyboards.ConsentAccept)
	assert.Equal(t, domain.StepClinical, chat.Session.Step())
	assert.True(t, chat.Session.Consents().AllAccepted())

	h.press(keyboards.ClinicalSkip)
	assert.Equal(t, domain.StepDone, chat.Session.Step())
	assert.Contains(t, h.sender.lastText(), "Hola, Ana Pérez")

	reopened, err := session.Open(h.ctx, h.kv, chat.Session.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StepDone, reopened.Step())
}

func TestRegistrationValidation(t *testing.T) {
	h := newHarness(t)
	h.press(keyboards.GoRegister)

	h.text("")
	assert.Equal(t, state.WaitingForName, h.states.GetUserState(chatID))

	h.text("Ana")
	h.text("not-an-email")
	assert.Contains(t, h.sender.lastText(), "Correo inválido")
	assert.Equal(t, state.WaitingForEmail, h.states.GetUserState(chatID))

	h.text("ana@example.com")
	h.text("2030-01-01")
	assert.Contains(t, h.sender.lastText(), "Fecha inválida")

	h.text("1990-05-01")
	h.text("México")
	h.text("femenino")
	assert.Equal(t, state.WaitingForGender, h.states.GetUserState(chatID))

	h.press(keyboards.Data(keyboards.Gender, "robot"))
	assert.Equal(t, state.WaitingForGender, h.states.GetUserState(chatID))

	h.press(keyboards.Data(keyboards.Gender, domain.GenderOther))
	h.text("corta")
	assert.Contains(t, h.sender.lastText(), "Mínimo 8")

	h.text("larga-clave")
	h.text("otra-clave")
	assert.Contains(t, h.sender.lastText(), "no coinciden")
	assert.Equal(t, state.WaitingForPassword, h.states.GetUserState(chatID))
	assert.Equal(t, domain.StepRegister, h.chat().Session.Step())

	h.press(keyboards.GoLogin)
	assert.Equal(t, domain.StepLogin, h.chat().Session.Step())
	assert.Equal(t, state.None, h.states.GetUserState(chatID))
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	chat := h.chat()
	_, err := chat.Session.Register(h.ctx, domain.NewUser{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, chat.Session.Logout(h.ctx))

	h.press(keyboards.StartLogin)
	h.text("otra@example.com")
	h.text("cualquiera")
	h.eventuallyLast("incorrectos")
	assert.Equal(t, domain.StepLogin, chat.Session.Step())

	h.press(keyboards.StartLogin)
	h.text("ANA@example.com")
	h.text("cualquiera")
	h.eventuallyLast("Historia clínica")
	assert.Equal(t, domain.StepClinical, chat.Session.Step())
	assert.Contains(t, h.sender.allText(), "Verificando")
}

func TestPendingLoginDoesNotBlockOtherChats(t *testing.T) {
	const otherChat int64 = 2002
	h := newHarness(t, func(d *Dependencies) {
		d.Registry = sessions.NewRegistry(storage.NewMemory(), "", sessions.Delays{
			Login:      200 * time.Millisecond,
			StreamTick: time.Millisecond,
		}, false)
	})
	chat := h.chat()
	_, err := chat.Session.Register(h.ctx, domain.NewUser{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, chat.Session.Logout(h.ctx))

	h.press(keyboards.StartLogin)
	h.text("ana@example.com")

	start := time.Now()
	h.text("cualquiera")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "the handler returns before the login delay")
	assert.Equal(t, domain.StepLogin, chat.Session.Step())

	require.NoError(t, h.handler.Handle(h.ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: otherChat},
		From:     &tgbotapi.User{ID: otherChat},
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/start")}},
	}}))
	assert.Contains(t, h.sender.lastText(), "Inicia sesión")
	assert.Equal(t, otherChat, h.sender.lastChat())
	assert.Equal(t, domain.StepLogin, chat.Session.Step(), "login is still pending")

	assert.Eventually(t, func() bool {
		return chat.Session.Step() == domain.StepClinical
	}, 2*time.Second, 5*time.Millisecond)
	h.eventuallyLast("Historia clínica")
}

func TestLoginWithPasswordVerifier(t *testing.T) {
	kv := storage.NewMemory()
	verifier := auth.NewPasswordVerifier(kv).WithCost(4)

	h := newHarness(t, func(d *Dependencies) {
		d.Passwords = verifier
		d.Registry = sessions.NewRegistry(kv, "", sessions.Delays{StreamTick: time.Millisecond}, false, session.WithVerifier(verifier))
	})

	h.press(keyboards.GoRegister)
	h.text("Ana")
	h.text("ana@example.com")
	h.text("1990-05-01")
	h.text("Chile")
	h.press(keyboards.Data(keyboards.Gender, domain.GenderFemale))
	h.text("clave-segura")
	h.text("clave-segura")

	chat := h.chat()
	require.Equal(t, domain.StepConsent, chat.Session.Step())
	require.NoError(t, chat.Session.Logout(h.ctx))

	h.press(keyboards.StartLogin)
	h.text("ana@example.com")
	h.text("incorrecta")
	h.eventuallyLast("incorrectos")
	assert.Equal(t, domain.StepLogin, chat.Session.Step())

	h.press(keyboards.StartLogin)
	h.text("ana@example.com")
	h.text("clave-segura")
	h.eventuallyLast("Historia clínica")
	assert.Equal(t, domain.StepClinical, chat.Session.Step())
}

func TestClinicalForm(t *testing.T) {
	h := newHarness(t)
	chat := h.chat()
	_, err := chat.Session.Register(h.ctx, domain.NewUser{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, chat.Session.AcceptConsents(h.ctx, domain.Consents{TermsOfUse: true, HealthDataGDPR: true, SaMDDisclaimer: true, PrivacyPolicy: true}))

	h.press(keyboards.ClinicalFill)
	h.text("sesenta")
	assert.Equal(t, state.WaitingForWeight, h.states.GetUserState(chatID))
	h.text("62.5")
	h.text("165")
	h.text("o+")
	h.press(keyboards.Data(keyboards.YesNo, "y"))
	h.press(keyboards.Data(keyboards.YesNo, "n"))
	h.text("2023-01-15")
	h.press(keyboards.Data(keyboards.Activity, domain.ActivityModerate))
	h.press(keyboards.Data(keyboards.YesNo, "n"))
	h.press(keyboards.Data(keyboards.YesNo, "y"))

	assert.Equal(t, domain.StepDone, chat.Session.Step())
	profile, ok := chat.Session.ClinicalProfile()
	require.True(t, ok)
	assert.Equal(t, domain.ClinicalProfile{
		Weight:                 "62.5",
		Height:                 "165",
		BloodType:              "O+",
		PriorCancerDx:          true,
		FamilyHistory:          false,
		LastExamDate:           "2023-01-15",
		PhysicalActivity:       domain.ActivityModerate,
		Breastfeeding:          false,
		HormonalContraceptives: true,
		IsComplete:             true,
	}, profile)
}

func TestMainActionsAreGated(t *testing.T) {
	h := newHarness(t)

	h.press(keyboards.LesionAdd)
	assert.Empty(t, h.chat().Telemetry.Lesions())
	assert.Contains(t, h.sender.lastText(), "Inicia sesión")

	h.press(keyboards.ManualOn)
	assert.False(t, h.chat().Telemetry.IsManual())

	h.photo()
	assert.Contains(t, h.sender.lastText(), "Inicia sesión")
}

func TestLesionActions(t *testing.T) {
	h := newHarness(t)
	chat := h.unlock()

	h.press(keyboards.LesionAdd)
	lesions := chat.Telemetry.Lesions()
	require.Len(t, lesions, 1)
	l := lesions[0]
	assert.Equal(t, l.ID, chat.Telemetry.SelectedLesionID())
	assert.GreaterOrEqual(t, l.Radius, domain.MinLesionRadius)
	assert.LessOrEqual(t, l.Radius, domain.MaxLesionRadius)
	assert.True(t, l.Severity.Valid())

	h.press(keyboards.Data(keyboards.LesionSeverity, l.ID, 3))
	got, _ := chat.Telemetry.Lesion(l.ID)
	assert.Equal(t, domain.SeverityHigh, got.Severity)

	h.press(keyboards.Data(keyboards.LesionSeverity, l.ID, 7))
	got, _ = chat.Telemetry.Lesion(l.ID)
	assert.Equal(t, domain.SeverityHigh, got.Severity)

	h.press(keyboards.Data(keyboards.LesionNotes, l.ID))
	h.text("borde irregular")
	got, _ = chat.Telemetry.Lesion(l.ID)
	assert.Equal(t, "borde irregular", got.Notes)

	h.press(keyboards.Data(keyboards.LesionSelect, "missing"))
	assert.Contains(t, h.sender.allText(), "no encontrada")

	h.press(keyboards.Data(keyboards.LesionRemove, l.ID))
	assert.Empty(t, chat.Telemetry.Lesions())
	assert.Empty(t, chat.Telemetry.SelectedLesionID())
}

func TestManualSensorsAndReport(t *testing.T) {
	h := newHarness(t)
	chat := h.unlock()

	h.press(keyboards.Data(keyboards.SensorSet, keyboards.ChannelTemperature))
	assert.Equal(t, state.None, h.states.GetUserState(chatID), "manual mode is required")

	h.press(keyboards.ManualOn)
	assert.True(t, chat.Telemetry.IsManual())

	h.press(keyboards.Data(keyboards.SensorSet, keyboards.ChannelTemperature))
	h.text("38,4")
	assert.Equal(t, 38.4, chat.Telemetry.Data().Temperature)
	assert.Equal(t, domain.DefaultSensorReading().Pulse, chat.Telemetry.Data().Pulse)

	h.press(keyboards.Report)
	assert.Contains(t, h.sender.lastText(), "Temperatura elevada")
	assert.Contains(t, h.sender.lastText(), "Riesgo: ALTO")
}

func TestBLEConnectAndDisconnect(t *testing.T) {
	h := newHarness(t)
	chat := h.unlock()

	h.press(keyboards.BLEConnect)
	assert.Eventually(t, func() bool {
		status, name := chat.Telemetry.BleStatus()
		return status == domain.BleConnected && name == "TacticGlove v2.1"
	}, time.Second, time.Millisecond)

	h.press(keyboards.BLEDisconnect)
	status, name := chat.Telemetry.BleStatus()
	assert.Equal(t, domain.BleDisconnected, status)
	assert.Empty(t, name)
}

func TestGuidedCapture(t *testing.T) {
	h := newHarness(t)
	h.unlock()

	h.photo()
	assert.Contains(t, h.sender.lastText(), "Captura guiada")

	h.press(keyboards.Capture)
	assert.Contains(t, h.sender.lastText(), "Captura 1/3")
	h.photo()
	assert.Contains(t, h.sender.lastText(), "Captura 2/3")
	h.photo()
	h.photo()
	assert.Contains(t, h.sender.lastText(), "Captura completada: 3")
	assert.Equal(t, state.None, h.states.GetUserState(chatID))
}

func TestLogoutKeepsUser(t *testing.T) {
	h := newHarness(t)
	chat := h.unlock()

	h.command("/logout")
	assert.Equal(t, domain.StepLogin, chat.Session.Step())
	_, ok := chat.Session.User()
	assert.True(t, ok)
	assert.False(t, chat.Session.Consents().AllAccepted())
	assert.Contains(t, h.sender.lastText(), "Inicia sesión")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.command("/foo")
	assert.Contains(t, h.sender.lastText(), "Comando desconocido")

	h.command("/help")
	assert.Contains(t, h.sender.lastText(), "/logout")
}
