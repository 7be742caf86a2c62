package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/keyboards"
	"github.com/vladimiradmaev/tacticmap/internal/bot/menus"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/simulator"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	api          menus.Sender
	deps         Dependencies
	stateManager state.StateManager
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api menus.Sender, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
	}
}

// allowed reports whether an action may run on the given onboarding step
func allowed(action string, step domain.OnboardingStep) bool {
	switch action {
	case keyboards.MainMenu, keyboards.Help:
		return true
	case keyboards.GoLogin, keyboards.GoRegister, keyboards.StartLogin:
		return !step.Unlocked()
	case keyboards.Gender:
		return step == domain.StepRegister
	case keyboards.ConsentToggle, keyboards.ConsentAccept:
		return step == domain.StepConsent
	case keyboards.ClinicalFill, keyboards.ClinicalSkip, keyboards.Activity, keyboards.YesNo:
		return step == domain.StepClinical
	default:
		return step.Unlocked()
	}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery, chat *sessions.Chat) error {
	// Answer the callback query first
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := h.api.Request(callback); err != nil {
		logger.Warn("Failed to answer callback query", "error", err)
	}

	parts := strings.Split(query.Data, ":")
	action, args := parts[0], parts[1:]

	if !allowed(action, chat.Session.Step()) {
		logger.Debug("Callback not allowed on current step", "action", action, "step", chat.Session.Step())
		return sendScreen(h.api, h.stateManager, chat)
	}

	switch action {
	case keyboards.MainMenu:
		h.stateManager.SetUserState(chat.ID, state.None)
		return sendScreen(h.api, h.stateManager, chat)
	case keyboards.Help:
		return menus.SendText(h.api, chat.ID, helpText, nil)

	case keyboards.GoRegister:
		return h.handleGoRegister(ctx, chat)
	case keyboards.GoLogin:
		return h.handleGoLogin(ctx, chat)
	case keyboards.StartLogin:
		h.stateManager.SetUserState(chat.ID, state.WaitingForLoginEmail)
		return menus.SendText(h.api, chat.ID, "🔑 Escribe tu correo electrónico:", nil)
	case keyboards.Gender:
		return h.handleGender(chat, args)

	case keyboards.ConsentToggle:
		return h.handleConsentToggle(chat, args)
	case keyboards.ConsentAccept:
		return h.handleConsentAccept(ctx, chat)

	case keyboards.ClinicalFill:
		h.stateManager.SetTempData(chat.ID, tempClinical, &domain.ClinicalProfile{})
		h.stateManager.SetUserState(chat.ID, state.WaitingForWeight)
		return menus.SendText(h.api, chat.ID, "⚖️ Peso en kg:", nil)
	case keyboards.ClinicalSkip:
		return h.handleClinicalSkip(ctx, chat)
	case keyboards.Activity:
		return h.handleActivity(chat, args)
	case keyboards.YesNo:
		return h.handleYesNo(ctx, chat, args)

	case keyboards.Sensors:
		return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
	case keyboards.BLEConnect:
		return h.handleBLEConnect(ctx, chat)
	case keyboards.BLEDisconnect:
		chat.StopStream()
		chat.Scanner.Disconnect()
		return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
	case keyboards.ManualOn, keyboards.ManualOff:
		chat.Telemetry.SetManual(action == keyboards.ManualOn)
		return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
	case keyboards.SensorSet:
		return h.handleSensorSet(chat, args)

	case keyboards.Capture:
		chat.Capture.Reset()
		h.stateManager.SetUserState(chat.ID, state.Capturing)
		taken, total := chat.Capture.Progress()
		keyboard := keyboards.BackToMenu()
		return menus.SendText(h.api, chat.ID, menus.CaptureText(chat.Capture.Next(), taken, total), &keyboard)

	case keyboards.Lesions:
		return menus.SendLesions(h.api, chat.ID, chat.Telemetry.Snapshot())
	case keyboards.LesionAdd:
		lesion := newRandomLesion(h.deps.Rand, h.deps.now())
		chat.Telemetry.AddLesion(lesion)
		chat.Telemetry.SelectLesion(lesion.ID)
		return menus.SendLesion(h.api, chat.ID, lesion)
	case keyboards.LesionSelect:
		return h.handleLesionSelect(chat, args)
	case keyboards.LesionSeverity:
		return h.handleLesionSeverity(chat, args)
	case keyboards.LesionNotes:
		return h.handleLesionNotes(chat, args)
	case keyboards.LesionRemove:
		return h.handleLesionRemove(chat, args)

	case keyboards.Report:
		snap := chat.Telemetry.Snapshot()
		return menus.SendReport(h.api, chat.ID, simulator.Triage(snap.Data, snap.Lesions), h.deps.now())

	case keyboards.Logout:
		return logout(ctx, h.api, h.stateManager, chat)

	default:
		logger.Warn("Unknown callback", "data", query.Data, "chat_id", chat.ID)
		return menus.SendText(h.api, chat.ID, "Acción desconocida.", nil)
	}
}

func (h *CallbackHandler) handleGoRegister(ctx context.Context, chat *sessions.Chat) error {
	if err := chat.Session.GoToRegister(ctx); err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	h.stateManager.ClearTempData(chat.ID)
	h.stateManager.SetUserState(chat.ID, state.WaitingForName)
	return menus.SendRegisterStart(h.api, chat.ID)
}

func (h *CallbackHandler) handleGoLogin(ctx context.Context, chat *sessions.Chat) error {
	if err := chat.Session.GoToLogin(ctx); err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	resetConversation(h.stateManager, chat.ID)
	return menus.SendLogin(h.api, chat.ID)
}

func (h *CallbackHandler) handleGender(chat *sessions.Chat, args []string) error {
	if h.stateManager.GetUserState(chat.ID) != state.WaitingForGender || len(args) != 1 {
		return sendScreen(h.api, h.stateManager, chat)
	}
	gender := domain.Gender(args[0])
	if !gender.Valid() {
		keyboard := keyboards.GenderMenu()
		return menus.SendText(h.api, chat.ID, "Elige una opción de la lista:", &keyboard)
	}

	h.stateManager.SetTempData(chat.ID, tempGender, gender)
	h.stateManager.SetUserState(chat.ID, state.WaitingForPassword)
	return menus.SendText(h.api, chat.ID, "🔒 Crea una contraseña (mínimo 8 caracteres):", nil)
}

func (h *CallbackHandler) handleConsentToggle(chat *sessions.Chat, args []string) error {
	c := pendingConsents(h.stateManager, chat.ID)
	if len(args) == 1 {
		switch args[0] {
		case keyboards.ConsentTerms:
			c.TermsOfUse = !c.TermsOfUse
		case keyboards.ConsentGDPR:
			c.HealthDataGDPR = !c.HealthDataGDPR
		case keyboards.ConsentSaMD:
			c.SaMDDisclaimer = !c.SaMDDisclaimer
		case keyboards.ConsentPrivacy:
			c.PrivacyPolicy = !c.PrivacyPolicy
		}
	}
	h.stateManager.SetTempData(chat.ID, tempConsents, c)
	return menus.SendConsent(h.api, chat.ID, c)
}

func (h *CallbackHandler) handleConsentAccept(ctx context.Context, chat *sessions.Chat) error {
	c := pendingConsents(h.stateManager, chat.ID)
	if !c.AllAccepted() {
		return menus.SendConsent(h.api, chat.ID, c)
	}
	if err := chat.Session.AcceptConsents(ctx, c); err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	resetConversation(h.stateManager, chat.ID)
	return menus.SendClinical(h.api, chat.ID)
}

func (h *CallbackHandler) handleClinicalSkip(ctx context.Context, chat *sessions.Chat) error {
	if err := chat.Session.SkipClinicalProfile(ctx); err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	resetConversation(h.stateManager, chat.ID)
	return sendScreen(h.api, h.stateManager, chat)
}

func (h *CallbackHandler) pendingProfile(chatID int64) *domain.ClinicalProfile {
	if v, ok := h.stateManager.GetTempData(chatID, tempClinical); ok {
		if p, ok := v.(*domain.ClinicalProfile); ok {
			return p
		}
	}
	return nil
}

func (h *CallbackHandler) handleActivity(chat *sessions.Chat, args []string) error {
	profile := h.pendingProfile(chat.ID)
	if profile == nil || h.stateManager.GetUserState(chat.ID) != state.WaitingForActivity || len(args) != 1 {
		return sendScreen(h.api, h.stateManager, chat)
	}

	level := domain.ActivityLevel(args[0])
	switch level {
	case domain.ActivitySedentary, domain.ActivityLight, domain.ActivityModerate, domain.ActivityActive:
	default:
		keyboard := keyboards.ActivityMenu()
		return menus.SendText(h.api, chat.ID, "Elige una opción de la lista:", &keyboard)
	}

	profile.PhysicalActivity = level
	return askYesNo(h.api, h.stateManager, chat.ID, fieldBreastfeeding)
}

func (h *CallbackHandler) handleYesNo(ctx context.Context, chat *sessions.Chat, args []string) error {
	profile := h.pendingProfile(chat.ID)
	field := state.GetString(h.stateManager, chat.ID, tempYesNo)
	if profile == nil || h.stateManager.GetUserState(chat.ID) != state.WaitingForYesNo || field == "" || len(args) != 1 {
		return sendScreen(h.api, h.stateManager, chat)
	}
	answer := args[0] == "y"

	switch field {
	case fieldPriorCancer:
		profile.PriorCancerDx = answer
		return askYesNo(h.api, h.stateManager, chat.ID, fieldFamilyHistory)
	case fieldFamilyHistory:
		profile.FamilyHistory = answer
		h.stateManager.SetUserState(chat.ID, state.WaitingForLastExamDate)
		return menus.SendText(h.api, chat.ID, "📅 Fecha de tu último examen (AAAA-MM-DD), o «-» si no recuerdas:", nil)
	case fieldBreastfeeding:
		profile.Breastfeeding = answer
		return askYesNo(h.api, h.stateManager, chat.ID, fieldHormonal)
	case fieldHormonal:
		profile.HormonalContraceptives = answer
	}

	if err := chat.Session.SaveClinicalProfile(ctx, *profile); err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	resetConversation(h.stateManager, chat.ID)
	if err := menus.SendText(h.api, chat.ID, "✅ Historia clínica guardada.", nil); err != nil {
		return err
	}
	return sendScreen(h.api, h.stateManager, chat)
}

func askYesNo(api menus.Sender, sm state.StateManager, chatID int64, field string) error {
	sm.SetTempData(chatID, tempYesNo, field)
	sm.SetUserState(chatID, state.WaitingForYesNo)
	keyboard := keyboards.YesNoMenu()
	return menus.SendText(api, chatID, yesNoQuestions[field], &keyboard)
}

func (h *CallbackHandler) handleBLEConnect(ctx context.Context, chat *sessions.Chat) error {
	status, _ := chat.Telemetry.BleStatus()
	if status == domain.BleScanning || status == domain.BleConnecting {
		return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
	}

	if err := menus.SendText(h.api, chat.ID, "📡 Buscando el guante…", nil); err != nil {
		return err
	}

	go func() {
		if err := chat.Scanner.Connect(ctx); err != nil {
			logger.Info("BLE connect did not complete", "chat_id", chat.ID, "error", err)
			if errors.Is(err, simulator.ErrBleUnavailable) {
				_ = menus.SendText(h.api, chat.ID, "Bluetooth no está disponible. Usa el ingreso manual.", nil)
			}
			return
		}
		chat.StartStream(ctx)
		if err := menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot()); err != nil {
			logger.Warn("Failed to send sensors screen", "chat_id", chat.ID, "error", err)
		}
	}()
	return nil
}

func (h *CallbackHandler) handleSensorSet(chat *sessions.Chat, args []string) error {
	if !chat.Telemetry.IsManual() || len(args) != 1 {
		return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
	}
	h.stateManager.SetTempData(chat.ID, tempChannel, args[0])
	h.stateManager.SetUserState(chat.ID, state.WaitingForSensorValue)
	return menus.SendText(h.api, chat.ID, "Escribe el nuevo valor:", nil)
}

func (h *CallbackHandler) lesionNotFound(chat *sessions.Chat) error {
	if err := menus.SendText(h.api, chat.ID, "Lesión no encontrada.", nil); err != nil {
		return err
	}
	return menus.SendLesions(h.api, chat.ID, chat.Telemetry.Snapshot())
}

func (h *CallbackHandler) handleLesionSelect(chat *sessions.Chat, args []string) error {
	if len(args) != 1 {
		return h.lesionNotFound(chat)
	}
	lesion, ok := chat.Telemetry.Lesion(args[0])
	if !ok {
		return h.lesionNotFound(chat)
	}
	chat.Telemetry.SelectLesion(lesion.ID)
	return menus.SendLesion(h.api, chat.ID, lesion)
}

func (h *CallbackHandler) handleLesionSeverity(chat *sessions.Chat, args []string) error {
	if len(args) != 2 {
		return h.lesionNotFound(chat)
	}
	n, err := strconv.Atoi(args[1])
	severity := domain.Severity(n)
	if err != nil || !severity.Valid() {
		return menus.SendText(h.api, chat.ID, "Severidad inválida.", nil)
	}

	if !chat.Telemetry.UpdateLesion(args[0], domain.LesionPatch{Severity: &severity}) {
		return h.lesionNotFound(chat)
	}
	lesion, _ := chat.Telemetry.Lesion(args[0])
	return menus.SendLesion(h.api, chat.ID, lesion)
}

func (h *CallbackHandler) handleLesionNotes(chat *sessions.Chat, args []string) error {
	if len(args) != 1 {
		return h.lesionNotFound(chat)
	}
	if _, ok := chat.Telemetry.Lesion(args[0]); !ok {
		return h.lesionNotFound(chat)
	}
	h.stateManager.SetTempData(chat.ID, tempLesionID, args[0])
	h.stateManager.SetUserState(chat.ID, state.WaitingForLesionNotes)
	return menus.SendText(h.api, chat.ID, "📝 Escribe las notas de la lesión:", nil)
}

func (h *CallbackHandler) handleLesionRemove(chat *sessions.Chat, args []string) error {
	if len(args) != 1 || !chat.Telemetry.RemoveLesion(args[0]) {
		return h.lesionNotFound(chat)
	}
	return menus.SendLesions(h.api, chat.ID, chat.Telemetry.Snapshot())
}
