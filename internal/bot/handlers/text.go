package handlers

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/keyboards"
	"github.com/vladimiradmaev/tacticmap/internal/bot/menus"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/task"
	"github.com/vladimiradmaev/tacticmap/internal/utils"
)

// TextHandler handles text messages
type TextHandler struct {
	api          menus.Sender
	deps         Dependencies
	stateManager state.StateManager
}

// NewTextHandler creates a new text handler
func NewTextHandler(api menus.Sender, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
	}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message, chat *sessions.Chat) error {
	userState := h.stateManager.GetUserState(chat.ID)
	step := chat.Session.Step()
	text := strings.TrimSpace(message.Text)

	switch {
	case step == domain.StepLogin && userState == state.WaitingForLoginEmail:
		return h.handleLoginEmail(chat, text)
	case step == domain.StepLogin && userState == state.WaitingForLoginPassword:
		return h.handleLoginPassword(ctx, message, chat)
	case step == domain.StepRegister:
		return h.handleRegisterField(ctx, message, chat, userState, text)
	case step == domain.StepClinical:
		return h.handleClinicalField(chat, userState, text)
	case step.Unlocked() && userState == state.WaitingForSensorValue:
		return h.handleSensorValue(chat, text)
	case step.Unlocked() && userState == state.WaitingForLesionNotes:
		return h.handleLesionNotes(chat, text)
	case step.Unlocked():
		keyboard := keyboards.MainMenuKeyboard()
		return menus.SendText(h.api, chat.ID, "Usa el menú para elegir una acción.", &keyboard)
	default:
		return sendScreen(h.api, h.stateManager, chat)
	}
}

// deletePrivate removes a message carrying a password from the chat history
func (h *TextHandler) deletePrivate(message *tgbotapi.Message) {
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(message.Chat.ID, message.MessageID)); err != nil {
		logger.Debug("Could not delete password message", "chat_id", message.Chat.ID, "error", err)
	}
}

func (h *TextHandler) handleLoginEmail(chat *sessions.Chat, text string) error {
	if text == "" {
		return menus.SendText(h.api, chat.ID, "Completa todos los campos.", nil)
	}
	h.stateManager.SetTempData(chat.ID, tempEmail, text)
	h.stateManager.SetUserState(chat.ID, state.WaitingForLoginPassword)
	return menus.SendText(h.api, chat.ID, "🔒 Escribe tu contraseña:", nil)
}

func (h *TextHandler) handleLoginPassword(ctx context.Context, message *tgbotapi.Message, chat *sessions.Chat) error {
	h.deletePrivate(message)
	password := message.Text
	email := state.GetString(h.stateManager, chat.ID, tempEmail)
	if email == "" || password == "" {
		h.stateManager.SetUserState(chat.ID, state.WaitingForLoginEmail)
		return menus.SendText(h.api, chat.ID, "Completa todos los campos. Escribe tu correo electrónico:", nil)
	}

	resetConversation(h.stateManager, chat.ID)
	if err := menus.SendText(h.api, chat.ID, "⏳ Verificando…", nil); err != nil {
		return err
	}

	// Runs off the update loop; the result is sent once the delay ends.
	task.After(ctx, h.deps.Registry.Delays().Login, func() {
		if err := h.finishLogin(ctx, chat, email, password); err != nil {
			logger.Warn("Failed to complete login", "chat_id", chat.ID, "error", err)
		}
	})
	return nil
}

func (h *TextHandler) finishLogin(ctx context.Context, chat *sessions.Chat, email, password string) error {
	ok, err := chat.Session.Login(ctx, email, password)
	if err != nil {
		return sendFailure(h.api, chat.ID, err)
	}
	if !ok {
		keyboard := keyboards.LoginMenu()
		return menus.SendText(h.api, chat.ID, "Correo o contraseña incorrectos. Si eres nuevo, crea una cuenta.", &keyboard)
	}

	logger.Info("User logged in", "chat_id", chat.ID)
	return sendScreen(h.api, h.stateManager, chat)
}

func (h *TextHandler) handleRegisterField(ctx context.Context, message *tgbotapi.Message, chat *sessions.Chat, userState, text string) error {
	switch userState {
	case state.WaitingForName:
		if text == "" {
			return menus.SendText(h.api, chat.ID, "Ingresa tu nombre completo.", nil)
		}
		h.stateManager.SetTempData(chat.ID, tempName, text)
		h.stateManager.SetUserState(chat.ID, state.WaitingForEmail)
		return menus.SendText(h.api, chat.ID, "✉️ Correo electrónico:", nil)

	case state.WaitingForEmail:
		addr, err := mail.ParseAddress(text)
		if err != nil || addr.Address != text {
			return menus.SendText(h.api, chat.ID, "Correo inválido. Inténtalo de nuevo:", nil)
		}
		h.stateManager.SetTempData(chat.ID, tempEmail, addr.Address)
		h.stateManager.SetUserState(chat.ID, state.WaitingForBirthdate)
		return menus.SendText(h.api, chat.ID, "🎂 Fecha de nacimiento (AAAA-MM-DD):", nil)

	case state.WaitingForBirthdate:
		birth, err := utils.ParsePastDate(text, h.deps.now())
		if err != nil {
			return menus.SendText(h.api, chat.ID, "Fecha inválida. Usa el formato AAAA-MM-DD:", nil)
		}
		h.stateManager.SetTempData(chat.ID, tempBirthdate, birth.Format(utils.DateLayout))
		h.stateManager.SetUserState(chat.ID, state.WaitingForCountry)
		return menus.SendText(h.api, chat.ID, "🌎 País:", nil)

	case state.WaitingForCountry:
		if text == "" {
			return menus.SendText(h.api, chat.ID, "Ingresa tu país.", nil)
		}
		h.stateManager.SetTempData(chat.ID, tempCountry, text)
		h.stateManager.SetUserState(chat.ID, state.WaitingForGender)
		keyboard := keyboards.GenderMenu()
		return menus.SendText(h.api, chat.ID, "Género:", &keyboard)

	case state.WaitingForPassword:
		h.deletePrivate(message)
		if len(message.Text) < minPasswordLength {
			return menus.SendText(h.api, chat.ID, fmt.Sprintf("Mínimo %d caracteres. Escribe otra contraseña:", minPasswordLength), nil)
		}
		h.stateManager.SetTempData(chat.ID, tempPassword, message.Text)
		h.stateManager.SetUserState(chat.ID, state.WaitingForPasswordConfirm)
		return menus.SendText(h.api, chat.ID, "🔒 Repite tu contraseña:", nil)

	case state.WaitingForPasswordConfirm:
		h.deletePrivate(message)
		if message.Text != state.GetString(h.stateManager, chat.ID, tempPassword) {
			h.stateManager.SetUserState(chat.ID, state.WaitingForPassword)
			return menus.SendText(h.api, chat.ID, "Las contraseñas no coinciden. Escribe la contraseña de nuevo:", nil)
		}
		return h.completeRegistration(ctx, chat)

	case state.WaitingForGender:
		keyboard := keyboards.GenderMenu()
		return menus.SendText(h.api, chat.ID, "Elige una opción de la lista:", &keyboard)

	default:
		return sendScreen(h.api, h.stateManager, chat)
	}
}

func (h *TextHandler) completeRegistration(ctx context.Context, chat *sessions.Chat) error {
	gender := domain.GenderPreferNot
	if v, ok := h.stateManager.GetTempData(chat.ID, tempGender); ok {
		if g, ok := v.(domain.Gender); ok {
			gender = g
		}
	}
	email := state.GetString(h.stateManager, chat.ID, tempEmail)

	if h.deps.Passwords != nil {
		if err := h.deps.Passwords.SetPassword(ctx, chat.Session.Key(), email, state.GetString(h.stateManager, chat.ID, tempPassword)); err != nil {
			return sendFailure(h.api, chat.ID, err)
		}
	}

	user, err := chat.Session.Register(ctx, domain.NewUser{
		Name:      state.GetString(h.stateManager, chat.ID, tempName),
		Email:     email,
		Birthdate: state.GetString(h.stateManager, chat.ID, tempBirthdate),
		Country:   state.GetString(h.stateManager, chat.ID, tempCountry),
		Gender:    gender,
	})
	if err != nil {
		return sendFailure(h.api, chat.ID, err)
	}

	resetConversation(h.stateManager, chat.ID)
	if err := menus.SendText(h.api, chat.ID, fmt.Sprintf("✅ Cuenta creada, %s.", user.Name), nil); err != nil {
		return err
	}
	return sendScreen(h.api, h.stateManager, chat)
}

func (h *TextHandler) handleClinicalField(chat *sessions.Chat, userState, text string) error {
	var profile *domain.ClinicalProfile
	if v, ok := h.stateManager.GetTempData(chat.ID, tempClinical); ok {
		profile, _ = v.(*domain.ClinicalProfile)
	}
	if profile == nil {
		return sendScreen(h.api, h.stateManager, chat)
	}

	switch userState {
	case state.WaitingForWeight:
		if _, err := parseNumber(text); err != nil {
			return menus.SendText(h.api, chat.ID, "Escribe un número, por ejemplo 62.5:", nil)
		}
		profile.Weight = text
		h.stateManager.SetUserState(chat.ID, state.WaitingForHeight)
		return menus.SendText(h.api, chat.ID, "📏 Estatura en cm:", nil)

	case state.WaitingForHeight:
		if _, err := parseNumber(text); err != nil {
			return menus.SendText(h.api, chat.ID, "Escribe un número, por ejemplo 165:", nil)
		}
		profile.Height = text
		h.stateManager.SetUserState(chat.ID, state.WaitingForBloodType)
		return menus.SendText(h.api, chat.ID, "🩸 Grupo sanguíneo (p. ej. O+), o «-» si no lo sabes:", nil)

	case state.WaitingForBloodType:
		if text != "-" {
			profile.BloodType = strings.ToUpper(text)
		}
		return askYesNo(h.api, h.stateManager, chat.ID, fieldPriorCancer)

	case state.WaitingForLastExamDate:
		if text != "-" {
			d, err := utils.ParsePastDate(text, h.deps.now())
			if err != nil {
				return menus.SendText(h.api, chat.ID, "Fecha inválida. Usa AAAA-MM-DD o «-»:", nil)
			}
			profile.LastExamDate = d.Format(utils.DateLayout)
		}
		h.stateManager.SetUserState(chat.ID, state.WaitingForActivity)
		keyboard := keyboards.ActivityMenu()
		return menus.SendText(h.api, chat.ID, "🏃 Actividad física:", &keyboard)

	default:
		return menus.SendText(h.api, chat.ID, "Responde usando los botones.", nil)
	}
}

func parseNumber(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(text), ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %v", v)
	}
	return v, nil
}

func (h *TextHandler) handleSensorValue(chat *sessions.Chat, text string) error {
	value, err := parseNumber(text)
	if err != nil {
		return menus.SendText(h.api, chat.ID, "Escribe un número válido, por ejemplo 36.8:", nil)
	}

	var patch domain.ReadingPatch
	switch state.GetString(h.stateManager, chat.ID, tempChannel) {
	case keyboards.ChannelPulse:
		patch.Pulse = &value
	case keyboards.ChannelPressure:
		patch.Pressure = &value
	case keyboards.ChannelUltrasound:
		patch.Ultrasound = &value
	case keyboards.ChannelTemperature:
		patch.Temperature = &value
	case keyboards.ChannelDensity:
		patch.Density = &value
	}
	chat.Telemetry.SetData(patch)

	resetConversation(h.stateManager, chat.ID)
	return menus.SendSensors(h.api, chat.ID, chat.Telemetry.Snapshot())
}

func (h *TextHandler) handleLesionNotes(chat *sessions.Chat, text string) error {
	id := state.GetString(h.stateManager, chat.ID, tempLesionID)
	resetConversation(h.stateManager, chat.ID)

	if !chat.Telemetry.UpdateLesion(id, domain.LesionPatch{Notes: &text}) {
		if err := menus.SendText(h.api, chat.ID, "Lesión no encontrada.", nil); err != nil {
			return err
		}
		return menus.SendLesions(h.api, chat.ID, chat.Telemetry.Snapshot())
	}
	lesion, _ := chat.Telemetry.Lesion(id)
	return menus.SendLesion(h.api, chat.ID, lesion)
}
