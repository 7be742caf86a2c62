package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/keyboards"
	"github.com/vladimiradmaev/tacticmap/internal/bot/menus"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
)

// PhotoHandler counts photos as guided capture shots. Image content is never downloaded.
type PhotoHandler struct {
	api          menus.Sender
	stateManager state.StateManager
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(api menus.Sender, stateManager state.StateManager) *PhotoHandler {
	return &PhotoHandler{
		api:          api,
		stateManager: stateManager,
	}
}

// Handle processes a photo message
func (h *PhotoHandler) Handle(ctx context.Context, message *tgbotapi.Message, chat *sessions.Chat) error {
	if !chat.Session.Step().Unlocked() {
		return sendScreen(h.api, h.stateManager, chat)
	}
	if h.stateManager.GetUserState(chat.ID) != state.Capturing {
		keyboard := keyboards.MainMenuKeyboard()
		return menus.SendText(h.api, chat.ID, "Pulsa «Captura guiada» antes de enviar fotos.", &keyboard)
	}

	view := chat.Capture.Shot()
	taken, total := chat.Capture.Progress()
	logger.Info("Capture shot received", "chat_id", chat.ID, "view", view, "taken", taken, "total", total)

	if !chat.Capture.Complete() {
		keyboard := keyboards.BackToMenu()
		return menus.SendText(h.api, chat.ID, menus.CaptureText(chat.Capture.Next(), taken, total), &keyboard)
	}

	h.stateManager.SetUserState(chat.ID, state.None)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Lesiones", keyboards.Lesions),
			tgbotapi.NewInlineKeyboardButtonData("📊 Reporte", keyboards.Report),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Menú principal", keyboards.MainMenu),
		),
	)
	return menus.SendText(h.api, chat.ID, fmt.Sprintf("✅ Captura completada: %d vistas registradas.", total), &keyboard)
}
