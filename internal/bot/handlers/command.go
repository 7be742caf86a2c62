package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/menus"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
)

const helpText = `Comandos disponibles:
/start - Mostrar la pantalla actual
/help - Mostrar esta ayuda
/logout - Cerrar sesión

Cómo usar TACTICMAP:
1. Crea una cuenta local o inicia sesión
2. Acepta los consentimientos
3. Completa u omite tu historia clínica
4. Conecta el guante o ingresa lecturas manualmente
5. Marca lesiones y consulta el reporte

TACTICMAP no sustituye la valoración de un profesional.`

// CommandHandler handles bot commands
type CommandHandler struct {
	api          menus.Sender
	stateManager state.StateManager
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api menus.Sender, stateManager state.StateManager) *CommandHandler {
	return &CommandHandler{
		api:          api,
		stateManager: stateManager,
	}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message, chat *sessions.Chat) error {
	logger.Info("Handling command", "command", message.Command(), "chat_id", chat.ID)

	switch message.Command() {
	case "start":
		h.stateManager.SetUserState(chat.ID, state.None)
		return sendScreen(h.api, h.stateManager, chat)
	case "help":
		return menus.SendText(h.api, chat.ID, helpText, nil)
	case "logout":
		if !chat.Session.Step().Unlocked() {
			return sendScreen(h.api, h.stateManager, chat)
		}
		return logout(ctx, h.api, h.stateManager, chat)
	default:
		return menus.SendText(h.api, chat.ID, "Comando desconocido. Usa /help para ver los comandos disponibles.", nil)
	}
}
