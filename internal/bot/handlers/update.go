package handlers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/menus"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/bot/state"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
)

// UpdateHandler handles telegram updates and coordinates other handlers
type UpdateHandler struct {
	api             menus.Sender
	deps            Dependencies
	stateManager    state.StateManager
	callbackHandler *CallbackHandler
	commandHandler  *CommandHandler
	textHandler     *TextHandler
	photoHandler    *PhotoHandler
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(api menus.Sender, deps Dependencies, stateManager state.StateManager) *UpdateHandler {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &UpdateHandler{
		api:             api,
		deps:            deps,
		stateManager:    stateManager,
		callbackHandler: NewCallbackHandler(api, deps, stateManager),
		commandHandler:  NewCommandHandler(api, stateManager),
		textHandler:     NewTextHandler(api, deps, stateManager),
		photoHandler:    NewPhotoHandler(api, stateManager),
	}
}

// Handle processes a telegram update
func (h *UpdateHandler) Handle(ctx context.Context, update tgbotapi.Update) error {
	var chatID int64
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		chatID = update.Message.Chat.ID
	default:
		return nil
	}

	chat, err := h.deps.Registry.Get(ctx, chatID)
	if err != nil {
		logger.Error("Error opening chat session", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to open chat %d: %w", chatID, err)
	}

	if update.CallbackQuery != nil {
		return h.callbackHandler.Handle(ctx, update.CallbackQuery, chat)
	}

	if update.Message.IsCommand() {
		return h.commandHandler.Handle(ctx, update.Message, chat)
	}

	if len(update.Message.Photo) > 0 {
		return h.photoHandler.Handle(ctx, update.Message, chat)
	}

	if update.Message.Text != "" {
		return h.textHandler.Handle(ctx, update.Message, chat)
	}

	return nil
}

// sendScreen renders the current onboarding screen, keeping consent toggles in progress
func sendScreen(api menus.Sender, sm state.StateManager, chat *sessions.Chat) error {
	st := chat.Session.Snapshot()
	switch st.OnboardingStep {
	case domain.StepConsent:
		return menus.SendConsent(api, chat.ID, pendingConsents(sm, chat.ID))
	case domain.StepRegister:
		// the register screen always restarts the form
		sm.ClearTempData(chat.ID)
		sm.SetUserState(chat.ID, state.WaitingForName)
	}
	return menus.SendScreen(api, chat.ID, st)
}

func pendingConsents(sm state.StateManager, chatID int64) domain.Consents {
	if v, ok := sm.GetTempData(chatID, tempConsents); ok {
		if c, ok := v.(domain.Consents); ok {
			return c
		}
	}
	return domain.Consents{}
}

func resetConversation(sm state.StateManager, chatID int64) {
	sm.SetUserState(chatID, state.None)
	sm.ClearTempData(chatID)
}

// sendFailure tells the user an action could not be saved and returns err for logging
func sendFailure(api menus.Sender, chatID int64, err error) error {
	if sendErr := menus.SendText(api, chatID, "⚠️ No se pudo guardar el cambio. Inténtalo de nuevo.", nil); sendErr != nil {
		logger.Warn("Failed to send error message", "chat_id", chatID, "error", sendErr)
	}
	return err
}

// logout ends the session and stops any glove activity of the chat
func logout(ctx context.Context, api menus.Sender, sm state.StateManager, chat *sessions.Chat) error {
	chat.StopStream()
	chat.Scanner.Disconnect()
	resetConversation(sm, chat.ID)

	if err := chat.Session.Logout(ctx); err != nil {
		return sendFailure(api, chat.ID, err)
	}
	logger.Info("User logged out", "chat_id", chat.ID)
	return menus.SendLogin(api, chat.ID)
}
