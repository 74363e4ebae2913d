// Package telegram hosts the Telegram client, message routing, and the
// delivery adapter for out-of-band sends.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"cv_builder_bot/internal/config"
	"cv_builder_bot/internal/logging"
)

// botAPI captures the subset of bot.Bot behavior the client relies on,
// allowing stubbing in tests.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// messageDispatcher turns one inbound message into a reply.
type messageDispatcher interface {
	Handle(ctx context.Context, text, callerID, conversationID string) string
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and feeds incoming messages into the
// command dispatcher.
type Client struct {
	bot        botAPI
	dispatcher messageDispatcher
	logger     *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling.
func NewClient(cfg config.Config, dispatcher messageDispatcher, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		dispatcher: dispatcher,
		logger:     logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.onUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot

	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// Sender returns the delivery adapter for out-of-band pushes to a chat.
func (c *Client) Sender() *Sender {
	return &Sender{bot: c.bot}
}

type updateMeta struct {
	userID int64
	chatID int64
	text   string
}

func (c *Client) onUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	if meta.text == "" || meta.chatID == 0 {
		return
	}

	callerID := strconv.FormatInt(meta.userID, 10)
	conversationID := strconv.FormatInt(meta.chatID, 10)

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_message",
		"caller_id":       callerID,
		"conversation_id": conversationID,
	}).Debug("telegram message received")

	reply := c.dispatcher.Handle(ctx, meta.text, callerID, conversationID)
	if reply == "" {
		return
	}

	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: meta.chatID,
		Text:   reply,
	}); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":           "telegram_send_error",
			"conversation_id": conversationID,
		}).WithError(err).Error("failed to send telegram reply")
	}
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID: userID(update.Message.From),
			chatID: chatID(&update.Message.Chat),
			text:   strings.TrimSpace(update.Message.Text),
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID: userID(update.EditedMessage.From),
			chatID: chatID(&update.EditedMessage.Chat),
			text:   strings.TrimSpace(update.EditedMessage.Text),
		}
	default:
		return updateMeta{}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

// Sender pushes a message to a Telegram conversation outside the
// request/reply cycle (the digest uses it).
type Sender struct {
	bot botAPI
}

// Send delivers text to the chat identified by the conversation id.
func (s *Sender) Send(ctx context.Context, conversationID, text string) error {
	if s == nil || s.bot == nil {
		return errors.New("sender is not initialized")
	}

	chat, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse conversation id %q: %w", conversationID, err)
	}

	if _, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chat,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
