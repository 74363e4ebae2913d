package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"cv_builder_bot/internal/config"
)

func TestNewClientRequiresToken(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	_, err := NewClient(config.Config{}, &fakeDispatcher{}, logrus.NewEntry(logger))
	if err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestNewClientRequiresDispatcher(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	_, err := NewClient(config.Config{TelegramToken: "123:ABC"}, nil, logrus.NewEntry(logger))
	if err == nil {
		t.Fatalf("expected error for missing dispatcher")
	}
}

func TestOnUpdateDispatchesAndReplies(t *testing.T) {
	client, fakeBot, dispatcher := newTestClient(t)
	dispatcher.reply = "Bienvenue !"

	client.onUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			From: &models.User{ID: 42},
			Chat: models.Chat{ID: 777},
			Text: " /start ",
		},
	})

	if dispatcher.lastText != "/start" {
		t.Fatalf("expected trimmed text, got %q", dispatcher.lastText)
	}
	if dispatcher.lastCallerID != "42" {
		t.Fatalf("expected caller id 42, got %q", dispatcher.lastCallerID)
	}
	if dispatcher.lastConversationID != "777" {
		t.Fatalf("expected conversation id 777, got %q", dispatcher.lastConversationID)
	}

	if len(fakeBot.sent) != 1 {
		t.Fatalf("expected one outgoing message, got %d", len(fakeBot.sent))
	}
	sent := fakeBot.sent[0]
	if sent.ChatID != int64(777) || sent.Text != "Bienvenue !" {
		t.Fatalf("unexpected outgoing message: %+v", sent)
	}
}

func TestOnUpdateIgnoresNonTextUpdates(t *testing.T) {
	client, fakeBot, dispatcher := newTestClient(t)

	client.onUpdate(context.Background(), nil, &models.Update{})
	client.onUpdate(context.Background(), nil, nil)
	client.onUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{Chat: models.Chat{ID: 777}},
	})

	if dispatcher.calls != 0 {
		t.Fatalf("expected dispatcher not to be called, got %d calls", dispatcher.calls)
	}
	if len(fakeBot.sent) != 0 {
		t.Fatalf("expected no outgoing messages, got %d", len(fakeBot.sent))
	}
}

func TestOnUpdateToleratesSendFailure(t *testing.T) {
	client, fakeBot, dispatcher := newTestClient(t)
	dispatcher.reply = "réponse"
	fakeBot.sendErr = errors.New("telegram unavailable")

	// Must not panic; the failure is logged.
	client.onUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			From: &models.User{ID: 42},
			Chat: models.Chat{ID: 777},
			Text: "/start",
		},
	})

	if dispatcher.calls != 1 {
		t.Fatalf("expected dispatcher to be called once, got %d", dispatcher.calls)
	}
}

func TestSenderDeliversToChat(t *testing.T) {
	client, fakeBot, _ := newTestClient(t)
	sender := client.Sender()

	if err := sender.Send(context.Background(), "555", "rappel"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if len(fakeBot.sent) != 1 {
		t.Fatalf("expected one outgoing message, got %d", len(fakeBot.sent))
	}
	if fakeBot.sent[0].ChatID != int64(555) || fakeBot.sent[0].Text != "rappel" {
		t.Fatalf("unexpected outgoing message: %+v", fakeBot.sent[0])
	}
}

func TestSenderRejectsOpaqueConversationIDs(t *testing.T) {
	client, _, _ := newTestClient(t)
	sender := client.Sender()

	if err := sender.Send(context.Background(), "web:abc", "rappel"); err == nil {
		t.Fatalf("expected error for non-numeric conversation id")
	}
}

func newTestClient(t *testing.T) (*Client, *fakeBot, *fakeDispatcher) {
	t.Helper()

	fake := &fakeBot{}
	restore := stubCreateBot(fake)
	t.Cleanup(restore)

	logger, _ := logtest.NewNullLogger()
	dispatcher := &fakeDispatcher{}

	client, err := NewClient(config.Config{TelegramToken: "123:ABC"}, dispatcher, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	return client, fake, dispatcher
}

func stubCreateBot(fake *fakeBot) func() {
	prev := createBot
	createBot = func(string, ...bot.Option) (botAPI, error) {
		return fake, nil
	}

	return func() {
		createBot = prev
	}
}

type fakeBot struct {
	sent    []*bot.SendMessageParams
	sendErr error
	started bool
}

func (f *fakeBot) Start(context.Context) {
	f.started = true
}

func (f *fakeBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

type fakeDispatcher struct {
	reply              string
	calls              int
	lastText           string
	lastCallerID       string
	lastConversationID string
}

func (f *fakeDispatcher) Handle(_ context.Context, text, callerID, conversationID string) string {
	f.calls++
	f.lastText = text
	f.lastCallerID = callerID
	f.lastConversationID = conversationID
	return f.reply
}
