package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cv_builder_bot/internal/domain"
	"cv_builder_bot/internal/logging"
)

const (
	// storeTimeout bounds every individual store call made while handling one
	// message; a timeout surfaces as the generic failure reply.
	storeTimeout = 5 * time.Second

	// maxListedQuestions caps the /liste_questions output.
	maxListedQuestions = 10
)

// UserStore is the reservation persistence contract the dispatcher drives.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (domain.UserRecord, error)
	InsertIfAbsent(ctx context.Context, record domain.UserRecord) (domain.UserRecord, error)
	UpdateStatus(ctx context.Context, email string, status domain.PaymentStatus) error
}

// QuestionStore is the question persistence contract the dispatcher drives.
type QuestionStore interface {
	Insert(ctx context.Context, question domain.Question) (domain.Question, error)
	FindUnanswered(ctx context.Context, limit int) ([]domain.Question, error)
}

// ConversationLog records exchanges for audit; appends are best-effort.
type ConversationLog interface {
	Append(ctx context.Context, turn domain.ConversationTurn) error
}

// Catalog answers whether the template asset for a tier is available.
type Catalog interface {
	Exists(tier domain.Tier) bool
}

// Authorizer gates admin-only commands.
type Authorizer interface {
	IsAdmin(callerID string) bool
}

// Dispatcher turns inbound messages into replies, mutating the stores as the
// command requires. Each Handle call is independent and reentrant; the stores
// provide all cross-call safety.
type Dispatcher struct {
	users     UserStore
	questions QuestionStore
	auth      Authorizer
	catalog   Catalog
	log       ConversationLog
	replies   Replies
	logger    *logrus.Entry
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithConversationLog enables audit logging of every exchange.
func WithConversationLog(log ConversationLog) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithReplies overrides the default reply message set.
func WithReplies(replies Replies) Option {
	return func(d *Dispatcher) {
		d.replies = replies
	}
}

// New constructs a Dispatcher.
func New(users UserStore, questions QuestionStore, auth Authorizer, catalog Catalog, logger *logrus.Entry, opts ...Option) (*Dispatcher, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if questions == nil {
		return nil, errors.New("question store is required")
	}
	if auth == nil {
		return nil, errors.New("authorizer is required")
	}
	if catalog == nil {
		return nil, errors.New("template catalog is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	d := &Dispatcher{
		users:     users,
		questions: questions,
		auth:      auth,
		catalog:   catalog,
		replies:   DefaultReplies(),
		logger:    logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Handle processes one inbound message and returns the reply text. Admin-only
// commands from non-admin callers get the same reply as an unrecognized
// command, so the admin surface is not discoverable by probing.
func (d *Dispatcher) Handle(ctx context.Context, text, callerID, conversationID string) string {
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := Parse(text)
	if cmd.adminOnly() && !d.auth.IsAdmin(callerID) {
		cmd = Command{Kind: KindUnrecognized}
	}

	reply := d.run(ctx, cmd, callerID)
	d.record(ctx, conversationID, text, reply)

	return reply
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, callerID string) string {
	switch cmd.Kind {
	case KindStart:
		return d.replies.Start
	case KindQuestion:
		return d.handleQuestion(ctx, cmd, callerID)
	case KindListQuestions:
		return d.handleListQuestions(ctx)
	case KindSendCV:
		return d.handleSendCV(ctx, cmd, callerID)
	case KindVerify:
		return d.handleVerify(ctx, cmd, callerID)
	default:
		return d.replies.Unrecognized
	}
}

func (d *Dispatcher) handleQuestion(ctx context.Context, cmd Command, callerID string) string {
	if cmd.Issue == IssueEmptyQuestion {
		return d.replies.QuestionEmpty
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	question, err := d.questions.Insert(storeCtx, domain.Question{
		AskerID: callerID,
		Text:    cmd.Text,
	})
	if err != nil {
		return d.internalError(err, callerID, "question_insert")
	}

	d.logger.WithFields(logging.Fields{
		"event":       "question_created",
		"caller_id":   callerID,
		"question_id": question.ID.Hex(),
	}).Info("stored new question")

	return d.replies.QuestionAck
}

func (d *Dispatcher) handleListQuestions(ctx context.Context) string {
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	questions, err := d.questions.FindUnanswered(storeCtx, maxListedQuestions)
	if err != nil {
		return d.internalError(err, "", "question_list")
	}

	if len(questions) == 0 {
		return d.replies.NoPendingQuestions
	}

	lines := make([]string, 0, len(questions))
	for i, question := range questions {
		lines = append(lines, fmt.Sprintf("#%d (%s) : %s", i+1, question.AskerID, question.Text))
	}

	return strings.Join(lines, "\n")
}

func (d *Dispatcher) handleSendCV(ctx context.Context, cmd Command, callerID string) string {
	switch cmd.Issue {
	case IssueSendCVFormat:
		return d.replies.SendCVUsage
	case IssueBadEmail:
		return d.replies.InvalidEmail
	case IssueBadTier:
		return d.replies.InvalidTier
	}

	findCtx, cancelFind := context.WithTimeout(ctx, storeTimeout)
	_, err := d.users.FindByEmail(findCtx, cmd.Email)
	cancelFind()

	switch {
	case err == nil:
		return d.replies.AlreadyReserved
	case !errors.Is(err, domain.ErrNotFound):
		return d.internalError(err, callerID, "sendcv_lookup")
	}

	if !d.catalog.Exists(cmd.Tier) {
		d.logger.WithFields(logging.Fields{
			"event": "template_missing",
			"tier":  string(cmd.Tier),
		}).Warn("requested CV template asset is absent")
		return d.replies.TemplateUnavailable
	}

	insertCtx, cancelInsert := context.WithTimeout(ctx, storeTimeout)
	record, err := d.users.InsertIfAbsent(insertCtx, domain.UserRecord{
		Email:         cmd.Email,
		CVModel:       cmd.Tier,
		PaymentStatus: domain.StatusPending,
	})
	cancelInsert()

	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		// Lost the race against a concurrent reservation; same outcome as the
		// find-first rejection.
		return d.replies.AlreadyReserved
	case err != nil:
		return d.internalError(err, callerID, "sendcv_insert")
	}

	d.logger.WithFields(logging.Fields{
		"event":     "cv_reserved",
		"caller_id": callerID,
		"email":     record.Email,
		"tier":      string(record.CVModel),
	}).Info("created CV reservation")

	success := fmt.Sprintf(d.replies.SendCVSuccess, capitalize(string(cmd.Tier)), cmd.Email)
	return success + "\n\n" + d.replies.PaymentInstructions
}

func (d *Dispatcher) handleVerify(ctx context.Context, cmd Command, callerID string) string {
	if cmd.Issue == IssueVerifyUsage {
		return d.replies.VerifyUsage
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	err := d.users.UpdateStatus(storeCtx, cmd.Email, domain.StatusCompleted)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf(d.replies.VerifyNotFound, cmd.Email)
	case err != nil:
		return d.internalError(err, callerID, "verify_update")
	}

	d.logger.WithFields(logging.Fields{
		"event":     "payment_verified",
		"caller_id": callerID,
		"email":     cmd.Email,
	}).Info("marked payment as completed")

	return fmt.Sprintf(d.replies.VerifyDone, cmd.Email)
}

// record appends the exchange to the conversation log when one is configured.
// Failures are logged and never alter the reply.
func (d *Dispatcher) record(ctx context.Context, conversationID, incoming, outgoing string) {
	if d.log == nil {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	err := d.log.Append(storeCtx, domain.ConversationTurn{
		ConversationID: conversationID,
		Incoming:       incoming,
		Outgoing:       outgoing,
	})
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":           "conversation_log_error",
			"conversation_id": conversationID,
		}).WithError(err).Warn("failed to append conversation turn")
	}
}

// internalError logs the store failure with full detail and returns the
// generic reply; internals never reach the caller.
func (d *Dispatcher) internalError(err error, callerID, event string) string {
	fields := logging.Fields{"event": event}
	if callerID != "" {
		fields["caller_id"] = callerID
	}
	d.logger.WithFields(fields).WithError(err).Error("store operation failed")

	return d.replies.InternalError
}

func capitalize(value string) string {
	if value == "" {
		return value
	}

	return strings.ToUpper(value[:1]) + value[1:]
}
