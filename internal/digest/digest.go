// Package digest pushes a daily summary of unanswered questions to the
// admin chats, on a cron schedule derived from a HH:MM wall-clock time.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"cv_builder_bot/internal/domain"
	"cv_builder_bot/internal/logging"
)

const (
	maxDigestQuestions = 10
	runTimeout         = 30 * time.Second
)

// QuestionLister fetches the pending questions to summarize.
type QuestionLister interface {
	FindUnanswered(ctx context.Context, limit int) ([]domain.Question, error)
}

// Sender delivers the digest text to one conversation.
type Sender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// Digest owns the cron runner and the daily summary job.
type Digest struct {
	cron      *cron.Cron
	questions QuestionLister
	sender    Sender
	adminIDs  []int64
	logger    *logrus.Entry
}

// New constructs the digest scheduler. adminIDs are the chats that receive
// the summary.
func New(questions QuestionLister, sender Sender, adminIDs []int64, logger *logrus.Entry) (*Digest, error) {
	if questions == nil {
		return nil, errors.New("question lister is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if len(adminIDs) == 0 {
		return nil, errors.New("at least one admin id is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Digest{
		cron:      cron.New(cron.WithSeconds()),
		questions: questions,
		sender:    sender,
		adminIDs:  adminIDs,
		logger:    logger,
	}, nil
}

// Schedule registers the daily job at the given HH:MM wall-clock time.
func (d *Digest) Schedule(at string) error {
	spec, err := buildDailySpec(at)
	if err != nil {
		return err
	}

	if _, err := d.cron.AddFunc(spec, d.run); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}

	d.logger.WithFields(logging.Fields{
		"event": "digest_scheduled",
		"at":    at,
	}).Info("daily digest scheduled")

	return nil
}

// Start launches the cron runner in its own goroutine.
func (d *Digest) Start() {
	d.cron.Start()
}

// Stop halts the cron runner and waits for a running job to finish.
func (d *Digest) Stop() {
	<-d.cron.Stop().Done()
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	questions, err := d.questions.FindUnanswered(ctx, maxDigestQuestions)
	if err != nil {
		d.logger.WithField("event", "digest_fetch_error").WithError(err).Error("failed to fetch pending questions for digest")
		return
	}

	if len(questions) == 0 {
		d.logger.WithField("event", "digest_skip").Debug("no pending questions, digest skipped")
		return
	}

	text := formatDigest(questions)

	for _, adminID := range d.adminIDs {
		conversationID := strconv.FormatInt(adminID, 10)

		if err := d.sender.Send(ctx, conversationID, text); err != nil {
			d.logger.WithFields(logging.Fields{
				"event":           "digest_send_error",
				"conversation_id": conversationID,
			}).WithError(err).Error("failed to deliver digest")
			continue
		}
	}

	d.logger.WithFields(logging.Fields{
		"event":     "digest_sent",
		"questions": len(questions),
	}).Info("daily digest delivered")
}

func formatDigest(questions []domain.Question) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Questions en attente (%d) :\n", len(questions))
	for i, q := range questions {
		fmt.Fprintf(&b, "#%d (%s) : %s\n", i+1, q.AskerID, q.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// buildDailySpec turns a HH:MM wall-clock time into a six-field cron spec.
func buildDailySpec(at string) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid digest time %q, expected HH:MM", at)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid digest hour in %q", at)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid digest minute in %q", at)
	}

	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
