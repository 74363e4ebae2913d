package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"cv_builder_bot/internal/domain"
)

func TestHandleStart(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/start", "1", "c1")
	if reply != deps.replies.Start {
		t.Fatalf("expected start reply, got %q", reply)
	}
	deps.assertNoMutations(t)
}

func TestHandleUnrecognized(t *testing.T) {
	d, deps := newTestDispatcher(t)

	for _, text := range []string{"/foo", "bonjour", ""} {
		if reply := d.Handle(context.Background(), text, "1", "c1"); reply != deps.replies.Unrecognized {
			t.Fatalf("expected unrecognized reply for %q, got %q", text, reply)
		}
	}
	deps.assertNoMutations(t)
}

func TestHandleQuestionCreatesRecord(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/question Comment modifier mon CV ?", "42", "c1")
	if reply != deps.replies.QuestionAck {
		t.Fatalf("expected ack reply, got %q", reply)
	}

	if len(deps.questions.inserted) != 1 {
		t.Fatalf("expected one question, got %d", len(deps.questions.inserted))
	}
	question := deps.questions.inserted[0]
	if question.AskerID != "42" || question.Text != "Comment modifier mon CV ?" || question.Answered {
		t.Fatalf("unexpected question record: %+v", question)
	}
}

func TestHandleQuestionRejectsEmptyText(t *testing.T) {
	d, deps := newTestDispatcher(t)

	for _, text := range []string{"/question", "/question    "} {
		if reply := d.Handle(context.Background(), text, "42", "c1"); reply != deps.replies.QuestionEmpty {
			t.Fatalf("expected empty-question reply for %q, got %q", text, reply)
		}
	}
	if len(deps.questions.inserted) != 0 {
		t.Fatalf("expected no question records, got %d", len(deps.questions.inserted))
	}
}

func TestHandleListQuestionsAdminOnly(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.questions.unanswered = []domain.Question{{AskerID: "7", Text: "une question"}}

	reply := d.Handle(context.Background(), "/liste_questions", "999", "c1")
	if reply != deps.replies.Unrecognized {
		t.Fatalf("expected non-admin to get the unrecognized reply, got %q", reply)
	}
	if deps.questions.findCalls != 0 {
		t.Fatalf("expected no store access for non-admin, got %d calls", deps.questions.findCalls)
	}
}

func TestHandleListQuestionsFormatsNewestFirst(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.questions.unanswered = []domain.Question{
		{AskerID: "7", Text: "la plus récente"},
		{AskerID: "8", Text: "une plus ancienne"},
	}

	reply := d.Handle(context.Background(), "/liste_questions", adminID, "c1")

	lines := strings.Split(reply, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), reply)
	}
	if lines[0] != "#1 (7) : la plus récente" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "#2 (8) : une plus ancienne" {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if deps.questions.lastLimit != 10 {
		t.Fatalf("expected limit 10, got %d", deps.questions.lastLimit)
	}
}

func TestHandleListQuestionsEmptyState(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/liste_questions", adminID, "c1")
	if reply != deps.replies.NoPendingQuestions {
		t.Fatalf("expected empty-state reply, got %q", reply)
	}
}

func TestHandleSendCVCreatesReservation(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/sendcv jean.dupont@mail.com, junior", "42", "c1")

	if !strings.Contains(reply, "Junior") || !strings.Contains(reply, "jean.dupont@mail.com") {
		t.Fatalf("expected success reply naming tier and email, got %q", reply)
	}
	if !strings.Contains(reply, deps.replies.PaymentInstructions) {
		t.Fatalf("expected payment instructions to follow, got %q", reply)
	}

	record, found := deps.users.byEmail["jean.dupont@mail.com"]
	if !found {
		t.Fatalf("expected reservation to be created")
	}
	if record.PaymentStatus != domain.StatusPending {
		t.Fatalf("expected status pending, got %s", record.PaymentStatus)
	}
	if record.CVModel != domain.TierJunior {
		t.Fatalf("expected tier junior, got %s", record.CVModel)
	}
}

func TestHandleSendCVValidationErrors(t *testing.T) {
	d, deps := newTestDispatcher(t)

	cases := []struct {
		text     string
		expected string
	}{
		{"/sendcv", deps.replies.SendCVUsage},
		{"/sendcv jean@mail.com", deps.replies.SendCVUsage},
		{"/sendcv a@b.fr, junior, extra", deps.replies.SendCVUsage},
		{"/sendcv not-an-email, junior", deps.replies.InvalidEmail},
		{"/sendcv jean@mail.com, bogus", deps.replies.InvalidTier},
	}

	for _, tc := range cases {
		if reply := d.Handle(context.Background(), tc.text, "42", "c1"); reply != tc.expected {
			t.Fatalf("for %q expected %q, got %q", tc.text, tc.expected, reply)
		}
	}
	deps.assertNoMutations(t)
}

func TestHandleSendCVRejectsSecondReservation(t *testing.T) {
	d, deps := newTestDispatcher(t)

	first := d.Handle(context.Background(), "/sendcv jean@mail.com, junior", "42", "c1")
	if !strings.Contains(first, "jean@mail.com") {
		t.Fatalf("expected first reservation to succeed, got %q", first)
	}

	second := d.Handle(context.Background(), "/sendcv jean@mail.com, senior", "42", "c1")
	if second != deps.replies.AlreadyReserved {
		t.Fatalf("expected already-reserved reply, got %q", second)
	}

	record := deps.users.byEmail["jean@mail.com"]
	if record.CVModel != domain.TierJunior {
		t.Fatalf("expected stored record to be unchanged, got tier %s", record.CVModel)
	}
}

func TestHandleSendCVTranslatesDuplicateRace(t *testing.T) {
	d, deps := newTestDispatcher(t)
	// Lookup misses but the insert collides, as under a concurrent duplicate.
	deps.users.insertErr = domain.ErrDuplicateEmail

	reply := d.Handle(context.Background(), "/sendcv jean@mail.com, junior", "42", "c1")
	if reply != deps.replies.AlreadyReserved {
		t.Fatalf("expected already-reserved reply on duplicate race, got %q", reply)
	}
}

func TestHandleSendCVConcurrentDuplicates(t *testing.T) {
	d, deps := newTestDispatcher(t)

	const callers = 8
	replies := make([]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = d.Handle(context.Background(), "/sendcv race@mail.com, senior", fmt.Sprintf("%d", i), "c1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, reply := range replies {
		switch {
		case strings.Contains(reply, "race@mail.com") && strings.Contains(reply, "Senior"):
			successes++
		case reply == deps.replies.AlreadyReserved:
		default:
			t.Fatalf("unexpected reply %q", reply)
		}
	}

	if successes != 1 {
		t.Fatalf("expected exactly one successful reservation, got %d", successes)
	}
	if len(deps.users.byEmail) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(deps.users.byEmail))
	}
}

func TestHandleSendCVTemplateMissing(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.catalog.missing[domain.TierSenior] = true

	reply := d.Handle(context.Background(), "/sendcv jean@mail.com, senior", "42", "c1")
	if reply != deps.replies.TemplateUnavailable {
		t.Fatalf("expected template-unavailable reply, got %q", reply)
	}
	deps.assertNoMutations(t)
}

func TestHandleSendCVShieldsStoreFailures(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.users.findErr = errors.New("mongo timeout: connection refused to host db-01")

	reply := d.Handle(context.Background(), "/sendcv jean@mail.com, junior", "42", "c1")
	if reply != deps.replies.InternalError {
		t.Fatalf("expected generic failure reply, got %q", reply)
	}
	if strings.Contains(reply, "db-01") {
		t.Fatalf("internal error detail leaked to caller: %q", reply)
	}

	if entry := deps.hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected store failure to be logged at error level")
	}
}

func TestHandleVerifyAdminGate(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.users.byEmail["jean@mail.com"] = domain.UserRecord{
		Email:         "jean@mail.com",
		CVModel:       domain.TierJunior,
		PaymentStatus: domain.StatusPending,
	}

	reply := d.Handle(context.Background(), "/verify jean@mail.com", "999", "c1")
	if reply != deps.replies.Unrecognized {
		t.Fatalf("expected non-admin to get the unrecognized reply, got %q", reply)
	}

	if deps.users.byEmail["jean@mail.com"].PaymentStatus != domain.StatusPending {
		t.Fatalf("expected record to be untouched by non-admin verify")
	}
}

func TestHandleVerifyCompletesAndIsIdempotent(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.users.byEmail["jean@mail.com"] = domain.UserRecord{
		Email:         "jean@mail.com",
		CVModel:       domain.TierJunior,
		PaymentStatus: domain.StatusPendingVerification,
	}

	first := d.Handle(context.Background(), "/verify jean@mail.com", adminID, "c1")
	if first != fmt.Sprintf(deps.replies.VerifyDone, "jean@mail.com") {
		t.Fatalf("expected confirmation reply, got %q", first)
	}
	if deps.users.byEmail["jean@mail.com"].PaymentStatus != domain.StatusCompleted {
		t.Fatalf("expected status completed")
	}

	second := d.Handle(context.Background(), "/verify jean@mail.com", adminID, "c1")
	if second != first {
		t.Fatalf("expected repeated verify to succeed identically, got %q", second)
	}
	if deps.users.byEmail["jean@mail.com"].PaymentStatus != domain.StatusCompleted {
		t.Fatalf("expected status to remain completed")
	}
}

func TestHandleVerifyUnknownEmail(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/verify ghost@mail.com", adminID, "c1")
	if reply != fmt.Sprintf(deps.replies.VerifyNotFound, "ghost@mail.com") {
		t.Fatalf("expected not-found reply, got %q", reply)
	}
}

func TestHandleVerifyUsage(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/verify", adminID, "c1")
	if reply != deps.replies.VerifyUsage {
		t.Fatalf("expected usage reply, got %q", reply)
	}
}

func TestHandleRecordsConversationTurns(t *testing.T) {
	d, deps := newTestDispatcher(t)

	reply := d.Handle(context.Background(), "/start", "42", "chat-7")

	if len(deps.log.turns) != 1 {
		t.Fatalf("expected one logged turn, got %d", len(deps.log.turns))
	}
	turn := deps.log.turns[0]
	if turn.ConversationID != "chat-7" || turn.Incoming != "/start" || turn.Outgoing != reply {
		t.Fatalf("unexpected logged turn: %+v", turn)
	}
}

func TestHandleToleratesConversationLogFailure(t *testing.T) {
	d, deps := newTestDispatcher(t)
	deps.log.err = errors.New("log unavailable")

	reply := d.Handle(context.Background(), "/start", "42", "chat-7")
	if reply != deps.replies.Start {
		t.Fatalf("expected normal reply despite log failure, got %q", reply)
	}
}

const adminID = "100500"

type testDeps struct {
	users     *fakeUserStore
	questions *fakeQuestionStore
	catalog   *fakeCatalog
	log       *fakeConversationLog
	replies   Replies
	hook      *logtest.Hook
}

func (deps *testDeps) assertNoMutations(t *testing.T) {
	t.Helper()
	if len(deps.users.byEmail) != 0 {
		t.Fatalf("expected no user records, got %d", len(deps.users.byEmail))
	}
	if len(deps.questions.inserted) != 0 {
		t.Fatalf("expected no question records, got %d", len(deps.questions.inserted))
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testDeps) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	deps := &testDeps{
		users:     &fakeUserStore{byEmail: make(map[string]domain.UserRecord)},
		questions: &fakeQuestionStore{},
		catalog:   &fakeCatalog{missing: make(map[domain.Tier]bool)},
		log:       &fakeConversationLog{},
		replies:   DefaultReplies(),
		hook:      hook,
	}

	d, err := New(deps.users, deps.questions, fakeAuthorizer{}, deps.catalog, logrus.NewEntry(logger),
		WithConversationLog(deps.log),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return d, deps
}

type fakeAuthorizer struct{}

func (fakeAuthorizer) IsAdmin(callerID string) bool {
	return callerID == adminID
}

type fakeUserStore struct {
	mu        sync.Mutex
	byEmail   map[string]domain.UserRecord
	findErr   error
	insertErr error
	updateErr error
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.UserRecord{}, f.findErr
	}

	record, found := f.byEmail[email]
	if !found {
		return domain.UserRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeUserStore) InsertIfAbsent(_ context.Context, record domain.UserRecord) (domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return domain.UserRecord{}, f.insertErr
	}

	if _, exists := f.byEmail[record.Email]; exists {
		return domain.UserRecord{}, domain.ErrDuplicateEmail
	}

	record.CreatedAt = time.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	f.byEmail[record.Email] = record

	return record, nil
}

func (f *fakeUserStore) UpdateStatus(_ context.Context, email string, status domain.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}

	record, found := f.byEmail[email]
	if !found {
		return domain.ErrNotFound
	}
	record.PaymentStatus = status
	f.byEmail[email] = record

	return nil
}

type fakeQuestionStore struct {
	mu         sync.Mutex
	inserted   []domain.Question
	unanswered []domain.Question
	insertErr  error
	findErr    error
	findCalls  int
	lastLimit  int
}

func (f *fakeQuestionStore) Insert(_ context.Context, question domain.Question) (domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return domain.Question{}, f.insertErr
	}

	question.CreatedAt = time.Now().UTC()
	f.inserted = append(f.inserted, question)

	return question, nil
}

func (f *fakeQuestionStore) FindUnanswered(_ context.Context, limit int) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findCalls++
	f.lastLimit = limit
	if f.findErr != nil {
		return nil, f.findErr
	}

	if len(f.unanswered) > limit {
		return f.unanswered[:limit], nil
	}
	return f.unanswered, nil
}

type fakeCatalog struct {
	missing map[domain.Tier]bool
}

func (f *fakeCatalog) Exists(tier domain.Tier) bool {
	return !f.missing[tier]
}

type fakeConversationLog struct {
	mu    sync.Mutex
	turns []domain.ConversationTurn
	err   error
}

func (f *fakeConversationLog) Append(_ context.Context, turn domain.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.turns = append(f.turns, turn)

	return nil
}
