package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/model"
	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/fachebot/live-order-bot/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeCall struct {
	chatID     int64
	start, end time.Time
}

// mockProcessor 테스트용 orderProcessor
type mockProcessor struct {
	mu         sync.Mutex
	fileCalls  []string
	rangeCalls []rangeCall
	fileErrs   []error // 호출 순서대로 돌려줄 오류
	rangeOut   *processor.Outcome
}

func (m *mockProcessor) ProcessFile(ctx context.Context, path string, extraIDs []string) (*processor.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileCalls = append(m.fileCalls, path)
	if len(m.fileErrs) > 0 {
		err := m.fileErrs[0]
		m.fileErrs = m.fileErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return sampleOutcome(path), nil
}

func (m *mockProcessor) ProcessRange(ctx context.Context, chatID int64, startTime, endTime time.Time) (*processor.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeCalls = append(m.rangeCalls, rangeCall{chatID: chatID, start: startTime, end: endTime})
	return m.rangeOut, nil
}

// mockNotifier 테스트용 digestNotifier
type mockNotifier struct {
	contents []string
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, content string) error {
	m.contents = append(m.contents, content)
	return m.err
}

func sampleOutcome(source string) *processor.Outcome {
	return &processor.Outcome{
		Source: source,
		Result: &order.Result{
			Entries:   []order.OrderEntry{{Buyer: "철수", ProductNumber: 1, ProductName: "사과", Price: 5000, Quantity: 2}},
			Summaries: []order.BuyerSummary{{Buyer: "철수", TotalQuantity: 2, TotalAmount: 10000}},
		},
		OutputPath: "output/x_주문내역.xlsx",
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, model.Migrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestScheduler(t *testing.T, proc *mockProcessor, notifier *mockNotifier) *Scheduler {
	t.Helper()
	db := newTestDB(t)
	watch := config.Default().Watch
	watch.InboxDir = t.TempDir()
	watch.RetryInterval = 0

	s := &Scheduler{
		processor:    proc,
		runModel:     model.NewRunModel(db),
		messageModel: model.NewMessageModel(db),
		config:       &watch,
		now:          time.Now,
	}
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}

func TestRunOnce_InboxFiles(t *testing.T) {
	proc := &mockProcessor{}
	notifier := &mockNotifier{}
	s := newTestScheduler(t, proc, notifier)
	ctx := context.Background()

	inbox := s.config.InboxDir
	a := writeFile(t, inbox, "a.csv")
	b := writeFile(t, inbox, "b.xlsx")
	writeFile(t, inbox, "notes.txt")
	writeFile(t, inbox, "~$b.xlsx")
	require.NoError(t, os.Mkdir(filepath.Join(inbox, "sub.csv"), 0755))

	s.RunOnce(ctx)
	s.RunOnce(ctx)

	assert.Equal(t, []string{a, b}, proc.fileCalls)
	assert.Len(t, notifier.contents, 2)
	assert.Contains(t, notifier.contents[0], "a.csv")

	info, err := os.Stat(a)
	require.NoError(t, err)
	run, err := s.runModel.GetBySource(ctx, FileSource(a, info.ModTime()))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.EntryCount)
	assert.Equal(t, 10000, run.TotalAmount)
	assert.Equal(t, "output/x_주문내역.xlsx", run.OutputPath)
}

func TestRunOnce_ModifiedFileProcessedAgain(t *testing.T) {
	proc := &mockProcessor{}
	s := newTestScheduler(t, proc, nil)
	ctx := context.Background()

	a := writeFile(t, s.config.InboxDir, "a.csv")
	s.RunOnce(ctx)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, later, later))
	s.RunOnce(ctx)

	assert.Equal(t, []string{a, a}, proc.fileCalls)
}

func TestRunOnce_TransientErrorRetried(t *testing.T) {
	proc := &mockProcessor{fileErrs: []error{errors.New("disk busy"), errors.New("disk busy")}}
	s := newTestScheduler(t, proc, nil)
	ctx := context.Background()

	a := writeFile(t, s.config.InboxDir, "a.csv")
	s.RunOnce(ctx)

	assert.Len(t, proc.fileCalls, 3)
	info, err := os.Stat(a)
	require.NoError(t, err)
	run, err := s.runModel.GetBySource(ctx, FileSource(a, info.ModTime()))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Attempts)
}

func TestRunOnce_PermanentErrorNotRetried(t *testing.T) {
	proc := &mockProcessor{fileErrs: []error{&order.SchemaError{Missing: []string{"사용자"}}}}
	s := newTestScheduler(t, proc, nil)
	ctx := context.Background()

	a := writeFile(t, s.config.InboxDir, "a.csv")
	s.RunOnce(ctx)
	s.RunOnce(ctx)

	assert.Len(t, proc.fileCalls, 1)
	info, err := os.Stat(a)
	require.NoError(t, err)
	run, err := s.runModel.GetBySource(ctx, FileSource(a, info.ModTime()))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "사용자")
}

func TestRunOnce_CapturedChats(t *testing.T) {
	proc := &mockProcessor{}
	s := newTestScheduler(t, proc, nil)
	ctx := context.Background()

	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.captureEnabled = true
	s.captureChatIDs = []int64{100, 300}

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	msgs := []*model.MessageData{
		{MessageID: 1, ChatID: 100, SenderName: "다잇쏘", Text: "1 사과 5000원 / 철수", SentAt: day.Add(12 * time.Hour)},
		{MessageID: 1, ChatID: 200, SenderName: "다잇쏘", Text: "1 배 3000원 / 영희", SentAt: day.Add(13 * time.Hour)},
		{MessageID: 2, ChatID: 300, SenderName: "다잇쏘", Text: "오늘 방송", SentAt: now.Add(-time.Hour)},
	}
	for _, m := range msgs {
		require.NoError(t, s.messageModel.Create(ctx, m))
	}

	s.RunOnce(ctx)
	s.RunOnce(ctx)

	require.Len(t, proc.rangeCalls, 1)
	assert.Equal(t, rangeCall{chatID: 100, start: day, end: day.AddDate(0, 0, 1)}, proc.rangeCalls[0])

	run, err := s.runModel.GetBySource(ctx, "telegram:100:2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
}

func TestRunOnce_CaptureDisabled(t *testing.T) {
	proc := &mockProcessor{}
	s := newTestScheduler(t, proc, nil)
	ctx := context.Background()

	require.NoError(t, s.messageModel.Create(ctx, &model.MessageData{
		MessageID: 1, ChatID: 100, SenderName: "다잇쏘", Text: "x", SentAt: time.Now().AddDate(0, 0, -1),
	}))
	s.RunOnce(ctx)
	assert.Empty(t, proc.rangeCalls)
}

func TestRecover(t *testing.T) {
	proc := &mockProcessor{}
	notifier := &mockNotifier{}
	s := newTestScheduler(t, proc, notifier)
	s.config.RangeDays = 2
	ctx := context.Background()

	a := writeFile(t, s.config.InboxDir, "a.csv")
	info, err := os.Stat(a)
	require.NoError(t, err)

	sources := []string{
		FileSource(a, info.ModTime()),
		FileSource(a, info.ModTime().Add(-time.Hour)),
		"file:/nope/missing.csv@1",
		"telegram:-100123:2024-05-01",
		"unknown:1",
	}
	for _, src := range sources {
		_, err := s.runModel.GetOrCreate(ctx, src)
		require.NoError(t, err)
	}

	s.recover(ctx)

	assert.Equal(t, []string{a}, proc.fileCalls)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []rangeCall{{chatID: -100123, start: start, end: start.AddDate(0, 0, 2)}}, proc.rangeCalls)

	wantStatus := []model.RunStatus{
		model.RunStatusCompleted,
		model.RunStatusFailed,
		model.RunStatusFailed,
		model.RunStatusCompleted,
		model.RunStatusFailed,
	}
	for i, src := range sources {
		run, err := s.runModel.GetBySource(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, wantStatus[i], run.Status, src)
	}

	incomplete, err := s.runModel.GetIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestSendDigest_NotifyFailureKeepsRun(t *testing.T) {
	proc := &mockProcessor{}
	notifier := &mockNotifier{err: errors.New("telegram down")}
	s := newTestScheduler(t, proc, notifier)
	ctx := context.Background()

	a := writeFile(t, s.config.InboxDir, "a.csv")
	s.RunOnce(ctx)

	assert.Len(t, notifier.contents, 2)
	info, err := os.Stat(a)
	require.NoError(t, err)
	run, err := s.runModel.GetBySource(ctx, FileSource(a, info.ModTime()))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
}

func TestCleanup(t *testing.T) {
	s := newTestScheduler(t, &mockProcessor{}, nil)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.config.RetentionDays = 30

	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -3)
	require.NoError(t, s.messageModel.Create(ctx, &model.MessageData{MessageID: 1, ChatID: 1, SenderName: "a", Text: "old", SentAt: old}))
	require.NoError(t, s.messageModel.Create(ctx, &model.MessageData{MessageID: 2, ChatID: 1, SenderName: "a", Text: "recent", SentAt: recent}))

	s.cleanup(ctx)

	msgs, err := s.messageModel.GetByDateRangeAndChat(ctx, 1, old.AddDate(0, 0, -1), now)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "recent", msgs[0].Text)
}

func TestSourceKeys(t *testing.T) {
	mtime := time.Unix(1714550400, 0)
	src := FileSource("inbox/방송@1.csv", mtime)
	path, modTime, err := ParseFileSource(src)
	require.NoError(t, err)
	assert.Equal(t, "inbox/방송@1.csv", path)
	assert.Equal(t, mtime.Unix(), modTime)

	_, _, err = ParseFileSource("file:inbox/a.csv")
	assert.Error(t, err)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	chatID, got, err := ParseRangeSource(processor.RangeSource(-1001234567890, start))
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), chatID)
	assert.True(t, got.Equal(start))

	for _, bad := range []string{"telegram:abc:2024-05-01", "telegram:1", fmt.Sprintf("telegram:%d:어제", 1)} {
		_, _, err := ParseRangeSource(bad)
		assert.Error(t, err, bad)
	}
}
