package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/fachebot/live-order-bot/internal/model"
	"github.com/fachebot/live-order-bot/internal/notify"
	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/fachebot/live-order-bot/internal/processor"
	"github.com/fachebot/live-order-bot/internal/sheet"
	"github.com/robfig/cron/v3"
)

const (
	fileSourcePrefix     = "file:"
	telegramSourcePrefix = "telegram:"
)

var errCanceled = errors.New("작업이 취소되었습니다")

// locUTC 캡처 구간 기준 시간대
var locUTC = time.UTC

type orderProcessor interface {
	ProcessFile(ctx context.Context, path string, extraIDs []string) (*processor.Outcome, error)
	ProcessRange(ctx context.Context, chatID int64, startTime, endTime time.Time) (*processor.Outcome, error)
}

type digestNotifier interface {
	Notify(ctx context.Context, content string) error
}

type Scheduler struct {
	cron           *cron.Cron
	processor      orderProcessor
	notifier       digestNotifier
	runModel       *model.RunModel
	messageModel   *model.MessageModel
	config         *config.Watch
	captureChatIDs []int64
	captureEnabled bool
	now            func() time.Time
	ctx            context.Context
	cancel         context.CancelFunc
	mu             sync.Mutex
	runMu          sync.Mutex // recover 와 RunOnce 직렬화
}

func NewScheduler(
	proc *processor.Processor,
	notifier *notify.Notifier,
	runModel *model.RunModel,
	messageModel *model.MessageModel,
	c *config.Config,
) *Scheduler {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(locUTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		processor:      proc,
		runModel:       runModel,
		messageModel:   messageModel,
		config:         &c.Watch,
		captureChatIDs: c.TelegramApp.CaptureChatIds,
		captureEnabled: c.TelegramApp.Enable,
		now:            time.Now,
	}
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// Start 스케줄러 시작. 시작 시 완료되지 않은 처리를 복구한다.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.config.Cron, s.tick)
	if err != nil {
		return fmt.Errorf("감시 작업 등록 실패: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 스케줄러 시작, 감시 주기: %s, 폴더: %s", s.config.Cron, s.config.InboxDir)

	go s.recover(s.context())

	return nil
}

// Stop 스케줄러 종료
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 스케줄러 종료")
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// tick cron 에서 호출
func (s *Scheduler) tick() {
	ctx := s.context()
	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 작업이 취소되어 종료")
		return
	default:
	}
	s.RunOnce(ctx)
}

// RunOnce 감시 폴더와 캡처된 채팅을 한 번 처리하고 오래된 기록을 정리한다
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.scanInbox(ctx)
	if ctx.Err() != nil {
		return
	}
	s.processCaptured(ctx)
	if ctx.Err() != nil {
		return
	}
	s.cleanup(ctx)
}

// scanInbox 감시 폴더의 채팅 내보내기 파일을 처리한다. (경로, 수정 시각)마다 한 번.
func (s *Scheduler) scanInbox(ctx context.Context) {
	if s.config.InboxDir == "" {
		return
	}
	entries, err := os.ReadDir(s.config.InboxDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Errorf("[Scheduler] 감시 폴더 읽기 실패: %v", err)
		}
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !sheet.Supported(entry.Name()) || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warnf("[Scheduler] 파일 정보 조회 실패: %s, %v", entry.Name(), err)
			continue
		}

		path := filepath.Join(s.config.InboxDir, entry.Name())
		source := FileSource(path, info.ModTime())
		s.runSource(ctx, source, func(ctx context.Context) (*processor.Outcome, error) {
			return s.processor.ProcessFile(ctx, path, nil)
		})
	}
}

// processCaptured 지난 RangeDays 동안 캡처된 채팅을 채팅별로 처리한다
func (s *Scheduler) processCaptured(ctx context.Context) {
	if !s.captureEnabled || s.messageModel == nil {
		return
	}
	startTime, endTime := s.captureWindow()

	chatIDs, err := s.messageModel.GetChatIDsByDateRange(ctx, startTime, endTime)
	if err != nil {
		logger.Errorf("[Scheduler] 채팅 목록 조회 실패: %v", err)
		return
	}

	wanted := make(map[int64]struct{}, len(s.captureChatIDs))
	for _, id := range s.captureChatIDs {
		wanted[id] = struct{}{}
	}
	for _, chatID := range chatIDs {
		if ctx.Err() != nil {
			return
		}
		if _, ok := wanted[chatID]; len(wanted) > 0 && !ok {
			continue
		}
		chatID := chatID
		source := processor.RangeSource(chatID, startTime)
		s.runSource(ctx, source, func(ctx context.Context) (*processor.Outcome, error) {
			return s.processor.ProcessRange(ctx, chatID, startTime, endTime)
		})
	}
}

// captureWindow 오늘 0시(UTC) 기준 지난 RangeDays 일
func (s *Scheduler) captureWindow() (time.Time, time.Time) {
	rangeDays := s.config.RangeDays
	if rangeDays <= 0 {
		rangeDays = 1
	}
	now := s.now().In(locUTC)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, locUTC)
	return todayStart.AddDate(0, 0, -rangeDays), todayStart
}

// runSource 처리 기록을 만들고 아직 처리하지 않은 입력이면 실행한다
func (s *Scheduler) runSource(ctx context.Context, source string, fn func(ctx context.Context) (*processor.Outcome, error)) {
	run, err := s.runModel.GetOrCreate(ctx, source)
	if err != nil {
		logger.Errorf("[Scheduler] 처리 기록 생성 실패: %s, %v", source, err)
		return
	}
	switch run.Status {
	case model.RunStatusCompleted, model.RunStatusFailed:
		return
	}
	s.executeRun(ctx, run, fn)
}

// executeRun 재시도하며 처리하고 결과를 기록한다. 입력 자체의 문제는 재시도하지 않는다.
func (s *Scheduler) executeRun(ctx context.Context, run *model.Run, fn func(ctx context.Context) (*processor.Outcome, error)) {
	logger.Infof("[Scheduler] 처리 시작: %s", run.Source)
	if err := s.runModel.MarkInProgress(ctx, run.ID); err != nil {
		logger.Errorf("[Scheduler] 처리 상태 갱신 실패: %s, %v", run.Source, err)
		return
	}

	retryTimes := s.config.RetryTimes
	if retryTimes <= 0 {
		retryTimes = 1
	}
	retryInterval := time.Duration(s.config.RetryInterval) * time.Second

	var (
		outcome *processor.Outcome
		err     error
	)
	for attempt := 1; attempt <= retryTimes; attempt++ {
		outcome, err = fn(ctx)
		if err == nil || permanent(err) {
			break
		}
		logger.Warnf("[Scheduler] 처리 실패 (%d/%d회): %s, %v", attempt, retryTimes, run.Source, err)
		if attempt < retryTimes {
			if waitErr := wait(ctx, retryInterval); waitErr != nil {
				err = waitErr
				break
			}
		}
	}

	if err != nil {
		if errors.Is(err, errCanceled) || ctx.Err() != nil {
			// 재시작 시 복구
			logger.Infof("[Scheduler] 처리 중단: %s", run.Source)
			return
		}
		logger.Errorf("[Scheduler] 처리 실패: %s, %v", run.Source, err)
		if markErr := s.runModel.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
			logger.Errorf("[Scheduler] 처리 상태 갱신 실패: %s, %v", run.Source, markErr)
		}
		return
	}

	stats := model.RunStats{}
	if outcome != nil && outcome.Result != nil {
		stats.EntryCount = len(outcome.Result.Entries)
		stats.BuyerCount = len(outcome.Result.Summaries)
		stats.TotalAmount = outcome.Result.TotalAmount()
		stats.OutputPath = outcome.OutputPath
	}
	if err := s.runModel.MarkCompleted(ctx, run.ID, stats); err != nil {
		logger.Errorf("[Scheduler] 처리 상태 갱신 실패: %s, %v", run.Source, err)
		return
	}
	logger.Infof("[Scheduler] 처리 완료: %s, 주문 %d건", run.Source, stats.EntryCount)

	s.sendDigest(ctx, outcome)
}

// sendDigest 주문 집계 알림. 실패해도 처리 결과에는 영향이 없다.
func (s *Scheduler) sendDigest(ctx context.Context, outcome *processor.Outcome) {
	if s.notifier == nil {
		return
	}
	digest := processor.FormatDigest(outcome)
	if digest == "" {
		return
	}

	notifyRetryTimes := 2
	retryInterval := time.Duration(s.config.RetryInterval) * time.Second
	for attempt := 1; attempt <= notifyRetryTimes; attempt++ {
		err := s.notifier.Notify(ctx, digest)
		if err == nil {
			return
		}
		logger.Warnf("[Scheduler] 알림 전송 실패 (%d/%d회): %v", attempt, notifyRetryTimes, err)
		if attempt < notifyRetryTimes {
			if wait(ctx, retryInterval/2) != nil {
				return
			}
		}
	}
	logger.Errorf("[Scheduler] 알림 전송 실패, %d회 재시도함", notifyRetryTimes)
}

// recover 완료되지 않은 처리 (pending 또는 in_progress) 를 다시 실행한다
func (s *Scheduler) recover(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runs, err := s.runModel.GetIncomplete(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] 미완료 처리 조회 실패: %v", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	logger.Infof("[Scheduler] 미완료 처리 %d건 복구 시작", len(runs))
	for _, run := range runs {
		if ctx.Err() != nil {
			logger.Infof("[Scheduler] 복구 취소")
			return
		}
		fn, err := s.sourceFunc(run.Source)
		if err != nil {
			logger.Warnf("[Scheduler] 복구할 수 없는 처리: %s, %v", run.Source, err)
			_ = s.runModel.MarkFailed(ctx, run.ID, err.Error())
			continue
		}
		s.executeRun(ctx, run, fn)
	}
	logger.Infof("[Scheduler] 미완료 처리 복구 완료")
}

// sourceFunc 처리 기록 키로 다시 실행할 작업을 만든다
func (s *Scheduler) sourceFunc(source string) (func(ctx context.Context) (*processor.Outcome, error), error) {
	switch {
	case strings.HasPrefix(source, fileSourcePrefix):
		path, modTime, err := ParseFileSource(source)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("입력 파일이 없습니다: %w", err)
		}
		if info.ModTime().Unix() != modTime {
			return nil, fmt.Errorf("입력 파일이 변경되었습니다: %s", path)
		}
		return func(ctx context.Context) (*processor.Outcome, error) {
			return s.processor.ProcessFile(ctx, path, nil)
		}, nil

	case strings.HasPrefix(source, telegramSourcePrefix):
		chatID, startTime, err := ParseRangeSource(source)
		if err != nil {
			return nil, err
		}
		rangeDays := s.config.RangeDays
		if rangeDays <= 0 {
			rangeDays = 1
		}
		endTime := startTime.AddDate(0, 0, rangeDays)
		return func(ctx context.Context) (*processor.Outcome, error) {
			return s.processor.ProcessRange(ctx, chatID, startTime, endTime)
		}, nil
	}
	return nil, fmt.Errorf("알 수 없는 처리 키: %s", source)
}

// cleanup 보관 기간이 지난 처리 기록과 캡처 메시지를 삭제한다
func (s *Scheduler) cleanup(ctx context.Context) {
	if s.config.RetentionDays <= 0 {
		return
	}
	cutoff := s.now().In(locUTC).AddDate(0, 0, -s.config.RetentionDays)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, locUTC)

	if deleted, err := s.runModel.DeleteBefore(ctx, cutoff); err != nil {
		logger.Errorf("[Scheduler] 처리 기록 정리 실패: %v", err)
	} else if deleted > 0 {
		logger.Infof("[Scheduler] 처리 기록 %d건 정리", deleted)
	}

	if s.messageModel == nil {
		return
	}
	if deleted, err := s.messageModel.DeleteBefore(ctx, cutoff); err != nil {
		logger.Errorf("[Scheduler] 메시지 정리 실패: %v", err)
	} else if deleted > 0 {
		logger.Infof("[Scheduler] 메시지 %d건 정리", deleted)
	}
}

// FileSource 파일 입력의 처리 기록 키
func FileSource(path string, modTime time.Time) string {
	return fmt.Sprintf("%s%s@%d", fileSourcePrefix, path, modTime.Unix())
}

// ParseFileSource FileSource 의 역
func ParseFileSource(source string) (string, int64, error) {
	rest := strings.TrimPrefix(source, fileSourcePrefix)
	idx := strings.LastIndex(rest, "@")
	if idx < 0 {
		return "", 0, fmt.Errorf("잘못된 파일 처리 키: %s", source)
	}
	modTime, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("잘못된 파일 처리 키: %s", source)
	}
	return rest[:idx], modTime, nil
}

// ParseRangeSource processor.RangeSource 의 역
func ParseRangeSource(source string) (int64, time.Time, error) {
	parts := strings.Split(strings.TrimPrefix(source, telegramSourcePrefix), ":")
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("잘못된 채팅 처리 키: %s", source)
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("잘못된 채팅 처리 키: %s", source)
	}
	startTime, err := time.ParseInLocation("2006-01-02", parts[1], locUTC)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("잘못된 채팅 처리 키: %s", source)
	}
	return chatID, startTime, nil
}

// permanent 다시 시도해도 같은 결과가 나오는 입력 오류
func permanent(err error) bool {
	return errors.Is(err, order.ErrMissingColumns) ||
		errors.Is(err, order.ErrNoAuthorizedMessages) ||
		errors.Is(err, sheet.ErrUnsupportedFormat)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return errCanceled
	case <-time.After(d):
		return nil
	}
}
