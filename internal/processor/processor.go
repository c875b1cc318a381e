package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/fachebot/live-order-bot/internal/model"
	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/fachebot/live-order-bot/internal/sheet"
)

// messageProvider 구간 내 캡처된 메시지 (테스트에서 mock 주입)
type messageProvider interface {
	GetByDateRangeAndChat(ctx context.Context, chatID int64, startTime, endTime time.Time) ([]*model.Message, error)
}

// buyerIDProvider 저장된 수동 구매자 ID (테스트에서 mock 주입)
type buyerIDProvider interface {
	List(ctx context.Context) ([]string, error)
}

// Outcome 입력 하나의 처리 결과
type Outcome struct {
	Source     string
	Result     *order.Result
	OutputPath string // 주문이 없으면 비어 있음
}

type Processor struct {
	pipeline     *order.Pipeline
	messageModel messageProvider
	buyerIDModel buyerIDProvider
	output       config.Output
	readTable    func(path string) (*order.Table, error)
	saveWorkbook func(path string, result *order.Result) error
}

func NewProcessor(pipeline *order.Pipeline, messageModel *model.MessageModel, buyerIDModel *model.BuyerIDModel, output config.Output) *Processor {
	p := &Processor{
		pipeline:     pipeline,
		output:       output,
		readTable:    sheet.ReadTable,
		saveWorkbook: sheet.SaveWorkbook,
	}
	if messageModel != nil {
		p.messageModel = messageModel
	}
	if buyerIDModel != nil {
		p.buyerIDModel = buyerIDModel
	}
	return p
}

// ManualIDs 저장된 구매자 ID와 이번 실행에 추가로 받은 ID를 합친다
func (p *Processor) ManualIDs(ctx context.Context, extra []string) ([]string, error) {
	ids := make([]string, 0, len(extra))
	if p.buyerIDModel != nil {
		stored, err := p.buyerIDModel.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("구매자 ID 조회 실패: %w", err)
		}
		ids = append(ids, stored...)
	}
	return append(ids, extra...), nil
}

// ProcessFile 채팅 내보내기 파일 하나를 처리하고 주문이 있으면 결과 파일을 쓴다
func (p *Processor) ProcessFile(ctx context.Context, path string, extraIDs []string) (*Outcome, error) {
	logger.Infof("[Processor] 파일 처리 시작: %s", path)

	manual, err := p.ManualIDs(ctx, extraIDs)
	if err != nil {
		return nil, err
	}

	table, err := p.readTable(path)
	if err != nil {
		return nil, fmt.Errorf("파일 읽기 실패: %w", err)
	}

	result, err := p.pipeline.RunTable(table, manual)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Source: path, Result: result}
	if !result.HasOrders() {
		logger.Warnf("[Processor] 추출된 주문이 없습니다: %s", path)
		return outcome, nil
	}

	outcome.OutputPath = sheet.OutputPath(path, p.output.Dir, p.output.FileSuffix)
	if err := p.saveWorkbook(outcome.OutputPath, result); err != nil {
		return nil, fmt.Errorf("결과 파일 저장 실패: %w", err)
	}
	logger.Infof("[Processor] 주문 %d건, 구매자 %d명 → %s", len(result.Entries), len(result.Summaries), outcome.OutputPath)
	return outcome, nil
}

// ProcessRange 텔레그램에서 캡처한 채팅 구간을 처리한다. 메시지가 없으면 nil.
func (p *Processor) ProcessRange(ctx context.Context, chatID int64, startTime, endTime time.Time) (*Outcome, error) {
	source := RangeSource(chatID, startTime)
	logger.Infof("[Processor] 채팅 %d 처리 시작: %s ~ %s", chatID, startTime.Format(time.DateTime), endTime.Format(time.DateTime))

	if p.messageModel == nil {
		return nil, fmt.Errorf("메시지 저장소가 설정되지 않았습니다")
	}
	messages, err := p.messageModel.GetByDateRangeAndChat(ctx, chatID, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("메시지 조회 실패: %w", err)
	}
	if len(messages) == 0 {
		logger.Infof("[Processor] 구간 내 메시지 없음, 건너뜀")
		return nil, nil
	}

	records := make([]order.ChatRecord, len(messages))
	for i, msg := range messages {
		records[i] = order.ChatRecord{
			Sender:    msg.SenderName,
			Message:   msg.Text,
			Timestamp: msg.SentAt.UTC().Format(time.RFC3339),
		}
	}

	manual, err := p.ManualIDs(ctx, nil)
	if err != nil {
		return nil, err
	}

	result, err := p.pipeline.Run(records, manual)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Source: source, Result: result}
	if !result.HasOrders() {
		logger.Warnf("[Processor] 추출된 주문이 없습니다: %s", source)
		return outcome, nil
	}

	name := fmt.Sprintf("telegram_%d_%s", chatID, startTime.UTC().Format("20060102"))
	outcome.OutputPath = filepath.Join(p.output.Dir, name+p.output.FileSuffix+".xlsx")
	if err := p.saveWorkbook(outcome.OutputPath, result); err != nil {
		return nil, fmt.Errorf("결과 파일 저장 실패: %w", err)
	}
	logger.Infof("[Processor] 주문 %d건, 구매자 %d명 → %s", len(result.Entries), len(result.Summaries), outcome.OutputPath)
	return outcome, nil
}

// RangeSource 캡처 구간의 처리 기록 키
func RangeSource(chatID int64, startTime time.Time) string {
	return fmt.Sprintf("telegram:%d:%s", chatID, startTime.UTC().Format("2006-01-02"))
}

// ParseBuyerIDs 쉼표로 구분된 구매자 ID 목록 (공백 제거, 빈 값 무시)
func ParseBuyerIDs(text string) []string {
	ids := make([]string, 0)
	for _, id := range strings.Split(text, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
