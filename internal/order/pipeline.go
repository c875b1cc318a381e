package order

import (
	"fmt"
	"strings"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
)

// Table 채팅 내보내기 표 (첫 행은 헤더)
type Table struct {
	Header []string
	Rows   [][]string
}

type Pipeline struct {
	rules          *Rules
	columns        config.Columns
	extractProduct func(message string) (ProductInfo, bool)
}

func NewPipeline(cfg *config.Pipeline) (*Pipeline, error) {
	rules, err := NewRules(cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{rules: rules, columns: cfg.Columns, extractProduct: rules.ExtractProduct}, nil
}

func (p *Pipeline) Rules() *Rules {
	return p.rules
}

// Records 표를 채팅 기록으로 바꾼다. 필수 컬럼이 없으면 *SchemaError.
func (p *Pipeline) Records(t *Table) ([]ChatRecord, error) {
	position := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		name = strings.TrimSpace(name)
		if _, ok := position[name]; !ok {
			position[name] = i
		}
	}

	var missing []string
	for _, name := range []string{p.columns.Message, p.columns.Sender} {
		if _, ok := position[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	timeCol, hasTime := position[p.columns.Time]
	if p.columns.Time == "" {
		hasTime = false
	}
	cell := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	records := make([]ChatRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := ChatRecord{
			Sender:  cell(row, position[p.columns.Sender]),
			Message: cell(row, position[p.columns.Message]),
		}
		if hasTime {
			rec.Timestamp = cell(row, timeCol)
		}
		records = append(records, rec)
	}
	return records, nil
}

// RunTable 표 전체를 처리한다
func (p *Pipeline) RunTable(t *Table, manualIDs []string) (*Result, error) {
	records, err := p.Records(t)
	if err != nil {
		return nil, err
	}
	return p.Run(records, manualIDs)
}

// Run 채팅 기록에서 주문 장부와 구매자별 합계를 만든다.
// 주문이 하나도 없으면 에러 없이 StatusNoOrders 결과를 돌려준다.
func (p *Pipeline) Run(records []ChatRecord, manualIDs []string) (*Result, error) {
	filtered := make([]ChatRecord, 0, len(records))
	for _, rec := range records {
		if p.rules.Authorized(rec.Sender) {
			filtered = append(filtered, rec)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoAuthorizedMessages
	}

	sortByTimestamp(filtered)

	buyers := p.rules.DiscoverBuyers(filtered, manualIDs)
	logger.Infof("[Pipeline] 유효한 구매자 %d명: %v", buyers.Len(), buyers.Names())

	result := &Result{Buyers: buyers}
	for _, rec := range filtered {
		msg := strings.TrimSpace(rec.Message)
		if msg == "" {
			continue
		}
		result.Messages = append(result.Messages, msg)

		entries, err := p.processMessage(msg, buyers)
		if err != nil {
			logger.Errorf("[Pipeline] 메시지 처리 실패, 건너뜀: %v, 메시지: %s", err, msg)
			continue
		}
		result.Entries = append(result.Entries, entries...)
	}

	if len(result.Entries) == 0 {
		result.Status = StatusNoOrders
		return result, nil
	}

	SortEntries(result.Entries)
	result.Summaries = Summarize(result.Entries)
	return result, nil
}

// processMessage 한 메시지의 주문을 만든다. 상품 줄이 아니면 빈 결과.
func (p *Pipeline) processMessage(msg string, buyers *BuyerSet) (entries []OrderEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("예상치 못한 오류: %v", r)
		}
	}()

	logger.Debugf("[Pipeline] 처리 중인 메시지: %s", msg)

	if !strings.Contains(msg, p.rules.delimiter) {
		return nil, nil
	}
	product, ok := p.extractProduct(msg)
	if !ok {
		return nil, nil
	}

	for _, o := range p.rules.TokenizeOrders(msg, buyers) {
		entries = append(entries, OrderEntry{
			Buyer:         o.Buyer,
			ProductNumber: product.Number,
			ProductName:   product.Name,
			Price:         product.Price,
			Quantity:      o.Quantity,
		})
		logger.Debugf("[Pipeline] 주문 처리: %s - %s %d개", o.Buyer, product.Name, o.Quantity)
	}
	return entries, nil
}
