package sheet

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/xuri/excelize/v2"
)

const (
	DetailSheet  = "주문상세"
	SummarySheet = "구매자별합계"
)

var (
	detailHeader  = []string{"구매자", "상품번호", "상품명", "판매가", "수량"}
	summaryHeader = []string{"구매자", "총주문수량", "총구매금액"}
)

// OutputPath 입력 파일 이름에 접미사를 붙인 결과 파일 경로 (예: 방송_주문내역.xlsx)
func OutputPath(input, dir, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+suffix+".xlsx")
}

// NewWorkbook 주문 장부와 구매자별 합계 시트를 가진 통합 문서
func NewWorkbook(result *order.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, DetailSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	detail := make([][]interface{}, 0, len(result.Entries))
	for _, e := range result.Entries {
		detail = append(detail, []interface{}{e.Buyer, e.ProductNumber, e.ProductName, e.Price, e.Quantity})
	}
	if err := writeRows(f, DetailSheet, detailHeader, detail); err != nil {
		_ = f.Close()
		return nil, err
	}

	summary := make([][]interface{}, 0, len(result.Summaries))
	for _, s := range result.Summaries {
		summary = append(summary, []interface{}{s.Buyer, s.TotalQuantity, s.TotalAmount})
	}
	if err := writeRows(f, SummarySheet, summaryHeader, summary); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook 결과 통합 문서를 w 에 쓴다
func WriteWorkbook(w io.Writer, result *order.Result) error {
	f, err := NewWorkbook(result)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("엑셀 파일 쓰기 실패: %w", err)
	}
	return nil
}

// SaveWorkbook 결과 통합 문서를 파일로 저장한다
func SaveWorkbook(path string, result *order.Result) error {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, result); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
