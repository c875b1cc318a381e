package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

var ErrUnsupportedFormat = errors.New("지원하지 않는 파일 형식입니다")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Supported 처리 가능한 채팅 내보내기 파일인지
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// ReadTable 확장자에 따라 엑셀 또는 CSV 채팅 내보내기를 읽는다
func ReadTable(path string) (*order.Table, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(f)
	}
	return ReadXLSX(f)
}

// ReadXLSX 첫 번째 시트를 표로 읽는다
func ReadXLSX(r io.Reader) (*order.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("엑셀 파일 열기 실패: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("시트가 없습니다")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("시트 읽기 실패: %w", err)
	}
	return toTable(rows), nil
}

// ReadCSV UTF-8 CSV를 표로 읽는다 (BOM 허용)
func ReadCSV(r io.Reader) (*order.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV 읽기 실패: %w", err)
	}
	return toTable(rows), nil
}

// toTable 빈 행을 버리고 첫 행을 헤더로 삼는다. 모든 셀은 NFC로 정규화한다.
func toTable(rows [][]string) *order.Table {
	table := &order.Table{}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = norm.NFC.String(cell)
		}
		if table.Header == nil {
			table.Header = cells
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
