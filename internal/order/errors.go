package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumns       = errors.New("필수 컬럼이 없습니다")
	ErrNoAuthorizedMessages = errors.New("관리자 메시지를 찾을 수 없습니다")
)

// SchemaError 입력 표에 필수 컬럼이 빠져 있음
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrMissingColumns
}
