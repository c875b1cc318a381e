package order

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fachebot/live-order-bot/internal/config"
)

const (
	// 한글/영문 이름 + 느낌표/물결 허용
	buyerNameClass = `[가-힣a-zA-Z!~]`
	// 상품명에 섞여 들어간 구매자 태그 (한글/영문 + 숫자)
	buyerTagPattern = `[가-힣a-zA-Z]+[0-9]+(\s|$)`
)

var (
	productLineRe = regexp.MustCompile(`^([0-9]+)[\s.]*(.+)`)
	buyerTagRe    = regexp.MustCompile(buyerTagPattern)
	buyerNameRe   = regexp.MustCompile(`^` + buyerNameClass + `+`)
	orderTokenRe  = regexp.MustCompile(`^(` + buyerNameClass + `+)([0-9]*)`)
	leadingDigits = regexp.MustCompile(`^[0-9]+`)
)

// Rules 판매 방송마다 달라질 수 있는 파싱 규칙
type Rules struct {
	delimiter  string
	authorized map[string]struct{}
	priceRe    *regexp.Regexp
	trailingRe *regexp.Regexp
	phrases    []*regexp.Regexp
}

// NewRules 설정으로부터 파싱 규칙을 만든다
func NewRules(cfg *config.Pipeline) (*Rules, error) {
	if cfg.Delimiter == "" {
		return nil, fmt.Errorf("구분자가 비어 있습니다")
	}
	if cfg.CurrencySuffix == "" {
		return nil, fmt.Errorf("통화 단위가 비어 있습니다")
	}
	if cfg.PriceMinDigits < 1 || cfg.PriceMaxDigits < cfg.PriceMinDigits {
		return nil, fmt.Errorf("가격 자릿수 범위가 잘못되었습니다: %d~%d", cfg.PriceMinDigits, cfg.PriceMaxDigits)
	}

	currency := regexp.QuoteMeta(cfg.CurrencySuffix)
	rules := &Rules{
		delimiter:  cfg.Delimiter,
		authorized: make(map[string]struct{}, len(cfg.AuthorizedSenders)),
		priceRe:    regexp.MustCompile(fmt.Sprintf(`([0-9]{%d,%d})%s`, cfg.PriceMinDigits, cfg.PriceMaxDigits, currency)),
		trailingRe: regexp.MustCompile(`\s*[0-9]+` + currency + `\s*$`),
	}
	for _, sender := range cfg.AuthorizedSenders {
		rules.authorized[strings.TrimSpace(sender)] = struct{}{}
	}
	for _, phrase := range cfg.BoilerplatePhrases {
		if phrase == "" {
			continue
		}
		rules.phrases = append(rules.phrases, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)))
	}
	return rules, nil
}

// Authorized 발신자가 관리자 목록에 있는지
func (r *Rules) Authorized(sender string) bool {
	_, ok := r.authorized[strings.TrimSpace(sender)]
	return ok
}

// orderSegment 마지막 구분자 뒤의 주문 구간
func (r *Rules) orderSegment(message string) (string, bool) {
	idx := strings.LastIndex(message, r.delimiter)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(message[idx+len(r.delimiter):]), true
}
