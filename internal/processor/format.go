package processor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fachebot/live-order-bot/internal/order"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Korean)

// formatWon 천 단위 구분 기호가 들어간 금액 (예: 12,000원)
func formatWon(amount int) string {
	return printer.Sprintf("%d원", amount)
}

// escapeHTML 텔레그램 HTML 메시지용 이스케이프 (& < > ")
func escapeHTML(text string) string {
	result := strings.ReplaceAll(text, "&", "&amp;")
	result = strings.ReplaceAll(result, "<", "&lt;")
	result = strings.ReplaceAll(result, ">", "&gt;")
	result = strings.ReplaceAll(result, "\"", "&quot;")
	return result
}

// FormatDigest 구매자별 합계를 텔레그램 HTML 메시지로 만든다.
// 사용 태그: <b>굵게</b>
func FormatDigest(outcome *Outcome) string {
	if outcome == nil || !outcome.Result.HasOrders() {
		return ""
	}
	result := outcome.Result

	var sb strings.Builder
	sb.WriteString("🛒 <b>주문 집계</b>\n")
	sb.WriteString(fmt.Sprintf("📄 %s\n", escapeHTML(displaySource(outcome.Source))))
	sb.WriteString(fmt.Sprintf("주문 %d건 · 구매자 %d명\n", len(result.Entries), len(result.Summaries)))

	for i, s := range result.Summaries {
		sb.WriteString(fmt.Sprintf("\n%d. <b>%s</b> %d개 / %s", i+1, escapeHTML(s.Buyer), s.TotalQuantity, formatWon(s.TotalAmount)))
	}
	sb.WriteString(fmt.Sprintf("\n\n💰 <b>합계</b> %s", formatWon(result.TotalAmount())))
	return sb.String()
}

func displaySource(source string) string {
	if strings.HasPrefix(source, "telegram:") {
		return source
	}
	return filepath.Base(source)
}

// FormatReport 콘솔 출력용 주문 장부와 구매자별 합계
func FormatReport(result *order.Result) string {
	if !result.HasOrders() {
		return ""
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "[주문 상세]")
	fmt.Fprintln(w, "구매자\t상품번호\t상품명\t판매가\t수량")
	for _, e := range result.Entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", e.Buyer, e.ProductNumber, e.ProductName, formatWon(e.Price), e.Quantity)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[구매자별 합계]")
	fmt.Fprintln(w, "구매자\t총주문수량\t총구매금액")
	for _, s := range result.Summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Buyer, s.TotalQuantity, formatWon(s.TotalAmount))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "총 구매자 %d명, 총 금액 %s\n", len(result.Summaries), formatWon(result.TotalAmount()))

	_ = w.Flush()
	return buf.String()
}

// FormatMessages 주문이 없을 때 확인용으로 관리자 메시지를 나열한다
func FormatMessages(messages []string) string {
	var sb strings.Builder
	for i, msg := range messages {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, msg))
	}
	return sb.String()
}
