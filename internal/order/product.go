package order

import (
	"strconv"
	"strings"
)

// ExtractProduct 메시지에서 상품 번호, 상품명, 가격을 추출한다.
// 상품 줄이 아니면 false.
// 형식: "<번호> <상품명> <가격>원 / <주문...>"
func (r *Rules) ExtractProduct(message string) (ProductInfo, bool) {
	m := productLineRe.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return ProductInfo{}, false
	}

	number, err := strconv.Atoi(m[1])
	if err != nil || number <= 0 {
		return ProductInfo{}, false
	}
	rest := strings.TrimSpace(m[2])

	// 가격은 첫 번째 "<3~6자리>원" 기준
	loc := r.priceRe.FindStringSubmatchIndex(rest)
	if loc == nil {
		return ProductInfo{}, false
	}
	price, err := strconv.Atoi(rest[loc[2]:loc[3]])
	if err != nil || price <= 0 {
		return ProductInfo{}, false
	}

	name := strings.TrimSpace(rest[:loc[0]])
	if name == "" {
		return ProductInfo{}, false
	}
	name = r.trailingRe.ReplaceAllString(name, "")
	name = r.CleanName(name)
	if name == "" {
		return ProductInfo{}, false
	}

	return ProductInfo{Number: number, Name: name, Price: price}, true
}
