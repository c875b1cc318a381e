package order

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenizeOrders 주문 구간을 왼쪽부터 읽어 (구매자, 수량) 목록을 만든다.
//
// 각 위치에서 유효한 구매자로 시작하는지 우선순위대로 확인하고 (수동 ID 먼저),
// 없으면 한글/영문 이름 + 숫자 패턴이 유효한 구매자와 정확히 일치할 때만 인정한다.
// 둘 다 실패하면 한 글자를 버린다.
// 버퍼는 매 반복마다 줄어들므로 항상 끝난다.
func (r *Rules) TokenizeOrders(message string, buyers *BuyerSet) []BuyerOrder {
	buffer, ok := r.orderSegment(message)
	if !ok {
		return nil
	}

	var orders []BuyerOrder
	for {
		buffer = strings.TrimSpace(buffer)
		if buffer == "" {
			break
		}

		buyer, quantity, consumed := matchOrder(buffer, buyers)
		if consumed == 0 {
			_, size := utf8.DecodeRuneInString(buffer)
			buffer = buffer[size:]
			continue
		}

		// 수량 0 (또는 읽을 수 없는 수량)은 주문으로 보지 않는다
		if quantity > 0 {
			orders = append(orders, BuyerOrder{Buyer: buyer, Quantity: quantity})
		}
		buffer = buffer[consumed:]
	}
	return orders
}

// matchOrder 버퍼 맨 앞의 주문 하나를 읽는다. consumed == 0 이면 매칭 실패.
func matchOrder(buffer string, buyers *BuyerSet) (string, int, int) {
	// 1. 구매자 이름으로 시작 (수동 입력 ID 우선)
	if id, ok := buyers.matchPrefix(buffer); ok {
		quantity, n := parseQuantity(buffer[len(id):])
		return id, quantity, len(id) + n
	}

	// 2. 한글/영문 이름 + 수량
	m := orderTokenRe.FindStringSubmatch(buffer)
	if m == nil || !buyers.Contains(m[1]) {
		return "", 0, 0
	}
	quantity, n := parseQuantity(m[2])
	return m[1], quantity, len(m[1]) + n
}

// parseQuantity 맨 앞 숫자를 수량으로 읽는다. 숫자가 없으면 1, int 범위를 넘으면 0.
func parseQuantity(text string) (int, int) {
	digits := leadingDigits.FindString(text)
	if digits == "" {
		return 1, 0
	}
	quantity, err := strconv.Atoi(digits)
	if err != nil {
		return 0, len(digits)
	}
	return quantity, len(digits)
}
