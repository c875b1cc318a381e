package order

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buyerSet 수동 ID와 자동 발견 이름으로 구매자 목록을 만든다
func buyerSet(manual []string, discovered ...string) *BuyerSet {
	set := NewBuyerSet(manual)
	for _, name := range discovered {
		set.add(name)
	}
	return set
}

func TestTokenizeOrders(t *testing.T) {
	rules := newTestRules(t)

	tests := []struct {
		name   string
		msg    string
		buyers *BuyerSet
		want   []BuyerOrder
	}{
		{
			name:   "수동 ID + 수량",
			msg:    "1 꿀사과 5000원 / minsu2",
			buyers: buyerSet([]string{"minsu"}),
			want:   []BuyerOrder{{Buyer: "minsu", Quantity: 2}},
		},
		{
			name:   "수량 생략 시 1",
			msg:    "2 한정 수제청 선착순 3000원 / 철수 영희2",
			buyers: buyerSet(nil, "철수", "영희"),
			want:   []BuyerOrder{{Buyer: "철수", Quantity: 1}, {Buyer: "영희", Quantity: 2}},
		},
		{
			name:   "구분자 없음",
			msg:    "공지: 오늘 방송 종료",
			buyers: buyerSet(nil, "공지"),
			want:   nil,
		},
		{
			name:   "쉼표 구분",
			msg:    "3 배 4000원 / 철수2,영희3",
			buyers: buyerSet(nil, "철수", "영희"),
			want:   []BuyerOrder{{Buyer: "철수", Quantity: 2}, {Buyer: "영희", Quantity: 3}},
		},
		{
			name:   "붙어 있는 구매자",
			msg:    "3 배 4000원 / 철수2영희3",
			buyers: buyerSet(nil, "철수", "영희"),
			want:   []BuyerOrder{{Buyer: "철수", Quantity: 2}, {Buyer: "영희", Quantity: 3}},
		},
		{
			name:   "모르는 이름은 건너뜀",
			msg:    "4 감 2000원 / 철수 감사합니다 영희",
			buyers: buyerSet(nil, "철수", "영희"),
			want:   []BuyerOrder{{Buyer: "철수", Quantity: 1}, {Buyer: "영희", Quantity: 1}},
		},
		{
			name:   "숫자가 들어간 수동 ID",
			msg:    "5 굴비 30000원 / user123 4 buyer777",
			buyers: buyerSet([]string{"user123", "buyer777"}),
			want:   []BuyerOrder{{Buyer: "user123", Quantity: 1}, {Buyer: "buyer777", Quantity: 1}},
		},
		{
			name:   "수동 ID 바로 뒤 수량",
			msg:    "5 굴비 30000원 / user1235",
			buyers: buyerSet([]string{"user123"}),
			want:   []BuyerOrder{{Buyer: "user123", Quantity: 5}},
		},
		{
			name:   "마지막 구분자 기준",
			msg:    "6 사과 1/2박스 5000원 / 영희",
			buyers: buyerSet(nil, "영희", "박스"),
			want:   []BuyerOrder{{Buyer: "영희", Quantity: 1}},
		},
		{
			name:   "수량 0은 주문 아님",
			msg:    "7 감자 3000원 / 철수0 영희",
			buyers: buyerSet(nil, "철수", "영희"),
			want:   []BuyerOrder{{Buyer: "영희", Quantity: 1}},
		},
		{
			name:   "주문 구간이 비어 있음",
			msg:    "8 감자 3000원 /   ",
			buyers: buyerSet(nil, "철수"),
			want:   nil,
		},
		{
			name:   "느낌표 이름",
			msg:    "9 양파 3000원 / Bob!3",
			buyers: buyerSet(nil, "Bob!"),
			want:   []BuyerOrder{{Buyer: "Bob!", Quantity: 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.TokenizeOrders(tt.msg, tt.buyers)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeOrders_ManualPriority(t *testing.T) {
	rules := newTestRules(t)

	// "kimchi"가 자동 발견되어 있어도 같은 위치에서는 수동 ID "kim"이 이긴다
	buyers := buyerSet([]string{"kim"}, "kimchi")
	got := rules.TokenizeOrders("1 김치 9000원 / kimchi2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "kim", Quantity: 1}}, got)

	// 더 긴 수동 ID가 우선
	buyers = buyerSet([]string{"kim", "kimchi"})
	got = rules.TokenizeOrders("1 김치 9000원 / kimchi2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "kimchi", Quantity: 2}}, got)
}

func TestTokenizeOrders_BuyerQuantityToken(t *testing.T) {
	rules := newTestRules(t)

	buyers := buyerSet([]string{"user9"}, "철수", "Alice")
	for _, buyer := range []string{"user9", "철수", "Alice"} {
		for _, qty := range []string{"1", "2", "10", "123"} {
			got := rules.TokenizeOrders("1 사과 1000원 / "+buyer+qty, buyers)
			want := []BuyerOrder{{Buyer: buyer, Quantity: mustAtoi(t, qty)}}
			assert.Equal(t, want, got, "%s%s", buyer, qty)
		}
		got := rules.TokenizeOrders("1 사과 1000원 / "+buyer, buyers)
		assert.Equal(t, []BuyerOrder{{Buyer: buyer, Quantity: 1}}, got)
	}
}

// 접두 관계인 자동 발견 이름은 긴 이름부터 시도한다
func TestTokenizeOrders_PrefixCollision(t *testing.T) {
	rules := newTestRules(t)

	buyers := buyerSet(nil, "김", "김철수")
	got := rules.TokenizeOrders("1 사과 1000원 / 김철수2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "김철수", Quantity: 2}}, got)

	got = rules.TokenizeOrders("1 사과 1000원 / 김김철수2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "김", Quantity: 1}, {Buyer: "김철수", Quantity: 2}}, got)

	got = rules.TokenizeOrders("1 사과 1000원 / 김 김철수2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "김", Quantity: 1}, {Buyer: "김철수", Quantity: 2}}, got)
}

// 자동 발견 이름도 글자가 더 붙은 토큰의 앞부분에서 인정된다
func TestTokenizeOrders_DiscoveredPrefix(t *testing.T) {
	rules := newTestRules(t)

	buyers := buyerSet(nil, "철수", "영희")
	got := rules.TokenizeOrders("3 배 4000원 / 철수영희2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "철수", Quantity: 1}, {Buyer: "영희", Quantity: 2}}, got)

	got = rules.TokenizeOrders("3 배 4000원 / 철수님2 영희", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "철수", Quantity: 1}, {Buyer: "영희", Quantity: 1}}, got)

	// 같은 위치에서는 수동 ID가 더 긴 자동 발견 이름보다 먼저
	buyers = buyerSet([]string{"철"}, "철수")
	got = rules.TokenizeOrders("3 배 4000원 / 철수2", buyers)
	assert.Equal(t, []BuyerOrder{{Buyer: "철", Quantity: 1}}, got)
}

func TestTokenizeOrders_Terminates(t *testing.T) {
	rules := newTestRules(t)

	buyers := buyerSet([]string{"a1"}, "철수")
	inputs := []string{
		"/",
		"/ ,,,,,,,",
		"/ 123456789",
		"/ !!!~~~???",
		"/ \t\n 철수",
		"/ " + strings.Repeat("가나다라", 500),
		"/ " + strings.Repeat("a1", 300),
		"/ \xff\xfe 철수",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { rules.TokenizeOrders(in, buyers) })
	}
	assert.Len(t, rules.TokenizeOrders("/ "+strings.Repeat("a1", 300), buyers), 300)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
