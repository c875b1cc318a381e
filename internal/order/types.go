package order

// ChatRecord 채팅 내보내기의 한 줄
type ChatRecord struct {
	Sender    string
	Message   string
	Timestamp string // 비어 있으면 시간 정보 없음
}

// ProductInfo 판매자 메시지에서 추출한 상품 정보
type ProductInfo struct {
	Number int
	Name   string
	Price  int
}

// BuyerOrder 주문 구간에서 읽어낸 (구매자, 수량) 한 쌍
type BuyerOrder struct {
	Buyer    string
	Quantity int
}

// OrderEntry 주문 장부의 한 행
type OrderEntry struct {
	Buyer         string
	ProductNumber int
	ProductName   string
	Price         int
	Quantity      int
}

// Amount 판매가 × 수량
func (e OrderEntry) Amount() int {
	return e.Price * e.Quantity
}

// BuyerSummary 구매자별 합계
type BuyerSummary struct {
	Buyer         string
	TotalQuantity int
	TotalAmount   int
}

// Status 파이프라인 실행 결과 상태
type Status int

const (
	StatusOK Status = iota
	StatusNoOrders
)

// Result 파이프라인 실행 결과
type Result struct {
	Status    Status
	Entries   []OrderEntry
	Summaries []BuyerSummary
	Buyers    *BuyerSet
	Messages  []string // 권한 있는 발신자의 원본 메시지 (주문이 없을 때 확인용)
}

// HasOrders 주문이 하나라도 추출되었는지
func (r *Result) HasOrders() bool {
	return r != nil && len(r.Entries) > 0
}

// TotalAmount 전체 주문 금액
func (r *Result) TotalAmount() int {
	total := 0
	for _, s := range r.Summaries {
		total += s.TotalAmount
	}
	return total
}
