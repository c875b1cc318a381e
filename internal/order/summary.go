package order

import "sort"

// SortEntries 구매자, 상품번호 순으로 안정 정렬
func SortEntries(entries []OrderEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Buyer != entries[j].Buyer {
			return entries[i].Buyer < entries[j].Buyer
		}
		return entries[i].ProductNumber < entries[j].ProductNumber
	})
}

// Summarize 구매자별 총 수량과 총 금액. 구매자가 처음 나온 순서를 따른다.
func Summarize(entries []OrderEntry) []BuyerSummary {
	index := make(map[string]int)
	summaries := make([]BuyerSummary, 0)
	for _, e := range entries {
		i, ok := index[e.Buyer]
		if !ok {
			i = len(summaries)
			index[e.Buyer] = i
			summaries = append(summaries, BuyerSummary{Buyer: e.Buyer})
		}
		summaries[i].TotalQuantity += e.Quantity
		summaries[i].TotalAmount += e.Amount()
	}
	return summaries
}
