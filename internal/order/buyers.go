package order

import (
	"sort"
	"strings"
)

// BuyerSet 한 번의 실행에서 유효한 구매자 목록.
// 매칭 우선순위: 수동 입력 ID, 자동 발견 이름 순이며 각각 긴 것부터, 같은 길이는 사전순.
type BuyerSet struct {
	manual     []string
	discovered []string
	all        map[string]struct{}
}

// NewBuyerSet 수동 입력 ID로 구매자 목록을 만든다 (공백 제거, 빈 값 무시)
func NewBuyerSet(manualIDs []string) *BuyerSet {
	set := &BuyerSet{all: make(map[string]struct{})}
	for _, id := range manualIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := set.all[id]; ok {
			continue
		}
		set.all[id] = struct{}{}
		set.manual = append(set.manual, id)
	}
	sort.Slice(set.manual, func(i, j int) bool {
		return matchesBefore(set.manual[i], set.manual[j])
	})
	return set
}

func matchesBefore(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// Contains 유효한 구매자인지
func (s *BuyerSet) Contains(buyer string) bool {
	_, ok := s.all[buyer]
	return ok
}

// Len 구매자 수
func (s *BuyerSet) Len() int {
	return len(s.all)
}

// Names 정렬된 구매자 목록
func (s *BuyerSet) Names() []string {
	names := make([]string, 0, len(s.all))
	for name := range s.all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// matchManual 문자열이 수동 ID로 시작하면 그 ID를 돌려준다
func (s *BuyerSet) matchManual(text string) (string, bool) {
	for _, id := range s.manual {
		if strings.HasPrefix(text, id) {
			return id, true
		}
	}
	return "", false
}

// matchPrefix 문자열이 유효한 구매자로 시작하면 우선순위가 가장 높은 구매자를 돌려준다
func (s *BuyerSet) matchPrefix(text string) (string, bool) {
	if id, ok := s.matchManual(text); ok {
		return id, true
	}
	for _, name := range s.discovered {
		if strings.HasPrefix(text, name) {
			return name, true
		}
	}
	return "", false
}

func (s *BuyerSet) add(buyer string) {
	if _, ok := s.all[buyer]; ok {
		return
	}
	s.all[buyer] = struct{}{}

	i := sort.Search(len(s.discovered), func(i int) bool {
		return !matchesBefore(s.discovered[i], buyer)
	})
	s.discovered = append(s.discovered, "")
	copy(s.discovered[i+1:], s.discovered[i:])
	s.discovered[i] = buyer
}

// DiscoverBuyers 전체 메시지의 주문 구간을 훑어 유효한 구매자 목록을 만든다.
// 수동 ID로 시작하는 토큰은 수동 ID만 인정하고, 나머지는 앞쪽 한글/영문 부분을 구매자로 본다.
func (r *Rules) DiscoverBuyers(records []ChatRecord, manualIDs []string) *BuyerSet {
	set := NewBuyerSet(manualIDs)

	for _, rec := range records {
		segment, ok := r.orderSegment(strings.TrimSpace(rec.Message))
		if !ok {
			continue
		}
		for _, token := range strings.Fields(segment) {
			if _, ok := set.matchManual(token); ok {
				continue
			}
			if name := buyerNameRe.FindString(token); name != "" {
				set.add(name)
			}
		}
	}
	return set
}
