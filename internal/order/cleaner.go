package order

import (
	"strings"
)

// CleanName 상품명에서 홍보 문구와 구매자 태그를 제거한다.
// 제거 후 새로 드러난 문구도 지워지도록 더 이상 바뀌지 않을 때까지 반복한다.
func (r *Rules) CleanName(name string) string {
	for {
		next := r.cleanOnce(name)
		if next == name {
			return next
		}
		name = next
	}
}

func (r *Rules) cleanOnce(name string) string {
	if idx := strings.Index(name, r.delimiter); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}

	for _, re := range r.phrases {
		name = re.ReplaceAllString(name, "")
	}

	name = buyerTagRe.ReplaceAllString(name, "${1}")

	return strings.Join(strings.Fields(name), " ")
}
