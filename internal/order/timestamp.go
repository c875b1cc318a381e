package order

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006.01.02 15:04:05",
	"2006-01-02",
	"01-02-06 15:04",
	"2006-01-02 PM 3:04:05",
	"2006-01-02 PM 3:04",
	"2006. 1. 2. PM 3:04:05",
	"2006. 1. 2. PM 3:04",
}

// 날짜 없이 시각만 있는 오전/오후 표기. 자정 기준 경과 시간으로 본다.
var clockLayouts = []string{
	"PM 3:04:05",
	"PM 3:04",
}

var meridiemReplacer = strings.NewReplacer("오전", "AM", "오후", "PM")

// 방송 시작 기준 경과 시간 (예: 1:02:03, 12:34)
var offsetRe = regexp.MustCompile(`^-?([0-9]+):([0-9]{2})(?::([0-9]{2}))?$`)

// parseTimestamp 정렬용 키. 해석할 수 없으면 false.
func parseTimestamp(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	raw = meridiemReplacer.Replace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UnixNano(), true
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
			return int64(d), true
		}
	}
	if m := offsetRe.FindStringSubmatch(raw); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		d := time.Duration(first)*time.Minute + time.Duration(second)*time.Second
		if m[3] != "" {
			third, _ := strconv.Atoi(m[3])
			d = time.Duration(first)*time.Hour + time.Duration(second)*time.Minute + time.Duration(third)*time.Second
		}
		if strings.HasPrefix(raw, "-") {
			d = -d
		}
		return int64(d), true
	}
	return 0, false
}

// sortByTimestamp 시간순 안정 정렬. 시간이 없는 기록은 뒤로 간다.
// 하나라도 해석할 수 없는 시간이 있으면 문자열 순서로 비교한다.
func sortByTimestamp(records []ChatRecord) {
	keys := make([]int64, len(records))
	parsed := true
	for i, rec := range records {
		if strings.TrimSpace(rec.Timestamp) == "" {
			continue
		}
		key, ok := parseTimestamp(rec.Timestamp)
		if !ok {
			parsed = false
			break
		}
		keys[i] = key
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := records[idx[a]], records[idx[b]]
		emptyA := strings.TrimSpace(ra.Timestamp) == ""
		emptyB := strings.TrimSpace(rb.Timestamp) == ""
		if emptyA || emptyB {
			return !emptyA && emptyB
		}
		if parsed {
			return keys[idx[a]] < keys[idx[b]]
		}
		return strings.TrimSpace(ra.Timestamp) < strings.TrimSpace(rb.Timestamp)
	})

	sorted := make([]ChatRecord, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}
