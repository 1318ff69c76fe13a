package payment

import (
	"strconv"
	"strings"
)

// ResolveOrderID picks the local order a notification refers to; 0 means
// unresolved. An explicit request id wins over the reference, which comes from
// merchant-controlled text. Otherwise the reference must be prefix followed by
// an unsigned decimal integer.
func ResolveOrderID(requestOrderID int64, reference, prefix string) int64 {
	if requestOrderID > 0 {
		return requestOrderID
	}
	if reference == "" || !strings.HasPrefix(reference, prefix) {
		return 0
	}
	rest := reference[len(prefix):]
	if rest == "" {
		return 0
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ParseRequestOrderID reads the wc_id request parameter. Non-numeric input is
// 0 and negative values are taken by magnitude.
func ParseRequestOrderID(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	if id < 0 {
		if id == -id { // math.MinInt64
			return 0
		}
		return -id
	}
	return id
}
