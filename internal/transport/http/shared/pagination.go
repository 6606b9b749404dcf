package shared

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Pagination is a limit/offset window. Clients may send either offset or a
// 1-based page number; offset wins when both are present.
type Pagination struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	p := Pagination{Limit: positiveInt(q.Get("limit"), defaultLimit)}
	if maxLimit > 0 {
		p.Limit = min(p.Limit, maxLimit)
	}

	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			p.Offset = v
		}
	} else if page := positiveInt(q.Get("page"), 1); page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

// WriteTotal exposes the unpaged row count alongside the window used.
func (p Pagination) WriteTotal(w http.ResponseWriter, total int) {
	h := w.Header()
	h.Set("X-Total-Count", strconv.Itoa(total))
	h.Set("X-Limit", strconv.Itoa(p.Limit))
	h.Set("X-Offset", strconv.Itoa(p.Offset))
}

func positiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
