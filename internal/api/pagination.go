package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLength = 10
	maxPageLength     = 100
)

// TableParams holds the paging, search, and ordering values a DataTables
// client sends with every request.
type TableParams struct {
	Draw   int
	Offset int
	Limit  int
	Search string
	// OrderIndex is the position of the ordering column in the table's
	// column list, or -1 when the client did not ask for an order.
	OrderIndex int
	Descending bool
}

// TableResponse is the envelope DataTables expects.
type TableResponse struct {
	Draw            int         `json:"draw"`
	RecordsTotal    int64       `json:"recordsTotal"`
	RecordsFiltered int64       `json:"recordsFiltered"`
	Data            interface{} `json:"data"`
}

// ParseTableParams extracts DataTables parameters with defaults. length
// defaults to 10 and is capped at 100. start is aligned down to the page
// that contains it. Unparseable values fall back to their defaults.
func ParseTableParams(r *http.Request) TableParams {
	q := r.URL.Query()

	draw, err := strconv.Atoi(q.Get("draw"))
	if err != nil {
		draw = 1
	}
	start, _ := strconv.Atoi(q.Get("start"))
	length, _ := strconv.Atoi(q.Get("length"))

	if start < 0 {
		start = 0
	}
	if length < 1 {
		length = defaultPageLength
	}
	if length > maxPageLength {
		length = maxPageLength
	}

	orderIndex := -1
	if v := q.Get("order[0][column]"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			orderIndex = i
		}
	}
	dir := q.Get("order[0][dir]")
	if dir == "" {
		dir = "desc"
	}

	return TableParams{
		Draw:       draw,
		Offset:     (start / length) * length,
		Limit:      length,
		Search:     q.Get("search[value]"),
		OrderIndex: orderIndex,
		Descending: dir == "desc",
	}
}

// OrderColumn returns the column named by the order index, or "" when the
// index is absent or out of range.
func (p TableParams) OrderColumn(columns []string) string {
	if p.OrderIndex < 0 || p.OrderIndex >= len(columns) {
		return ""
	}
	return columns[p.OrderIndex]
}

// NewTableResponse builds the envelope. recordsTotal and recordsFiltered
// both carry the filtered count.
func NewTableResponse(data interface{}, p TableParams, total int64) TableResponse {
	return TableResponse{
		Draw:            p.Draw,
		RecordsTotal:    total,
		RecordsFiltered: total,
		Data:            data,
	}
}
