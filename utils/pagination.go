package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const pageDefault = 1
const pageSizeDefault = 10
const pageSizeMax = 100

// PageParams is a normalised page request. Page is 1-based.
type PageParams struct {
	Page  int
	Limit int
}

// Offset is the number of rows skipped before the requested page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// GetPaginationParams parses raw page and limit query values leniently.
// Missing, non-numeric, zero or negative values fall back to the defaults and the
// limit is capped at a maximum value.
func GetPaginationParams(page, limit string) PageParams {
	params := PageParams{Page: pageDefault, Limit: pageSizeDefault}

	if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil && n > 0 {
		params.Page = n
	}

	if n, err := strconv.Atoi(strings.TrimSpace(limit)); err == nil && n > 0 {
		params.Limit = min(n, pageSizeMax)
	}

	return params
}

// SortParams is a validated ORDER BY column and direction.
type SortParams struct {
	Column string
	Desc   bool
}

// GetSortParams resolves the sortBy and sortOrder query values against an allow-list
// mapping API field names to columns. Unknown fields fall back to def.
func GetSortParams(sortBy, sortOrder string, allowed map[string]string, def SortParams) SortParams {
	params := def
	if column, ok := allowed[sortBy]; ok {
		params.Column = column
	}
	switch strings.ToUpper(strings.TrimSpace(sortOrder)) {
	case "ASC":
		params.Desc = false
	case "DESC":
		params.Desc = true
	}
	return params
}

// OrderClause renders the sort with id as a tie-break so pages never overlap.
func (s SortParams) OrderClause() string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	if s.Column == "" || s.Column == "id" {
		return "id " + dir
	}
	return fmt.Sprintf("%s %s, id %s", s.Column, dir, dir)
}

// PageMeta describes where a page sits in the full result set.
type PageMeta struct {
	TotalItems   int64 `json:"total_items"`
	ItemCount    int   `json:"item_count"`
	ItemsPerPage int   `json:"items_per_page"`
	TotalPages   int   `json:"total_pages"`
	CurrentPage  int   `json:"current_page"`
}

// Page is the response body of every list endpoint.
type Page[T any] struct {
	Items []T      `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// NewPage assembles a page from the fetched items and the unpaginated total.
func NewPage[T any](items []T, total int64, params PageParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if params.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}
	return Page[T]{
		Items: items,
		Meta: PageMeta{
			TotalItems:   total,
			ItemCount:    len(items),
			ItemsPerPage: params.Limit,
			TotalPages:   totalPages,
			CurrentPage:  params.Page,
		},
	}
}

// Paginate counts the rows matched by query and fetches the requested page of them.
// query must already carry its Model and filters.
func Paginate[T any](query *gorm.DB, params PageParams, sort SortParams) (Page[T], error) {
	stmt := query.Session(&gorm.Session{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return Page[T]{}, fmt.Errorf("failed to count rows: %w", err)
	}

	var items []T
	if err := stmt.Order(sort.OrderClause()).Offset(params.Offset()).Limit(params.Limit).Find(&items).Error; err != nil {
		return Page[T]{}, fmt.Errorf("failed to fetch page: %w", err)
	}

	return NewPage(items, total, params), nil
}

// ParseBool reads an optional boolean query value. ok is false when raw is empty or malformed.
func ParseBool(raw string) (value bool, ok bool) {
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}

// ParseUint reads an optional positive integer query value.
func ParseUint(raw string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// ContainsPattern builds a LIKE pattern matching s anywhere, escaping LIKE wildcards.
func ContainsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

// PrefixPattern builds a LIKE pattern matching values starting with s.
func PrefixPattern(s string) string {
	return escapeLike(s) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ILike returns a portable case-insensitive LIKE condition on column for use with
// ContainsPattern or PrefixPattern.
func ILike(column string) string {
	return fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", column)
}
