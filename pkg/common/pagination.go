package common

import (
	"net/http"
	"strconv"
)

// DefaultPageLimit is applied when a list request carries no limit.
const DefaultPageLimit = 100

// PaginationParams represents pagination parameters extracted from a
// list request.
type PaginationParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// PaginationInfo is the pagination envelope returned with list responses.
type PaginationInfo struct {
	Page         int  `json:"page"`
	Limit        int  `json:"limit"`
	TotalRecords int  `json:"total_records"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	NextPage     *int `json:"next_page"`
	PrevPage     *int `json:"prev_page"`
}

// ExtractPaginationParams extracts page and limit from request query
// parameters. Page is 1-based.
func ExtractPaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Page: 1, Limit: DefaultPageLimit}

	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			params.Limit = l
		}
	}
	return params
}

// Offset calculates the offset for database queries.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// BuildPaginationInfo builds the pagination envelope for a page of a
// result set with total matching records.
func BuildPaginationInfo(page, limit, total int) PaginationInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = total / limit
		if total%limit > 0 {
			totalPages++
		}
	}

	info := PaginationInfo{
		Page:         page,
		Limit:        limit,
		TotalRecords: total,
		TotalPages:   totalPages,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1 && total > 0,
	}
	if info.HasNextPage {
		next := page + 1
		info.NextPage = &next
	}
	if info.HasPrevPage {
		prev := page - 1
		info.PrevPage = &prev
	}
	return info
}
