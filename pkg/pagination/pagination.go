// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination provides page parameters and response metadata for list endpoints.
package pagination

import (
	"net/http"

	"github.com/taibuivan/careops/pkg/convert"
)

const (
	// DefaultLimit is the number of items per page if not specified.
	DefaultLimit = 50
	// MaxLimit caps a requested page size; larger values are clamped to it.
	MaxLimit = 500
	// DefaultPage is the starting page (1-indexed).
	DefaultPage = 1
)

// Params holds the parsed page and limit from a request's query string.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the SQL OFFSET value derived from Page and Limit.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination metadata included in API list responses.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewMeta builds the metadata block for a page of a list with total items.
func NewMeta(params Params, total int) Meta {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = (total + params.Limit - 1) / params.Limit
	}

	return Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// FromRequest parses "page" and "limit" query parameters.
//
// Missing or invalid values fall back to the defaults; an oversized limit is clamped to [MaxLimit].
func FromRequest(r *http.Request) Params {
	query := r.URL.Query()

	page := convert.ToIntD(query.Get("page"), DefaultPage)
	if page < 1 {
		page = DefaultPage
	}

	return Params{Page: page, Limit: ClampLimit(convert.ToIntD(query.Get("limit"), DefaultLimit))}
}

// ClampLimit bounds a requested page size to 1..MaxLimit, defaulting non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
