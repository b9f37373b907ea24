package util

import (
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

type Meta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewMeta(page, offset, limit int, total int64) Meta {
	if page < 1 {
		page = 1
	}
	return Meta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}
}
