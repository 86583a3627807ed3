package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

// Pagination describes an offset page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type PageRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (p PageRequest) normalize() (int, int) {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// FetchPage counts dbCtx and loads one page of it.
func FetchPage[T any](dbCtx *gorm.DB, req PageRequest, orders ...string) ([]*T, *Pagination, error) {
	page, limit := req.normalize()

	var total int64
	if err := dbCtx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, nil, err
	}
	for _, order := range orders {
		dbCtx = dbCtx.Order(order)
	}
	results := make([]*T, 0)
	if err := dbCtx.Offset((page - 1) * limit).Limit(limit).Find(&results).Error; err != nil {
		return nil, nil, err
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return results, &Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}, nil
}

func DecodeCursor(cursor *string) (string, error) {
	decodedCursor := ""
	if cursor != nil {
		b, err := base64.StdEncoding.DecodeString(*cursor)
		if err != nil {
			return decodedCursor, err
		}
		decodedCursor = string(b)
	}
	return decodedCursor, nil
}

func DecodeCompositeCursor(cursor *string) (string, int) {
	if cursor == nil || *cursor == "" {
		return "", 0
	}

	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return "", 0
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return "", 0
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0
	}

	return parts[0], id
}

func EncodeCursor(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func EncodeCompositeCursor(value string, id int) string {
	cursor := fmt.Sprintf("%s|%d", value, id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}
