package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 250
)

var ErrInvalidCursor = errors.New("invalid cursor")

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20" binding:"gte=1,lte=250"`
}

type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Normalize applies the default limit, caps it at MaxLimit and rejects a
// cursor that does not decode to an ID.
func Normalize(p Pagination) (Pagination, error) {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}

	if p.Cursor != "" {
		c, err := DecodeCursor(p.Cursor)
		if err != nil || c.ID == "" {
			return p, ErrInvalidCursor
		}
	}
	return p, nil
}

// Trim cuts a limit+1 result set down to limit rows and reports the cursor
// for the next page.
func Trim[T any](data []*T, limit int, id func(*T) string) ([]*T, PageInfo) {
	if len(data) <= limit || limit <= 0 {
		return data, PageInfo{}
	}

	data = data[:limit]
	next, _ := EncodeCursor(Cursor{ID: id(data[len(data)-1])})
	return data, PageInfo{NextCursor: next, HasMore: true}
}
