package library

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Copies accepts a JSON integer or an integer-like string. Anything else
// decodes to 0, which the catalog rejects with its own message.
type Copies int

func (c *Copies) UnmarshalJSON(b []byte) error {
	*c = 0
	raw := strings.TrimSpace(string(b))
	if s, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*c = Copies(n)
	}
	return nil
}

var _ json.Unmarshaler = (*Copies)(nil)

type AddBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies Copies `json:"total_copies"`
}

// BorrowRequest is the body of both POST /borrows and POST /returns.
type BorrowRequest struct {
	PatronID string `json:"patron_id"`
	BookID   int64  `json:"book_id"`
}

type BookListResponse struct {
	Items []Book `json:"items"`
	Total int    `json:"total"`
}
