package library

import (
	"database/sql"
	"time"
)

// Book is one row of the books table.
type Book struct {
	ID              int64  `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Author          string `db:"author" json:"author"`
	ISBN            string `db:"isbn" json:"isbn"`
	TotalCopies     int    `db:"total_copies" json:"total_copies"`
	AvailableCopies int    `db:"available_copies" json:"available_copies"`
}

// BorrowRecord is one row of borrow_records. Dates stay in their stored
// ISO-8601 text form; ReturnDate is NULL while the book is out.
type BorrowRecord struct {
	ID         int64          `db:"id"`
	RecordULID string         `db:"record_ulid"`
	PatronID   string         `db:"patron_id"`
	BookID     int64          `db:"book_id"`
	BorrowDate string         `db:"borrow_date"`
	DueDate    string         `db:"due_date"`
	ReturnDate sql.NullString `db:"return_date"`
}

func (r BorrowRecord) Active() bool { return !r.ReturnDate.Valid }

// BorrowDetail is a borrow record joined with the title/author/isbn of its book.
type BorrowDetail struct {
	BorrowRecord
	Title  string `db:"title"`
	Author string `db:"author"`
	ISBN   string `db:"isbn"`
}

// BorrowedBook is an active borrow with parsed dates and the derived overdue flag.
type BorrowedBook struct {
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
	IsOverdue  bool      `json:"is_overdue"`
}

// toBorrowedBooks enriches active borrows. Unparsable dates fall back to now,
// so a corrupt row is reported as not overdue instead of failing the query.
func toBorrowedBooks(rows []BorrowDetail, now time.Time) []BorrowedBook {
	out := make([]BorrowedBook, 0, len(rows))
	for _, r := range rows {
		borrowAt, err1 := ParseTimestamp(r.BorrowDate)
		dueAt, err2 := ParseTimestamp(r.DueDate)
		if err1 != nil || err2 != nil {
			borrowAt, dueAt = now, now
		}
		out = append(out, BorrowedBook{
			BookID:     r.BookID,
			Title:      r.Title,
			Author:     r.Author,
			BorrowDate: borrowAt,
			DueDate:    dueAt,
			IsOverdue:  now.After(dueAt),
		})
	}
	return out
}
