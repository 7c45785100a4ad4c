package library

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type CurrentBorrow struct {
	BookID  int64  `json:"book_id"`
	Title   string `json:"title"`
	DueDate string `json:"due_date"`
}

type HistoryEntry struct {
	BookID     int64   `json:"book_id"`
	Title      string  `json:"title"`
	BorrowDate string  `json:"borrow_date"`
	ReturnDate *string `json:"return_date"` // nil while the book is out
}

type PatronReport struct {
	CurrentlyBorrowed    []CurrentBorrow `json:"currently_borrowed"`
	BorrowingHistory     []HistoryEntry  `json:"borrowing_history"`
	NumCurrentlyBorrowed int             `json:"num_currently_borrowed"`
	TotalLateFees        decimal.Decimal `json:"total_late_fees"`
}

// MarshalJSON writes total_late_fees as a number with two decimals.
func (r PatronReport) MarshalJSON() ([]byte, error) {
	type plain PatronReport
	return json.Marshal(struct {
		plain
		TotalLateFees json.RawMessage `json:"total_late_fees"`
	}{plain(r), jsonAmount(r.TotalLateFees)})
}

func emptyReport() PatronReport {
	return PatronReport{
		CurrentlyBorrowed: []CurrentBorrow{},
		BorrowingHistory:  []HistoryEntry{},
		TotalLateFees:     decimal.Zero,
	}
}

// GetPatronStatusReport summarizes a patron's loans. An invalid patron id
// gives an empty report, and a failing query only empties its own section.
func (s *Service) GetPatronStatusReport(ctx context.Context, patronID string) PatronReport {
	report := emptyReport()
	if !isValidPatronID(patronID) {
		return report
	}
	logger := log.WithField("patron_id", patronID)
	now := s.now()

	current, err := s.storage.GetPatronBorrowedBooks(ctx, patronID, now)
	if err != nil {
		logger.WithError(err).Warn("current borrows lookup failed")
		current = nil
	}
	history, err := s.storage.GetPatronBorrowHistory(ctx, patronID)
	if err != nil {
		logger.WithError(err).Warn("borrow history lookup failed")
		history = nil
	}

	total := decimal.Zero
	for _, b := range current {
		total = total.Add(lateFeeAt(b.DueDate, now).FeeAmount)
		report.CurrentlyBorrowed = append(report.CurrentlyBorrowed, CurrentBorrow{
			BookID:  b.BookID,
			Title:   b.Title,
			DueDate: FormatTimestamp(b.DueDate),
		})
	}
	for _, r := range history {
		report.BorrowingHistory = append(report.BorrowingHistory, historyEntry(r, now))
	}

	report.NumCurrentlyBorrowed = len(report.CurrentlyBorrowed)
	report.TotalLateFees = total.Round(2)
	return report
}

// historyEntry normalizes stored timestamps. An unreadable borrow date shows
// as now and an unreadable return date as null.
func historyEntry(r BorrowDetail, now time.Time) HistoryEntry {
	e := HistoryEntry{BookID: r.BookID, Title: r.Title, BorrowDate: FormatTimestamp(now)}
	if t, err := ParseTimestamp(r.BorrowDate); err == nil {
		e.BorrowDate = FormatTimestamp(t)
	}
	if r.ReturnDate.Valid {
		if t, err := ParseTimestamp(r.ReturnDate.String); err == nil {
			rd := FormatTimestamp(t)
			e.ReturnDate = &rd
		}
	}
	return e
}
