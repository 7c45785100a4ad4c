package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	MaxBorrowLimit = 5
	BorrowDays     = 14
)

const (
	SearchByTitle  = "title"
	SearchByAuthor = "author"
	SearchByISBN   = "isbn"
)

// errRollback aborts a transaction whose Outcome is already decided.
var errRollback = errors.New("rollback")

type Service struct {
	storage Storage
	clock   Clock
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(storage Storage, opts ...Option) *Service {
	s := &Service{storage: storage, clock: realClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// ===== Catalog =====

func (s *Service) GetAllBooks(ctx context.Context) ([]Book, error) {
	books, err := s.storage.GetAllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *Service) AddBookToCatalog(ctx context.Context, title, author, isbn string, totalCopies int) Outcome {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	isbn = strings.TrimSpace(isbn)

	switch {
	case title == "":
		return fail(CodeInvalidArgument, msgTitleRequired)
	case tooLong(title, maxTitleLen):
		return fail(CodeInvalidArgument, msgTitleTooLong)
	case author == "":
		return fail(CodeInvalidArgument, msgAuthorRequired)
	case tooLong(author, maxAuthorLen):
		return fail(CodeInvalidArgument, msgAuthorTooLong)
	case !isValidISBN13(isbn):
		return fail(CodeInvalidArgument, msgInvalidISBN)
	case totalCopies <= 0:
		return fail(CodeInvalidArgument, msgInvalidCopies)
	}

	_, err := s.storage.GetBookByISBN(ctx, isbn)
	switch {
	case err == nil:
		return fail(CodeConflict, msgDuplicateISBN)
	case !errors.Is(err, ErrNotFound):
		log.WithError(err).WithField("isbn", isbn).Warn("isbn lookup failed")
		return fail(CodeInternal, msgAddBookDBError)
	}

	if _, err := s.storage.InsertBook(ctx, title, author, isbn, totalCopies); err != nil {
		// a concurrent insert of the same isbn lands here too
		log.WithError(err).WithField("isbn", isbn).Warn("insert book failed")
		return fail(CodeInternal, msgAddBookDBError)
	}
	return ok(fmt.Sprintf(`Book "%s" successfully added to catalog.`, title))
}

// SearchBooksInCatalog never fails; a blank term, an unknown type or a
// storage error all give an empty result.
func (s *Service) SearchBooksInCatalog(ctx context.Context, term, searchType string) []Book {
	term = strings.TrimSpace(term)
	searchType = strings.ToLower(searchType)
	if searchType == "" {
		searchType = SearchByTitle
	}
	if term == "" {
		return []Book{}
	}

	switch searchType {
	case SearchByTitle, SearchByAuthor:
		books, err := s.storage.GetAllBooks(ctx)
		if err != nil {
			log.WithError(err).Warn("catalog search failed")
			return []Book{}
		}
		needle := foldCase(term)
		out := []Book{}
		for _, b := range books {
			field := b.Title
			if searchType == SearchByAuthor {
				field = b.Author
			}
			if strings.Contains(foldCase(field), needle) {
				out = append(out, b)
			}
		}
		return out
	case SearchByISBN:
		b, err := s.storage.GetBookByISBN(ctx, term)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.WithError(err).WithField("isbn", term).Warn("isbn search failed")
			}
			return []Book{}
		}
		return []Book{*b}
	default:
		return []Book{}
	}
}

// ===== Borrow / Return =====

// lookupBook resolves the book for a borrow or return; the Outcome is only
// meaningful when the book is nil.
func lookupBook(ctx context.Context, tx Storage, bookID int64) (*Book, Outcome) {
	book, err := tx.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fail(CodeNotFound, msgBookNotFound)
		}
		log.WithError(err).WithField("book_id", bookID).Warn("book lookup failed")
		return nil, fail(CodeInternal, msgBookLookupDBError)
	}
	return book, Outcome{}
}

// inTx runs step in one transaction and rolls back unless it succeeds.
// commitMsg is reported when the commit itself fails.
func (s *Service) inTx(ctx context.Context, commitMsg string, step func(ctx context.Context, tx Storage) Outcome) Outcome {
	var out Outcome
	err := s.storage.RunInTx(ctx, func(ctx context.Context, tx Storage) error {
		out = step(ctx, tx)
		if !out.Success {
			return errRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		log.WithError(err).Warn("transaction failed")
		return fail(CodeInternal, commitMsg)
	}
	return out
}

func (s *Service) BorrowBookByPatron(ctx context.Context, patronID string, bookID int64) Outcome {
	if !isValidPatronID(patronID) {
		return fail(CodeInvalidArgument, msgInvalidPatronID)
	}
	logger := log.WithFields(log.Fields{"patron_id": patronID, "book_id": bookID})

	return s.inTx(ctx, msgBorrowRecordDBError, func(ctx context.Context, tx Storage) Outcome {
		book, res := lookupBook(ctx, tx, bookID)
		if book == nil {
			return res
		}
		if book.AvailableCopies <= 0 {
			return fail(CodeConflict, msgBookUnavailable)
		}
		n, err := tx.GetPatronBorrowCount(ctx, patronID)
		if err != nil {
			logger.WithError(err).Warn("borrow count failed")
			return fail(CodeInternal, msgBorrowRecordDBError)
		}
		if n >= MaxBorrowLimit {
			return fail(CodeConflict, msgBorrowLimit)
		}

		borrowAt := s.now()
		dueAt := borrowAt.AddDate(0, 0, BorrowDays)
		if _, err := tx.InsertBorrowRecord(ctx, patronID, bookID, borrowAt, dueAt); err != nil {
			logger.WithError(err).Warn("insert borrow record failed")
			return fail(CodeInternal, msgBorrowRecordDBError)
		}
		updated, err := tx.UpdateBookAvailability(ctx, bookID, -1)
		if err != nil || !updated {
			logger.WithError(err).Warn("decrement availability failed")
			return fail(CodeInternal, msgAvailabilityDBError)
		}
		return ok(fmt.Sprintf(`Borrowed "%s" successfully. Due date: %s.`, book.Title, dueAt.Format(DateLayout)))
	})
}

func (s *Service) ReturnBookByPatron(ctx context.Context, patronID string, bookID int64) Outcome {
	if !isValidPatronID(patronID) {
		return fail(CodeInvalidArgument, msgInvalidPatronID)
	}
	logger := log.WithFields(log.Fields{"patron_id": patronID, "book_id": bookID})

	return s.inTx(ctx, msgReturnDBError, func(ctx context.Context, tx Storage) Outcome {
		book, res := lookupBook(ctx, tx, bookID)
		if book == nil {
			return res
		}

		rec, err := tx.GetActiveBorrowRecord(ctx, patronID, bookID)
		if errors.Is(err, ErrNotFound) {
			return fail(CodeNotFound, msgNoActiveRecord)
		}
		if err != nil {
			logger.WithError(err).Warn("active record lookup failed")
			return fail(CodeInternal, msgReturnDBError)
		}

		returnAt := s.now()
		closed, err := tx.UpdateBorrowRecordReturnDate(ctx, patronID, bookID, returnAt)
		if err != nil {
			logger.WithError(err).Warn("close borrow record failed")
			return fail(CodeInternal, msgReturnDBError)
		}
		if !closed {
			return fail(CodeNotFound, msgNoActiveRecord)
		}
		updated, err := tx.UpdateBookAvailability(ctx, bookID, +1)
		if err != nil || !updated {
			logger.WithError(err).Warn("increment availability failed")
			return fail(CodeInternal, msgAvailabilityDBError)
		}

		fee := LateFee{FeeAmount: ComputeFee(0)}
		if dueAt, err := ParseTimestamp(rec.DueDate); err == nil {
			fee = lateFeeAt(dueAt, returnAt)
		} else {
			logger.WithError(err).Warn("unreadable due date, no fee charged")
		}
		if fee.FeeAmount.IsPositive() {
			return ok(fmt.Sprintf(`Return processed for "%s". Late fee: %s.`, book.Title, formatFee(fee.FeeAmount)))
		}
		return ok(fmt.Sprintf(`Return processed for "%s". No late fee.`, book.Title))
	})
}

// ===== Fees =====

// CalculateLateFeeForBook reports the fee accrued so far on the patron's
// active loan of the book. No active loan means no fee.
func (s *Service) CalculateLateFeeForBook(ctx context.Context, patronID string, bookID int64) LateFee {
	now := s.now()
	borrowed, err := s.storage.GetPatronBorrowedBooks(ctx, patronID, now)
	if err != nil {
		log.WithError(err).WithField("patron_id", patronID).Warn("borrowed books lookup failed")
		borrowed = nil
	}
	for _, b := range borrowed {
		if b.BookID == bookID {
			return lateFeeAt(b.DueDate, now)
		}
	}
	return LateFee{FeeAmount: ComputeFee(0)}
}
