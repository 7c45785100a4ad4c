package library

import (
	"context"
	"time"
)

// Storage is the persistence contract of the catalog. Every method is atomic
// on its own; RunInTx groups several of them.
type Storage interface {
	GetAllBooks(ctx context.Context) ([]Book, error)
	GetBookByID(ctx context.Context, id int64) (*Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*Book, error)
	InsertBook(ctx context.Context, title, author, isbn string, totalCopies int) (int64, error)
	// UpdateBookAvailability applies delta only when the result stays within
	// [0, total_copies]; it reports false and writes nothing otherwise.
	UpdateBookAvailability(ctx context.Context, bookID int64, delta int) (bool, error)

	GetPatronBorrowCount(ctx context.Context, patronID string) (int, error)
	InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) (int64, error)
	// GetActiveBorrowRecord returns the most recently created active record for the pair.
	GetActiveBorrowRecord(ctx context.Context, patronID string, bookID int64) (*BorrowRecord, error)
	UpdateBorrowRecordReturnDate(ctx context.Context, patronID string, bookID int64, returnDate time.Time) (bool, error)

	GetPatronCurrentBorrows(ctx context.Context, patronID string) ([]BorrowDetail, error)
	GetPatronBorrowHistory(ctx context.Context, patronID string) ([]BorrowDetail, error)
	GetPatronBorrowedBooks(ctx context.Context, patronID string, now time.Time) ([]BorrowedBook, error)

	SearchBooksTitle(ctx context.Context, term string) ([]Book, error)
	SearchBooksAuthor(ctx context.Context, term string) ([]Book, error)
	SearchBooksISBN(ctx context.Context, isbn string) ([]Book, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error
}
