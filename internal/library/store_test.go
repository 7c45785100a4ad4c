package library

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/platform/db"
)

// The MySQL tests run only when LIBRARY_TEST_MYSQL_DSN points at a scratch
// database, e.g. "user:pass@tcp(127.0.0.1:3306)/library_test?clientFoundRows=true".
// Every test wipes both tables.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LIBRARY_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LIBRARY_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()

	conn, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := NewStore(conn)
	require.NoError(t, s.Migrate(ctx))
	for _, stmt := range []string{"DELETE FROM borrow_records", "DELETE FROM books"} {
		_, err := conn.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return s
}

func Test_ContainsPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, "%great%", containsPattern("Great"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\d%`, containsPattern(`C:\d`))
}

func Test_Store_Books(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := SeedSampleData(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	books, err := s.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "The Great Gatsby", books[0].Title)
	assert.Less(t, books[0].ID, books[1].ID)

	b, err := s.GetBookByISBN(ctx, "9780451524935")
	require.NoError(t, err)
	assert.Equal(t, 4, b.AvailableCopies)

	_, err = s.GetBookByID(ctx, b.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.InsertBook(ctx, "Dup", "Someone", "9780451524935", 1)
	assert.ErrorIs(t, err, ErrDuplicateISBN)
}

func Test_Store_UpdateBookAvailability_Bounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.InsertBook(ctx, "Rare", "Someone", "1111111111111", 1)
	require.NoError(t, err)

	applied, err := s.UpdateBookAvailability(ctx, id, +1)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.UpdateBookAvailability(ctx, id, -1)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.UpdateBookAvailability(ctx, id, -1)
	require.NoError(t, err)
	assert.False(t, applied)

	b, err := s.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, b.AvailableCopies)
}

func Test_Store_BorrowRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.InsertBook(ctx, "1984", "George Orwell", "9780451524935", 4)
	require.NoError(t, err)
	t0 := time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)

	first, err := s.InsertBorrowRecord(ctx, "123456", id, t0, t0.AddDate(0, 0, 14))
	require.NoError(t, err)
	second, err := s.InsertBorrowRecord(ctx, "123456", id, t0.Add(time.Hour), t0.Add(time.Hour).AddDate(0, 0, 14))
	require.NoError(t, err)

	n, err := s.GetPatronBorrowCount(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := s.GetActiveBorrowRecord(ctx, "123456", id)
	require.NoError(t, err)
	assert.Equal(t, second, rec.ID)
	assert.Len(t, rec.RecordULID, 26)
	assert.Equal(t, "2025-01-10T09:30:00.000000Z", rec.BorrowDate)

	closed, err := s.UpdateBorrowRecordReturnDate(ctx, "123456", id, t0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, closed)

	rec, err = s.GetActiveBorrowRecord(ctx, "123456", id)
	require.NoError(t, err)
	assert.Equal(t, first, rec.ID)

	current, err := s.GetPatronCurrentBorrows(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "1984", current[0].Title)
	assert.Equal(t, "9780451524935", current[0].ISBN)

	history, err := s.GetPatronBorrowHistory(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ID)
	assert.True(t, history[0].ReturnDate.Valid)
	assert.False(t, history[1].ReturnDate.Valid)

	borrowed, err := s.GetPatronBorrowedBooks(ctx, "123456", t0.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.True(t, borrowed[0].IsOverdue)
}

func Test_Store_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := SeedSampleData(ctx, s)
	require.NoError(t, err)
	_, err = s.InsertBook(ctx, "100% Pure", "Some_One", "2222222222222", 1)
	require.NoError(t, err)

	books, err := s.SearchBooksTitle(ctx, "GREAT")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "The Great Gatsby", books[0].Title)

	books, err = s.SearchBooksTitle(ctx, "%")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "100% Pure", books[0].Title)

	books, err = s.SearchBooksAuthor(ctx, "_")
	require.NoError(t, err)
	require.Len(t, books, 1)

	books, err = s.SearchBooksISBN(ctx, "9780061120084")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "To Kill a Mockingbird", books[0].Title)
}

func Test_Store_RunInTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.InsertBook(ctx, "1984", "George Orwell", "9780451524935", 2)
	require.NoError(t, err)
	errStop := errors.New("stop")

	err = s.RunInTx(ctx, func(ctx context.Context, tx Storage) error {
		if _, err := tx.InsertBorrowRecord(ctx, "123456", id, time.Now(), time.Now()); err != nil {
			return err
		}
		if _, err := tx.UpdateBookAvailability(ctx, id, -1); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	n, err := s.GetPatronBorrowCount(ctx, "123456")
	require.NoError(t, err)
	assert.Zero(t, n)

	b, err := s.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, b.AvailableCopies)
}
