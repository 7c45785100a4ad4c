package library_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/library"
)

func Test_GetPatronStatusReport_InvalidPatronIsEmpty(t *testing.T) {
	svc, _, _ := newFixture(t)

	for _, pid := range []string{"", "12", "abcdef"} {
		r := svc.GetPatronStatusReport(context.Background(), pid)
		assert.NotNil(t, r.CurrentlyBorrowed)
		assert.Empty(t, r.CurrentlyBorrowed)
		assert.NotNil(t, r.BorrowingHistory)
		assert.Empty(t, r.BorrowingHistory)
		assert.Zero(t, r.NumCurrentlyBorrowed)
		assert.True(t, r.TotalLateFees.IsZero())
	}
}

func Test_GetPatronStatusReport_CurrentHistoryAndFees(t *testing.T) {
	svc, store, clock := newFixture(t)
	ctx := context.Background()
	gatsby := addBook(t, svc, store, "The Great Gatsby", "9780743273565", 3)
	mockingbird := addBook(t, svc, store, "To Kill a Mockingbird", "9780061120084", 2)
	orwell := addBook(t, svc, store, "1984", "9780451524935", 4)

	// Mar 1: gatsby, Mar 8: mockingbird, Mar 9: 1984 (returned Mar 10)
	require.True(t, svc.BorrowBookByPatron(ctx, patronA, gatsby).Success)
	clock.advance(7 * day)
	require.True(t, svc.BorrowBookByPatron(ctx, patronA, mockingbird).Success)
	clock.advance(day)
	require.True(t, svc.BorrowBookByPatron(ctx, patronA, orwell).Success)
	clock.advance(day)
	require.True(t, svc.ReturnBookByPatron(ctx, patronA, orwell).Success)
	require.True(t, svc.BorrowBookByPatron(ctx, patronB, orwell).Success)

	// Mar 25: gatsby is 10 days late (6.50), mockingbird 3 days late (1.50)
	clock.t = time.Date(2025, 3, 25, 9, 0, 0, 0, time.UTC)
	r := svc.GetPatronStatusReport(ctx, patronA)

	require.Len(t, r.CurrentlyBorrowed, 2)
	assert.Equal(t, 2, r.NumCurrentlyBorrowed)
	assert.Equal(t, gatsby, r.CurrentlyBorrowed[0].BookID)
	assert.Equal(t, "The Great Gatsby", r.CurrentlyBorrowed[0].Title)
	assert.Equal(t, "2025-03-15T10:00:00.000000Z", r.CurrentlyBorrowed[0].DueDate)
	assert.Equal(t, mockingbird, r.CurrentlyBorrowed[1].BookID)

	assert.True(t, decimal.RequireFromString("8.00").Equal(r.TotalLateFees), r.TotalLateFees.String())

	require.Len(t, r.BorrowingHistory, 3)
	assert.Equal(t, orwell, r.BorrowingHistory[0].BookID)
	require.NotNil(t, r.BorrowingHistory[0].ReturnDate)
	assert.Equal(t, "2025-03-10T10:00:00.000000Z", *r.BorrowingHistory[0].ReturnDate)
	assert.Equal(t, mockingbird, r.BorrowingHistory[1].BookID)
	assert.Nil(t, r.BorrowingHistory[1].ReturnDate)
	assert.Equal(t, gatsby, r.BorrowingHistory[2].BookID)
	assert.Equal(t, "2025-03-01T10:00:00.000000Z", r.BorrowingHistory[2].BorrowDate)
}

func Test_GetPatronStatusReport_HistoryFailureOnlyEmptiesHistory(t *testing.T) {
	store := library.NewMemStore()
	ctx := context.Background()
	id, err := store.InsertBook(ctx, "1984", "George Orwell", "9780451524935", 1)
	require.NoError(t, err)
	require.True(t, library.NewService(store).BorrowBookByPatron(ctx, patronA, id).Success)

	svc := library.NewService(&faultyStorage{Storage: store, failHistory: true})
	r := svc.GetPatronStatusReport(ctx, patronA)

	assert.Equal(t, 1, r.NumCurrentlyBorrowed)
	assert.Empty(t, r.BorrowingHistory)
	assert.NotNil(t, r.BorrowingHistory)
}

func Test_SeedSampleData_OnlyFillsEmptyCatalog(t *testing.T) {
	store := library.NewMemStore()
	ctx := context.Background()

	n, err := library.SeedSampleData(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = library.SeedSampleData(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, n)

	books, err := store.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "The Great Gatsby", books[0].Title)
	assert.Equal(t, 3, books[0].AvailableCopies)
	assert.Equal(t, "9780061120084", books[1].ISBN)
	assert.Equal(t, 4, books[2].TotalCopies)
}
