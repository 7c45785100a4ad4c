package library

import (
	"context"
	"errors"
	"fmt"
)

var sampleBooks = []struct {
	title, author, isbn string
	copies              int
}{
	{"The Great Gatsby", "F. Scott Fitzgerald", "9780743273565", 3},
	{"To Kill a Mockingbird", "Harper Lee", "9780061120084", 2},
	{"1984", "George Orwell", "9780451524935", 4},
}

// SeedSampleData fills an empty catalog with a few classics and reports how
// many books were inserted. A catalog that already has books is left alone.
func SeedSampleData(ctx context.Context, storage Storage) (int, error) {
	books, err := storage.GetAllBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(books) > 0 {
		return 0, nil
	}

	n := 0
	for _, b := range sampleBooks {
		_, err := storage.InsertBook(ctx, b.title, b.author, b.isbn, b.copies)
		switch {
		case errors.Is(err, ErrDuplicateISBN):
			continue
		case err != nil:
			return n, fmt.Errorf("seed %s: %w", b.isbn, err)
		}
		n++
	}
	return n, nil
}
