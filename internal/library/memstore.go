package library

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type memData struct {
	books        []Book
	records      []BorrowRecord
	nextBookID   int64
	nextRecordID int64
}

func (d *memData) clone() *memData {
	return &memData{
		books:        slices.Clone(d.books),
		records:      slices.Clone(d.records),
		nextBookID:   d.nextBookID,
		nextRecordID: d.nextRecordID,
	}
}

// MemStore keeps the catalog in process memory. Rows are held in id order.
type MemStore struct {
	mu   *sync.Mutex // nil on the view handed to RunInTx callbacks
	data *memData
	ids  IDGen
}

func NewMemStore() *MemStore {
	return &MemStore{
		mu:   &sync.Mutex{},
		data: &memData{nextBookID: 1, nextRecordID: 1},
		ids:  newULIDGen(),
	}
}

func (m *MemStore) lock() func() {
	if m.mu == nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// RunInTx holds the store lock for the whole callback and puts the previous
// state back when fn fails.
func (m *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error {
	if m.mu == nil {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(ctx, &MemStore{data: m.data, ids: m.ids}); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

// ---- Books ----

func (m *MemStore) bookIndex(id int64) int {
	return slices.IndexFunc(m.data.books, func(b Book) bool { return b.ID == id })
}

func (m *MemStore) filterBooks(keep func(Book) bool) []Book {
	out := []Book{}
	for _, b := range m.data.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m *MemStore) GetAllBooks(ctx context.Context) ([]Book, error) {
	defer m.lock()()
	return m.filterBooks(func(Book) bool { return true }), nil
}

func (m *MemStore) GetBookByID(ctx context.Context, id int64) (*Book, error) {
	defer m.lock()()
	i := m.bookIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	b := m.data.books[i]
	return &b, nil
}

func (m *MemStore) GetBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	defer m.lock()()
	for _, b := range m.data.books {
		if b.ISBN == isbn {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) InsertBook(ctx context.Context, title, author, isbn string, totalCopies int) (int64, error) {
	defer m.lock()()
	for _, b := range m.data.books {
		if b.ISBN == isbn {
			return 0, ErrDuplicateISBN
		}
	}
	id := m.data.nextBookID
	m.data.nextBookID++
	m.data.books = append(m.data.books, Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	})
	return id, nil
}

func (m *MemStore) UpdateBookAvailability(ctx context.Context, bookID int64, delta int) (bool, error) {
	defer m.lock()()
	i := m.bookIndex(bookID)
	if i < 0 {
		return false, nil
	}
	b := &m.data.books[i]
	next := b.AvailableCopies + delta
	if next < 0 || next > b.TotalCopies {
		return false, nil
	}
	b.AvailableCopies = next
	return true, nil
}

// ---- Borrow records ----

func (m *MemStore) GetPatronBorrowCount(ctx context.Context, patronID string) (int, error) {
	defer m.lock()()
	n := 0
	for _, r := range m.data.records {
		if r.PatronID == patronID && r.Active() {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) (int64, error) {
	defer m.lock()()
	if m.bookIndex(bookID) < 0 {
		return 0, ErrNotFound
	}
	id := m.data.nextRecordID
	m.data.nextRecordID++
	m.data.records = append(m.data.records, BorrowRecord{
		ID:         id,
		RecordULID: m.ids.NewULID(borrowDate),
		PatronID:   patronID,
		BookID:     bookID,
		BorrowDate: FormatTimestamp(borrowDate),
		DueDate:    FormatTimestamp(dueDate),
	})
	return id, nil
}

// activeIndex finds the newest active record for the pair, -1 when none.
func (m *MemStore) activeIndex(patronID string, bookID int64) int {
	for i := len(m.data.records) - 1; i >= 0; i-- {
		r := m.data.records[i]
		if r.PatronID == patronID && r.BookID == bookID && r.Active() {
			return i
		}
	}
	return -1
}

func (m *MemStore) GetActiveBorrowRecord(ctx context.Context, patronID string, bookID int64) (*BorrowRecord, error) {
	defer m.lock()()
	i := m.activeIndex(patronID, bookID)
	if i < 0 {
		return nil, ErrNotFound
	}
	r := m.data.records[i]
	return &r, nil
}

func (m *MemStore) UpdateBorrowRecordReturnDate(ctx context.Context, patronID string, bookID int64, returnDate time.Time) (bool, error) {
	defer m.lock()()
	i := m.activeIndex(patronID, bookID)
	if i < 0 {
		return false, nil
	}
	m.data.records[i].ReturnDate.String = FormatTimestamp(returnDate)
	m.data.records[i].ReturnDate.Valid = true
	return true, nil
}

func (m *MemStore) details(keep func(BorrowRecord) bool) []BorrowDetail {
	out := []BorrowDetail{}
	for _, r := range m.data.records {
		if !keep(r) {
			continue
		}
		i := m.bookIndex(r.BookID)
		if i < 0 {
			continue
		}
		b := m.data.books[i]
		out = append(out, BorrowDetail{BorrowRecord: r, Title: b.Title, Author: b.Author, ISBN: b.ISBN})
	}
	return out
}

func (m *MemStore) GetPatronCurrentBorrows(ctx context.Context, patronID string) ([]BorrowDetail, error) {
	defer m.lock()()
	rows := m.details(func(r BorrowRecord) bool { return r.PatronID == patronID && r.Active() })
	slices.SortStableFunc(rows, func(a, b BorrowDetail) int {
		return strings.Compare(a.DueDate, b.DueDate)
	})
	return rows, nil
}

func (m *MemStore) GetPatronBorrowHistory(ctx context.Context, patronID string) ([]BorrowDetail, error) {
	defer m.lock()()
	rows := m.details(func(r BorrowRecord) bool { return r.PatronID == patronID })
	slices.SortStableFunc(rows, func(a, b BorrowDetail) int {
		if c := strings.Compare(b.BorrowDate, a.BorrowDate); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return rows, nil
}

func (m *MemStore) GetPatronBorrowedBooks(ctx context.Context, patronID string, now time.Time) ([]BorrowedBook, error) {
	rows, err := m.GetPatronCurrentBorrows(ctx, patronID)
	if err != nil {
		return nil, err
	}
	return toBorrowedBooks(rows, now), nil
}

// ---- Search ----

func (m *MemStore) SearchBooksTitle(ctx context.Context, term string) ([]Book, error) {
	defer m.lock()()
	needle := foldCase(term)
	return m.filterBooks(func(b Book) bool { return strings.Contains(foldCase(b.Title), needle) }), nil
}

func (m *MemStore) SearchBooksAuthor(ctx context.Context, term string) ([]Book, error) {
	defer m.lock()()
	needle := foldCase(term)
	return m.filterBooks(func(b Book) bool { return strings.Contains(foldCase(b.Author), needle) }), nil
}

func (m *MemStore) SearchBooksISBN(ctx context.Context, isbn string) ([]Book, error) {
	defer m.lock()()
	return m.filterBooks(func(b Book) bool { return b.ISBN == isbn }), nil
}
