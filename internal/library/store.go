package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	mysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"library-backend/internal/platform/db"
)

const mysqlErrDuplicateEntry = 1062

var (
	dialect = goqu.Dialect("mysql")

	bookColumns   = []any{"id", "title", "author", "isbn", "total_copies", "available_copies"}
	detailColumns = []any{
		"br.id", "br.record_ulid", "br.patron_id", "br.book_id",
		"br.borrow_date", "br.due_date", "br.return_date",
		"b.title", "b.author", "b.isbn",
	}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id               BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title            VARCHAR(200) NOT NULL,
		author           VARCHAR(100) NOT NULL,
		isbn             CHAR(13)     NOT NULL,
		total_copies     INT          NOT NULL,
		available_copies INT          NOT NULL,
		UNIQUE KEY uq_books_isbn (isbn),
		CONSTRAINT chk_books_availability CHECK (available_copies BETWEEN 0 AND total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id          BIGINT      NOT NULL AUTO_INCREMENT PRIMARY KEY,
		record_ulid CHAR(26)    NOT NULL,
		patron_id   CHAR(6)     NOT NULL,
		book_id     BIGINT      NOT NULL,
		borrow_date VARCHAR(40) NOT NULL,
		due_date    VARCHAR(40) NOT NULL,
		return_date VARCHAR(40) NULL,
		UNIQUE KEY uq_borrow_records_ulid (record_ulid),
		KEY idx_borrow_records_patron_book (patron_id, book_id, return_date),
		CONSTRAINT fk_borrow_records_book FOREIGN KEY (book_id) REFERENCES books (id)
	)`,
}

// Store is the MySQL implementation of Storage.
type Store struct {
	conn *sqlx.DB
	q    db.DBTX
	ids  IDGen
	inTx bool
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{conn: conn, q: conn, ids: newULIDGen()}
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &Store{conn: s.conn, q: tx, ids: s.ids, inTx: true})
	})
}

// ---- Books ----

func (s *Store) selectBooks(ctx context.Context, where ...exp.Expression) ([]Book, error) {
	q, args, err := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build books query: %w", err)
	}
	books := []Book{}
	if err := s.q.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	return books, nil
}

func (s *Store) getBook(ctx context.Context, where exp.Expression) (*Book, error) {
	books, err := s.selectBooks(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, ErrNotFound
	}
	return &books[0], nil
}

func (s *Store) GetAllBooks(ctx context.Context) ([]Book, error) {
	return s.selectBooks(ctx)
}

func (s *Store) GetBookByID(ctx context.Context, id int64) (*Book, error) {
	return s.getBook(ctx, goqu.C("id").Eq(id))
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	return s.getBook(ctx, goqu.C("isbn").Eq(isbn))
}

func (s *Store) InsertBook(ctx context.Context, title, author, isbn string, totalCopies int) (int64, error) {
	const q = `
	INSERT INTO books (title, author, isbn, total_copies, available_copies)
	VALUES (?, ?, ?, ?, ?)`
	res, err := s.q.ExecContext(ctx, q, title, author, isbn, totalCopies, totalCopies)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
			return 0, ErrDuplicateISBN
		}
		return 0, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return id, nil
}

// UpdateBookAvailability is a single conditional UPDATE, so the bound check
// and the write cannot interleave with another borrow or return.
func (s *Store) UpdateBookAvailability(ctx context.Context, bookID int64, delta int) (bool, error) {
	const q = `
	UPDATE books
	SET available_copies = available_copies + ?
	WHERE id = ?
	AND available_copies + ? BETWEEN 0 AND total_copies`
	res, err := s.q.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return false, fmt.Errorf("update availability: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update availability: %w", err)
	}
	return aff == 1, nil
}

// ---- Borrow records ----

func (s *Store) GetPatronBorrowCount(ctx context.Context, patronID string) (int, error) {
	const q = `SELECT COUNT(*) FROM borrow_records WHERE patron_id = ? AND return_date IS NULL`
	var n int
	if err := s.q.GetContext(ctx, &n, q, patronID); err != nil {
		return 0, fmt.Errorf("count borrows: %w", err)
	}
	return n, nil
}

func (s *Store) InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) (int64, error) {
	const q = `
	INSERT INTO borrow_records
	(record_ulid, patron_id, book_id, borrow_date, due_date, return_date)
	VALUES
	(?, ?, ?, ?, ?, NULL)`
	res, err := s.q.ExecContext(ctx, q,
		s.ids.NewULID(borrowDate),
		patronID,
		bookID,
		FormatTimestamp(borrowDate),
		FormatTimestamp(dueDate),
	)
	if err != nil {
		return 0, fmt.Errorf("insert borrow record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert borrow record: %w", err)
	}
	return id, nil
}

func (s *Store) GetActiveBorrowRecord(ctx context.Context, patronID string, bookID int64) (*BorrowRecord, error) {
	const q = `
	SELECT id, record_ulid, patron_id, book_id, borrow_date, due_date, return_date
	FROM borrow_records
	WHERE patron_id = ? AND book_id = ? AND return_date IS NULL
	ORDER BY id DESC
	LIMIT 1`
	var r BorrowRecord
	if err := s.q.GetContext(ctx, &r, q, patronID, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active borrow record: %w", err)
	}
	return &r, nil
}

// UpdateBorrowRecordReturnDate closes only the most recent active record of the pair.
func (s *Store) UpdateBorrowRecordReturnDate(ctx context.Context, patronID string, bookID int64, returnDate time.Time) (bool, error) {
	const q = `
	UPDATE borrow_records
	SET return_date = ?
	WHERE patron_id = ? AND book_id = ? AND return_date IS NULL
	ORDER BY id DESC
	LIMIT 1`
	res, err := s.q.ExecContext(ctx, q, FormatTimestamp(returnDate), patronID, bookID)
	if err != nil {
		return false, fmt.Errorf("update return date: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update return date: %w", err)
	}
	return aff > 0, nil
}

func (s *Store) selectDetails(ctx context.Context, where exp.Expression, order ...exp.OrderedExpression) ([]BorrowDetail, error) {
	q, args, err := dialect.From(goqu.T("borrow_records").As("br")).Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("br.book_id")))).
		Select(detailColumns...).
		Where(where).
		Order(order...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrow query: %w", err)
	}
	rows := []BorrowDetail{}
	if err := s.q.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select borrows: %w", err)
	}
	return rows, nil
}

func (s *Store) GetPatronCurrentBorrows(ctx context.Context, patronID string) ([]BorrowDetail, error) {
	return s.selectDetails(ctx,
		goqu.Ex{"br.patron_id": patronID, "br.return_date": nil},
		goqu.I("br.due_date").Asc(), goqu.I("br.id").Asc(),
	)
}

func (s *Store) GetPatronBorrowHistory(ctx context.Context, patronID string) ([]BorrowDetail, error) {
	return s.selectDetails(ctx,
		goqu.Ex{"br.patron_id": patronID},
		goqu.I("br.borrow_date").Desc(), goqu.I("br.id").Desc(),
	)
}

func (s *Store) GetPatronBorrowedBooks(ctx context.Context, patronID string, now time.Time) ([]BorrowedBook, error) {
	rows, err := s.GetPatronCurrentBorrows(ctx, patronID)
	if err != nil {
		return nil, err
	}
	return toBorrowedBooks(rows, now), nil
}

// ---- Search ----

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func (s *Store) SearchBooksTitle(ctx context.Context, term string) ([]Book, error) {
	return s.selectBooks(ctx, goqu.L("LOWER(title) LIKE ?", containsPattern(term)))
}

func (s *Store) SearchBooksAuthor(ctx context.Context, term string) ([]Book, error) {
	return s.selectBooks(ctx, goqu.L("LOWER(author) LIKE ?", containsPattern(term)))
}

func (s *Store) SearchBooksISBN(ctx context.Context, isbn string) ([]Book, error) {
	return s.selectBooks(ctx, goqu.C("isbn").Eq(isbn))
}
