package library

import (
	"errors"
	"net/http"
)

// ===== Error model =====

type Code string

const (
	CodeOK              Code = "OK"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT" // unavailable book, borrow limit, duplicate isbn
	CodeInternal        Code = "INTERNAL"
)

// Storage sentinels.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateISBN = errors.New("duplicate isbn")
)

// Outcome is the result of a mutating catalog operation. Message is meant
// for direct display and its wording is stable.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    Code   `json:"-"`
}

func ok(msg string) Outcome { return Outcome{Success: true, Message: msg, Code: CodeOK} }

func fail(code Code, msg string) Outcome { return Outcome{Message: msg, Code: code} }

const (
	msgTitleRequired       = "Title is required."
	msgTitleTooLong        = "Title must be less than 200 characters."
	msgAuthorRequired      = "Author is required."
	msgAuthorTooLong       = "Author must be less than 100 characters."
	msgInvalidISBN         = "ISBN must be exactly 13 digits."
	msgInvalidCopies       = "Total copies must be a positive integer."
	msgDuplicateISBN       = "A book with this ISBN already exists."
	msgAddBookDBError      = "Database error occurred while adding the book."
	msgInvalidPatronID     = "Invalid patron ID. Must be exactly 6 digits."
	msgBookNotFound        = "Book not found."
	msgBookUnavailable     = "This book is currently not available."
	msgBorrowLimit         = "You have reached the maximum borrowing limit of 5 books."
	msgBorrowRecordDBError = "Database error occurred while creating borrow record."
	msgAvailabilityDBError = "Database error occurred while updating book availability."
	msgNoActiveRecord      = "No active borrow record found for this patron and book."
	msgBookLookupDBError   = "Database error occurred while looking up the book."
	msgReturnDBError       = "Database error occurred while recording the return."
)

func toHTTPStatus(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
