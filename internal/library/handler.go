package library

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// catalog
	r.GET("/books", h.ListBooks)
	r.POST("/books", h.AddBook)
	r.GET("/books/search", h.SearchBooks)

	// loans
	r.POST("/borrows", h.Borrow)
	r.POST("/returns", h.Return)

	// patrons
	r.GET("/patrons/:patron_id/report", h.PatronReport)
	r.GET("/patrons/:patron_id/books/:book_id/late-fee", h.LateFee)
}

// ---------- handlers ----------

// GET /books
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.svc.GetAllBooks(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("list books")
		c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "failed to load catalog"))
		return
	}
	c.JSON(http.StatusOK, BookListResponse{Items: books, Total: len(books)})
}

// POST /books
func (h *Handler) AddBook(c *gin.Context) {
	var req AddBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	out := h.svc.AddBookToCatalog(c.Request.Context(), req.Title, req.Author, req.ISBN, int(req.TotalCopies))
	respondOutcome(c, out, http.StatusCreated)
}

// GET /books/search?q=&type=
func (h *Handler) SearchBooks(c *gin.Context) {
	books := h.svc.SearchBooksInCatalog(c.Request.Context(), c.Query("q"), c.DefaultQuery("type", SearchByTitle))
	c.JSON(http.StatusOK, BookListResponse{Items: books, Total: len(books)})
}

// POST /borrows
func (h *Handler) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	out := h.svc.BorrowBookByPatron(c.Request.Context(), req.PatronID, req.BookID)
	respondOutcome(c, out, http.StatusCreated)
}

// POST /returns
func (h *Handler) Return(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	out := h.svc.ReturnBookByPatron(c.Request.Context(), req.PatronID, req.BookID)
	respondOutcome(c, out, http.StatusOK)
}

// GET /patrons/:patron_id/report
func (h *Handler) PatronReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetPatronStatusReport(c.Request.Context(), c.Param("patron_id")))
}

// GET /patrons/:patron_id/books/:book_id/late-fee
func (h *Handler) LateFee(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "book_id must be an integer"))
		return
	}
	c.JSON(http.StatusOK, h.svc.CalculateLateFeeForBook(c.Request.Context(), c.Param("patron_id"), bookID))
}

// ---------- helpers ----------

func respondOutcome(c *gin.Context, out Outcome, successStatus int) {
	if out.Success {
		c.JSON(successStatus, out)
		return
	}
	c.JSON(toHTTPStatus(out.Code), out)
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}
