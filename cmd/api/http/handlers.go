package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

var RequestTimeout = 5 * time.Second

type LibraryHandler struct {
	service   library.ServiceAPI
	languages LanguageConfig
	now       func() time.Time
}

func NewLibraryHandler(service library.ServiceAPI, languages LanguageConfig, now func() time.Time) *LibraryHandler {
	if now == nil {
		now = time.Now
	}
	return &LibraryHandler{service: service, languages: languages, now: now}
}

/* Isolates the ID from the URL, given the collection prefix. */
func isolateId(w http.ResponseWriter, r *http.Request, prefix string) (id uuid.UUID, err error) {
	justId, _ := strings.CutPrefix(r.URL.Path, prefix)
	justId = strings.TrimSuffix(justId, "/")
	id, err = uuid.Parse(justId)
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
		return id, err
	}
	return id, nil
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

/* Maps service errors to HTTP responses: field-scoped validation errors and
refusals keep their payload, not-found sentinels turn into 404, anything
unexpected is logged and turns into 500. */
func handleError(err error, w http.ResponseWriter) {
	var validation *library.ErrValidation
	if errors.As(err, &validation) {
		responseJSON(w, http.StatusBadRequest, validation)
		return
	}

	switch {
	case errors.Is(err, library.ErrResponseAuthorNotFound),
		errors.Is(err, library.ErrResponseBookNotFound),
		errors.Is(err, library.ErrResponseCustomerNotFound),
		errors.Is(err, library.ErrResponseLoanNotFound),
		errors.Is(err, library.ErrResponseUserNotFound):
		log.Println(err)
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, library.ErrResponseLoanNotReturned):
		log.Println(err)
		responseJSON(w, http.StatusConflict, library.ErrResponseLoanNotReturned)
	case errors.Is(err, context.DeadlineExceeded):
		log.Println(err)
		w.WriteHeader(http.StatusRequestTimeout)
	default:
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func withTimeout(r *http.Request) (*http.Request, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	return r.WithContext(ctx), cancel
}

// -- Authors --

/* Addresses a call to "/authors" according to the requested action.  */
func (h *LibraryHandler) authors(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.listAuthors(w, r)
	case http.MethodPost:
		h.createAuthor(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/authors/(expected id here)" according to the requested action.  */
func (h *LibraryHandler) authorById(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.getAuthorById(w, r)
	case http.MethodPut:
		h.updateAuthor(w, r)
	case http.MethodDelete:
		h.deleteAuthor(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type AuthorEntry struct {
	FullName string `json:"full_name"`
}

type AuthorResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
}

/*Copy the fields of an author object to an http layer struct with json tags*/
func authorToResponse(a library.Author) AuthorResponse {
	return AuthorResponse{
		ID:       a.ID,
		FullName: a.FullName,
	}
}

func (h *LibraryHandler) createAuthor(w http.ResponseWriter, r *http.Request) {
	var authorEntry AuthorEntry
	err := json.NewDecoder(r.Body).Decode(&authorEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	storedAuthor, err := h.service.CreateAuthor(r.Context(), library.CreateAuthorRequest{FullName: authorEntry.FullName})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusCreated, authorToResponse(storedAuthor))
}

func (h *LibraryHandler) getAuthorById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/authors/")
	if err != nil {
		return
	}

	returnedAuthor, err := h.service.GetAuthor(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, authorToResponse(returnedAuthor))
}

func (h *LibraryHandler) listAuthors(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if len(name) > 250 {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseQuerySearchTooLong)
		return
	}

	authorsList, err := h.service.ListAuthors(r.Context(), name)
	if err != nil {
		handleError(err, w)
		return
	}

	results := []AuthorResponse{}
	for _, returnedAuthor := range authorsList {
		results = append(results, authorToResponse(returnedAuthor))
	}
	responseJSON(w, http.StatusOK, results)
}

func (h *LibraryHandler) updateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/authors/")
	if err != nil {
		return
	}

	var authorEntry AuthorEntry
	err = json.NewDecoder(r.Body).Decode(&authorEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	updatedAuthor, err := h.service.UpdateAuthor(r.Context(), library.UpdateAuthorRequest{ID: id, FullName: authorEntry.FullName})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, authorToResponse(updatedAuthor))
}

func (h *LibraryHandler) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/authors/")
	if err != nil {
		return
	}

	err = h.service.DeleteAuthor(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// -- Books --

/* Addresses a call to "/books" according to the requested action.  */
func (h *LibraryHandler) books(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.listBooks(w, r)
	case http.MethodPost:
		h.createBook(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/books/(expected id here)" according to the requested action.  */
func (h *LibraryHandler) bookById(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.getBookById(w, r)
	case http.MethodPut:
		h.updateBook(w, r)
	case http.MethodDelete:
		h.deleteBook(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type BookEntry struct {
	Title     string      `json:"title"`
	Summary   *string     `json:"summary"`
	Quantity  *int        `json:"quantity"`
	InStock   *int        `json:"in_stock"`
	AuthorIDs []uuid.UUID `json:"author_ids"`
}

type BookResponse struct {
	ID       uuid.UUID        `json:"id"`
	Title    string           `json:"title"`
	Summary  *string          `json:"summary"`
	Quantity *int             `json:"quantity"`
	InStock  *int             `json:"in_stock"`
	Authors  []AuthorResponse `json:"authors"`
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b library.Book) BookResponse {
	authors := []AuthorResponse{}
	for _, bookAuthor := range b.Authors {
		authors = append(authors, authorToResponse(bookAuthor))
	}
	return BookResponse{
		ID:       b.ID,
		Title:    b.Title,
		Summary:  b.Summary,
		Quantity: b.Quantity,
		InStock:  b.InStock,
		Authors:  authors,
	}
}

func booksToResponse(booksList []library.Book) []BookResponse {
	results := []BookResponse{}
	for _, returnedBook := range booksList {
		results = append(results, bookToResponse(returnedBook))
	}
	return results
}

/* Validates the entry, then stores the entry as a new book. */
func (h *LibraryHandler) createBook(w http.ResponseWriter, r *http.Request) {
	var bookEntry BookEntry
	err := json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	storedBook, err := h.service.CreateBook(r.Context(), library.CreateBookRequest{
		Title:     bookEntry.Title,
		Summary:   bookEntry.Summary,
		Quantity:  bookEntry.Quantity,
		InStock:   bookEntry.InStock,
		AuthorIDs: bookEntry.AuthorIDs,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusCreated, bookToResponse(storedBook))
}

func (h *LibraryHandler) getBookById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	returnedBook, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, bookToResponse(returnedBook))
}

/* Returns a list of the stored books. Use available=true to keep only the
ones with copies in stock, the same set offered on loan creation. */
func (h *LibraryHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	search := query.Get("search")
	if len(search) > 250 {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseQuerySearchTooLong)
		return
	}

	var booksList []library.Book
	var err error
	if query.Get("available") == "true" {
		booksList, err = h.service.ListSelectableBooks(r.Context())
	} else {
		booksList, err = h.service.ListBooks(r.Context(), library.BookFilter{Search: search})
	}
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, booksToResponse(booksList))
}

/* Validates the entry, then updates the asked book. A librarian may set the
stock counter here, so the stock rule is checked again downstream. */
func (h *LibraryHandler) updateBook(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	var bookEntry BookEntry
	err = json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	updatedBook, err := h.service.UpdateBook(r.Context(), library.UpdateBookRequest{
		ID:        id,
		Title:     bookEntry.Title,
		Summary:   bookEntry.Summary,
		Quantity:  bookEntry.Quantity,
		InStock:   bookEntry.InStock,
		AuthorIDs: bookEntry.AuthorIDs,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, bookToResponse(updatedBook))
}

func (h *LibraryHandler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	err = h.service.DeleteBook(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
