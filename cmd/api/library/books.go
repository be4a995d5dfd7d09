package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID        uuid.UUID
	Title     string
	Summary   *string
	Quantity  *int
	InStock   *int
	Authors   []Author
	CreatedAt time.Time
	UpdatedAt time.Time
}

/* Whether at least one copy is on the shelf. */
func (b Book) HasAvailability() bool {
	return b.InStock != nil && *b.InStock > 0
}

type CreateBookRequest struct {
	Title     string
	Summary   *string
	Quantity  *int
	InStock   *int
	AuthorIDs []uuid.UUID
}

type UpdateBookRequest struct {
	ID        uuid.UUID
	Title     string
	Summary   *string
	Quantity  *int
	InStock   *int
	AuthorIDs []uuid.UUID
}

type BookFilter struct {
	Search        string
	AvailableOnly bool
}

/* Verifies the book entry fields, including the rule that the copies in
stock can never exceed the copies owned. */
func validateBookFields(title string, quantity, inStock *int) *ErrValidation {
	validation := NewErrValidation()
	if strings.TrimSpace(title) == "" {
		validation.Add("title", msgFieldRequired)
	}
	if quantity == nil {
		validation.Add("quantity", msgFieldRequired)
	} else if *quantity < 0 {
		validation.Add("quantity", "the quantity of copies cannot be negative.")
	}
	if inStock == nil {
		validation.Add("in_stock", msgFieldRequired)
	} else if *inStock < 0 {
		validation.Add("in_stock", "the quantity in stock cannot be negative.")
	}
	if quantity != nil && inStock != nil && *inStock > *quantity {
		validation.Add("in_stock", "the quantity of books in stock cannot be greater than the quantity of copies.")
	}
	return validation
}

func (s *Service) resolveAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]Author, error) {
	authors := []Author{}
	for _, authorID := range authorIDs {
		author, err := s.repo.GetAuthorByID(ctx, authorID)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}
	return authors, nil
}

func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (Book, error) {
	validation := validateBookFields(req.Title, req.Quantity, req.InStock)
	if validation.Any() {
		return Book{}, validation
	}

	authors, err := s.resolveAuthors(ctx, req.AuthorIDs)
	if err != nil {
		return Book{}, err
	}

	createdAt := s.now().UTC().Round(time.Millisecond)
	newBook := Book{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(req.Title),
		Summary:   req.Summary,
		Quantity:  req.Quantity,
		InStock:   req.InStock,
		Authors:   authors,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	return s.repo.CreateBook(ctx, newBook)
}

func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	return s.repo.GetBookByID(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, filter BookFilter) ([]Book, error) {
	return s.repo.ListBooks(ctx, filter)
}

/* Manual librarian edit. The stock counter may be set directly here, so the
stock-within-quantity rule is validated again before anything is written. */
func (s *Service) UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error) {
	validation := validateBookFields(req.Title, req.Quantity, req.InStock)
	if validation.Any() {
		return Book{}, validation
	}

	currentBook, err := s.repo.GetBookByID(ctx, req.ID)
	if err != nil {
		return Book{}, err
	}

	authors, err := s.resolveAuthors(ctx, req.AuthorIDs)
	if err != nil {
		return Book{}, err
	}

	currentBook.Title = strings.TrimSpace(req.Title)
	currentBook.Summary = req.Summary
	currentBook.Quantity = req.Quantity
	currentBook.InStock = req.InStock
	currentBook.Authors = authors
	currentBook.UpdatedAt = s.now().UTC().Round(time.Millisecond)
	return s.repo.UpdateBook(ctx, currentBook)
}

func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBook(ctx, id)
}

/* Books that can go on a new loan: only the ones with copies in stock. */
func (s *Service) ListSelectableBooks(ctx context.Context) ([]Book, error) {
	return s.repo.ListBooks(ctx, BookFilter{AvailableOnly: true})
}

/* Public catalog search over available books, matching title or author name. */
func (s *Service) SearchAvailableBooks(ctx context.Context, search string) ([]Book, error) {
	return s.repo.ListBooks(ctx, BookFilter{Search: search, AvailableOnly: true})
}
