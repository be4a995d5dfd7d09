package inmemory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

/* InMemoryStore implements the library repository on top of go-memdb. It
backs the development mode and the store-contract tests, with the same
transaction shape as the postgres store. */
type InMemoryStore struct {
	db  *memdb.MemDB
	exc *memdb.Txn
}

func NewInMemoryStore() (*InMemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"author": {
				Name: "author",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			"book": {
				Name: "book",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			"customer": {
				Name: "customer",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			"loan": {
				Name: "loan",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"customer_id": {
						Name:    "customer_id",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "CustomerID"},
					},
				},
			},
			"user": {
				Name: "user",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &InMemoryStore{db: db, exc: nil}, nil
}

// -- Adapted records (memdb indexes on string IDs) --

type AdaptedAuthor struct {
	ID        string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func adaptAuthorIdToString(a library.Author) AdaptedAuthor {
	return AdaptedAuthor{
		ID:        a.ID.String(),
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func adaptAuthorIdToUUID(a AdaptedAuthor) library.Author {
	return library.Author{
		ID:        uuid.MustParse(a.ID),
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type AdaptedBook struct {
	ID        string
	Title     string
	Summary   *string
	Quantity  int
	InStock   int
	AuthorIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func adaptBookIdToString(b library.Book) AdaptedBook {
	authorIDs := make([]string, 0, len(b.Authors))
	for _, author := range b.Authors {
		authorIDs = append(authorIDs, author.ID.String())
	}
	return AdaptedBook{
		ID:        b.ID.String(),
		Title:     b.Title,
		Summary:   b.Summary,
		Quantity:  *b.Quantity,
		InStock:   *b.InStock,
		AuthorIDs: authorIDs,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func (store *InMemoryStore) adaptBookIdToUUID(b AdaptedBook) (library.Book, error) {
	quantity := b.Quantity
	inStock := b.InStock

	authors := []library.Author{}
	for _, authorID := range b.AuthorIDs {
		raw, err := store.exc.First("author", "id", authorID)
		if err != nil {
			return library.Book{}, fmt.Errorf("resolving book authors: %w", err)
		}
		if raw == nil {
			continue // author deleted out from under the book
		}
		authors = append(authors, adaptAuthorIdToUUID(raw.(AdaptedAuthor)))
	}

	return library.Book{
		ID:        uuid.MustParse(b.ID),
		Title:     b.Title,
		Summary:   b.Summary,
		Quantity:  &quantity,
		InStock:   &inStock,
		Authors:   authors,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

type AdaptedCustomer struct {
	ID             string
	DocumentNumber string
	FirstName      string
	LastName       string
	Email          *string
	PhoneNumber    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func adaptCustomerIdToString(c library.Customer) AdaptedCustomer {
	return AdaptedCustomer{
		ID:             c.ID.String(),
		DocumentNumber: c.DocumentNumber,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func adaptCustomerIdToUUID(c AdaptedCustomer) library.Customer {
	return library.Customer{
		ID:             uuid.MustParse(c.ID),
		DocumentNumber: c.DocumentNumber,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type AdaptedLoan struct {
	ID         string
	CustomerID string
	BookIDs    []string
	Status     string
	EndDate    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func adaptLoanIdToString(l library.Loan) AdaptedLoan {
	bookIDs := make([]string, 0, len(l.Books))
	for _, loanedBook := range l.Books {
		bookIDs = append(bookIDs, loanedBook.ID.String())
	}
	return AdaptedLoan{
		ID:         l.ID.String(),
		CustomerID: l.CustomerID.String(),
		BookIDs:    bookIDs,
		Status:     string(l.Status),
		EndDate:    l.EndDate,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (store *InMemoryStore) adaptLoanIdToUUID(l AdaptedLoan) (library.Loan, error) {
	books := []library.Book{}
	for _, bookID := range l.BookIDs {
		raw, err := store.exc.First("book", "id", bookID)
		if err != nil {
			return library.Loan{}, fmt.Errorf("resolving loan books: %w", err)
		}
		if raw == nil {
			return library.Loan{}, fmt.Errorf("resolving loan books: %w", library.ErrResponseBookNotFound)
		}
		loanedBook, err := store.adaptBookIdToUUID(raw.(AdaptedBook))
		if err != nil {
			return library.Loan{}, err
		}
		books = append(books, loanedBook)
	}

	return library.Loan{
		ID:         uuid.MustParse(l.ID),
		CustomerID: uuid.MustParse(l.CustomerID),
		Books:      books,
		Status:     library.LoanStatus(l.Status),
		EndDate:    l.EndDate,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}, nil
}

type AdaptedUser struct {
	ID          string
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber *string
	IsSuperuser bool
	IsStaff     bool
	IsActive    bool
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func adaptUserIdToString(u library.User) AdaptedUser {
	return AdaptedUser{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		IsSuperuser: u.IsSuperuser,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func adaptUserIdToUUID(u AdaptedUser) library.User {
	return library.User{
		ID:          uuid.MustParse(u.ID),
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		IsSuperuser: u.IsSuperuser,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		Status:      library.UserStatus(u.Status),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// -- Authors --

func (store *InMemoryStore) CreateAuthor(ctx context.Context, authorEntry library.Author) (library.Author, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	err := store.exc.Insert("author", adaptAuthorIdToString(authorEntry))
	if err != nil {
		return library.Author{}, fmt.Errorf("storing author on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return authorEntry, nil
}

func (store *InMemoryStore) GetAuthorByID(ctx context.Context, id uuid.UUID) (library.Author, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	raw, err := store.exc.First("author", "id", id.String())
	if err != nil {
		return library.Author{}, fmt.Errorf("searching author by ID: %w", err)
	}
	if raw == nil {
		return library.Author{}, fmt.Errorf("searching author by ID: %w", library.ErrResponseAuthorNotFound)
	}

	return adaptAuthorIdToUUID(raw.(AdaptedAuthor)), nil
}

func (store *InMemoryStore) ListAuthors(ctx context.Context, name string) ([]library.Author, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("author", "id")
	if err != nil {
		return nil, fmt.Errorf("listing authors from db: %w", err)
	}

	authorsList := []library.Author{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		author := raw.(AdaptedAuthor)
		if name != "" && !strings.Contains(strings.ToLower(author.FullName), strings.ToLower(name)) {
			continue
		}
		authorsList = append(authorsList, adaptAuthorIdToUUID(author))
	}

	sortNewestFirst(authorsList, func(a library.Author) time.Time { return a.CreatedAt })
	return authorsList, nil
}

func (store *InMemoryStore) UpdateAuthor(ctx context.Context, authorEntry library.Author) (library.Author, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("author", "id", authorEntry.ID.String())
	if err != nil {
		return library.Author{}, fmt.Errorf("updating author on db: %w", err)
	}
	if raw == nil {
		return library.Author{}, fmt.Errorf("updating author on db: %w", library.ErrResponseAuthorNotFound)
	}

	if err := store.exc.Insert("author", adaptAuthorIdToString(authorEntry)); err != nil {
		return library.Author{}, fmt.Errorf("updating author on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return authorEntry, nil
}

func (store *InMemoryStore) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("author", "id", id.String())
	if err != nil {
		return fmt.Errorf("deleting author from db: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("deleting author from db: %w", library.ErrResponseAuthorNotFound)
	}

	if err := store.exc.Delete("author", raw); err != nil {
		return fmt.Errorf("deleting author from db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return nil
}

// -- Books --

func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	err := store.exc.Insert("book", adaptBookIdToString(bookEntry))
	if err != nil {
		return library.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return bookEntry, nil
}

func (store *InMemoryStore) GetBookByID(ctx context.Context, id uuid.UUID) (library.Book, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	raw, err := store.exc.First("book", "id", id.String())
	if err != nil {
		return library.Book{}, fmt.Errorf("searching book by ID: %w", err)
	}
	if raw == nil {
		return library.Book{}, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound)
	}

	return store.adaptBookIdToUUID(raw.(AdaptedBook))
}

func (store *InMemoryStore) ListBooks(ctx context.Context, filter library.BookFilter) ([]library.Book, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("book", "id")
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	booksList := []library.Book{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		adapted := raw.(AdaptedBook)
		if filter.AvailableOnly && adapted.InStock <= 0 {
			continue
		}

		bookToReturn, err := store.adaptBookIdToUUID(adapted)
		if err != nil {
			return nil, err
		}

		if filter.Search != "" && !bookMatchesSearch(bookToReturn, filter.Search) {
			continue
		}
		booksList = append(booksList, bookToReturn)
	}

	sortNewestFirst(booksList, func(b library.Book) time.Time { return b.CreatedAt })
	return booksList, nil
}

func bookMatchesSearch(b library.Book, search string) bool {
	search = strings.ToLower(search)
	if strings.Contains(strings.ToLower(b.Title), search) {
		return true
	}
	for _, author := range b.Authors {
		if strings.Contains(strings.ToLower(author.FullName), search) {
			return true
		}
	}
	return false
}

func (store *InMemoryStore) UpdateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("book", "id", bookEntry.ID.String())
	if err != nil {
		return library.Book{}, fmt.Errorf("updating book on db: %w", err)
	}
	if raw == nil {
		return library.Book{}, fmt.Errorf("updating book on db: %w", library.ErrResponseBookNotFound)
	}

	if err := store.exc.Insert("book", adaptBookIdToString(bookEntry)); err != nil {
		return library.Book{}, fmt.Errorf("updating book on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return bookEntry, nil
}

func (store *InMemoryStore) DeleteBook(ctx context.Context, id uuid.UUID) error {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("book", "id", id.String())
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("deleting book from db: %w", library.ErrResponseBookNotFound)
	}

	if err := store.exc.Delete("book", raw); err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return nil
}

/* Moves the in_stock counter of every given book by delta. The whole set is
adjusted inside one transaction; a counter pushed outside 0..quantity fails
the call, like the check constraint on postgres does. */
func (store *InMemoryStore) AdjustStock(ctx context.Context, bookIDs []uuid.UUID, delta int) error {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	for _, bookID := range bookIDs {
		raw, err := store.exc.First("book", "id", bookID.String())
		if err != nil {
			return fmt.Errorf("adjusting stock on db: %w", err)
		}
		if raw == nil {
			return fmt.Errorf("adjusting stock on db: %w", library.ErrResponseBookNotFound)
		}

		adjustedBook := raw.(AdaptedBook)
		adjustedBook.InStock += delta
		if adjustedBook.InStock < 0 || adjustedBook.InStock > adjustedBook.Quantity {
			return fmt.Errorf("adjusting stock on db: book %s in_stock out of range", adjustedBook.ID)
		}

		if err := store.exc.Insert("book", adjustedBook); err != nil {
			return fmt.Errorf("adjusting stock on db: %w", err)
		}
	}

	if !insideTx {
		store.exc.Commit()
	}
	return nil
}

// -- Customers --

func (store *InMemoryStore) CreateCustomer(ctx context.Context, customerEntry library.Customer) (library.Customer, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	err := store.exc.Insert("customer", adaptCustomerIdToString(customerEntry))
	if err != nil {
		return library.Customer{}, fmt.Errorf("storing customer on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return customerEntry, nil
}

func (store *InMemoryStore) GetCustomerByID(ctx context.Context, id uuid.UUID) (library.Customer, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	raw, err := store.exc.First("customer", "id", id.String())
	if err != nil {
		return library.Customer{}, fmt.Errorf("searching customer by ID: %w", err)
	}
	if raw == nil {
		return library.Customer{}, fmt.Errorf("searching customer by ID: %w", library.ErrResponseCustomerNotFound)
	}

	return adaptCustomerIdToUUID(raw.(AdaptedCustomer)), nil
}

func (store *InMemoryStore) ListCustomers(ctx context.Context, search string) ([]library.Customer, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("customer", "id")
	if err != nil {
		return nil, fmt.Errorf("listing customers from db: %w", err)
	}

	search = strings.ToLower(search)
	customersList := []library.Customer{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		customer := raw.(AdaptedCustomer)
		if search != "" &&
			!strings.Contains(strings.ToLower(customer.DocumentNumber), search) &&
			!strings.Contains(strings.ToLower(customer.FirstName), search) &&
			!strings.Contains(strings.ToLower(customer.LastName), search) {
			continue
		}
		customersList = append(customersList, adaptCustomerIdToUUID(customer))
	}

	sortNewestFirst(customersList, func(c library.Customer) time.Time { return c.CreatedAt })
	return customersList, nil
}

func (store *InMemoryStore) UpdateCustomer(ctx context.Context, customerEntry library.Customer) (library.Customer, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("customer", "id", customerEntry.ID.String())
	if err != nil {
		return library.Customer{}, fmt.Errorf("updating customer on db: %w", err)
	}
	if raw == nil {
		return library.Customer{}, fmt.Errorf("updating customer on db: %w", library.ErrResponseCustomerNotFound)
	}

	if err := store.exc.Insert("customer", adaptCustomerIdToString(customerEntry)); err != nil {
		return library.Customer{}, fmt.Errorf("updating customer on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return customerEntry, nil
}

/* Removes the customer and, mirroring the cascade on postgres, every loan
that belongs to it. */
func (store *InMemoryStore) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("customer", "id", id.String())
	if err != nil {
		return fmt.Errorf("deleting customer from db: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("deleting customer from db: %w", library.ErrResponseCustomerNotFound)
	}

	if _, err := store.exc.DeleteAll("loan", "customer_id", id.String()); err != nil {
		return fmt.Errorf("deleting customer loans from db: %w", err)
	}

	if err := store.exc.Delete("customer", raw); err != nil {
		return fmt.Errorf("deleting customer from db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return nil
}

func (store *InMemoryStore) CustomerFieldInUse(ctx context.Context, field library.CustomerField, value string, exclude uuid.UUID) (bool, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("customer", "id")
	if err != nil {
		return false, fmt.Errorf("checking customer field in use: %w", err)
	}

	for raw := it.Next(); raw != nil; raw = it.Next() {
		customer := raw.(AdaptedCustomer)
		if customer.ID == exclude.String() {
			continue
		}

		switch field {
		case library.CustomerFieldDocumentNumber:
			if customer.DocumentNumber == value {
				return true, nil
			}
		case library.CustomerFieldEmail:
			if customer.Email != nil && *customer.Email == value {
				return true, nil
			}
		case library.CustomerFieldPhoneNumber:
			if customer.PhoneNumber != nil && *customer.PhoneNumber == value {
				return true, nil
			}
		default:
			return false, fmt.Errorf("checking customer field in use: unknown field %q", field)
		}
	}
	return false, nil
}

// -- Loans --

func (store *InMemoryStore) CreateLoan(ctx context.Context, loanEntry library.Loan) (library.Loan, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	err := store.exc.Insert("loan", adaptLoanIdToString(loanEntry))
	if err != nil {
		return library.Loan{}, fmt.Errorf("storing loan on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return loanEntry, nil
}

func (store *InMemoryStore) GetLoanByID(ctx context.Context, id uuid.UUID) (library.Loan, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	raw, err := store.exc.First("loan", "id", id.String())
	if err != nil {
		return library.Loan{}, fmt.Errorf("searching loan by ID: %w", err)
	}
	if raw == nil {
		return library.Loan{}, fmt.Errorf("searching loan by ID: %w", library.ErrResponseLoanNotFound)
	}

	return store.adaptLoanIdToUUID(raw.(AdaptedLoan))
}

func (store *InMemoryStore) ListLoans(ctx context.Context, filter library.LoanFilter) ([]library.Loan, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("loan", "id")
	if err != nil {
		return nil, fmt.Errorf("listing loans from db: %w", err)
	}

	loansList := []library.Loan{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		loan := raw.(AdaptedLoan)
		if filter.CustomerID != uuid.Nil && loan.CustomerID != filter.CustomerID.String() {
			continue
		}
		if filter.Status != "" && loan.Status != string(filter.Status) {
			continue
		}

		loanToReturn, err := store.adaptLoanIdToUUID(loan)
		if err != nil {
			return nil, err
		}
		loansList = append(loansList, loanToReturn)
	}

	sortNewestFirst(loansList, func(l library.Loan) time.Time { return l.CreatedAt })
	return loansList, nil
}

func (store *InMemoryStore) UpdateLoan(ctx context.Context, loanEntry library.Loan) (library.Loan, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("loan", "id", loanEntry.ID.String())
	if err != nil {
		return library.Loan{}, fmt.Errorf("updating loan on db: %w", err)
	}
	if raw == nil {
		return library.Loan{}, fmt.Errorf("updating loan on db: %w", library.ErrResponseLoanNotFound)
	}

	// The book set of a loan never changes after creation.
	updatedLoan := adaptLoanIdToString(loanEntry)
	updatedLoan.BookIDs = raw.(AdaptedLoan).BookIDs

	if err := store.exc.Insert("loan", updatedLoan); err != nil {
		return library.Loan{}, fmt.Errorf("updating loan on db: %w", err)
	}

	loanToReturn, err := store.adaptLoanIdToUUID(updatedLoan)
	if err != nil {
		return library.Loan{}, err
	}

	if !insideTx {
		store.exc.Commit()
	}
	return loanToReturn, nil
}

func (store *InMemoryStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("loan", "id", id.String())
	if err != nil {
		return fmt.Errorf("deleting loan from db: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("deleting loan from db: %w", library.ErrResponseLoanNotFound)
	}

	if err := store.exc.Delete("loan", raw); err != nil {
		return fmt.Errorf("deleting loan from db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return nil
}

func (store *InMemoryStore) ActiveBookCount(ctx context.Context, customerID uuid.UUID) (int, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("loan", "customer_id", customerID.String())
	if err != nil {
		return 0, fmt.Errorf("counting active loan books from db: %w", err)
	}

	count := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		loan := raw.(AdaptedLoan)
		if library.LoanStatus(loan.Status).Active() {
			count += len(loan.BookIDs)
		}
	}
	return count, nil
}

func (store *InMemoryStore) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	it, err := store.exc.Get("loan", "id")
	if err != nil {
		return 0, fmt.Errorf("marking overdue loans on db: %w", err)
	}

	overdue := []AdaptedLoan{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		loan := raw.(AdaptedLoan)
		if loan.Status == string(library.LoanStatusInTime) && loan.EndDate.Before(today) {
			overdue = append(overdue, loan)
		}
	}

	for i := range overdue {
		overdue[i].Status = string(library.LoanStatusPast)
		if err := store.exc.Insert("loan", overdue[i]); err != nil {
			return 0, fmt.Errorf("marking overdue loans on db: %w", err)
		}
	}

	if !insideTx {
		store.exc.Commit()
	}
	return int64(len(overdue)), nil
}

// -- Users --

func (store *InMemoryStore) CreateUser(ctx context.Context, userEntry library.User) (library.User, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	err := store.exc.Insert("user", adaptUserIdToString(userEntry))
	if err != nil {
		return library.User{}, fmt.Errorf("storing user on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return userEntry, nil
}

func (store *InMemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (library.User, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	raw, err := store.exc.First("user", "id", id.String())
	if err != nil {
		return library.User{}, fmt.Errorf("searching user by ID: %w", err)
	}
	if raw == nil || raw.(AdaptedUser).Status != string(library.UserStatusActive) {
		return library.User{}, fmt.Errorf("searching user by ID: %w", library.ErrResponseUserNotFound)
	}

	return adaptUserIdToUUID(raw.(AdaptedUser)), nil
}

func (store *InMemoryStore) ListUsers(ctx context.Context) ([]library.User, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("user", "id")
	if err != nil {
		return nil, fmt.Errorf("listing users from db: %w", err)
	}

	usersList := []library.User{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		user := raw.(AdaptedUser)
		if user.Status != string(library.UserStatusActive) {
			continue
		}
		usersList = append(usersList, adaptUserIdToUUID(user))
	}

	sortNewestFirst(usersList, func(u library.User) time.Time { return u.CreatedAt })
	return usersList, nil
}

func (store *InMemoryStore) UpdateUser(ctx context.Context, userEntry library.User) (library.User, error) {
	insideTx := true
	if store.exc == nil {
		insideTx = false
		store.exc = store.db.Txn(true)
		defer store.endTX()
	}

	raw, err := store.exc.First("user", "id", userEntry.ID.String())
	if err != nil {
		return library.User{}, fmt.Errorf("updating user on db: %w", err)
	}
	if raw == nil {
		return library.User{}, fmt.Errorf("updating user on db: %w", library.ErrResponseUserNotFound)
	}

	if err := store.exc.Insert("user", adaptUserIdToString(userEntry)); err != nil {
		return library.User{}, fmt.Errorf("updating user on db: %w", err)
	}

	if !insideTx {
		store.exc.Commit()
	}
	return userEntry, nil
}

func (store *InMemoryStore) UserFieldInUse(ctx context.Context, field library.UserField, value string, exclude uuid.UUID) (bool, error) {
	if store.exc == nil {
		store.exc = store.db.Txn(false)
		defer store.endTX()
	}

	it, err := store.exc.Get("user", "id")
	if err != nil {
		return false, fmt.Errorf("checking user field in use: %w", err)
	}

	for raw := it.Next(); raw != nil; raw = it.Next() {
		user := raw.(AdaptedUser)
		if user.ID == exclude.String() {
			continue
		}

		switch field {
		case library.UserFieldUsername:
			if user.Username == value {
				return true, nil
			}
		case library.UserFieldEmail:
			if user.Email == value {
				return true, nil
			}
		case library.UserFieldPhoneNumber:
			if user.PhoneNumber != nil && *user.PhoneNumber == value {
				return true, nil
			}
		default:
			return false, fmt.Errorf("checking user field in use: unknown field %q", field)
		}
	}
	return false, nil
}

// -- Transactions --

func (store *InMemoryStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (library.Repository, driver.Tx, error) {
	txn := store.db.Txn(true)
	if txn == nil {
		return nil, nil, fmt.Errorf("failed to create transaction")
	}

	txWrapper := &TxWrapper{txn: txn}
	txStore := &InMemoryStore{
		db:  store.db,
		exc: txWrapper.txn,
	}

	return txStore, txWrapper, nil
}

type TxWrapper struct {
	txn *memdb.Txn
}

func (tx *TxWrapper) Commit() error {
	tx.txn.Commit()
	return nil
}

func (tx *TxWrapper) Rollback() error {
	tx.txn.Abort()
	var nilTxn *memdb.Txn
	tx.txn = nilTxn
	return nil
}

func (store *InMemoryStore) endTX() {
	store.exc.Abort()
	var nilTxn *memdb.Txn
	store.exc = nilTxn
}

func sortNewestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
