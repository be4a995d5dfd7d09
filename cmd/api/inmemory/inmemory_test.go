package inmemory_test

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/library-service/cmd/api/inmemory"
	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

var ctx context.Context = context.Background()

func newStore(t *testing.T) *inmemory.InMemoryStore {
	store, err := inmemory.NewInMemoryStore()
	if err != nil {
		log.Fatalln(err)
	}
	return store
}

func seedBook(t *testing.T, store *inmemory.InMemoryStore, title string, quantity, inStock int, authors ...library.Author) library.Book {
	is := is.New(t)
	createdNow := time.Now().UTC().Round(time.Millisecond)

	b := library.Book{
		ID:        uuid.New(),
		Title:     title,
		Quantity:  toPointer(quantity),
		InStock:   toPointer(inStock),
		Authors:   authors,
		CreatedAt: createdNow,
		UpdatedAt: createdNow,
	}
	newBook, err := store.CreateBook(ctx, b)
	is.NoErr(err)
	return newBook
}

func seedCustomer(t *testing.T, store *inmemory.InMemoryStore, document string) library.Customer {
	is := is.New(t)
	createdNow := time.Now().UTC().Round(time.Millisecond)

	c := library.Customer{
		ID:             uuid.New(),
		DocumentNumber: document,
		FirstName:      "Store",
		LastName:       "Tester",
		Email:          toPointer(document + "@example.com"),
		CreatedAt:      createdNow,
		UpdatedAt:      createdNow,
	}
	newCustomer, err := store.CreateCustomer(ctx, c)
	is.NoErr(err)
	return newCustomer
}

func seedLoan(t *testing.T, store *inmemory.InMemoryStore, customer library.Customer, status library.LoanStatus, endDate time.Time, books ...library.Book) library.Loan {
	is := is.New(t)
	createdNow := time.Now().UTC().Round(time.Millisecond)

	l := library.Loan{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Books:      books,
		Status:     status,
		EndDate:    endDate,
		CreatedAt:  createdNow,
		UpdatedAt:  createdNow,
	}
	newLoan, err := store.CreateLoan(ctx, l)
	is.NoErr(err)
	return newLoan
}

func TestBooks(t *testing.T) {
	store := newStore(t)

	t.Run("stores and fetches a book with its authors", func(t *testing.T) {
		is := is.New(t)

		createdNow := time.Now().UTC().Round(time.Millisecond)
		a := library.Author{ID: uuid.New(), FullName: "Store Tester", CreatedAt: createdNow, UpdatedAt: createdNow}
		_, err := store.CreateAuthor(ctx, a)
		is.NoErr(err)

		b := seedBook(t, store, "A stored book", 5, 3, a)

		fetchedBook, err := store.GetBookByID(ctx, b.ID)
		is.NoErr(err)
		is.Equal(fetchedBook.Title, b.Title)
		is.Equal(*fetchedBook.Quantity, 5)
		is.Equal(*fetchedBook.InStock, 3)
		is.Equal(len(fetchedBook.Authors), 1)
		is.Equal(fetchedBook.Authors[0].FullName, "Store Tester")
	})

	t.Run("an unknown book returns a not found error", func(t *testing.T) {
		is := is.New(t)

		_, err := store.GetBookByID(ctx, uuid.New())
		is.True(errors.Is(err, library.ErrResponseBookNotFound))
	})

	t.Run("filters the available books", func(t *testing.T) {
		is := is.New(t)

		inStock := seedBook(t, store, "Book on the shelf", 2, 1)
		soldOut := seedBook(t, store, "Book all out", 2, 0)

		available, err := store.ListBooks(ctx, library.BookFilter{AvailableOnly: true})
		is.NoErr(err)

		titles := []string{}
		for _, listedBook := range available {
			titles = append(titles, listedBook.Title)
		}
		is.True(contains(titles, inStock.Title))
		is.True(!contains(titles, soldOut.Title))
	})

	t.Run("matches the search on the title or the author name", func(t *testing.T) {
		is := is.New(t)

		createdNow := time.Now().UTC().Round(time.Millisecond)
		a := library.Author{ID: uuid.New(), FullName: "Maria Searchable", CreatedAt: createdNow, UpdatedAt: createdNow}
		_, err := store.CreateAuthor(ctx, a)
		is.NoErr(err)
		byAuthor := seedBook(t, store, "An unrelated title", 1, 1, a)

		found, err := store.ListBooks(ctx, library.BookFilter{Search: "searchable"})
		is.NoErr(err)
		is.Equal(len(found), 1)
		is.Equal(found[0].ID, byAuthor.ID)
	})
}

func TestAdjustStock(t *testing.T) {
	store := newStore(t)

	t.Run("moves the counter of every given book", func(t *testing.T) {
		is := is.New(t)

		firstBook := seedBook(t, store, "First adjusted book", 3, 3)
		secondBook := seedBook(t, store, "Second adjusted book", 3, 2)

		err := store.AdjustStock(ctx, []uuid.UUID{firstBook.ID, secondBook.ID}, -1)
		is.NoErr(err)

		fetchedFirst, _ := store.GetBookByID(ctx, firstBook.ID)
		fetchedSecond, _ := store.GetBookByID(ctx, secondBook.ID)
		is.Equal(*fetchedFirst.InStock, 2)
		is.Equal(*fetchedSecond.InStock, 1)
	})

	t.Run("refuses to push the counter below zero", func(t *testing.T) {
		is := is.New(t)

		emptyBook := seedBook(t, store, "Already empty book", 3, 0)

		err := store.AdjustStock(ctx, []uuid.UUID{emptyBook.ID}, -1)
		is.True(err != nil)
	})

	t.Run("refuses to push the counter over the quantity", func(t *testing.T) {
		is := is.New(t)

		fullBook := seedBook(t, store, "Fully stocked book", 3, 3)

		err := store.AdjustStock(ctx, []uuid.UUID{fullBook.ID}, +1)
		is.True(err != nil)
	})
}

func TestLoans(t *testing.T) {
	store := newStore(t)

	endDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("stores and fetches a loan with its books", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "11111111111")
		loanedBook := seedBook(t, store, "A loaned book", 2, 2)
		withBooks := seedLoan(t, store, customer, library.LoanStatusInTime, endDate, loanedBook)

		fetchedLoan, err := store.GetLoanByID(ctx, withBooks.ID)
		is.NoErr(err)
		is.Equal(fetchedLoan.CustomerID, customer.ID)
		is.Equal(fetchedLoan.Status, library.LoanStatusInTime)
		is.Equal(len(fetchedLoan.Books), 1)
		is.Equal(fetchedLoan.Books[0].Title, "A loaned book")
	})

	t.Run("counts the books out with a customer across active loans", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "22222222222")
		firstBook := seedBook(t, store, "First counted book", 2, 2)
		secondBook := seedBook(t, store, "Second counted book", 2, 2)
		thirdBook := seedBook(t, store, "Third counted book", 2, 2)

		seedLoan(t, store, customer, library.LoanStatusInTime, endDate, firstBook)
		seedLoan(t, store, customer, library.LoanStatusPast, endDate, secondBook)
		seedLoan(t, store, customer, library.LoanStatusReturned, endDate, thirdBook)

		count, err := store.ActiveBookCount(ctx, customer.ID)
		is.NoErr(err)
		is.Equal(count, 2) //the returned loan does not count
	})

	t.Run("filters the loans by customer and status", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "33333333333")
		seedLoan(t, store, customer, library.LoanStatusInTime, endDate)
		seedLoan(t, store, customer, library.LoanStatusReturned, endDate)

		returned, err := store.ListLoans(ctx, library.LoanFilter{CustomerID: customer.ID, Status: library.LoanStatusReturned})
		is.NoErr(err)
		is.Equal(len(returned), 1)
		is.Equal(returned[0].Status, library.LoanStatusReturned)
	})

	t.Run("deleting a customer takes the customer loans with it", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "44444444444")
		doomedLoan := seedLoan(t, store, customer, library.LoanStatusReturned, endDate)

		err := store.DeleteCustomer(ctx, customer.ID)
		is.NoErr(err)

		_, err = store.GetLoanByID(ctx, doomedLoan.ID)
		is.True(errors.Is(err, library.ErrResponseLoanNotFound))
	})
}

func TestMarkOverdue(t *testing.T) {
	store := newStore(t)
	is := is.New(t)

	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	customer := seedCustomer(t, store, "55555555555")

	overdueLoan := seedLoan(t, store, customer, library.LoanStatusInTime, today.AddDate(0, 0, -1))
	onTimeLoan := seedLoan(t, store, customer, library.LoanStatusInTime, today)
	returnedLoan := seedLoan(t, store, customer, library.LoanStatusReturned, today.AddDate(0, 0, -10))

	flipped, err := store.MarkOverdue(ctx, today)
	is.NoErr(err)
	is.Equal(flipped, int64(1))

	fetchedOverdue, _ := store.GetLoanByID(ctx, overdueLoan.ID)
	is.Equal(fetchedOverdue.Status, library.LoanStatusPast)

	fetchedOnTime, _ := store.GetLoanByID(ctx, onTimeLoan.ID)
	is.Equal(fetchedOnTime.Status, library.LoanStatusInTime) //due today is not overdue yet

	fetchedReturned, _ := store.GetLoanByID(ctx, returnedLoan.ID)
	is.Equal(fetchedReturned.Status, library.LoanStatusReturned)

	//running the sweep again right away changes nothing:
	flippedAgain, err := store.MarkOverdue(ctx, today)
	is.NoErr(err)
	is.Equal(flippedAgain, int64(0))
}

func TestUsers(t *testing.T) {
	store := newStore(t)

	seedUser := func(t *testing.T, username string, status library.UserStatus) library.User {
		is := is.New(t)
		createdNow := time.Now().UTC().Round(time.Millisecond)
		u := library.User{
			ID:        uuid.New(),
			Username:  username,
			Email:     username + "@example.com",
			IsStaff:   status == library.UserStatusActive,
			IsActive:  status == library.UserStatusActive,
			Status:    status,
			CreatedAt: createdNow,
			UpdatedAt: createdNow,
		}
		newUser, err := store.CreateUser(ctx, u)
		is.NoErr(err)
		return newUser
	}

	t.Run("a deactivated user disappears from lookups and listings", func(t *testing.T) {
		is := is.New(t)

		activeUser := seedUser(t, "active.tester", library.UserStatusActive)
		goneUser := seedUser(t, "gone.tester", library.UserStatusDeactivated)

		_, err := store.GetUserByID(ctx, activeUser.ID)
		is.NoErr(err)

		_, err = store.GetUserByID(ctx, goneUser.ID)
		is.True(errors.Is(err, library.ErrResponseUserNotFound))

		usersList, err := store.ListUsers(ctx)
		is.NoErr(err)
		for _, listedUser := range usersList {
			is.True(listedUser.Username != "gone.tester")
		}
	})

	t.Run("a deactivated user still reserves its username", func(t *testing.T) {
		is := is.New(t)

		seedUser(t, "reserved.tester", library.UserStatusDeactivated)

		inUse, err := store.UserFieldInUse(ctx, library.UserFieldUsername, "reserved.tester", uuid.Nil)
		is.NoErr(err)
		is.True(inUse)
	})
}

func TestTransactions(t *testing.T) {
	store := newStore(t)

	endDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("a committed transaction is visible afterwards", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "66666666666")
		loanedBook := seedBook(t, store, "Book loaned in a tx", 2, 2)

		txRepo, tx, err := store.BeginTx(ctx, nil) //creates a tx scoped view of the store
		is.NoErr(err)

		createdNow := time.Now().UTC().Round(time.Millisecond)
		newLoan := library.Loan{
			ID:         uuid.New(),
			CustomerID: customer.ID,
			Books:      []library.Book{loanedBook},
			Status:     library.LoanStatusInTime,
			EndDate:    endDate,
			CreatedAt:  createdNow,
			UpdatedAt:  createdNow,
		}
		_, err = txRepo.CreateLoan(ctx, newLoan)
		is.NoErr(err)
		err = txRepo.AdjustStock(ctx, []uuid.UUID{loanedBook.ID}, -1)
		is.NoErr(err)

		err = tx.Commit()
		is.NoErr(err)

		fetchedLoan, err := store.GetLoanByID(ctx, newLoan.ID)
		is.NoErr(err)
		is.Equal(fetchedLoan.Status, library.LoanStatusInTime)

		fetchedBook, err := store.GetBookByID(ctx, loanedBook.ID)
		is.NoErr(err)
		is.Equal(*fetchedBook.InStock, 1)
	})

	t.Run("a rolled back transaction leaves no trace", func(t *testing.T) {
		is := is.New(t)

		customer := seedCustomer(t, store, "77777777777")
		loanedBook := seedBook(t, store, "Book kept on the shelf", 2, 2)

		txRepo, tx, err := store.BeginTx(ctx, nil)
		is.NoErr(err)

		createdNow := time.Now().UTC().Round(time.Millisecond)
		newLoan := library.Loan{
			ID:         uuid.New(),
			CustomerID: customer.ID,
			Books:      []library.Book{loanedBook},
			Status:     library.LoanStatusInTime,
			EndDate:    endDate,
			CreatedAt:  createdNow,
			UpdatedAt:  createdNow,
		}
		_, err = txRepo.CreateLoan(ctx, newLoan)
		is.NoErr(err)
		err = txRepo.AdjustStock(ctx, []uuid.UUID{loanedBook.ID}, -1)
		is.NoErr(err)

		err = tx.Rollback()
		is.NoErr(err)

		_, err = store.GetLoanByID(ctx, newLoan.ID)
		is.True(errors.Is(err, library.ErrResponseLoanNotFound))

		fetchedBook, err := store.GetBookByID(ctx, loanedBook.ID)
		is.NoErr(err)
		is.Equal(*fetchedBook.InStock, 2)
	})
}

func contains(items []string, wanted string) bool {
	for _, item := range items {
		if strings.EqualFold(item, wanted) {
			return true
		}
	}
	return false
}

func toPointer[T any](v T) *T {
	return &v
}
