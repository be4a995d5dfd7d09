package library

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusInTime   LoanStatus = "in_time"
	LoanStatusPast     LoanStatus = "past"
	LoanStatusReturned LoanStatus = "returned"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusInTime, LoanStatusPast, LoanStatusReturned:
		return true
	}
	return false
}

/* A loan is active while its books are out, overdue or not. */
func (s LoanStatus) Active() bool {
	return s == LoanStatusInTime || s == LoanStatusPast
}

type Loan struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Books      []Book
	Status     LoanStatus
	EndDate    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (l Loan) bookIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.Books))
	for _, b := range l.Books {
		ids = append(ids, b.ID)
	}
	return ids
}

type CreateLoanRequest struct {
	CustomerID uuid.UUID
	BookIDs    []uuid.UUID
	EndDate    time.Time
}

type UpdateLoanRequest struct {
	ID      uuid.UUID
	Status  LoanStatus
	EndDate time.Time
}

type LoanFilter struct {
	CustomerID uuid.UUID
	Status     LoanStatus
}

/* LoanCap is the fixed limit of books a customer may have on active loan. */
const LoanCap = 3

const msgCustomerOverLoanCap = "this customer exceeds the limit of books on loan."
const msgTooManyBooks = "only 3 books are allowed on loan at once."

/* Books currently out with this customer, across all of their active loans. */
func (s *Service) ActiveBookCount(ctx context.Context, customerID uuid.UUID) (int, error) {
	return s.repo.ActiveBookCount(ctx, customerID)
}

/* Whether the customer may take additionalCount more books without
passing the loan cap. */
func (s *Service) CanBorrow(ctx context.Context, customerID uuid.UUID, additionalCount int) (bool, error) {
	count, err := s.repo.ActiveBookCount(ctx, customerID)
	if err != nil {
		return false, err
	}
	return count+additionalCount <= LoanCap, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	deduped := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	return deduped
}

/* Validates the entry, then persists the new loan and takes one copy of
every selected book off the shelf, all inside one transaction. */
func (s *Service) CreateLoan(ctx context.Context, req CreateLoanRequest) (Loan, error) {
	validation := NewErrValidation()
	if req.CustomerID == uuid.Nil {
		validation.Add("customer", msgFieldRequired)
	}
	if len(req.BookIDs) == 0 {
		validation.Add("books", msgFieldRequired)
	}
	if req.EndDate.IsZero() {
		validation.Add("end_date", msgFieldRequired)
	}
	if validation.Any() {
		return Loan{}, validation
	}

	if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
		return Loan{}, err
	}

	bookIDs := dedupeIDs(req.BookIDs)

	// The books-over-cap message is only reachable for a customer that is
	// still below the cap. A customer already at the cap always gets the
	// customer error, matching the behavior librarians know.
	activeCount, err := s.repo.ActiveBookCount(ctx, req.CustomerID)
	if err != nil {
		return Loan{}, fmt.Errorf("counting active loans: %w", err)
	}
	if activeCount >= LoanCap {
		validation.Add("customer", msgCustomerOverLoanCap)
	} else if activeCount+len(bookIDs) > LoanCap {
		validation.Add("books", msgTooManyBooks)
	}

	books := make([]Book, 0, len(bookIDs))
	for _, bookID := range bookIDs {
		loanedBook, err := s.repo.GetBookByID(ctx, bookID)
		if err != nil {
			return Loan{}, err
		}
		if !loanedBook.HasAvailability() {
			validation.Add("books", fmt.Sprintf("the book '%s' has no copies in stock.", loanedBook.Title))
		}
		books = append(books, loanedBook)
	}
	if validation.Any() {
		return Loan{}, validation
	}

	createdAt := s.now().UTC().Round(time.Millisecond)
	newLoan := Loan{
		ID:         uuid.New(),
		CustomerID: req.CustomerID,
		Books:      books,
		Status:     LoanStatusInTime,
		EndDate:    req.EndDate,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}

	createdLoan, err := s.withinTx(ctx, func(txRepo Repository) (Loan, error) {
		created, err := txRepo.CreateLoan(ctx, newLoan)
		if err != nil {
			return Loan{}, fmt.Errorf("storing loan: %w", err)
		}
		err = txRepo.AdjustStock(ctx, bookIDs, -1)
		if err != nil {
			return Loan{}, fmt.Errorf("taking books off stock: %w", err)
		}
		return created, nil
	})
	if err != nil {
		return Loan{}, err
	}

	s.notifyLoanCreated(createdLoan)
	return createdLoan, nil
}

func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (Loan, error) {
	return s.repo.GetLoanByID(ctx, id)
}

func (s *Service) ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error) {
	return s.repo.ListLoans(ctx, filter)
}

/* Edits the status and the due date of a loan. Re-opening a returned loan
takes its books off the shelf again; handing the books back puts them on. */
func (s *Service) UpdateLoan(ctx context.Context, req UpdateLoanRequest) (Loan, error) {
	validation := NewErrValidation()
	if !req.Status.Valid() {
		validation.Add("status", "status must be one of: in_time, past, returned.")
	}
	if req.EndDate.IsZero() {
		validation.Add("end_date", msgFieldRequired)
	}
	if validation.Any() {
		return Loan{}, validation
	}

	currentLoan, err := s.repo.GetLoanByID(ctx, req.ID)
	if err != nil {
		return Loan{}, err
	}

	updatedLoan := currentLoan
	updatedLoan.Status = req.Status
	updatedLoan.EndDate = req.EndDate
	updatedLoan.UpdatedAt = s.now().UTC().Round(time.Millisecond)

	return s.withinTx(ctx, func(txRepo Repository) (Loan, error) {
		saved, err := txRepo.UpdateLoan(ctx, updatedLoan)
		if err != nil {
			return Loan{}, fmt.Errorf("updating loan: %w", err)
		}

		if currentLoan.Status != req.Status {
			switch {
			case currentLoan.Status == LoanStatusReturned:
				// Re-opened: mirrors the create path.
				err = txRepo.AdjustStock(ctx, currentLoan.bookIDs(), -1)
			case currentLoan.Status.Active() && req.Status == LoanStatusReturned:
				err = txRepo.AdjustStock(ctx, currentLoan.bookIDs(), +1)
			}
			if err != nil {
				return Loan{}, fmt.Errorf("adjusting stock: %w", err)
			}
		}
		return saved, nil
	})
}

/* A loan only leaves the records once its books came back. */
func (s *Service) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	currentLoan, err := s.repo.GetLoanByID(ctx, id)
	if err != nil {
		return err
	}
	if currentLoan.Status != LoanStatusReturned {
		return ErrResponseLoanNotReturned
	}
	return s.repo.DeleteLoan(ctx, id)
}

/* Marks the loan as returned and puts one copy of each of its books back
in stock. Approving a loan that already came back changes nothing. */
func (s *Service) ApproveDelivery(ctx context.Context, id uuid.UUID) (Loan, error) {
	currentLoan, err := s.repo.GetLoanByID(ctx, id)
	if err != nil {
		return Loan{}, err
	}
	if currentLoan.Status == LoanStatusReturned {
		return currentLoan, nil
	}

	updatedLoan := currentLoan
	updatedLoan.Status = LoanStatusReturned
	updatedLoan.UpdatedAt = s.now().UTC().Round(time.Millisecond)

	approvedLoan, err := s.withinTx(ctx, func(txRepo Repository) (Loan, error) {
		saved, err := txRepo.UpdateLoan(ctx, updatedLoan)
		if err != nil {
			return Loan{}, fmt.Errorf("updating loan: %w", err)
		}
		err = txRepo.AdjustStock(ctx, currentLoan.bookIDs(), +1)
		if err != nil {
			return Loan{}, fmt.Errorf("restocking books: %w", err)
		}
		return saved, nil
	})
	if err != nil {
		return Loan{}, err
	}

	s.notifyLoanReturned(approvedLoan)
	return approvedLoan, nil
}

/* Flips every in_time loan whose due date already went by to past, in one
bulk update. Running it again right away changes nothing. */
func (s *Service) ReconcileOverdue(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkOverdue(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("reconciling overdue loans: %w", err)
	}
	return count, nil
}

/* Runs fn against a transaction-scoped repository, committing when it
succeeds and rolling back when it does not. */
func (s *Service) withinTx(ctx context.Context, fn func(txRepo Repository) (Loan, error)) (Loan, error) {
	txRepo, tx, err := s.txer.BeginTx(ctx, nil)
	if err != nil {
		return Loan{}, fmt.Errorf("beginning transaction: %w", err)
	}

	result, err := fn(txRepo)
	if err != nil {
		rollback(tx)
		return Loan{}, err
	}

	if err := tx.Commit(); err != nil {
		return Loan{}, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

func rollback(tx driver.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Println("rolling back transaction:", err)
	}
}

func (s *Service) notifyLoanCreated(createdLoan Loan) {
	if s.ntfy == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notificationsTimeout)
		defer cancel()
		err := s.ntfy.LoanCreated(ctx, createdLoan.ID, len(createdLoan.Books), createdLoan.EndDate)
		if err != nil {
			log.Println(err)
		}
	}()
}

func (s *Service) notifyLoanReturned(returnedLoan Loan) {
	if s.ntfy == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notificationsTimeout)
		defer cancel()
		err := s.ntfy.LoanReturned(ctx, returnedLoan.ID, len(returnedLoan.Books))
		if err != nil {
			log.Println(err)
		}
	}()
}
