package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Stores the loan and its book links into the database, checks and returns it if succeed. */
func (store *Store) CreateLoan(ctx context.Context, loanEntry library.Loan) (library.Loan, error) {
	sqlStatement := `
	INSERT INTO book_loans (id, customer_id, status, end_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, customer_id, status, end_date, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, loanEntry.ID, loanEntry.CustomerID, loanEntry.Status, loanEntry.EndDate, loanEntry.CreatedAt, loanEntry.UpdatedAt)
	var loanToReturn library.Loan
	err := createdRow.Scan(&loanToReturn.ID, &loanToReturn.CustomerID, &loanToReturn.Status, &loanToReturn.EndDate, &loanToReturn.CreatedAt, &loanToReturn.UpdatedAt)
	if err != nil {
		return library.Loan{}, fmt.Errorf("storing loan on db: %w", err)
	}

	sqlStatement = `
	INSERT INTO book_loans_books (loan_id, book_id)
	VALUES ($1, $2);`
	for _, loanedBook := range loanEntry.Books {
		_, err = store.exc.ExecContext(ctx, sqlStatement, loanToReturn.ID, loanedBook.ID)
		if err != nil {
			return library.Loan{}, fmt.Errorf("linking loan book on db: %w", err)
		}
	}
	loanToReturn.Books = loanEntry.Books

	return loanToReturn, nil
}

func (store *Store) listLoanBooks(ctx context.Context, loanID uuid.UUID) ([]library.Book, error) {
	sqlStatement := `SELECT b.id, b.title, b.summary, b.quantity, b.in_stock, b.created_at, b.updated_at
	FROM books b
	JOIN book_loans_books lb ON lb.book_id = b.id
	WHERE lb.loan_id = $1
	ORDER BY b.title ASC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, loanID)
	if err != nil {
		return nil, fmt.Errorf("listing loan books from db: %w", err)
	}
	defer rows.Close()

	booksList := []library.Book{}
	var bookToReturn library.Book
	for rows.Next() {
		err = rows.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Summary, &bookToReturn.Quantity, &bookToReturn.InStock, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing loan books from db: %w", err)
		}
		booksList = append(booksList, bookToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing loan books from db: %w", err)
	}

	return booksList, nil
}

/* Searches a loan in database based on ID and returns it if succeed. */
func (store *Store) GetLoanByID(ctx context.Context, id uuid.UUID) (library.Loan, error) {
	sqlStatement := `SELECT id, customer_id, status, end_date, created_at, updated_at
	FROM book_loans
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var loanToReturn library.Loan
	err := foundRow.Scan(&loanToReturn.ID, &loanToReturn.CustomerID, &loanToReturn.Status, &loanToReturn.EndDate, &loanToReturn.CreatedAt, &loanToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Loan{}, fmt.Errorf("searching loan by ID: %w", library.ErrResponseLoanNotFound)
		default:
			return library.Loan{}, fmt.Errorf("searching loan by ID: %w", err)
		}
	}

	loanToReturn.Books, err = store.listLoanBooks(ctx, loanToReturn.ID)
	if err != nil {
		return library.Loan{}, err
	}

	return loanToReturn, nil
}

/* Returns the loans stored in database, newest first, optionally filtered
by customer and status. */
func (store *Store) ListLoans(ctx context.Context, filter library.LoanFilter) ([]library.Loan, error) {
	sqlStatement := `SELECT id, customer_id, status, end_date, created_at, updated_at
	FROM book_loans
	WHERE ($1 = '00000000-0000-0000-0000-000000000000' OR customer_id = $1)
	AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, filter.CustomerID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("listing loans from db: %w", err)
	}
	defer rows.Close()

	loansList := []library.Loan{}
	var loanToReturn library.Loan
	for rows.Next() {
		err = rows.Scan(&loanToReturn.ID, &loanToReturn.CustomerID, &loanToReturn.Status, &loanToReturn.EndDate, &loanToReturn.CreatedAt, &loanToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing loans from db: %w", err)
		}
		loansList = append(loansList, loanToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing loans from db: %w", err)
	}

	for i := range loansList {
		loansList[i].Books, err = store.listLoanBooks(ctx, loansList[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return loansList, nil
}

/* Updates the loan row, checks and returns it if succeed. The book set of a
loan never changes after creation, so only status and due date move. */
func (store *Store) UpdateLoan(ctx context.Context, loanEntry library.Loan) (library.Loan, error) {
	sqlStatement := `
	UPDATE book_loans
	SET status = $2, end_date = $3, updated_at = $4
	WHERE id = $1
	RETURNING id, customer_id, status, end_date, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, loanEntry.ID, loanEntry.Status, loanEntry.EndDate, loanEntry.UpdatedAt)
	var loanToReturn library.Loan
	err := updatedRow.Scan(&loanToReturn.ID, &loanToReturn.CustomerID, &loanToReturn.Status, &loanToReturn.EndDate, &loanToReturn.CreatedAt, &loanToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Loan{}, fmt.Errorf("updating loan on db: %w", library.ErrResponseLoanNotFound)
		default:
			return library.Loan{}, fmt.Errorf("updating loan on db: %w", err)
		}
	}

	loanToReturn.Books, err = store.listLoanBooks(ctx, loanToReturn.ID)
	if err != nil {
		return library.Loan{}, err
	}

	return loanToReturn, nil
}

func (store *Store) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM book_loans
	WHERE id = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting loan from db: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting loan from db: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting loan from db: %w", library.ErrResponseLoanNotFound)
	}
	return nil
}

/* Counts the books out with a customer across all of their active loans. */
func (store *Store) ActiveBookCount(ctx context.Context, customerID uuid.UUID) (int, error) {
	sqlStatement := `SELECT COUNT(*)
	FROM book_loans_books lb
	JOIN book_loans l ON l.id = lb.loan_id
	WHERE l.customer_id = $1
	AND l.status IN ('in_time', 'past');`

	var count int
	err := store.exc.QueryRowContext(ctx, sqlStatement, customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active loan books from db: %w", err)
	}
	return count, nil
}

/* Bulk-flips overdue in_time loans to past and reports how many rows moved. */
func (store *Store) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	sqlStatement := `
	UPDATE book_loans
	SET status = 'past'
	WHERE status = 'in_time'
	AND end_date < $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, today)
	if err != nil {
		return 0, fmt.Errorf("marking overdue loans on db: %w", err)
	}

	flipped, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking overdue loans on db: %w", err)
	}
	return flipped, nil
}
