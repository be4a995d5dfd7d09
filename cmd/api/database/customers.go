package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Stores the customer into the database, checks and returns it if succeed. */
func (store *Store) CreateCustomer(ctx context.Context, customerEntry library.Customer) (library.Customer, error) {
	sqlStatement := `
	INSERT INTO customers (id, document_number, first_name, last_name, email, phone_number, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, document_number, first_name, last_name, email, phone_number, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, customerEntry.ID, customerEntry.DocumentNumber, customerEntry.FirstName, customerEntry.LastName, customerEntry.Email, customerEntry.PhoneNumber, customerEntry.CreatedAt, customerEntry.UpdatedAt)
	var customerToReturn library.Customer
	err := createdRow.Scan(&customerToReturn.ID, &customerToReturn.DocumentNumber, &customerToReturn.FirstName, &customerToReturn.LastName, &customerToReturn.Email, &customerToReturn.PhoneNumber, &customerToReturn.CreatedAt, &customerToReturn.UpdatedAt)
	if err != nil {
		return library.Customer{}, fmt.Errorf("storing customer on db: %w", err)
	}

	return customerToReturn, nil
}

/* Searches a customer in database based on ID and returns it if succeed. */
func (store *Store) GetCustomerByID(ctx context.Context, id uuid.UUID) (library.Customer, error) {
	sqlStatement := `SELECT id, document_number, first_name, last_name, email, phone_number, created_at, updated_at
	FROM customers
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var customerToReturn library.Customer
	err := foundRow.Scan(&customerToReturn.ID, &customerToReturn.DocumentNumber, &customerToReturn.FirstName, &customerToReturn.LastName, &customerToReturn.Email, &customerToReturn.PhoneNumber, &customerToReturn.CreatedAt, &customerToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Customer{}, fmt.Errorf("searching customer by ID: %w", library.ErrResponseCustomerNotFound)
		default:
			return library.Customer{}, fmt.Errorf("searching customer by ID: %w", err)
		}
	}

	return customerToReturn, nil
}

/* Returns the customers stored in database, newest first. The search term
matches the document number or either name. */
func (store *Store) ListCustomers(ctx context.Context, search string) ([]library.Customer, error) {
	if search != "" {
		search = fmt.Sprint("%", search, "%")
	} else {
		search = "%"
	}

	sqlStatement := `SELECT id, document_number, first_name, last_name, email, phone_number, created_at, updated_at
	FROM customers
	WHERE document_number ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, search)
	if err != nil {
		return nil, fmt.Errorf("listing customers from db: %w", err)
	}
	defer rows.Close()

	customersList := []library.Customer{}
	var customerToReturn library.Customer
	for rows.Next() {
		err = rows.Scan(&customerToReturn.ID, &customerToReturn.DocumentNumber, &customerToReturn.FirstName, &customerToReturn.LastName, &customerToReturn.Email, &customerToReturn.PhoneNumber, &customerToReturn.CreatedAt, &customerToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing customers from db: %w", err)
		}
		customersList = append(customersList, customerToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing customers from db: %w", err)
	}

	return customersList, nil
}

/* Updates the customer row, checks and returns it if succeed. */
func (store *Store) UpdateCustomer(ctx context.Context, customerEntry library.Customer) (library.Customer, error) {
	sqlStatement := `
	UPDATE customers
	SET document_number = $2, first_name = $3, last_name = $4, email = $5, phone_number = $6, updated_at = $7
	WHERE id = $1
	RETURNING id, document_number, first_name, last_name, email, phone_number, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, customerEntry.ID, customerEntry.DocumentNumber, customerEntry.FirstName, customerEntry.LastName, customerEntry.Email, customerEntry.PhoneNumber, customerEntry.UpdatedAt)
	var customerToReturn library.Customer
	err := updatedRow.Scan(&customerToReturn.ID, &customerToReturn.DocumentNumber, &customerToReturn.FirstName, &customerToReturn.LastName, &customerToReturn.Email, &customerToReturn.PhoneNumber, &customerToReturn.CreatedAt, &customerToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Customer{}, fmt.Errorf("updating customer on db: %w", library.ErrResponseCustomerNotFound)
		default:
			return library.Customer{}, fmt.Errorf("updating customer on db: %w", err)
		}
	}

	return customerToReturn, nil
}

/* Removes the customer. The loans FK cascades, so their loans go too. */
func (store *Store) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM customers
	WHERE id = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting customer from db: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting customer from db: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting customer from db: %w", library.ErrResponseCustomerNotFound)
	}
	return nil
}

/* Tells whether another customer already holds the given value on a unique field. */
func (store *Store) CustomerFieldInUse(ctx context.Context, field library.CustomerField, value string, exclude uuid.UUID) (bool, error) {
	var column string
	switch field {
	case library.CustomerFieldDocumentNumber:
		column = "document_number"
	case library.CustomerFieldEmail:
		column = "email"
	case library.CustomerFieldPhoneNumber:
		column = "phone_number"
	default:
		return false, fmt.Errorf("checking customer field in use: unknown field %q", field)
	}

	sqlStatement := fmt.Sprintf(`SELECT EXISTS (
	SELECT 1 FROM customers
	WHERE %s = $1 AND id <> $2);`, column)

	var inUse bool
	err := store.exc.QueryRowContext(ctx, sqlStatement, value, exclude).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("checking customer field in use: %w", err)
	}
	return inUse, nil
}
