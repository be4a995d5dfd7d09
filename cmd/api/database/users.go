package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Stores the user into the database, checks and returns it if succeed. */
func (store *Store) CreateUser(ctx context.Context, userEntry library.User) (library.User, error) {
	sqlStatement := `
	INSERT INTO users (id, username, email, first_name, last_name, phone_number, is_superuser, is_staff, is_active, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id, username, email, first_name, last_name, phone_number, is_superuser, is_staff, is_active, status, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, userEntry.ID, userEntry.Username, userEntry.Email, userEntry.FirstName, userEntry.LastName, userEntry.PhoneNumber, userEntry.IsSuperuser, userEntry.IsStaff, userEntry.IsActive, userEntry.Status, userEntry.CreatedAt, userEntry.UpdatedAt)
	return scanUser(createdRow, "storing user on db")
}

func scanUser(row *sql.Row, operation string) (library.User, error) {
	var userToReturn library.User
	err := row.Scan(&userToReturn.ID, &userToReturn.Username, &userToReturn.Email, &userToReturn.FirstName, &userToReturn.LastName, &userToReturn.PhoneNumber, &userToReturn.IsSuperuser, &userToReturn.IsStaff, &userToReturn.IsActive, &userToReturn.Status, &userToReturn.CreatedAt, &userToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.User{}, fmt.Errorf("%s: %w", operation, library.ErrResponseUserNotFound)
		default:
			return library.User{}, fmt.Errorf("%s: %w", operation, err)
		}
	}
	return userToReturn, nil
}

/* Searches an active user in database based on ID and returns it if succeed.
Deactivated accounts are filtered out here, at the query boundary. */
func (store *Store) GetUserByID(ctx context.Context, id uuid.UUID) (library.User, error) {
	sqlStatement := `SELECT id, username, email, first_name, last_name, phone_number, is_superuser, is_staff, is_active, status, created_at, updated_at
	FROM users
	WHERE id=$1 AND status='active';`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	return scanUser(foundRow, "searching user by ID")
}

/* Returns the active users stored in database, newest first. */
func (store *Store) ListUsers(ctx context.Context) ([]library.User, error) {
	sqlStatement := `SELECT id, username, email, first_name, last_name, phone_number, is_superuser, is_staff, is_active, status, created_at, updated_at
	FROM users
	WHERE status='active'
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("listing users from db: %w", err)
	}
	defer rows.Close()

	usersList := []library.User{}
	var userToReturn library.User
	for rows.Next() {
		err = rows.Scan(&userToReturn.ID, &userToReturn.Username, &userToReturn.Email, &userToReturn.FirstName, &userToReturn.LastName, &userToReturn.PhoneNumber, &userToReturn.IsSuperuser, &userToReturn.IsStaff, &userToReturn.IsActive, &userToReturn.Status, &userToReturn.CreatedAt, &userToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing users from db: %w", err)
		}
		usersList = append(usersList, userToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing users from db: %w", err)
	}

	return usersList, nil
}

/* Updates the user row, checks and returns it if succeed. */
func (store *Store) UpdateUser(ctx context.Context, userEntry library.User) (library.User, error) {
	sqlStatement := `
	UPDATE users
	SET username = $2, email = $3, first_name = $4, last_name = $5, phone_number = $6, is_superuser = $7, is_staff = $8, is_active = $9, status = $10, updated_at = $11
	WHERE id = $1
	RETURNING id, username, email, first_name, last_name, phone_number, is_superuser, is_staff, is_active, status, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, userEntry.ID, userEntry.Username, userEntry.Email, userEntry.FirstName, userEntry.LastName, userEntry.PhoneNumber, userEntry.IsSuperuser, userEntry.IsStaff, userEntry.IsActive, userEntry.Status, userEntry.UpdatedAt)
	return scanUser(updatedRow, "updating user on db")
}

/* Tells whether any user, active or not, already holds the given value on a
unique field. Deactivated rows stay in the table, so they still count. */
func (store *Store) UserFieldInUse(ctx context.Context, field library.UserField, value string, exclude uuid.UUID) (bool, error) {
	var column string
	switch field {
	case library.UserFieldUsername:
		column = "username"
	case library.UserFieldEmail:
		column = "email"
	case library.UserFieldPhoneNumber:
		column = "phone_number"
	default:
		return false, fmt.Errorf("checking user field in use: unknown field %q", field)
	}

	sqlStatement := fmt.Sprintf(`SELECT EXISTS (
	SELECT 1 FROM users
	WHERE %s = $1 AND id <> $2);`, column)

	var inUse bool
	err := store.exc.QueryRowContext(ctx, sqlStatement, value, exclude).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("checking user field in use: %w", err)
	}
	return inUse, nil
}
