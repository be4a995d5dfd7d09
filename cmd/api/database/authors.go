package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Stores the author into the database, checks and returns it if succeed. */
func (store *Store) CreateAuthor(ctx context.Context, authorEntry library.Author) (library.Author, error) {
	sqlStatement := `
	INSERT INTO authors (id, full_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id, full_name, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, authorEntry.ID, authorEntry.FullName, authorEntry.CreatedAt, authorEntry.UpdatedAt)
	var authorToReturn library.Author
	err := createdRow.Scan(&authorToReturn.ID, &authorToReturn.FullName, &authorToReturn.CreatedAt, &authorToReturn.UpdatedAt)
	if err != nil {
		return library.Author{}, fmt.Errorf("storing author on db: %w", err)
	}

	return authorToReturn, nil
}

/* Searches an author in database based on ID and returns it if succeed. */
func (store *Store) GetAuthorByID(ctx context.Context, id uuid.UUID) (library.Author, error) {
	sqlStatement := `SELECT id, full_name, created_at, updated_at
	FROM authors
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var authorToReturn library.Author
	err := foundRow.Scan(&authorToReturn.ID, &authorToReturn.FullName, &authorToReturn.CreatedAt, &authorToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Author{}, fmt.Errorf("searching author by ID: %w", library.ErrResponseAuthorNotFound)
		default:
			return library.Author{}, fmt.Errorf("searching author by ID: %w", err)
		}
	}

	return authorToReturn, nil
}

/* Returns the authors stored in database, newest first, filtered by name when given. */
func (store *Store) ListAuthors(ctx context.Context, name string) ([]library.Author, error) {
	if name != "" {
		name = fmt.Sprint("%", name, "%")
	} else {
		name = "%"
	}

	sqlStatement := `SELECT id, full_name, created_at, updated_at
	FROM authors
	WHERE full_name ILIKE $1
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, name)
	if err != nil {
		return nil, fmt.Errorf("listing authors from db: %w", err)
	}
	defer rows.Close()

	authorsList := []library.Author{}
	var authorToReturn library.Author
	for rows.Next() {
		err = rows.Scan(&authorToReturn.ID, &authorToReturn.FullName, &authorToReturn.CreatedAt, &authorToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing authors from db: %w", err)
		}

		authorsList = append(authorsList, authorToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing authors from db: %w", err)
	}

	return authorsList, nil
}

/* Updates the author row, checks and returns it if succeed. */
func (store *Store) UpdateAuthor(ctx context.Context, authorEntry library.Author) (library.Author, error) {
	sqlStatement := `
	UPDATE authors
	SET full_name = $2, updated_at = $3
	WHERE id = $1
	RETURNING id, full_name, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, authorEntry.ID, authorEntry.FullName, authorEntry.UpdatedAt)
	var authorToReturn library.Author
	err := updatedRow.Scan(&authorToReturn.ID, &authorToReturn.FullName, &authorToReturn.CreatedAt, &authorToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Author{}, fmt.Errorf("updating author on db: %w", library.ErrResponseAuthorNotFound)
		default:
			return library.Author{}, fmt.Errorf("updating author on db: %w", err)
		}
	}

	return authorToReturn, nil
}

func (store *Store) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM authors
	WHERE id = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting author from db: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting author from db: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting author from db: %w", library.ErrResponseAuthorNotFound)
	}
	return nil
}
