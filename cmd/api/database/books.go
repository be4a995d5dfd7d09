package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func uuidsToStrings(ids []uuid.UUID) []string {
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, id.String())
	}
	return strs
}

/* Stores the book and its author links into the database, checks and returns it if succeed. */
func (store *Store) CreateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	sqlStatement := `
	INSERT INTO books (id, title, summary, quantity, in_stock, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, title, summary, quantity, in_stock, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Summary, *bookEntry.Quantity, *bookEntry.InStock, bookEntry.CreatedAt, bookEntry.UpdatedAt)
	var bookToReturn library.Book
	err := createdRow.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Summary, &bookToReturn.Quantity, &bookToReturn.InStock, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
	if err != nil {
		return library.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	err = store.replaceBookAuthors(ctx, bookToReturn.ID, bookEntry.Authors)
	if err != nil {
		return library.Book{}, err
	}
	bookToReturn.Authors = bookEntry.Authors

	return bookToReturn, nil
}

func (store *Store) replaceBookAuthors(ctx context.Context, bookID uuid.UUID, authors []library.Author) error {
	sqlStatement := `
	DELETE FROM books_authors
	WHERE book_id = $1;`
	_, err := store.exc.ExecContext(ctx, sqlStatement, bookID)
	if err != nil {
		return fmt.Errorf("unlinking book authors on db: %w", err)
	}

	sqlStatement = `
	INSERT INTO books_authors (book_id, author_id)
	VALUES ($1, $2);`
	for _, author := range authors {
		_, err = store.exc.ExecContext(ctx, sqlStatement, bookID, author.ID)
		if err != nil {
			return fmt.Errorf("linking book author on db: %w", err)
		}
	}
	return nil
}

func (store *Store) listBookAuthors(ctx context.Context, bookID uuid.UUID) ([]library.Author, error) {
	sqlStatement := `SELECT a.id, a.full_name, a.created_at, a.updated_at
	FROM authors a
	JOIN books_authors ba ON ba.author_id = a.id
	WHERE ba.book_id = $1
	ORDER BY a.full_name ASC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, bookID)
	if err != nil {
		return nil, fmt.Errorf("listing book authors from db: %w", err)
	}
	defer rows.Close()

	authorsList := []library.Author{}
	var authorToReturn library.Author
	for rows.Next() {
		err = rows.Scan(&authorToReturn.ID, &authorToReturn.FullName, &authorToReturn.CreatedAt, &authorToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing book authors from db: %w", err)
		}
		authorsList = append(authorsList, authorToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing book authors from db: %w", err)
	}

	return authorsList, nil
}

/* Searches a book in database based on ID and returns it if succeed. */
func (store *Store) GetBookByID(ctx context.Context, id uuid.UUID) (library.Book, error) {
	sqlStatement := `SELECT id, title, summary, quantity, in_stock, created_at, updated_at
	FROM books
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var bookToReturn library.Book
	err := foundRow.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Summary, &bookToReturn.Quantity, &bookToReturn.InStock, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("searching book by ID: %w", err)
		}
	}

	bookToReturn.Authors, err = store.listBookAuthors(ctx, bookToReturn.ID)
	if err != nil {
		return library.Book{}, err
	}

	return bookToReturn, nil
}

/* Returns filtered content of the books table, newest first. The search term
matches the title or any author full name. */
func (store *Store) ListBooks(ctx context.Context, filter library.BookFilter) ([]library.Book, error) {
	search := "%"
	if filter.Search != "" {
		search = fmt.Sprint("%", filter.Search, "%")
	}

	minStock := 0
	if filter.AvailableOnly {
		minStock = 1
	}

	sqlStatement := `SELECT id, title, summary, quantity, in_stock, created_at, updated_at
	FROM books b
	WHERE in_stock >= $2
	AND (title ILIKE $1 OR EXISTS (
		SELECT 1 FROM books_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = b.id AND a.full_name ILIKE $1))
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, search, minStock)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}
	defer rows.Close()

	booksList := []library.Book{}
	var bookToReturn library.Book
	for rows.Next() {
		err = rows.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Summary, &bookToReturn.Quantity, &bookToReturn.InStock, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing books from db: %w", err)
		}
		booksList = append(booksList, bookToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	for i := range booksList {
		booksList[i].Authors, err = store.listBookAuthors(ctx, booksList[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return booksList, nil
}

/* Updates the book row and its author links, checks and returns it if succeed. */
func (store *Store) UpdateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	sqlStatement := `
	UPDATE books
	SET title = $2, summary = $3, quantity = $4, in_stock = $5, updated_at = $6
	WHERE id = $1
	RETURNING id, title, summary, quantity, in_stock, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Summary, *bookEntry.Quantity, *bookEntry.InStock, bookEntry.UpdatedAt)
	var bookToReturn library.Book
	err := updatedRow.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Summary, &bookToReturn.Quantity, &bookToReturn.InStock, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("updating book on db: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("updating book on db: %w", err)
		}
	}

	err = store.replaceBookAuthors(ctx, bookToReturn.ID, bookEntry.Authors)
	if err != nil {
		return library.Book{}, err
	}
	bookToReturn.Authors = bookEntry.Authors

	return bookToReturn, nil
}

func (store *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM books
	WHERE id = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting book from db: %w", library.ErrResponseBookNotFound)
	}
	return nil
}

/* Moves the in_stock counter of every given book by delta, as one relative
update. The table constraint keeps the counter between zero and quantity. */
func (store *Store) AdjustStock(ctx context.Context, bookIDs []uuid.UUID, delta int) error {
	if len(bookIDs) == 0 {
		return nil
	}

	sqlStatement := `
	UPDATE books
	SET in_stock = in_stock + $2
	WHERE id = ANY($1);`
	result, err := store.exc.ExecContext(ctx, sqlStatement, pq.Array(uuidsToStrings(bookIDs)), delta)
	if err != nil {
		return fmt.Errorf("adjusting stock on db: %w", err)
	}

	adjusted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjusting stock on db: %w", err)
	}
	if adjusted != int64(len(bookIDs)) {
		return fmt.Errorf("adjusting stock on db: %w", library.ErrResponseBookNotFound)
	}
	return nil
}
