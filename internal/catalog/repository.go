package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/store"
)

const bookColumns = `id, title, COALESCE(format, ''), COALESCE(cover_paper, ''), COALESCE(cover_color, ''),
	COALESCE(inner_spec, ''), COALESCE(total_pages, 0), COALESCE(endpaper, ''), COALESCE(wing, ''),
	COALESCE(binding, ''), COALESCE(postprocess, '')`

// Repository persists books.
type Repository struct {
	db *store.DB
}

// NewRepository constructs a Repository over db.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a book and returns its id. The caller validates the title.
func (r *Repository) Create(ctx context.Context, in BookInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO books (title, format, cover_paper, cover_color, inner_spec, total_pages, endpaper, wing, binding, postprocess)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		in.Title, in.Format, in.CoverPaper, in.CoverColor, in.InnerSpec,
		in.TotalPages, in.Endpaper, in.Wing, in.Binding, in.Postprocess,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	obs.RecordBookMutation("create")
	return id, nil
}

// List returns every book, newest first.
func (r *Repository) List(ctx context.Context) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Get returns a single book or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (Book, error) {
	if id < 1 {
		return Book{}, ErrNotFound
	}
	b, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	return b, err
}

// Update applies the non-nil fields of patch. A missing id or an empty patch
// changes nothing and is not an error.
func (r *Repository) Update(ctx context.Context, id int64, patch BookPatch) error {
	sets := patch.assignments()
	if id < 1 || len(sets) == 0 {
		return nil
	}
	clauses := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	for _, s := range sets {
		clauses = append(clauses, s.column+" = ?")
		args = append(args, s.value)
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, `UPDATE books SET `+strings.Join(clauses, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("update book %d: %w", id, err)
	}
	obs.RecordBookMutation("update")
	return nil
}

// Delete removes a book. Orders referring to it are kept.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	obs.RecordBookMutation("delete")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Format, &b.CoverPaper, &b.CoverColor,
		&b.InnerSpec, &b.TotalPages, &b.Endpaper, &b.Wing, &b.Binding, &b.Postprocess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, err
		}
		return Book{}, fmt.Errorf("scan book: %w", err)
	}
	return b, nil
}
