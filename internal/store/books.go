package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

const dialectPostgres = "postgres"

var bookColumns = []string{
	"id", "title", "author", "isbn", "publisher", "publication_date", "genre",
	"synopsis", "cover_image", "available", "total_copies", "available_copies",
	"pages", "language", "created_at",
}

var bookColumnList = strings.Join(bookColumns, ", ")

var sortColumns = map[models.SortColumn]string{
	models.SortByTitle:     "title",
	models.SortByAuthor:    "author",
	models.SortByCreatedAt: "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanBook(row pgx.Row) (*models.Book, error) {
	var (
		b     models.Book
		genre string
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Publisher, &b.PublicationDate, &genre,
		&b.Synopsis, &b.CoverImage, &b.Available, &b.TotalCopies, &b.AvailableCopies,
		&b.Pages, &b.Language, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Genre = models.Genre(genre)
	return &b, nil
}

// bookListQuery renders the catalog SELECT for q. The search term is matched
// case-sensitively as a substring of title, author or isbn.
func bookListQuery(q models.BookQuery) (string, []any, error) {
	cols := make([]any, len(bookColumns))
	for i, c := range bookColumns {
		cols[i] = goqu.C(c)
	}
	ds := goqu.Dialect(dialectPostgres).From("books").Prepared(true).Select(cols...)

	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(q.Search) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").Like(pattern),
			goqu.C("author").Like(pattern),
			goqu.C("isbn").Like(pattern),
		))
	}
	if len(q.Genres) > 0 {
		genres := make([]string, len(q.Genres))
		for i, g := range q.Genres {
			genres[i] = string(g)
		}
		ds = ds.Where(goqu.L(`"genre"::text`).In(genres))
	}
	if q.Available != nil {
		ds = ds.Where(goqu.C("available").Eq(*q.Available))
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[models.SortByTitle]
	}
	if q.Descending {
		ds = ds.Order(goqu.C(col).Desc(), goqu.C("id").Desc())
	} else {
		ds = ds.Order(goqu.C(col).Asc(), goqu.C("id").Asc())
	}
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	if q.Offset > 0 {
		ds = ds.Offset(uint(q.Offset))
	}
	return ds.ToSQL()
}

// ListBooks returns one page of the catalog.
func (s *PostgresStore) ListBooks(ctx context.Context, q models.BookQuery) ([]models.Book, error) {
	query, args, err := bookListQuery(q)
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]models.Book, 0, q.Limit)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

func (s *PostgresStore) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	b, err := scanBook(s.pool.QueryRow(ctx,
		`SELECT `+bookColumnList+` FROM books WHERE id = $1`, id,
	))
	if err != nil {
		return nil, notFound(err, "book not found")
	}
	return b, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, b *models.Book) (*models.Book, error) {
	created, err := scanBook(s.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, isbn, publisher, publication_date, genre, synopsis,
		                    cover_image, available, total_copies, available_copies, pages, language)
		 VALUES ($1, $2, $3, $4, $5, $6::genre, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+bookColumnList,
		b.Title, b.Author, b.ISBN, b.Publisher, b.PublicationDate, string(b.Genre), b.Synopsis,
		b.CoverImage, b.AvailableCopies > 0, b.TotalCopies, b.AvailableCopies, b.Pages, b.Language,
	))
	if err != nil {
		return nil, bookWriteError("create book", err)
	}
	return created, nil
}

// UpdateBook applies patch to the stored book under a row lock, so a loan
// transition cannot interleave between reading and writing the copy counts.
func (s *PostgresStore) UpdateBook(ctx context.Context, id int64, patch models.BookPatch) (*models.Book, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanBook(tx.QueryRow(ctx,
		`SELECT `+bookColumnList+` FROM books WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, notFound(err, "book not found")
	}

	next, err := patch.Apply(*current)
	if err != nil {
		return nil, err
	}

	updated, err := scanBook(tx.QueryRow(ctx,
		`UPDATE books SET
			title = $2, author = $3, isbn = $4, publisher = $5, publication_date = $6,
			genre = $7::genre, synopsis = $8, cover_image = $9, available = $10,
			total_copies = $11, available_copies = $12, pages = $13, language = $14
		 WHERE id = $1
		 RETURNING `+bookColumnList,
		id, next.Title, next.Author, next.ISBN, next.Publisher, next.PublicationDate,
		string(next.Genre), next.Synopsis, next.CoverImage, next.Available,
		next.TotalCopies, next.AvailableCopies, next.Pages, next.Language,
	))
	if err != nil {
		return nil, bookWriteError("update book", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return apperr.Conflict("book has loans and cannot be deleted")
		}
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("book not found")
	}
	return nil
}

// SetCover records the object key and public URL of a book's cover. It
// returns the key it replaced, which may be empty.
func (s *PostgresStore) SetCover(ctx context.Context, id int64, key, url string) (string, error) {
	var previous string
	err := s.pool.QueryRow(ctx,
		`UPDATE books b SET cover_key = $2, cover_image = $3
		 FROM (SELECT id, cover_key FROM books WHERE id = $1 FOR UPDATE) old
		 WHERE b.id = old.id
		 RETURNING old.cover_key`,
		id, key, url,
	).Scan(&previous)
	if err != nil {
		return "", notFound(err, "book not found")
	}
	return previous, nil
}

// CoverKey returns the object key of a book's uploaded cover, or "" if none
// was uploaded.
func (s *PostgresStore) CoverKey(ctx context.Context, id int64) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx, `SELECT cover_key FROM books WHERE id = $1`, id).Scan(&key)
	if err != nil {
		return "", notFound(err, "book not found")
	}
	return key, nil
}

func bookWriteError(op string, err error) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return apperr.Conflict("a book with this isbn already exists")
	case codeCheckViolation:
		return apperr.Validation("book copy counts are out of range")
	}
	return fmt.Errorf("%s: %w", op, err)
}
