package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

// PostgreSQL error codes inspected by the store.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// PostgresStore handles users, books and loans against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var schema = []string{
	`DO $$ BEGIN
		CREATE TYPE genre AS ENUM (
			'fiction', 'non_fiction', 'science_fiction', 'fantasy', 'mystery',
			'thriller', 'romance', 'biography', 'history', 'science',
			'self_help', 'children', 'comic', 'poetry', 'drama', 'classic'
		);
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		email      VARCHAR(255) UNIQUE NOT NULL,
		password   VARCHAR(255) NOT NULL,
		address    TEXT         NOT NULL DEFAULT '',
		phone      VARCHAR(50)  NOT NULL DEFAULT '',
		is_admin   BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               BIGSERIAL PRIMARY KEY,
		title            VARCHAR(255) NOT NULL,
		author           VARCHAR(255) NOT NULL,
		isbn             VARCHAR(32)  UNIQUE NOT NULL,
		publisher        VARCHAR(255) NOT NULL DEFAULT '',
		publication_date VARCHAR(32)  NOT NULL DEFAULT '',
		genre            genre        NOT NULL,
		synopsis         TEXT         NOT NULL,
		cover_image      TEXT         NOT NULL DEFAULT '',
		cover_key        TEXT         NOT NULL DEFAULT '',
		available        BOOLEAN      NOT NULL DEFAULT TRUE,
		total_copies     INTEGER      NOT NULL DEFAULT 1 CHECK (total_copies >= 1),
		available_copies INTEGER      NOT NULL DEFAULT 1,
		pages            INTEGER,
		language         VARCHAR(64)  NOT NULL DEFAULT 'English',
		created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT books_copies_in_range CHECK (available_copies BETWEEN 0 AND total_copies),
		CONSTRAINT books_available_derived CHECK (available = (available_copies > 0))
	)`,
	`CREATE TABLE IF NOT EXISTS book_loans (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT      NOT NULL REFERENCES users(id),
		book_id     BIGINT      NOT NULL REFERENCES books(id),
		borrow_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		due_date    TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		status      VARCHAR(16) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'borrowed', 'returned', 'rejected')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_genre ON books (genre)`,
	`CREATE INDEX IF NOT EXISTS idx_books_title ON books (title)`,
	`CREATE INDEX IF NOT EXISTS idx_book_loans_user ON book_loans (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_book_loans_book ON book_loans (book_id)`,
}

// Migrate creates the schema if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const userColumns = `id, name, email, password, address, phone, is_admin, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Address, &u.Phone, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in *models.User) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password, address, phone, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		in.Name, in.Email, in.Password, in.Address, in.Phone, in.IsAdmin,
	))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

// EnsureAdmin creates the account if missing and flags it as administrator.
// An existing account keeps its password.
func (s *PostgresStore) EnsureAdmin(ctx context.Context, email, name, hashedPassword string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password, is_admin)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (email) DO UPDATE SET is_admin = TRUE
		 RETURNING `+userColumns,
		name, email, hashedPassword,
	))
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	return u, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFound maps pgx.ErrNoRows to an apperr.NotFound carrying msg.
func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s", msg)
	}
	return err
}
