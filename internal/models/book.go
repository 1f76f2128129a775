package models

import (
	"strings"
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
)

// Genre is one of the fixed catalog genres. It mirrors the PostgreSQL
// "genre" enum type.
type Genre string

const (
	GenreFiction        Genre = "fiction"
	GenreNonFiction     Genre = "non_fiction"
	GenreScienceFiction Genre = "science_fiction"
	GenreFantasy        Genre = "fantasy"
	GenreMystery        Genre = "mystery"
	GenreThriller       Genre = "thriller"
	GenreRomance        Genre = "romance"
	GenreBiography      Genre = "biography"
	GenreHistory        Genre = "history"
	GenreScience        Genre = "science"
	GenreSelfHelp       Genre = "self_help"
	GenreChildren       Genre = "children"
	GenreComic          Genre = "comic"
	GenrePoetry         Genre = "poetry"
	GenreDrama          Genre = "drama"
	GenreClassic        Genre = "classic"
)

var genres = []Genre{
	GenreFiction, GenreNonFiction, GenreScienceFiction, GenreFantasy,
	GenreMystery, GenreThriller, GenreRomance, GenreBiography,
	GenreHistory, GenreScience, GenreSelfHelp, GenreChildren,
	GenreComic, GenrePoetry, GenreDrama, GenreClassic,
}

// Genres returns every valid genre in declaration order.
func Genres() []Genre {
	out := make([]Genre, len(genres))
	copy(out, genres)
	return out
}

// ParseGenre reports whether s names a valid genre.
func ParseGenre(s string) (Genre, bool) {
	for _, g := range genres {
		if string(g) == s {
			return g, true
		}
	}
	return "", false
}

const DefaultLanguage = "English"

// Book represents a row in the books table.
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Publisher       string    `json:"publisher"`
	PublicationDate string    `json:"publicationDate"`
	Genre           Genre     `json:"genre"`
	Synopsis        string    `json:"synopsis"`
	CoverImage      string    `json:"coverImage"`
	Available       bool      `json:"available"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	Pages           *int      `json:"pages"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BookSummary is the subset of a book embedded in loan listings.
type BookSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	CoverImage string `json:"coverImage"`
}

// BookInput is the JSON body for POST /api/admin/books.
type BookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Publisher       string `json:"publisher"`
	PublicationDate string `json:"publicationDate"`
	Genre           Genre  `json:"genre"`
	Synopsis        string `json:"synopsis"`
	CoverImage      string `json:"coverImage"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies *int   `json:"availableCopies"`
	Pages           *int   `json:"pages"`
	Language        string `json:"language"`
}

// Normalize trims fields, fills defaults and validates the input. It returns
// the book that should be inserted; Available is derived from the copy count.
func (in BookInput) Normalize() (*Book, error) {
	b := &Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		ISBN:            strings.TrimSpace(in.ISBN),
		Publisher:       strings.TrimSpace(in.Publisher),
		PublicationDate: strings.TrimSpace(in.PublicationDate),
		Genre:           in.Genre,
		Synopsis:        strings.TrimSpace(in.Synopsis),
		CoverImage:      strings.TrimSpace(in.CoverImage),
		TotalCopies:     in.TotalCopies,
		Pages:           in.Pages,
		Language:        strings.TrimSpace(in.Language),
	}
	if b.TotalCopies == 0 {
		b.TotalCopies = 1
	}
	b.AvailableCopies = b.TotalCopies
	if in.AvailableCopies != nil {
		b.AvailableCopies = *in.AvailableCopies
	}
	if b.Language == "" {
		b.Language = DefaultLanguage
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.Available = b.AvailableCopies > 0
	return b, nil
}

func (b *Book) validate() error {
	switch {
	case b.Title == "":
		return apperr.Validation("title is required")
	case b.Author == "":
		return apperr.Validation("author is required")
	case len(b.ISBN) < 10:
		return apperr.Validation("isbn must be at least 10 characters")
	case len(b.Synopsis) < 10:
		return apperr.Validation("synopsis must be at least 10 characters")
	}
	if _, ok := ParseGenre(string(b.Genre)); !ok {
		return apperr.Validation("invalid genre %q", b.Genre)
	}
	if b.TotalCopies < 1 {
		return apperr.Validation("totalCopies must be at least 1")
	}
	if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
		return apperr.Validation("availableCopies must be between 0 and totalCopies")
	}
	if b.Pages != nil && *b.Pages < 0 {
		return apperr.Validation("pages must not be negative")
	}
	return nil
}

// BookPatch is the JSON body for PUT /api/admin/books/{id}. Nil fields are
// left unchanged. Patching totalCopies alone moves availableCopies by the same
// amount, so copies on loan stay on loan.
type BookPatch struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	Publisher       *string `json:"publisher"`
	PublicationDate *string `json:"publicationDate"`
	Genre           *Genre  `json:"genre"`
	Synopsis        *string `json:"synopsis"`
	CoverImage      *string `json:"coverImage"`
	TotalCopies     *int    `json:"totalCopies"`
	AvailableCopies *int    `json:"availableCopies"`
	Pages           *int    `json:"pages"`
	Language        *string `json:"language"`
}

// Apply returns a copy of b with the patch applied and validated.
func (p BookPatch) Apply(b Book) (*Book, error) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&b.Title, p.Title)
	set(&b.Author, p.Author)
	set(&b.ISBN, p.ISBN)
	set(&b.Publisher, p.Publisher)
	set(&b.PublicationDate, p.PublicationDate)
	set(&b.Synopsis, p.Synopsis)
	set(&b.CoverImage, p.CoverImage)
	set(&b.Language, p.Language)
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.TotalCopies != nil {
		if p.AvailableCopies == nil {
			b.AvailableCopies += *p.TotalCopies - b.TotalCopies
		}
		b.TotalCopies = *p.TotalCopies
	}
	if p.AvailableCopies != nil {
		b.AvailableCopies = *p.AvailableCopies
	}
	if p.Pages != nil {
		b.Pages = p.Pages
	}
	if b.Language == "" {
		b.Language = DefaultLanguage
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.Available = b.AvailableCopies > 0
	return &b, nil
}

// Empty reports whether the patch changes nothing.
func (p BookPatch) Empty() bool {
	return p == BookPatch{}
}

// SortColumn is a catalog sort key accepted by the books listing.
type SortColumn string

const (
	SortByTitle     SortColumn = "title"
	SortByAuthor    SortColumn = "author"
	SortByCreatedAt SortColumn = "createdAt"
)

// BookQuery selects a page of the catalog.
type BookQuery struct {
	Search     string
	Genres     []Genre
	Available  *bool
	Limit      int
	Offset     int
	SortBy     SortColumn
	Descending bool
}
