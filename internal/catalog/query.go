package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ayush/library-lending/backend/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ParseQuery turns the GET /api/books query string into a BookQuery. It never
// fails: malformed values fall back to their defaults and unknown genres are
// dropped.
func ParseQuery(v url.Values) models.BookQuery {
	q := models.BookQuery{
		Search: v.Get("search"),
		Genres: parseGenres(append(v["genres"], v["genres[]"]...)),
		SortBy: models.SortByTitle,
	}

	switch v.Get("available") {
	case "true":
		t := true
		q.Available = &t
	case "false":
		f := false
		q.Available = &f
	}

	page := positiveInt(v.Get("page"), 1)
	q.Limit = positiveInt(v.Get("limit"), DefaultPageSize)
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if page > math.MaxInt/q.Limit {
		page = math.MaxInt / q.Limit
	}
	q.Offset = (page - 1) * q.Limit

	switch col := models.SortColumn(v.Get("sortBy")); col {
	case models.SortByTitle, models.SortByAuthor, models.SortByCreatedAt:
		q.SortBy = col
	}
	q.Descending = strings.EqualFold(v.Get("sortOrder"), "desc")
	return q
}

// parseGenres accepts repeated and comma separated values.
func parseGenres(raw []string) []models.Genre {
	var out []models.Genre
	seen := make(map[models.Genre]bool)
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			g, ok := models.ParseGenre(strings.TrimSpace(s))
			if !ok || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
