package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/library-lending/backend/internal/models"
)

func TestLoanListQueryForUser(t *testing.T) {
	userID := int64(7)
	status := models.LoanBorrowed
	sql, args, err := loanListQuery(models.LoanFilter{UserID: &userID, Status: &status})
	require.NoError(t, err)

	assert.Contains(t, sql, `INNER JOIN "books" AS "b"`)
	assert.Contains(t, sql, `INNER JOIN "users" AS "u"`)
	assert.Contains(t, sql, `"l"."user_id" = $1`)
	assert.Contains(t, sql, `"l"."status" = $2`)
	assert.Contains(t, sql, `ORDER BY "l"."created_at" ASC, "l"."id" ASC`)
	assert.Equal(t, []any{int64(7), "borrowed"}, args)
}

func TestLoanListQueryAllNewestFirst(t *testing.T) {
	sql, args, err := loanListQuery(models.LoanFilter{NewestFirst: true, WithUser: true})
	require.NoError(t, err)

	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql, `ORDER BY "l"."created_at" DESC, "l"."id" DESC`)
	assert.Empty(t, args)
}
