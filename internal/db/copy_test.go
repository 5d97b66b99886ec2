package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "contacts", []string{"name", "email"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"contacts"}, []string{"name", "email"}).WillReturnResult(3)

	rows := [][]any{
		{"Pat Lee", "pat@acme.com"},
		{"Ray Kim", "ray@acme.com"},
		{"Sue Park", "sue@acme.com"},
	}
	n, err := CopyFrom(context.Background(), mock, "contacts", []string{"name", "email"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"contacts"}, []string{"name"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"Pat Lee"}}
	_, err = CopyFrom(context.Background(), mock, "contacts", []string{"name"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO contacts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
