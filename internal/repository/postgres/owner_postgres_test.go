package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"citydesk/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerPostgres_Resolve(t *testing.T) {
	t.Run("resolves each kind against its table", func(t *testing.T) {
		tests := []struct {
			kind  model.OwnerKind
			table string
		}{
			{model.OwnerEvent, "events"},
			{model.OwnerDemande, "demandes"},
			{model.OwnerAuthorization, "authorizations"},
			{model.OwnerComment, "comments"},
		}

		for _, tt := range tests {
			t.Run(string(tt.kind), func(t *testing.T) {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer db.Close()

				resolver := NewOwnerPostgres(db)
				mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM "+tt.table)).
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

				assert.NoError(t, resolver.Resolve(context.Background(), tt.kind, 7))
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	})

	t.Run("absent owner yields sql.ErrNoRows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		resolver := NewOwnerPostgres(db)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM events")).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

		err = resolver.Resolve(context.Background(), model.OwnerEvent, 99)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})

	t.Run("unknown kind", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		resolver := NewOwnerPostgres(db)
		assert.Error(t, resolver.Resolve(context.Background(), model.OwnerKind("user"), 1))
	})
}
