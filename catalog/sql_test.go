package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflake-labs/segment"
	"github.com/snowflake-labs/segment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const columnsQuery = "SELECT column_name, data_type, comment FROM %sinformation_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position"

func TestSQLProvider(t *testing.T) {
	ctx := context.Background()
	columns := []string{"column_name", "data_type", "comment"}

	sources := []Source{
		{Category: "Profile", Table: "HARMONIZED.PROFILES", Include: []string{"TIER", "AGE", "INCOME_LEVEL"}},
		{Category: "Scores", Table: "ANALYSE.CHURN", Exclude: []string{"subscriber_id"}},
		{Category: "Profile", Table: "OTHER.HARMONIZED.DEVICES"},
	}

	t.Run("It loads sources grouped by category and sorted by label", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.MatchExpectationsInOrder(false)

		mock.ExpectQuery(fmtQuery("DB.")).
			WithArgs("HARMONIZED", "PROFILES").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("TIER", "VARCHAR", "Subscription tier").
				AddRow("EMAIL", "VARCHAR", nil).
				AddRow("age", "NUMBER(38,0)", nil))
		mock.ExpectQuery(fmtQuery("DB.")).
			WithArgs("ANALYSE", "CHURN").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("SUBSCRIBER_ID", "VARCHAR", nil).
				AddRow("PREDICTED_CHURN_PROB", "FLOAT", nil))
		mock.ExpectQuery(fmtQuery("OTHER.")).
			WithArgs("HARMONIZED", "DEVICES").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("DEVICE_TYPE", "VARCHAR", nil))

		p, err := NewSQLProvider(db, sources, SQLOpts{
			Database:    "DB",
			Concurrency: 1,
			Logger:      testutil.NewTestLogger(t),
		})
		require.NoError(t, err)

		defs, err := p.ListAttributes(ctx, "")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		require.Equal(t, []segment.AttributeDefinition{
			{Name: "AGE", Label: "Age", DataType: "NUMBER(38,0)", SourceTable: "DB.HARMONIZED.PROFILES", Category: "Profile"},
			{Name: "DEVICE_TYPE", Label: "Device Type", DataType: "VARCHAR", SourceTable: "OTHER.HARMONIZED.DEVICES", Category: "Profile"},
			{Name: "TIER", Label: "Tier", DataType: "VARCHAR", SourceTable: "DB.HARMONIZED.PROFILES", Description: "Subscription tier", Category: "Profile"},
			{Name: "PREDICTED_CHURN_PROB", Label: "Predicted Churn Prob", DataType: "FLOAT", SourceTable: "DB.ANALYSE.CHURN", Category: "Scores"},
		}, defs)
	})

	t.Run("It only queries sources within the category", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(fmtQuery("")).
			WithArgs("ANALYSE", "CHURN").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("PREDICTED_LTV", "NUMBER", nil))

		p, err := NewSQLProvider(db, sources, SQLOpts{})
		require.NoError(t, err)

		defs, err := p.ListAttributes(ctx, "Scores")
		require.NoError(t, err)
		require.Len(t, defs, 1)
		require.Equal(t, "ANALYSE.CHURN.PREDICTED_LTV", defs[0].Key())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("It uses dollar placeholders, custom description columns and lower case identifiers", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("SELECT column_name, data_type, NULL FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position").
			WithArgs("analyse", "churn").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("predicted_ltv", "numeric", nil))

		p, err := NewSQLProvider(db, sources[1:2], SQLOpts{
			DescriptionColumn: "NULL",
			Placeholder:       segment.PlaceholderDollar,
			IdentifierCase:    "lower",
		})
		require.NoError(t, err)

		defs, err := p.ListAttributes(ctx, "")
		require.NoError(t, err)
		require.Len(t, defs, 1)
		require.Equal(t, "predicted_ltv", defs[0].Name)
		require.Equal(t, "Predicted Ltv", defs[0].Label)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("It returns query errors", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		queryErr := errors.New("warehouse unavailable")
		mock.ExpectQuery(fmtQuery("")).
			WithArgs("ANALYSE", "CHURN").
			WillReturnError(queryErr)

		p, err := NewSQLProvider(db, sources[1:2], SQLOpts{})
		require.NoError(t, err)

		_, err = p.ListAttributes(ctx, "")
		require.ErrorIs(t, err, queryErr)
		assert.Contains(t, err.Error(), "ANALYSE.CHURN")
	})

	t.Run("It validates configuration", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		_, err = NewSQLProvider(db, sources, SQLOpts{DescriptionColumn: "comment; DROP TABLE x"})
		require.Error(t, err)
		_, err = NewSQLProvider(db, sources, SQLOpts{Database: "a.b"})
		require.Error(t, err)
		_, err = NewSQLProvider(db, []Source{{Table: "PROFILES"}}, SQLOpts{})
		require.Error(t, err)
		_, err = NewSQLProvider(db, sources, SQLOpts{IdentifierCase: "title"})
		require.Error(t, err)
	})
}

func fmtQuery(database string) string {
	return fmt.Sprintf(columnsQuery, database)
}
