package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

func TestCreateTableSQL(t *testing.T) {
	ddl := createTableSQL(schema.FraudLabelsGroup())

	assert.True(t, strings.HasPrefix(ddl, `CREATE TABLE IF NOT EXISTS "transactions_fraud_label_2" (`))
	assert.Contains(t, ddl, `"tid" TEXT NOT NULL`)
	assert.Contains(t, ddl, `"datetime" BIGINT NOT NULL`)
	assert.Contains(t, ddl, `"fraud_label" INTEGER NOT NULL`)
	assert.Contains(t, ddl, `PRIMARY KEY ("cc_num", "datetime")`)

	ddl = createTableSQL(schema.TransactionsGroup())
	assert.Contains(t, ddl, `"loc_delta_t_minus_1" DOUBLE PRECISION,`)
}

func TestInsertSQL(t *testing.T) {
	q := insertSQL(schema.FraudLabelsGroup(), 2)

	assert.Equal(t,
		`INSERT INTO "transactions_fraud_label_2" ("tid", "cc_num", "datetime", "fraud_label") `+
			`VALUES ($1, $2, $3, $4), ($5, $6, $7, $8) ON CONFLICT ("cc_num", "datetime") DO NOTHING`,
		q)
}

func TestSelectSQL(t *testing.T) {
	assert.Equal(t,
		`SELECT "tid", "cc_num", "datetime", "fraud_label" FROM "transactions_fraud_label_2" ORDER BY "cc_num", "datetime"`,
		selectSQL(schema.FraudLabelsGroup()))
}

func TestPostgresConnString(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, Database: "features", User: "u", Password: "p"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=features sslmode=disable", cfg.ConnString())
}

func TestFromSQL(t *testing.T) {
	assert.Equal(t, "4111", fromSQL(schema.TypeString, []byte("4111")))
	assert.Equal(t, 3, fromSQL(schema.TypeInt, int64(3)))
	assert.Equal(t, int64(3), fromSQL(schema.TypeLong, int64(3)))
	assert.Nil(t, fromSQL(schema.TypeDouble, nil))
}

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("features"),
		postgres.WithUsername("ccfraud"),
		postgres.WithPassword("ccfraud"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, err := NewPostgresStore(ctx, PostgresConfig{
		Host:      host,
		Port:      port.Int(),
		Database:  "features",
		User:      "ccfraud",
		Password:  "ccfraud",
		BatchSize: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read(ctx, schema.FraudLabelsGroup())
	assert.ErrorIs(t, err, ErrGroupNotFound)

	table := labelTable(labelRow("t2", "4111", 2, 1), labelRow("t1", "4111", 1, 0))
	require.NoError(t, s.Write(ctx, table))
	require.NoError(t, s.Write(ctx, table))

	got, err := s.Read(ctx, schema.FraudLabelsGroup())
	require.NoError(t, err)
	assert.Equal(t, []Row{labelRow("t1", "4111", 1, 0), labelRow("t2", "4111", 2, 1)}, got.Rows)
}
