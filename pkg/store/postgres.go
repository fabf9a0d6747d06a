package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

// undefined_table
const pqUndefinedTable = "42P01"

// PostgresStore is the offline store: one table per feature group version
type PostgresStore struct {
	db        *sql.DB
	logger    *zap.Logger
	batchSize int

	mu      sync.Mutex
	ensured map[string]bool
}

// PostgresConfig holds PostgreSQL store configuration
type PostgresConfig struct {
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
	SSLMode   string
	BatchSize int
}

// ConnString renders the lib/pq connection string
func (c PostgresConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects to PostgreSQL
func NewPostgresStore(ctx context.Context, config PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if config.BatchSize == 0 {
		config.BatchSize = 500
	}

	logger.Info("PostgreSQL feature store initialized",
		zap.String("host", config.Host),
		zap.String("database", config.Database),
	)

	return &PostgresStore{
		db:        db,
		logger:    logger,
		batchSize: config.BatchSize,
		ensured:   make(map[string]bool),
	}, nil
}

func sqlType(t schema.FeatureType) string {
	switch t {
	case schema.TypeLong:
		return "BIGINT"
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeDouble:
		return "DOUBLE PRECISION"
	case schema.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func conflictColumns(group *schema.FeatureGroup) []string {
	cols := make([]string, 0, len(group.PrimaryKey)+1)
	for _, c := range group.PrimaryKey {
		cols = append(cols, pq.QuoteIdentifier(c))
	}
	return append(cols, pq.QuoteIdentifier(group.EventTime))
}

// createTableSQL builds the DDL of a feature group table
func createTableSQL(group *schema.FeatureGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pq.QuoteIdentifier(group.ID()))
	for _, f := range group.Features {
		fmt.Fprintf(&b, "\t%s %s", pq.QuoteIdentifier(f.Name), sqlType(f.Type))
		if !f.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(conflictColumns(group), ", "))
	return b.String()
}

// insertSQL builds a multi-row insert that skips rows already stored
func insertSQL(group *schema.FeatureGroup, rows int) string {
	cols := make([]string, len(group.Features))
	for i, f := range group.Features {
		cols[i] = pq.QuoteIdentifier(f.Name)
	}

	values := make([]string, rows)
	n := 1
	for r := 0; r < rows; r++ {
		placeholders := make([]string, len(cols))
		for c := range cols {
			placeholders[c] = fmt.Sprintf("$%d", n)
			n++
		}
		values[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		pq.QuoteIdentifier(group.ID()),
		strings.Join(cols, ", "),
		strings.Join(values, ", "),
		strings.Join(conflictColumns(group), ", "))
}

// selectSQL builds the read query of a group ordered by key and event time
func selectSQL(group *schema.FeatureGroup) string {
	cols := make([]string, len(group.Features))
	for i, f := range group.Features {
		cols[i] = pq.QuoteIdentifier(f.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "),
		pq.QuoteIdentifier(group.ID()),
		strings.Join(conflictColumns(group), ", "))
}

func (p *PostgresStore) ensureTable(ctx context.Context, group *schema.FeatureGroup) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ensured[group.ID()] {
		return nil
	}
	if _, err := p.db.ExecContext(ctx, createTableSQL(group)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", group.ID(), err)
	}
	p.ensured[group.ID()] = true
	p.logger.Info("PostgreSQL table ready", zap.String("table", group.ID()))
	return nil
}

// Write inserts the table in batches within one transaction
func (p *PostgresStore) Write(ctx context.Context, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if table.Len() == 0 {
		return nil
	}
	if err := p.ensureTable(ctx, table.Group); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for start := 0; start < table.Len(); start += p.batchSize {
		end := start + p.batchSize
		if end > table.Len() {
			end = table.Len()
		}
		batch := table.Rows[start:end]

		args := make([]interface{}, 0, len(batch)*len(table.Group.Features))
		for _, row := range batch {
			for _, f := range table.Group.Features {
				args = append(args, row[f.Name])
			}
		}

		res, err := tx.ExecContext(ctx, insertSQL(table.Group, len(batch)), args...)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table.Group.ID(), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Info("Batch written to PostgreSQL",
		zap.String("table", table.Group.ID()),
		zap.Int("rows", table.Len()),
		zap.Int64("inserted", inserted),
	)
	return nil
}

// Read loads every row of a group
func (p *PostgresStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	rows, err := p.db.QueryContext(ctx, selectSQL(group))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUndefinedTable {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group.ID())
		}
		return nil, fmt.Errorf("failed to query %s: %w", group.ID(), err)
	}
	defer rows.Close()

	table := NewTable(group)
	for rows.Next() {
		values := make([]interface{}, len(group.Features))
		ptrs := make([]interface{}, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", group.ID(), err)
		}

		row := make(Row, len(values))
		for i, f := range group.Features {
			row[f.Name] = fromSQL(f.Type, values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", group.ID(), err)
	}
	return table, nil
}

// fromSQL normalizes driver values to the row types the pipeline produces
func fromSQL(t schema.FeatureType, v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int64:
		if t == schema.TypeInt {
			return int(x)
		}
	}
	return v
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	p.logger.Info("Closing PostgreSQL feature store")
	return p.db.Close()
}
