package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"go.uber.org/zap"
)

// Backfill file names
const (
	CreditCardsFile  = "credit_cards.csv"
	ProfilesFile     = "profiles.csv"
	TransactionsFile = "transactions.csv"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVSource loads a historical dataset from the three backfill tables of a
// directory. Columns are matched by header name, case-insensitively.
type CSVSource struct {
	dir      string
	logger   *zap.Logger
	rowsRead int64
}

// NewCSVSource creates a source reading from dir
func NewCSVSource(dir string, logger *zap.Logger) *CSVSource {
	return &CSVSource{
		dir:    dir,
		logger: logger,
	}
}

// Load reads cards, profiles and transactions. Transactions are sorted by
// datetime then tid.
func (s *CSVSource) Load(ctx context.Context) (*model.Dataset, error) {
	s.logger.Info("Loading backfill dataset", zap.String("dir", s.dir))

	ds := &model.Dataset{}
	if err := s.readFile(ctx, CreditCardsFile, func(r record) error {
		card, err := parseCard(r)
		if err == nil {
			ds.Cards = append(ds.Cards, card)
		}
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.readFile(ctx, ProfilesFile, func(r record) error {
		profile, err := parseProfile(r)
		if err == nil {
			ds.Profiles = append(ds.Profiles, profile)
		}
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.readFile(ctx, TransactionsFile, func(r record) error {
		tx, err := parseTransaction(r)
		if err == nil {
			ds.Transactions = append(ds.Transactions, tx)
		}
		return err
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(ds.Transactions, func(i, j int) bool {
		a, b := ds.Transactions[i], ds.Transactions[j]
		if !a.Datetime.Equal(b.Datetime) {
			return a.Datetime.Before(b.Datetime)
		}
		return a.TID < b.TID
	})

	s.logger.Info("Backfill dataset loaded",
		zap.Int("cards", len(ds.Cards)),
		zap.Int("profiles", len(ds.Profiles)),
		zap.Int("transactions", len(ds.Transactions)))

	return ds, nil
}

// RowsRead returns the number of data rows read so far
func (s *CSVSource) RowsRead() int64 {
	return atomic.LoadInt64(&s.rowsRead)
}

// record is one CSV line addressed by column name
type record struct {
	file    string
	line    int
	columns map[string]int
	fields  []string
}

func (r record) get(name string) (string, error) {
	i, ok := r.columns[name]
	if !ok {
		return "", fmt.Errorf("%s: missing column %s", r.file, name)
	}
	return strings.TrimSpace(r.fields[i]), nil
}

func (r record) wrap(column string, err error) error {
	return fmt.Errorf("%s line %d, column %s: %w", r.file, r.line, column, err)
}

func (s *CSVSource) readFile(ctx context.Context, name string, fn func(record) error) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		line++
		if err := fn(record{file: name, line: line, columns: columns, fields: fields}); err != nil {
			return err
		}
		atomic.AddInt64(&s.rowsRead, 1)
	}

	s.logger.Debug("CSV file read", zap.String("file", path), zap.Int("rows", line-1))
	return nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func parseCard(r record) (model.CreditCard, error) {
	var card model.CreditCard
	var err error
	if card.CCNum, err = r.get("cc_num"); err != nil {
		return card, err
	}
	if card.Provider, err = r.get("provider"); err != nil {
		return card, err
	}
	if card.Expires, err = r.get("expires"); err != nil {
		return card, err
	}
	if _, err := card.ExpiryTime(); err != nil {
		return card, r.wrap("expires", err)
	}
	return card, nil
}

func parseProfile(r record) (model.Profile, error) {
	var p model.Profile
	fields := []struct {
		name string
		dst  *string
	}{
		{"cc_num", &p.CCNum},
		{"name", &p.Name},
		{"sex", &p.Sex},
		{"mail", &p.Mail},
		{"city", &p.City},
		{"country", &p.Country},
	}
	for _, f := range fields {
		v, err := r.get(f.name)
		if err != nil {
			return p, err
		}
		*f.dst = v
	}

	birthdate, err := r.get("birthdate")
	if err != nil {
		return p, err
	}
	if p.Birthdate, err = parseTime(birthdate); err != nil {
		return p, r.wrap("birthdate", err)
	}
	return p, nil
}

func parseTransaction(r record) (model.Transaction, error) {
	var tx model.Transaction
	fields := []struct {
		name string
		dst  *string
	}{
		{"tid", &tx.TID},
		{"cc_num", &tx.CCNum},
		{"category", &tx.Category},
		{"city", &tx.City},
		{"country", &tx.Country},
	}
	for _, f := range fields {
		v, err := r.get(f.name)
		if err != nil {
			return tx, err
		}
		*f.dst = v
	}

	raw, err := r.get("datetime")
	if err != nil {
		return tx, err
	}
	if tx.Datetime, err = parseTime(raw); err != nil {
		return tx, r.wrap("datetime", err)
	}

	if raw, err = r.get("amount"); err != nil {
		return tx, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return tx, r.wrap("amount", err)
	}
	tx.Amount = amount.InexactFloat64()

	for _, c := range []struct {
		name string
		dst  *float64
	}{
		{"latitude", &tx.Latitude},
		{"longitude", &tx.Longitude},
	} {
		if raw, err = r.get(c.name); err != nil {
			return tx, err
		}
		if *c.dst, err = strconv.ParseFloat(raw, 64); err != nil {
			return tx, r.wrap(c.name, err)
		}
	}

	if raw, err = r.get("fraud_label"); err != nil {
		return tx, err
	}
	if tx.FraudLabel, err = strconv.ParseBool(raw); err != nil {
		return tx, r.wrap("fraud_label", err)
	}
	return tx, nil
}
