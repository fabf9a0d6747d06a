// Package store persists feature tables. Every backend dedupes writes on the
// group's primary key plus event time, so a retried batch leaves the store
// unchanged.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
)

// ErrGroupNotFound is returned by Read for a group that was never written
var ErrGroupNotFound = errors.New("feature group not found")

// Row is one record of a feature table keyed by column name
type Row map[string]interface{}

// Table is a batch of rows of one feature group
type Table struct {
	Group *schema.FeatureGroup
	Rows  []Row
}

// NewTable creates an empty table for a group
func NewTable(group *schema.FeatureGroup) *Table {
	return &Table{Group: group}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Validate checks every row against the group's column contract. Validation
// failures are fatal for the write.
func (t *Table) Validate() error {
	if t.Group == nil {
		return ferrors.NewClassifiedError(errors.New("table has no feature group"), ferrors.CategoryFatal, "invalid table")
	}
	for i, row := range t.Rows {
		if err := t.Group.ValidateRow(row); err != nil {
			return ferrors.NewClassifiedError(err, ferrors.CategoryFatal, fmt.Sprintf("invalid row %d", i)).
				WithMetadata("group", t.Group.ID())
		}
	}
	return nil
}

// FeatureStore reads and writes feature tables
type FeatureStore interface {
	// Read returns every row stored for the group
	Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error)
	// Write appends the rows of a table; rows already present are skipped
	Write(ctx context.Context, table *Table) error
	Close() error
}

// EventTimeMillis returns the event time column of a row as Unix milliseconds
func EventTimeMillis(group *schema.FeatureGroup, row Row) (int64, error) {
	v, ok := row[group.EventTime]
	if !ok || v == nil {
		return 0, fmt.Errorf("row of %s has no event time %s", group.ID(), group.EventTime)
	}
	switch ts := v.(type) {
	case int64:
		return ts, nil
	case int:
		return int64(ts), nil
	case float64:
		return int64(ts), nil
	}
	return 0, fmt.Errorf("event time %s of %s is %T, expected Unix milliseconds", group.EventTime, group.ID(), v)
}

// PrimaryKey joins the primary key values of a row
func PrimaryKey(group *schema.FeatureGroup, row Row) (string, error) {
	parts := make([]string, len(group.PrimaryKey))
	for i, col := range group.PrimaryKey {
		v, ok := row[col]
		if !ok || v == nil {
			return "", fmt.Errorf("row of %s has no primary key column %s", group.ID(), col)
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "|"), nil
}

// RowKey identifies a row by primary key and event time. Event times are
// zero padded so keys sort chronologically per primary key.
func RowKey(group *schema.FeatureGroup, row Row) (string, error) {
	pk, err := PrimaryKey(group, row)
	if err != nil {
		return "", err
	}
	ts, err := EventTimeMillis(group, row)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%020d", group.ID(), pk, ts), nil
}

// SortRows orders rows by primary key then event time
func SortRows(group *schema.FeatureGroup, rows []Row) {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i], _ = RowKey(group, r)
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	sorted := make([]Row, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// normalizeRow converts the json.Number values of a decoded row to the Go
// types of the group's columns
func normalizeRow(group *schema.FeatureGroup, row Row) Row {
	for _, f := range group.Features {
		n, ok := row[f.Name].(json.Number)
		if !ok {
			continue
		}
		switch f.Type {
		case schema.TypeInt:
			if i, err := n.Int64(); err == nil {
				row[f.Name] = int(i)
			}
		case schema.TypeLong:
			if i, err := n.Int64(); err == nil {
				row[f.Name] = i
			}
		default:
			if x, err := n.Float64(); err == nil {
				row[f.Name] = x
			}
		}
	}
	return row
}

func decodeRow(group *schema.FeatureGroup, data []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("failed to decode row of %s: %w", group.ID(), err)
	}
	return normalizeRow(group, row), nil
}
