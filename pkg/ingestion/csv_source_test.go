package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"go.uber.org/zap"
)

const (
	cardsCSV = `cc_num,provider,expires
4111111111111111,visa,05/27
5500000000000004,mastercard,11/26
`
	profilesCSV = `name,sex,mail,birthdate,City,Country,cc_num
Ada Lovelace,F,ada@example.com,1990-03-15,Chicago,US,4111111111111111
Alan Turing,M,alan@example.com,1985-06-23 00:00:00,Boston,US,5500000000000004
`
	transactionsCSV = `tid,datetime,cc_num,category,amount,latitude,longitude,city,country,fraud_label
t3,2023-05-01 12:00:00,5500000000000004,Grocery,12.50,42.36,-71.06,Boston,US,0
t1,2023-05-01T08:30:00Z,4111111111111111,Electronics,1999.99,41.88,-87.63,Chicago,US,1
t2,2023-05-01 12:00:00,4111111111111111,Grocery,3.10,41.88,-87.63,Chicago,US,false
`
)

func writeBackfill(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func validFiles() map[string]string {
	return map[string]string{
		CreditCardsFile:  cardsCSV,
		ProfilesFile:     profilesCSV,
		TransactionsFile: transactionsCSV,
	}
}

func TestCSVSourceLoad(t *testing.T) {
	src := NewCSVSource(writeBackfill(t, validFiles()), zap.NewNop())

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), src.RowsRead())

	require.Len(t, ds.Cards, 2)
	assert.Equal(t, model.CreditCard{CCNum: "4111111111111111", Provider: "visa", Expires: "05/27"}, ds.Cards[0])

	require.Len(t, ds.Profiles, 2)
	assert.Equal(t, "Chicago", ds.Profiles[0].City)
	assert.Equal(t, time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC), ds.Profiles[0].Birthdate)
	assert.Equal(t, time.Date(1985, 6, 23, 0, 0, 0, 0, time.UTC), ds.Profiles[1].Birthdate)

	require.Len(t, ds.Transactions, 3)
	tids := []string{ds.Transactions[0].TID, ds.Transactions[1].TID, ds.Transactions[2].TID}
	assert.Equal(t, []string{"t1", "t2", "t3"}, tids, "sorted by datetime then tid")

	first := ds.Transactions[0]
	assert.Equal(t, time.Date(2023, 5, 1, 8, 30, 0, 0, time.UTC), first.Datetime)
	assert.Equal(t, 1999.99, first.Amount)
	assert.Equal(t, 41.88, first.Latitude)
	assert.Equal(t, -87.63, first.Longitude)
	assert.True(t, first.FraudLabel)
	assert.False(t, ds.Transactions[1].FraudLabel)
}

func TestCSVSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "missing file",
			file:    TransactionsFile,
			wantErr: "failed to open",
		},
		{
			name:    "missing column",
			file:    CreditCardsFile,
			content: "cc_num,provider\n4111,visa\n",
			wantErr: "credit_cards.csv: missing column expires",
		},
		{
			name:    "bad expiry",
			file:    CreditCardsFile,
			content: "cc_num,provider,expires\n4111,visa,2027-05\n",
			wantErr: "credit_cards.csv line 2, column expires",
		},
		{
			name:    "bad amount",
			file:    TransactionsFile,
			content: "tid,datetime,cc_num,category,amount,latitude,longitude,city,country,fraud_label\nt1,2023-05-01 12:00:00,4111,Grocery,abc,0,0,X,US,0\n",
			wantErr: "transactions.csv line 2, column amount",
		},
		{
			name:    "bad datetime",
			file:    TransactionsFile,
			content: "tid,datetime,cc_num,category,amount,latitude,longitude,city,country,fraud_label\nt1,01/05/2023,4111,Grocery,1,0,0,X,US,0\n",
			wantErr: "transactions.csv line 2, column datetime",
		},
		{
			name:    "bad label",
			file:    TransactionsFile,
			content: "tid,datetime,cc_num,category,amount,latitude,longitude,city,country,fraud_label\nt1,2023-05-01 12:00:00,4111,Grocery,1,0,0,X,US,maybe\n",
			wantErr: "transactions.csv line 2, column fraud_label",
		},
		{
			name:    "ragged row",
			file:    ProfilesFile,
			content: "name,sex,mail,birthdate,City,Country,cc_num\nAda,F\n",
			wantErr: "failed to read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := validFiles()
			if tt.content == "" {
				delete(files, tt.file)
			} else {
				files[tt.file] = tt.content
			}

			_, err := NewCSVSource(writeBackfill(t, files), zap.NewNop()).Load(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCSVSourceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSource(writeBackfill(t, validFiles()), zap.NewNop()).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
