package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpiryLayout is the MM/YY layout used for card expiry dates
const ExpiryLayout = "01/06"

// Float is a nullable float64. Valid=false marks an undefined value,
// which is distinct from a legitimate zero.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a defined Float
func Some(v float64) Float {
	return Float{Value: v, Valid: true}
}

// Null returns the undefined Float
func Null() Float {
	return Float{}
}

// Ptr returns nil for the sentinel and a pointer to the value otherwise
func (f Float) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Interface returns nil for the sentinel and the float64 otherwise
func (f Float) Interface() interface{} {
	if !f.Valid {
		return nil
	}
	return f.Value
}

// MarshalJSON encodes the sentinel as null
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as the sentinel
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Null()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

func (f Float) String() string {
	if !f.Valid {
		return "null"
	}
	return fmt.Sprintf("%g", f.Value)
}

// CreditCard holds static card attributes
type CreditCard struct {
	CCNum    string `json:"cc_num"`
	Provider string `json:"provider"`
	Expires  string `json:"expires"` // MM/YY
}

// ExpiryTime returns the first instant of the expiry month in UTC
func (c CreditCard) ExpiryTime() (time.Time, error) {
	t, err := time.Parse(ExpiryLayout, c.Expires)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q for card %s: %w", c.Expires, c.CCNum, err)
	}
	return t.UTC(), nil
}

// Profile holds the card holder attributes
type Profile struct {
	CCNum     string    `json:"cc_num"`
	Name      string    `json:"name"`
	Sex       string    `json:"sex"`
	Mail      string    `json:"mail"`
	Birthdate time.Time `json:"birthdate"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
}

// Transaction is a single card transaction including its ground-truth label
type Transaction struct {
	TID        string    `json:"tid"`
	Datetime   time.Time `json:"datetime"`
	CCNum      string    `json:"cc_num"`
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	FraudLabel bool      `json:"fraud_label"`
}

// FraudLabel is the label row kept apart from every feature table
type FraudLabel struct {
	TID        string    `json:"tid"`
	CCNum      string    `json:"cc_num"`
	Datetime   time.Time `json:"datetime"`
	FraudLabel bool      `json:"fraud_label"`
}

// ActivityLevel buckets the recent activity of a card
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// EnrichedTransaction is a transaction without its label plus derived features
type EnrichedTransaction struct {
	TID                  string        `json:"tid"`
	Datetime             time.Time     `json:"datetime"`
	CCNum                string        `json:"cc_num"`
	Category             string        `json:"category"`
	Amount               float64       `json:"amount"`
	Latitude             float64       `json:"latitude"`
	Longitude            float64       `json:"longitude"`
	City                 string        `json:"city"`
	Country              string        `json:"country"`
	AgeAtTransaction     int           `json:"age_at_transaction"`
	DaysUntilCardExpires int           `json:"days_until_card_expires"`
	ActivityLevel        ActivityLevel `json:"activity_level"`
	LocDelta             Float         `json:"loc_delta_t_minus_1"`
	TimeDelta            Float         `json:"time_delta_t_minus_1"`
}

// WindowAggregate holds the statistics of one card within one bucket
type WindowAggregate struct {
	CCNum           string    `json:"cc_num"`
	WindowStart     time.Time `json:"datetime"`
	WindowEnd       time.Time `json:"window_end"`
	TransCount      int       `json:"trans_count"`
	LocDeltaMavg    Float     `json:"loc_delta_mavg"`
	TimeDeltaMavg   Float     `json:"time_delta_mavg"`
	TransFreq       Float     `json:"trans_freq"`
	TransVolumeMavg Float     `json:"trans_volume_mavg"`
	TransVolumeMstd Float     `json:"trans_volume_mstd"`
}

// Dataset is the raw input of one pipeline run
type Dataset struct {
	Cards        []CreditCard
	Profiles     []Profile
	Transactions []Transaction
}

// CardIndex returns the cards keyed by cc_num
func (d *Dataset) CardIndex() map[string]CreditCard {
	idx := make(map[string]CreditCard, len(d.Cards))
	for _, c := range d.Cards {
		idx[c.CCNum] = c
	}
	return idx
}

// ProfileIndex returns the profiles keyed by cc_num
func (d *Dataset) ProfileIndex() map[string]Profile {
	idx := make(map[string]Profile, len(d.Profiles))
	for _, p := range d.Profiles {
		idx[p.CCNum] = p
	}
	return idx
}

// Labels splits the ground-truth labels off the transactions
func (d *Dataset) Labels() []FraudLabel {
	labels := make([]FraudLabel, len(d.Transactions))
	for i, t := range d.Transactions {
		labels[i] = FraudLabel{
			TID:        t.TID,
			CCNum:      t.CCNum,
			Datetime:   t.Datetime,
			FraudLabel: t.FraudLabel,
		}
	}
	return labels
}

// UnixMillis converts a timestamp to Unix milliseconds
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
