package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FeatureType is the Avro primitive type of a feature column
type FeatureType string

const (
	TypeString  FeatureType = "string"
	TypeLong    FeatureType = "long"
	TypeInt     FeatureType = "int"
	TypeDouble  FeatureType = "double"
	TypeBoolean FeatureType = "boolean"
)

// Feature group names
const (
	TransactionsGroupName = "cc_trans_fraud"
	FraudLabelsGroupName  = "transactions_fraud_label"
	// FeatureGroupVersion is carried as metadata only; groups are never migrated
	FeatureGroupVersion = 2
)

// Feature is one column of a feature group
type Feature struct {
	Name        string      `json:"name" yaml:"name"`
	Type        FeatureType `json:"type" yaml:"type"`
	Nullable    bool        `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// FeatureGroup is the column contract of a feature table
type FeatureGroup struct {
	Name        string    `json:"name" yaml:"name"`
	Version     int       `json:"version" yaml:"version"`
	Description string    `json:"description" yaml:"description"`
	PrimaryKey  []string  `json:"primary_key" yaml:"primary_key"`
	EventTime   string    `json:"event_time" yaml:"event_time"`
	Features    []Feature `json:"features" yaml:"features"`
}

// ID returns the versioned identifier, e.g. cc_trans_fraud_2
func (g *FeatureGroup) ID() string {
	return fmt.Sprintf("%s_%d", g.Name, g.Version)
}

// Subject returns the schema registry subject of the group's value schema
func (g *FeatureGroup) Subject() string {
	return g.ID() + "-value"
}

// Columns returns the feature names in declaration order
func (g *FeatureGroup) Columns() []string {
	cols := make([]string, len(g.Features))
	for i, f := range g.Features {
		cols[i] = f.Name
	}
	return cols
}

// Feature looks up a feature by name
func (g *FeatureGroup) Feature(name string) (Feature, bool) {
	for _, f := range g.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// ValidateRow checks that a row carries exactly the group's columns and
// that only nullable columns hold nil
func (g *FeatureGroup) ValidateRow(row map[string]interface{}) error {
	var problems []string
	for _, f := range g.Features {
		v, ok := row[f.Name]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("missing column %s", f.Name))
		case v == nil && !f.Nullable:
			problems = append(problems, fmt.Sprintf("column %s is not nullable", f.Name))
		}
	}
	for name := range row {
		if _, ok := g.Feature(name); !ok {
			problems = append(problems, fmt.Sprintf("unknown column %s", name))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Field: g.ID(), Message: strings.Join(problems, "; ")}
	}
	return nil
}

type avroField struct {
	Name    string      `json:"name"`
	Type    interface{} `json:"type"`
	Doc     string      `json:"doc,omitempty"`
	Default interface{} `json:"default,omitempty"`
}

type avroRecord struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	Doc       string      `json:"doc,omitempty"`
	Fields    []avroField `json:"fields"`
}

// AvroSchema renders the group as an Avro record schema. Nullable columns
// become ["null", type] unions.
func (g *FeatureGroup) AvroSchema() string {
	rec := avroRecord{
		Type:      "record",
		Name:      g.ID(),
		Namespace: "ccfraud.features",
		Doc:       g.Description,
		Fields:    make([]avroField, len(g.Features)),
	}
	for i, f := range g.Features {
		field := avroField{Name: f.Name, Type: string(f.Type), Doc: f.Description}
		if f.Nullable {
			field.Type = []string{"null", string(f.Type)}
		}
		rec.Fields[i] = field
	}
	out, _ := json.Marshal(rec)
	return string(out)
}

var (
	featTID      = Feature{Name: "tid", Type: TypeString, Description: "Transaction id"}
	featDatetime = Feature{Name: "datetime", Type: TypeLong, Description: "Transaction time"}
	featCCNum    = Feature{Name: "cc_num", Type: TypeString, Description: "Number of the credit card performing the transaction"}
)

// TransactionsGroup defines cc_trans_fraud
func TransactionsGroup() *FeatureGroup {
	return &FeatureGroup{
		Name:        TransactionsGroupName,
		Version:     FeatureGroupVersion,
		Description: "Credit Card transactions",
		PrimaryKey:  []string{"cc_num"},
		EventTime:   "datetime",
		Features: []Feature{
			featTID,
			featDatetime,
			featCCNum,
			{Name: "category", Type: TypeString, Description: "Expense category"},
			{Name: "amount", Type: TypeDouble, Description: "Dollar amount of the transaction"},
			{Name: "latitude", Type: TypeDouble, Description: "Latitude of the transaction location"},
			{Name: "longitude", Type: TypeDouble, Description: "Longitude of the transaction location"},
			{Name: "city", Type: TypeString, Description: "City in which the transaction was made"},
			{Name: "country", Type: TypeString, Description: "Country in which the transaction was made"},
			{Name: "age_at_transaction", Type: TypeInt, Description: "Age of the card holder when the transaction was made"},
			{Name: "days_until_card_expires", Type: TypeInt, Description: "Card validity days left when the transaction was made"},
			{Name: "activity_level", Type: TypeString, Description: "Bucketed count of the card's transactions during the lookback before this one"},
			{Name: "loc_delta_t_minus_1", Type: TypeDouble, Nullable: true,
				Description: "Haversine distance between this transaction location and the previous transaction location from the same card"},
			{Name: "time_delta_t_minus_1", Type: TypeDouble, Nullable: true,
				Description: "Time in days between this transaction and the previous transaction location from the same card"},
		},
	}
}

// WindowAggregatesGroupName returns cc_trans_fraud_{hours}h
func WindowAggregatesGroupName(hours int) string {
	return fmt.Sprintf("%s_%dh", TransactionsGroupName, hours)
}

// WindowAggregatesGroup defines cc_trans_fraud_{hours}h
func WindowAggregatesGroup(hours int) *FeatureGroup {
	return &FeatureGroup{
		Name:        WindowAggregatesGroupName(hours),
		Version:     FeatureGroupVersion,
		Description: fmt.Sprintf("Counts of the number of credit card transactions over %d hour windows.", hours),
		PrimaryKey:  []string{"cc_num"},
		EventTime:   "datetime",
		Features: []Feature{
			featDatetime,
			{Name: "window_end", Type: TypeLong, Description: "End of the window, exclusive"},
			featCCNum,
			{Name: "trans_count", Type: TypeInt, Description: "Number of transactions from the same card in the window"},
			{Name: "loc_delta_mavg", Type: TypeDouble, Nullable: true,
				Description: "Moving average of location difference between consecutive transactions from the same card"},
			{Name: "time_delta_mavg", Type: TypeDouble, Nullable: true,
				Description: "Moving average of time in days between consecutive transactions from the same card"},
			{Name: "trans_freq", Type: TypeDouble, Nullable: true,
				Description: "Moving average of transaction frequency from the same card"},
			{Name: "trans_volume_mavg", Type: TypeDouble, Nullable: true,
				Description: "Moving average of transaction volume from the same card"},
			{Name: "trans_volume_mstd", Type: TypeDouble, Nullable: true,
				Description: "Moving standard deviation of transaction volume from the same card"},
		},
	}
}

// FraudLabelsGroup defines transactions_fraud_label
func FraudLabelsGroup() *FeatureGroup {
	return &FeatureGroup{
		Name:        FraudLabelsGroupName,
		Version:     FeatureGroupVersion,
		Description: "CC transactions that have been flagged as fraud",
		PrimaryKey:  []string{"cc_num"},
		EventTime:   "datetime",
		Features: []Feature{
			featTID,
			featCCNum,
			featDatetime,
			{Name: "fraud_label", Type: TypeInt, Description: "Whether the transaction was fraudulent or not"},
		},
	}
}
