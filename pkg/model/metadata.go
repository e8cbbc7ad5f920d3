// pkg/model/metadata.go
package model

import "strings"

// Raw table column names, as they appear in the CSV header and in Snowflake
const (
	ColCustomerID       = "customerID"
	ColGender           = "gender"
	ColSeniorCitizen    = "SeniorCitizen"
	ColPartner          = "Partner"
	ColDependents       = "Dependents"
	ColTenure           = "tenure"
	ColPhoneService     = "PhoneService"
	ColMultipleLines    = "MultipleLines"
	ColInternetService  = "InternetService"
	ColOnlineSecurity   = "OnlineSecurity"
	ColOnlineBackup     = "OnlineBackup"
	ColDeviceProtection = "DeviceProtection"
	ColTechSupport      = "TechSupport"
	ColStreamingTV      = "StreamingTV"
	ColStreamingMovies  = "StreamingMovies"
	ColContract         = "Contract"
	ColPaperlessBilling = "PaperlessBilling"
	ColPaymentMethod    = "PaymentMethod"
	ColMonthlyCharges   = "MonthlyCharges"
	ColTotalCharges     = "TotalCharges"
	ColChurn            = "Churn"
)

// TableMetadata contains the structure information for a database table
type TableMetadata struct {
	Schema      string   // Schema name
	Table       string   // Table name
	Columns     []Column // Column definitions
	PrimaryKeys []string // List of primary key column names
}

// Column represents metadata about a database column
type Column struct {
	Name         string // Column name
	DataType     string // Snowflake data type
	PgType       string // Mapped PostgreSQL type
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// ColumnNames returns the column names in order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

// FullName returns schema.table, or just the table when no schema is set
func (tm *TableMetadata) FullName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}

// RawTableMetadata describes the raw customer table loaded from CSV
func RawTableMetadata(schema string) *TableMetadata {
	str := func(name string, nullable bool) Column {
		return Column{Name: name, DataType: "VARCHAR(64)", Nullable: nullable}
	}
	return &TableMetadata{
		Schema: schema,
		Table:  "CUSTOMER_CHURN_RAW",
		Columns: []Column{
			{Name: ColCustomerID, DataType: "VARCHAR(32)", IsPrimaryKey: true},
			str(ColGender, true),
			{Name: ColSeniorCitizen, DataType: "NUMBER(1,0)", Nullable: true},
			str(ColPartner, true),
			str(ColDependents, true),
			{Name: ColTenure, DataType: "NUMBER(4,0)", Nullable: true},
			str(ColPhoneService, true),
			str(ColMultipleLines, true),
			str(ColInternetService, true),
			str(ColOnlineSecurity, true),
			str(ColOnlineBackup, true),
			str(ColDeviceProtection, true),
			str(ColTechSupport, true),
			str(ColStreamingTV, true),
			str(ColStreamingMovies, true),
			str(ColContract, true),
			str(ColPaperlessBilling, true),
			str(ColPaymentMethod, true),
			{Name: ColMonthlyCharges, DataType: "NUMBER(10,2)", Nullable: true},
			{Name: ColTotalCharges, DataType: "NUMBER(10,2)", Nullable: true},
			str(ColChurn, true),
		},
		PrimaryKeys: []string{ColCustomerID},
	}
}

// FeatureTableMetadata describes the derived feature table
func FeatureTableMetadata(schema string) *TableMetadata {
	flag := func(name string) Column {
		return Column{Name: name, DataType: "NUMBER(1,0)"}
	}
	return &TableMetadata{
		Schema: schema,
		Table:  "CUSTOMER_CHURN_FEATURES",
		Columns: []Column{
			{Name: "customer_id", DataType: "VARCHAR(32)", IsPrimaryKey: true},
			flag("senior_citizen"),
			{Name: "tenure", DataType: "NUMBER(4,0)"},
			{Name: "monthly_charges", DataType: "FLOAT"},
			{Name: "total_charges", DataType: "FLOAT"},
			flag("gender_male"),
			flag("has_partner"),
			flag("has_dependents"),
			flag("paperless_billing"),
			flag("churn_label"),
		},
		PrimaryKeys: []string{"customer_id"},
	}
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
