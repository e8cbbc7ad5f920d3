// pkg/loader/columns.go
package loader

import (
	"database/sql"
	"strings"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// binding assigns one raw cell to a RawRecord field
type binding struct {
	column string
	set    func(rec *model.RawRecord, cell string) error
}

func stringField(column string, field func(*model.RawRecord) *sql.NullString) binding {
	return binding{
		column: column,
		set: func(rec *model.RawRecord, cell string) error {
			*field(rec) = toNullString(cell)
			return nil
		},
	}
}

var bindings = []binding{
	stringField(model.ColCustomerID, func(r *model.RawRecord) *sql.NullString { return &r.CustomerID }),
	stringField(model.ColGender, func(r *model.RawRecord) *sql.NullString { return &r.Gender }),
	{column: model.ColSeniorCitizen, set: func(r *model.RawRecord, cell string) (err error) {
		r.SeniorCitizen, err = toNullInt(cell)
		return err
	}},
	stringField(model.ColPartner, func(r *model.RawRecord) *sql.NullString { return &r.Partner }),
	stringField(model.ColDependents, func(r *model.RawRecord) *sql.NullString { return &r.Dependents }),
	{column: model.ColTenure, set: func(r *model.RawRecord, cell string) (err error) {
		r.Tenure, err = toNullInt(cell)
		return err
	}},
	stringField(model.ColPhoneService, func(r *model.RawRecord) *sql.NullString { return &r.PhoneService }),
	stringField(model.ColMultipleLines, func(r *model.RawRecord) *sql.NullString { return &r.MultipleLines }),
	stringField(model.ColInternetService, func(r *model.RawRecord) *sql.NullString { return &r.InternetService }),
	stringField(model.ColOnlineSecurity, func(r *model.RawRecord) *sql.NullString { return &r.OnlineSecurity }),
	stringField(model.ColOnlineBackup, func(r *model.RawRecord) *sql.NullString { return &r.OnlineBackup }),
	stringField(model.ColDeviceProtection, func(r *model.RawRecord) *sql.NullString { return &r.DeviceProtection }),
	stringField(model.ColTechSupport, func(r *model.RawRecord) *sql.NullString { return &r.TechSupport }),
	stringField(model.ColStreamingTV, func(r *model.RawRecord) *sql.NullString { return &r.StreamingTV }),
	stringField(model.ColStreamingMovies, func(r *model.RawRecord) *sql.NullString { return &r.StreamingMovies }),
	stringField(model.ColContract, func(r *model.RawRecord) *sql.NullString { return &r.Contract }),
	stringField(model.ColPaperlessBilling, func(r *model.RawRecord) *sql.NullString { return &r.PaperlessBilling }),
	stringField(model.ColPaymentMethod, func(r *model.RawRecord) *sql.NullString { return &r.PaymentMethod }),
	{column: model.ColMonthlyCharges, set: func(r *model.RawRecord, cell string) (err error) {
		r.MonthlyCharges, err = toNullFloat(cell)
		return err
	}},
	{column: model.ColTotalCharges, set: func(r *model.RawRecord, cell string) (err error) {
		r.TotalCharges, err = toNullFloat(cell)
		return err
	}},
	stringField(model.ColChurn, func(r *model.RawRecord) *sql.NullString { return &r.Churn }),
}

// headerIndex maps normalized header names to their column position
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prefix the first header with a BOM
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}
