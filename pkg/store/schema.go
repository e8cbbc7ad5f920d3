package store

import "github.com/David-Botos/churn-ml/pkg/model"

// Tables are described once in Snowflake types and rendered per dialect by
// the type converter.

func runsTable() *model.TableMetadata {
	return &model.TableMetadata{
		Table: "churn_runs",
		Columns: []model.Column{
			{Name: "run_id", DataType: "VARCHAR(36)", IsPrimaryKey: true},
			{Name: "status", DataType: "VARCHAR(16)"},
			{Name: "source", DataType: "VARCHAR(16)"},
			{Name: "model", DataType: "VARCHAR(16)"},
			{Name: "seed", DataType: "NUMBER(18,0)"},
			{Name: "split_fraction", DataType: "FLOAT"},
			{Name: "rows_read", DataType: "NUMBER(9,0)"},
			{Name: "records", DataType: "NUMBER(9,0)"},
			{Name: "filtered", DataType: "NUMBER(9,0)"},
			{Name: "schema_errors", DataType: "NUMBER(9,0)"},
			{Name: "train_size", DataType: "NUMBER(9,0)"},
			{Name: "test_size", DataType: "NUMBER(9,0)"},
			{Name: "started_at", DataType: "TIMESTAMP_TZ"},
			{Name: "finished_at", DataType: "TIMESTAMP_TZ", Nullable: true},
			{Name: "error", DataType: "VARCHAR", Nullable: true},
			{Name: "scoring_metrics", DataType: "VARCHAR", Nullable: true},
		},
		PrimaryKeys: []string{"run_id"},
	}
}

func featuresTable() *model.TableMetadata {
	md := model.FeatureTableMetadata("")
	md.Table = "churn_features"
	md.Columns = append([]model.Column{{Name: "run_id", DataType: "VARCHAR(36)"}}, md.Columns...)
	for i := range md.Columns {
		md.Columns[i].IsPrimaryKey = false
	}
	md.PrimaryKeys = []string{"run_id", "customer_id"}
	return md
}

func splitsTable() *model.TableMetadata {
	return &model.TableMetadata{
		Table: "churn_splits",
		Columns: []model.Column{
			{Name: "run_id", DataType: "VARCHAR(36)"},
			{Name: "customer_id", DataType: "VARCHAR(32)"},
			{Name: "partition", DataType: "VARCHAR(8)"},
		},
		PrimaryKeys: []string{"run_id", "customer_id"},
	}
}

func predictionsTable() *model.TableMetadata {
	return &model.TableMetadata{
		Table: "churn_predictions",
		Columns: []model.Column{
			{Name: "run_id", DataType: "VARCHAR(36)"},
			{Name: "customer_id", DataType: "VARCHAR(32)"},
			{Name: "actual", DataType: "VARCHAR(8)", Nullable: true},
			{Name: "predicted", DataType: "VARCHAR(8)", Nullable: true},
			{Name: "confidence", DataType: "FLOAT", Nullable: true},
			{Name: "probabilities", DataType: "VARCHAR", Nullable: true},
			{Name: "error", DataType: "VARCHAR", Nullable: true},
		},
		PrimaryKeys: []string{"run_id", "customer_id"},
	}
}

func reportsTable() *model.TableMetadata {
	return &model.TableMetadata{
		Table: "churn_reports",
		Columns: []model.Column{
			{Name: "run_id", DataType: "VARCHAR(36)", IsPrimaryKey: true},
			{Name: "evaluated", DataType: "NUMBER(9,0)"},
			{Name: "prediction_failures", DataType: "NUMBER(9,0)"},
			{Name: "missing_probability", DataType: "NUMBER(9,0)"},
			{Name: "accuracy", DataType: "FLOAT"},
			{Name: "precision", DataType: "FLOAT"},
			{Name: "recall", DataType: "FLOAT"},
			{Name: "f1", DataType: "FLOAT"},
			{Name: "report_json", DataType: "VARCHAR"},
		},
		PrimaryKeys: []string{"run_id"},
	}
}

func errorsTable() *model.TableMetadata {
	return &model.TableMetadata{
		Table: "churn_errors",
		Columns: []model.Column{
			{Name: "run_id", DataType: "VARCHAR(36)"},
			{Name: "seq", DataType: "NUMBER(9,0)"},
			{Name: "kind", DataType: "VARCHAR(32)"},
			{Name: "customer_id", DataType: "VARCHAR(32)", Nullable: true},
			{Name: "row_num", DataType: "NUMBER(9,0)"},
			{Name: "message", DataType: "VARCHAR"},
		},
		PrimaryKeys: []string{"run_id", "seq"},
	}
}

func allTables() []*model.TableMetadata {
	return []*model.TableMetadata{
		runsTable(),
		featuresTable(),
		splitsTable(),
		predictionsTable(),
		reportsTable(),
		errorsTable(),
	}
}
