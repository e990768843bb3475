package repository

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	batchesTable = "invoice_batches"
	recordsTable = "invoice_records"
)

var textType = map[string]string{dialect.Postgres: "text", dialect.SQLite: "text"}

var (
	// BatchesColumns holds the columns for the "invoice_batches" table.
	BatchesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "total", Type: field.TypeInt},
		{Name: "successful", Type: field.TypeInt},
		{Name: "failed", Type: field.TypeInt},
		{Name: "success_rate", Type: field.TypeFloat64},
		{Name: "total_time", Type: field.TypeFloat64},
		{Name: "throughput", Type: field.TypeFloat64},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "archived_at", Type: field.TypeTime},
		{Name: "payload", Type: field.TypeString, SchemaType: textType},
	}
	// BatchesTable holds the schema information for the "invoice_batches" table.
	BatchesTable = &schema.Table{
		Name:       batchesTable,
		Columns:    BatchesColumns,
		PrimaryKey: []*schema.Column{BatchesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "invoicebatch_created_at", Columns: []*schema.Column{BatchesColumns[7]}},
		},
	}

	// RecordsColumns holds the columns for the "invoice_records" table.
	RecordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "batch_id", Type: field.TypeString, Size: 36},
		{Name: "position", Type: field.TypeInt},
		{Name: "task_id", Type: field.TypeString},
		{Name: "success", Type: field.TypeBool},
		{Name: "invoice_type", Type: field.TypeString, Nullable: true},
		{Name: "invoice_number", Type: field.TypeString, Nullable: true},
		{Name: "invoice_date", Type: field.TypeString, Nullable: true},
		{Name: "total_amount", Type: field.TypeString, Nullable: true},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "error_code", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: textType},
	}
	// RecordsTable holds the schema information for the "invoice_records" table.
	RecordsTable = &schema.Table{
		Name:       recordsTable,
		Columns:    RecordsColumns,
		PrimaryKey: []*schema.Column{RecordsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "invoice_records_invoice_batches_records",
				Columns:    []*schema.Column{RecordsColumns[1]},
				RefColumns: []*schema.Column{BatchesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "invoicerecord_batch_id_position", Unique: true, Columns: []*schema.Column{RecordsColumns[1], RecordsColumns[2]}},
			{Name: "invoicerecord_invoice_number", Columns: []*schema.Column{RecordsColumns[6]}},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		BatchesTable,
		RecordsTable,
	}
)

func init() {
	RecordsTable.ForeignKeys[0].RefTable = BatchesTable
}

// Migrate creates or upgrades the archive tables.
func Migrate(ctx context.Context, d *DB) error {
	m, err := schema.NewMigrate(d.Driver)
	if err != nil {
		return err
	}
	return m.Create(ctx, Tables...)
}
