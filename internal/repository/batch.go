package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

// BatchRepository archives finished batch results.
type BatchRepository interface {
	SaveBatch(ctx context.Context, res *entity.BatchResult) error
	GetBatch(ctx context.Context, id string) (*entity.BatchResult, error)
	ListBatches(ctx context.Context, limit int) ([]entity.BatchSummary, error)
	ListRecords(ctx context.Context, batchID string) ([]entity.InvoiceRow, error)
}

type batchRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewBatchRepository(db *DB, logger *slog.Logger) BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &batchRepository{db: db, logger: logger, now: time.Now}
}

func (r *batchRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *batchRepository) SaveBatch(ctx context.Context, res *entity.BatchResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return common.WrapError(err, "encode batch result")
	}
	st := res.Statistics
	b := r.builder()

	batchQuery, batchArgs := b.Insert(batchesTable).
		Columns("id", "total", "successful", "failed", "success_rate", "total_time", "throughput", "created_at", "archived_at", "payload").
		Values(res.BatchID, st.Total, st.Successful, st.Failed, st.SuccessRate, st.TotalTime, st.Throughput, res.CreatedAt.UTC(), r.now().UTC(), string(payload)).
		Query()

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin archive transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, batchQuery, batchArgs...); err != nil {
		r.logger.Error("failed to archive batch", "batch_id", res.BatchID, "error", err)
		return fmt.Errorf("%w: insert batch: %v", common.ErrDatabase, err)
	}

	rows := utils.InvoiceRows(res)
	if len(rows) > 0 {
		ins := b.Insert(recordsTable).Columns(
			"batch_id", "position", "task_id", "success", "invoice_type", "invoice_number",
			"invoice_date", "total_amount", "confidence", "error_code", "error_message",
		)
		for _, row := range rows {
			ins = ins.Values(row.BatchID, row.Position, row.TaskID, row.Success, row.InvoiceType, row.InvoiceNumber,
				row.InvoiceDate, row.TotalAmount, row.Confidence, row.ErrorCode, row.ErrorMessage)
		}
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			r.logger.Error("failed to archive records", "batch_id", res.BatchID, "error", err)
			return fmt.Errorf("%w: insert records: %v", common.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.logger.Info("batch archived", "batch_id", res.BatchID, "records", len(rows))
	return nil
}

func (r *batchRepository) GetBatch(ctx context.Context, id string) (*entity.BatchResult, error) {
	b := r.builder()
	q, args := b.Select("payload").From(b.Table(batchesTable)).Where(entsql.EQ("id", id)).Query()

	var payload string
	err := r.db.db.QueryRowContext(ctx, q, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(fmt.Sprintf("archived batch %s not found", id))
	}
	if err != nil {
		r.logger.Error("failed to load batch", "batch_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	var res entity.BatchResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, common.WrapError(err, "decode archived batch")
	}
	return &res, nil
}

// ListBatches returns the newest archived batches first. limit <= 0 means all.
func (r *batchRepository) ListBatches(ctx context.Context, limit int) ([]entity.BatchSummary, error) {
	b := r.builder()
	sel := b.Select("id", "total", "successful", "failed", "success_rate", "created_at").
		From(b.Table(batchesTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Asc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()

	rows, err := r.db.db.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list batches", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.BatchSummary
	for rows.Next() {
		var s entity.BatchSummary
		if err := rows.Scan(&s.ID, &s.Total, &s.Successful, &s.Failed, &s.SuccessRate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *batchRepository) ListRecords(ctx context.Context, batchID string) ([]entity.InvoiceRow, error) {
	b := r.builder()
	q, args := b.Select(
		"batch_id", "position", "task_id", "success", "invoice_type", "invoice_number",
		"invoice_date", "total_amount", "confidence", "error_code", "error_message",
	).
		From(b.Table(recordsTable)).
		Where(entsql.EQ("batch_id", batchID)).
		OrderBy("position").
		Query()

	rows, err := r.db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.InvoiceRow
	for rows.Next() {
		var (
			row                                 entity.InvoiceRow
			typ, number, date, total, code, msg sql.NullString
			conf                                sql.NullFloat64
		)
		if err := rows.Scan(&row.BatchID, &row.Position, &row.TaskID, &row.Success, &typ, &number,
			&date, &total, &conf, &code, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		row.InvoiceType = nullString(typ)
		row.InvoiceNumber = nullString(number)
		row.InvoiceDate = nullString(date)
		row.TotalAmount = nullString(total)
		row.ErrorCode = nullString(code)
		row.ErrorMessage = nullString(msg)
		if conf.Valid {
			row.Confidence = &conf.Float64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
