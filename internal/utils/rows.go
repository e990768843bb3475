package utils

import "github.com/joseph-ayodele/invoice-ocr/internal/entity"

// InvoiceRows flattens a batch result into one row per task, in input order.
func InvoiceRows(res *entity.BatchResult) []entity.InvoiceRow {
	rows := make([]entity.InvoiceRow, len(res.Results))
	for i, o := range res.Results {
		row := entity.InvoiceRow{BatchID: res.BatchID, TaskID: o.ID, Position: i, Success: o.Success}
		if o.Data != nil && o.Data.Invoice != nil {
			inv := o.Data.Invoice
			typ := string(inv.InvoiceType.RawType)
			conf := inv.Meta.ConfidenceScore
			row.InvoiceType = &typ
			row.InvoiceNumber = inv.BasicInfo.InvoiceNumber
			row.InvoiceDate = inv.BasicInfo.InvoiceDate
			row.TotalAmount = inv.BasicInfo.TotalAmount
			row.Confidence = &conf
		}
		if o.Error != nil {
			code, msg := o.Error.Code, o.Error.Message
			row.ErrorCode = &code
			row.ErrorMessage = &msg
		}
		rows[i] = row
	}
	return rows
}
