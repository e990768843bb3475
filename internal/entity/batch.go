package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// ImageSource is an inline payload (base64, optionally a data URI) or a URL.
// When both are set the inline payload is used.
type ImageSource struct {
	ImageData string `json:"image_data,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

func (s ImageSource) IsEmpty() bool {
	return s.ImageData == "" && s.ImageURL == ""
}

type BatchItem struct {
	ID string `json:"id"`
	ImageSource
}

type BatchRequest struct {
	Items          []BatchItem            `json:"items"`
	MaxConcurrency int                    `json:"max_concurrency,omitempty"`
	OutputFormat   constants.OutputFormat `json:"output_format,omitempty"`
}

// ErrorPayload is the code/message pair carried by every failure envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchTask is the scheduler's record of one item.
type BatchTask struct {
	ID        string
	Source    ImageSource
	Status    constants.TaskStatus
	Result    *Recognition
	Error     *ErrorPayload
	StartTime time.Time
	EndTime   time.Time
}

// ProcessingTime is end-start for tasks that actually ran.
func (t BatchTask) ProcessingTime() (time.Duration, bool) {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0, false
	}
	return t.EndTime.Sub(t.StartTime), true
}

type TaskOutcome struct {
	ID             string        `json:"id"`
	Success        bool          `json:"success"`
	Data           *Recognition  `json:"data,omitempty"`
	Error          *ErrorPayload `json:"error,omitempty"`
	ProcessingTime *float64      `json:"processing_time"`
}

type BatchStatistics struct {
	Total             int     `json:"total"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	SuccessRate       float64 `json:"success_rate"`
	TotalTime         float64 `json:"total_time"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	MaxProcessingTime float64 `json:"max_processing_time"`
	MinProcessingTime float64 `json:"min_processing_time"`
	Throughput        float64 `json:"throughput"`
}

type BatchResult struct {
	Success    bool            `json:"success"`
	BatchID    string          `json:"batch_id"`
	Results    []TaskOutcome   `json:"results"`
	Statistics BatchStatistics `json:"statistics"`
	CreatedAt  time.Time       `json:"created_at"`
	Error      *ErrorPayload   `json:"error,omitempty"`
}

type BatchStatus struct {
	BatchID      string         `json:"batch_id"`
	TotalTasks   int            `json:"total_tasks"`
	StatusCounts map[string]int `json:"status_counts"`
	Progress     float64        `json:"progress"`
	IsComplete   bool           `json:"is_complete"`
}

type ProcessingStats struct {
	TotalBatches   int     `json:"total_batches"`
	ActiveBatches  int     `json:"active_batches"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	SuccessRate    float64 `json:"success_rate"`
	MaxConcurrent  int     `json:"max_concurrent"`
}

// BatchSummary is one row of the archived batch listing.
type BatchSummary struct {
	ID          string    `json:"id"`
	Total       int       `json:"total"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	SuccessRate float64   `json:"success_rate"`
	CreatedAt   time.Time `json:"created_at"`
}

// InvoiceRow is the denormalised archive row of one task outcome.
type InvoiceRow struct {
	BatchID       string
	TaskID        string
	Position      int
	Success       bool
	InvoiceType   *string
	InvoiceNumber *string
	InvoiceDate   *string
	TotalAmount   *string
	Confidence    *float64
	ErrorCode     *string
	ErrorMessage  *string
}
