package models

import (
	"time"

	"github.com/avvvet/certify-services/internal/csvbatch"
)

type BatchStatus string

const (
	BatchPreview   BatchStatus = "preview"
	BatchQueued    BatchStatus = "queued"
	BatchIssuing   BatchStatus = "issuing"
	BatchCompleted BatchStatus = "completed"
)

type Batch struct {
	ID         string         `json:"id"`
	OrgAddress string         `json:"orgAddress"`
	OrgName    string         `json:"orgName"`
	FileName   string         `json:"fileName"`
	Status     BatchStatus    `json:"status"`
	Headers    []string       `json:"headers"`
	Rows       []csvbatch.Row `json:"rows"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (b *Batch) CSV() *csvbatch.Batch {
	return &csvbatch.Batch{Headers: b.Headers, Rows: b.Rows}
}

// BatchJob is the unit of work handed to the batch worker.
type BatchJob struct {
	BatchID    string         `json:"batchId"`
	OrgAddress string         `json:"orgAddress"`
	OrgName    string         `json:"orgName"`
	Rows       []csvbatch.Row `json:"rows"`
	Requested  time.Time      `json:"requestedAt"`
}

type BatchProgress struct {
	BatchID string           `json:"batchId"`
	Current int              `json:"current"`
	Total   int              `json:"total"`
	Result  *csvbatch.Result `json:"result,omitempty"`
}

type BatchSummary struct {
	BatchID string `json:"batchId"`
	OrgName string `json:"orgName"`
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}
