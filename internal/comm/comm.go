package comm

import (
	"encoding/json"
	"time"
)

const (
	TypeBatchIssue     = "batch-issue"    // api -> worker, data: models.BatchJob
	TypeBatchProgress  = "batch-progress" // worker -> api -> ws, data: models.BatchProgress
	TypeBatchComplete  = "batch-complete" // worker -> api -> ws, data: models.BatchSummary
	TypeCertIssued     = "certificate-issued"
	TypeCertRevoked    = "certificate-revoked"
	TypeWatch          = "watch" // ws client -> api, data: WatchRequest
	TypeWatchResponse  = "watch-response"
	TypeError          = "error"
	TypeServiceStarted = "service-started"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "watch", "batch-progress"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

func NewMessage(msgType string, payload interface{}) (*WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: msgType, Data: data}, nil
}

type WatchRequest struct {
	BatchID string `json:"batchId"`
}

type CertificateEvent struct {
	CertID  string `json:"certId"`
	Org     string `json:"org"`
	Student string `json:"student,omitempty"`
	TxHash  string `json:"txHash"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // service id
	Timestamp time.Time `json:"timestamp"`
}
