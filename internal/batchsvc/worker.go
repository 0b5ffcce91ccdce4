// Package batchsvc consumes queued batch jobs and reports their progress back to the API.
package batchsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/certsvc/service"
	"github.com/avvvet/certify-services/internal/comm"
	"github.com/avvvet/certify-services/internal/csvbatch"
	natscli "github.com/avvvet/certify-services/internal/nats"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Runner interface {
	Run(ctx context.Context, job models.BatchJob, progress service.ProgressFunc) ([]csvbatch.Result, error)
}

type Publisher interface {
	Publish(subj string, data []byte) error
}

type Notifier interface {
	BatchCompleted(s models.BatchSummary, at time.Time)
}

// Worker runs one job at a time: the NATS subscription delivers messages serially.
type Worker struct {
	ID       string
	ctx      context.Context
	runner   Runner
	pub      Publisher
	notifier Notifier
}

// NewWorker binds the worker to ctx; cancelling it turns the remaining rows of the
// running job into error results.
func NewWorker(ctx context.Context, id string, runner Runner, pub Publisher, notifier Notifier) *Worker {
	return &Worker{ID: id, ctx: ctx, runner: runner, pub: pub, notifier: notifier}
}

func (w *Worker) HandleMessage(m *nats.Msg) {
	var msg comm.WSMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Errorf("invalid WSMessage: %v", err)
		return
	}

	switch msg.Type {
	case comm.TypeBatchIssue:
		var job models.BatchJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			log.Errorf("invalid BatchJob: %v", err)
			return
		}
		w.Process(job)
	default:
		log.Warnf("unknown message type: %s", msg.Type)
	}
}

// Process runs job and publishes one progress message per row and a summary.
func (w *Worker) Process(job models.BatchJob) models.BatchSummary {
	logger := log.WithFields(log.Fields{"batch": job.BatchID, "org": job.OrgAddress, "rows": len(job.Rows)})
	logger.Info("batch started")
	start := time.Now()

	results, err := w.runner.Run(w.ctx, job, func(p models.BatchProgress) {
		w.publish(comm.TypeBatchProgress, p)
		if p.Result != nil && p.Result.Status == csvbatch.StatusSuccess {
			w.publish(comm.TypeCertIssued, comm.CertificateEvent{
				CertID:  p.Result.CertID,
				Org:     job.OrgAddress,
				Student: p.Result.StudentAddress,
				TxHash:  p.Result.TxHash,
			})
		}
	})
	if err != nil {
		logger.Errorf("batch run: %v", err)
	}

	summary := Summarize(job, results)
	w.publish(comm.TypeBatchComplete, summary)
	logger.WithFields(log.Fields{"success": summary.Success, "failed": summary.Failed}).
		Infof("batch finished in %s", time.Since(start).Round(time.Millisecond))

	if w.notifier != nil {
		w.notifier.BatchCompleted(summary, time.Now())
	}
	return summary
}

func Summarize(job models.BatchJob, results []csvbatch.Result) models.BatchSummary {
	s := models.BatchSummary{BatchID: job.BatchID, OrgName: job.OrgName, Total: len(job.Rows)}
	for _, r := range results {
		if r.Status == csvbatch.StatusSuccess {
			s.Success++
		} else {
			s.Failed++
		}
	}
	// rows the run never reached count as failed
	s.Failed += s.Total - len(results)
	return s
}

// Heartbeat announces the worker every interval until ctx ends.
func (w *Worker) Heartbeat(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		w.publish(comm.TypeServiceStarted, comm.ServiceHeartbeat{ID: w.ID, Timestamp: time.Now()})
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (w *Worker) publish(msgType string, payload interface{}) {
	msg, err := comm.NewMessage(msgType, payload)
	if err != nil {
		log.Errorf("unable to marshal %s: %v", msgType, err)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshaling WSMessage: %v", err)
		return
	}

	if err := w.pub.Publish(natscli.CertSubject, data); err != nil {
		log.Errorf("publish %s: %v", msgType, err)
	}
}
