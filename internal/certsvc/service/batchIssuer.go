package service

import (
	"context"
	"fmt"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type ProgressFunc func(models.BatchProgress)

// BatchIssuer runs a batch job: one row after another, each row's failure captured in
// its result. A job with N rows always yields N results.
type BatchIssuer struct {
	certs *CertificateService
	repo  BatchRepository
}

func NewBatchIssuer(certs *CertificateService, repo BatchRepository) *BatchIssuer {
	return &BatchIssuer{certs: certs, repo: repo}
}

func (b *BatchIssuer) Run(ctx context.Context, job models.BatchJob, progress ProgressFunc) ([]csvbatch.Result, error) {
	if !csvbatch.IsAddress(job.OrgAddress) {
		return nil, fmt.Errorf("%w: invalid organization address %q", ErrInvalidInput, job.OrgAddress)
	}
	from := common.HexToAddress(job.OrgAddress)

	// persistence must outlive a cancelled run so every row still gets a result
	persist := context.WithoutCancel(ctx)

	if err := b.repo.SetStatus(persist, job.BatchID, models.BatchIssuing); err != nil {
		return nil, err
	}

	results := make([]csvbatch.Result, 0, len(job.Rows))
	for i, row := range job.Rows {
		res := b.issueRow(ctx, from, job.OrgName, row)
		results = append(results, res)

		if err := b.repo.AppendResult(persist, job.BatchID, i, res); err != nil {
			log.WithFields(log.Fields{"batch": job.BatchID, "line": row.Line}).Errorf("result not persisted: %v", err)
		}
		if progress != nil {
			progress(models.BatchProgress{BatchID: job.BatchID, Current: i + 1, Total: len(job.Rows), Result: &res})
		}
	}

	if err := b.repo.SetStatus(persist, job.BatchID, models.BatchCompleted); err != nil {
		return results, err
	}
	return results, nil
}

func (b *BatchIssuer) issueRow(ctx context.Context, from common.Address, orgName string, row csvbatch.Row) csvbatch.Result {
	res := csvbatch.Result{Line: row.Line, Normalized: row.Normalized, CertID: "-", Status: csvbatch.StatusError}

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	issued, err := b.certs.issue(ctx, from, orgName, row.Normalized)
	if err != nil {
		res.Error = chain.Reason(err)
		log.WithFields(log.Fields{"line": row.Line, "student": row.Normalized.StudentAddress}).Warnf("batch row failed: %s", res.Error)
		return res
	}

	res.CertID = issued.CertID
	res.Status = csvbatch.StatusSuccess
	res.TxHash = issued.Tx.Hash
	return res
}
