package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/certsvc/store"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const batchListLimit = 20

// BatchService owns the preview side of batch issuance: upload, inspect, edit, submit.
type BatchService struct {
	repo      BatchRepository
	publisher JobPublisher
	registry  Registry
	activity  ActivityRecorder
	now       func() time.Time
}

func NewBatchService(repo BatchRepository, publisher JobPublisher, registry Registry, activity ActivityRecorder) *BatchService {
	return &BatchService{repo: repo, publisher: publisher, registry: registry, activity: activity, now: time.Now}
}

// Upload parses a .csv file into a stored preview batch.
func (s *BatchService) Upload(ctx context.Context, org, fileName string, content []byte) (*models.Batch, error) {
	orgAddr, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return nil, fmt.Errorf("%w: only .csv files are accepted", ErrInvalidInput)
	}

	parsed, err := csvbatch.Parse(string(content), s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	orgInfo, err := s.activeOrganization(ctx, orgAddr)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b := &models.Batch{
		ID:         uuid.New().String(),
		OrgAddress: orgAddr.Hex(),
		OrgName:    orgInfo.Name,
		FileName:   filepath.Base(fileName),
		Status:     models.BatchPreview,
		Headers:    parsed.Headers,
		Rows:       parsed.Rows,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	valid, invalid := parsed.Counts()
	log.WithFields(log.Fields{"batch": b.ID, "org": b.OrgAddress, "valid": valid, "invalid": invalid}).Info("batch uploaded")
	return b, nil
}

func (s *BatchService) Get(ctx context.Context, org, id string) (*models.Batch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrBatchNotFound
	}

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(b.OrgAddress, org) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *BatchService) List(ctx context.Context, org string) ([]models.Batch, error) {
	orgAddr, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByOrg(ctx, orgAddr.Hex(), batchListLimit)
}

// EditCell changes one normalized field and re-validates only that row.
func (s *BatchService) EditCell(ctx context.Context, org, id string, idx int, field csvbatch.Field, value string) (*csvbatch.Row, error) {
	b, err := s.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BatchPreview {
		return nil, ErrBatchState
	}

	csv := b.CSV()
	if err := csv.Edit(idx, field, value, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	row := csv.Rows[idx]
	if err := s.repo.UpdateRow(ctx, id, idx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Submit queues the valid rows of a preview batch for the batch worker.
func (s *BatchService) Submit(ctx context.Context, org, id string) (*models.BatchJob, error) {
	b, err := s.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}

	rows := b.CSV().ValidRows()
	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}
	if _, err := s.activeOrganization(ctx, common.HexToAddress(b.OrgAddress)); err != nil {
		return nil, err
	}

	ok, err := s.repo.TransitionStatus(ctx, id, models.BatchPreview, models.BatchQueued)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchState
	}

	job := models.BatchJob{
		BatchID:    b.ID,
		OrgAddress: b.OrgAddress,
		OrgName:    b.OrgName,
		Rows:       rows,
		Requested:  s.now().UTC(),
	}
	if err := s.publisher.PublishBatchJob(job); err != nil {
		if _, rerr := s.repo.TransitionStatus(ctx, id, models.BatchQueued, models.BatchPreview); rerr != nil {
			log.Errorf("batch %s stuck in queued after publish failure: %v", id, rerr)
		}
		return nil, fmt.Errorf("queue batch: %w", err)
	}

	record(ctx, s.activity, models.Activity{Actor: b.OrgAddress, Action: models.ActivityBatchSubmitted, Subject: fmt.Sprintf("%s (%d rows)", b.ID, len(rows))})
	return &job, nil
}

func (s *BatchService) Results(ctx context.Context, org, id string) ([]csvbatch.Result, error) {
	if _, err := s.Get(ctx, org, id); err != nil {
		return nil, err
	}
	return s.repo.Results(ctx, id)
}

func (s *BatchService) ResultsCSV(ctx context.Context, org, id string, w io.Writer) error {
	results, err := s.Results(ctx, org, id)
	if err != nil {
		return err
	}
	return csvbatch.WriteResults(w, results)
}

// activeOrganization re-reads the registry; a session role claim outlives revocation.
func (s *BatchService) activeOrganization(ctx context.Context, addr common.Address) (*models.Organization, error) {
	org, err := s.registry.Organization(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, fmt.Errorf("%w: organization is not active", ErrForbidden)
	}
	return org, nil
}

// IsBatchNotFound folds the store sentinel into the service error space.
func IsBatchNotFound(err error) bool {
	return errors.Is(err, store.ErrBatchNotFound)
}
