package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrForbidden           = errors.New("forbidden")
	ErrNonceExpired        = errors.New("login nonce expired or unknown")
	ErrNoValidRows         = errors.New("batch has no valid rows")
	ErrBatchState          = errors.New("batch cannot be changed in its current status")
)

// Registry is the part of the chain client the services depend on.
type Registry interface {
	Admin(ctx context.Context) (common.Address, error)
	Organization(ctx context.Context, addr common.Address) (*models.Organization, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
	Organizations(ctx context.Context) ([]models.Organization, error)
	CertificateCounter(ctx context.Context) (uint64, error)
	Certificate(ctx context.Context, id uint64) (*models.Certificate, error)
	OrganizationCertificates(ctx context.Context, org common.Address) ([]models.Certificate, error)
	StudentCertificates(ctx context.Context, student common.Address) ([]models.Certificate, error)
	RegisterOrganization(ctx context.Context, from common.Address, req models.OrganizationRequest, registeredAt time.Time) (*models.TxResult, error)
	RevokeOrganization(ctx context.Context, from, org common.Address) (*models.TxResult, error)
	IssueCertificate(ctx context.Context, from common.Address, req models.IssueRequest) (*models.TxResult, error)
	RevokeCertificate(ctx context.Context, from common.Address, id uint64) (*models.TxResult, error)
	GasCost(ctx context.Context, hash common.Hash) (uint64, *big.Int, error)
	CanSign(addr common.Address) bool
}

type EventLog interface {
	FindTx(ctx context.Context, event string, certID uint64) (*common.Hash, error)
	TxHashes(ctx context.Context, q chain.LogQuery) (map[uint64]common.Hash, error)
}

type Pinner interface {
	PinFile(ctx context.Context, name string, content []byte) (string, error)
	Fetch(ctx context.Context, ipfsRef string) ([]byte, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *models.Batch) error
	Get(ctx context.Context, id string) (*models.Batch, error)
	ListByOrg(ctx context.Context, org string, limit int) ([]models.Batch, error)
	UpdateRow(ctx context.Context, batchID string, idx int, r csvbatch.Row) error
	TransitionStatus(ctx context.Context, id string, from, to models.BatchStatus) (bool, error)
	SetStatus(ctx context.Context, id string, status models.BatchStatus) error
	AppendResult(ctx context.Context, batchID string, seq int, r csvbatch.Result) error
	Results(ctx context.Context, batchID string) ([]csvbatch.Result, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, a models.Activity) error
	Recent(ctx context.Context, actor string, limit int64) ([]models.Activity, error)
}

type JobPublisher interface {
	PublishBatchJob(job models.BatchJob) error
}

// parseAddress validates a 0x address the same way CSV rows are validated.
func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !csvbatch.IsAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid %s", ErrInvalidInput, field)
	}
	return common.HexToAddress(s), nil
}

// record writes an audit entry; failures are logged and never surface to the caller.
func record(ctx context.Context, rec ActivityRecorder, a models.Activity) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, a); err != nil {
		log.WithFields(log.Fields{"action": a.Action, "actor": a.Actor}).Warnf("activity not recorded: %v", err)
	}
}

func hashString(h *common.Hash) string {
	if h == nil {
		return ""
	}
	return h.Hex()
}

// DocumentURLFunc maps an ipfs:// reference to a browsable document link.
type DocumentURLFunc func(ipfsRef string) string

// linkedInURL is empty for revoked certificates.
func linkedInURL(c *models.Certificate, documentURL DocumentURLFunc) string {
	if c == nil || c.Revoked {
		return ""
	}
	return certid.LinkedInURL(certid.Credential{
		CertID:      c.CertID,
		ID:          c.ID,
		Name:        c.FormationName,
		Authority:   c.IssuerName,
		IssuedAt:    c.IssuedAt,
		DocumentURL: documentURL(c.IPFSHash),
	})
}
