package service

import (
	"context"

	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// VerifyService answers public verification requests from the read-only endpoint.
type VerifyService struct {
	registry    Registry
	logs        EventLog
	appURL      string
	explorerURL string
	documentURL DocumentURLFunc
}

func NewVerifyService(registry Registry, logs EventLog, appURL, explorerURL string) *VerifyService {
	return &VerifyService{registry: registry, logs: logs, appURL: appURL, explorerURL: explorerURL, documentURL: certid.PublicDocumentURL}
}

// UseGateway links documents through the configured IPFS gateway instead of ipfs.io.
func (s *VerifyService) UseGateway(fn DocumentURLFunc) {
	s.documentURL = fn
}

// Verify accepts "15" or "CERT-2025-0015". A missing issuance or revocation log leaves
// the matching hash nil.
func (s *VerifyService) Verify(ctx context.Context, id string) (*models.Verification, error) {
	n, err := certid.Normalize(id)
	if err != nil {
		return nil, err
	}

	cert, err := s.registry.Certificate(ctx, n)
	if err != nil {
		return nil, err
	}
	if cert == nil || cert.ID == 0 {
		return nil, ErrCertificateNotFound
	}

	v := &models.Verification{
		Certificate: cert,
		Status:      models.VerificationValid,
		VerifyURL:   certid.VerifyURL(s.appURL, cert.CertID),
	}

	v.TxHash = s.findTx(ctx, chain.EventCertificateIssued, n)
	if v.TxHash != nil {
		cert.TxHash = *v.TxHash
		v.ExplorerURL = certid.ExplorerTxURL(s.explorerURL, *v.TxHash)
	}

	if cert.Revoked {
		v.Status = models.VerificationRevoked
		v.RevokeTxHash = s.findTx(ctx, chain.EventCertificateRevoked, n)
		if v.RevokeTxHash != nil {
			cert.RevokeTxHash = *v.RevokeTxHash
		}
	}
	v.LinkedInURL = linkedInURL(cert, s.documentURL)

	return v, nil
}

func (s *VerifyService) findTx(ctx context.Context, event string, id uint64) *string {
	h, err := s.logs.FindTx(ctx, event, id)
	if err != nil {
		log.Warnf("%s lookup for certificate %d failed: %v", event, id, err)
		return nil
	}
	if h == nil || *h == (common.Hash{}) {
		return nil
	}
	hex := h.Hex()
	return &hex
}
