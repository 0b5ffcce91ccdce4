package service

import (
	"context"
	"sort"
	"strings"

	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type StudentService struct {
	registry    Registry
	logs        EventLog
	documentURL DocumentURLFunc
}

type StudentCertificates struct {
	Certificates []models.Certificate    `json:"certificates"`
	Stats        models.CertificateStats `json:"stats"`
}

func NewStudentService(registry Registry, logs EventLog) *StudentService {
	return &StudentService{registry: registry, logs: logs, documentURL: certid.PublicDocumentURL}
}

// UseGateway links documents through the configured IPFS gateway instead of ipfs.io.
func (s *StudentService) UseGateway(fn DocumentURLFunc) {
	s.documentURL = fn
}

// Certificates lists a student's gallery, newest first.
func (s *StudentService) Certificates(ctx context.Context, address string) (*StudentCertificates, error) {
	addr, err := parseAddress("student address", address)
	if err != nil {
		return nil, err
	}

	certs, err := s.registry.StudentCertificates(ctx, addr)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(certs)

	orgs := map[string]struct{}{}
	out := &StudentCertificates{Certificates: certs}
	for i := range certs {
		certs[i].LinkedInURL = linkedInURL(&certs[i], s.documentURL)
	}
	for _, c := range certs {
		out.Stats.Total++
		if c.Revoked {
			out.Stats.Revoked++
		} else {
			out.Stats.Active++
		}
		orgs[strings.ToLower(c.Issuer)] = struct{}{}
	}
	out.Stats.Organizations = len(orgs)

	return out, nil
}

// History attaches issuance and revocation hashes found in the recent block window.
func (s *StudentService) History(ctx context.Context, address string) ([]models.Certificate, error) {
	addr, err := parseAddress("student address", address)
	if err != nil {
		return nil, err
	}

	certs, err := s.registry.StudentCertificates(ctx, addr)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(certs)

	issued, err := s.logs.TxHashes(ctx, chain.LogQuery{
		Event:  chain.EventCertificateIssued,
		Topics: [][]common.Hash{nil, nil, {chain.AddressTopic(addr)}},
	})
	if err != nil {
		log.Warnf("issuance history for %s unavailable: %v", addr.Hex(), err)
	}

	for i := range certs {
		c := &certs[i]
		if h, ok := issued[c.ID]; ok {
			c.TxHash = h.Hex()
		}
		if c.Revoked {
			h, err := s.logs.FindTx(ctx, chain.EventCertificateRevoked, c.ID)
			if err != nil {
				log.Warnf("revocation lookup for certificate %d failed: %v", c.ID, err)
			}
			c.RevokeTxHash = hashString(h)
		}
	}

	return certs, nil
}

func sortNewestFirst(certs []models.Certificate) {
	sort.SliceStable(certs, func(i, j int) bool {
		return certs[i].IssuedAt.After(certs[j].IssuedAt)
	})
}
