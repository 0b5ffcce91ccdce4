package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certdoc"
	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type CertificateService struct {
	registry    Registry
	logs        EventLog
	pinner      Pinner
	renderer    certdoc.Renderer
	activity    ActivityRecorder
	appURL      string
	deployBlock uint64
	now         func() time.Time
}

type IssuedCertificate struct {
	CertID    string           `json:"certId"`
	IPFSHash  string           `json:"ipfsHash"`
	VerifyURL string           `json:"verifyUrl"`
	Tx        *models.TxResult `json:"transaction"`
}

type OrganizationCertificates struct {
	Certificates []models.Certificate    `json:"certificates"`
	Stats        models.CertificateStats `json:"stats"`
}

func NewCertificateService(registry Registry, logs EventLog, pinner Pinner, renderer certdoc.Renderer,
	activity ActivityRecorder, appURL string, deployBlock uint64) *CertificateService {
	return &CertificateService{
		registry:    registry,
		logs:        logs,
		pinner:      pinner,
		renderer:    renderer,
		activity:    activity,
		appURL:      appURL,
		deployBlock: deployBlock,
		now:         time.Now,
	}
}

// NextID previews the cosmetic id the next certificate will get.
func (s *CertificateService) NextID(ctx context.Context) (string, error) {
	counter, err := s.registry.CertificateCounter(ctx)
	if err != nil {
		return "", err
	}
	return certid.Format(s.now().Year(), counter+1), nil
}

// Issue validates a single request with the CSV row rules and issues it.
func (s *CertificateService) Issue(ctx context.Context, org string, n csvbatch.Normalized) (*IssuedCertificate, error) {
	from, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}

	v := csvbatch.ValidateNormalized(n, s.now())
	if !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(v.Errors, ", "))
	}

	orgInfo, err := s.registry.Organization(ctx, from)
	if err != nil {
		return nil, err
	}
	if !orgInfo.IsActive {
		return nil, fmt.Errorf("%w: organization is not active", ErrForbidden)
	}

	issued, err := s.issue(ctx, from, orgInfo.Name, v.Normalized)
	if err != nil {
		return nil, err
	}

	record(ctx, s.activity, models.Activity{Actor: from.Hex(), Action: models.ActivityIssueCertificate, Subject: issued.CertID, TxHash: issued.Tx.Hash})
	return issued, nil
}

// issue runs one issuance step: counter, cosmetic id, document, pin, transaction.
func (s *CertificateService) issue(ctx context.Context, from common.Address, orgName string, n csvbatch.Normalized) (*IssuedCertificate, error) {
	counter, err := s.registry.CertificateCounter(ctx)
	if err != nil {
		return nil, fmt.Errorf("read certificate counter: %w", err)
	}
	year := s.now().Year()
	certID := certid.Format(year, counter+1)

	issuedAt := csvbatch.ParseObtainedDate(n.ObtainedDate, s.now())

	html, err := s.renderer.Render(certdoc.Data{
		CertID:         certID,
		StudentName:    n.StudentName,
		StudentAddress: n.StudentAddress,
		FormationName:  n.FormationName,
		CertType:       n.CertType,
		OrgName:        orgName,
		IssuerAddress:  from.Hex(),
		IssuedAt:       issuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}

	ipfsHash, err := s.pinner.PinFile(ctx, certdoc.FileName(certID), []byte(html))
	if err != nil {
		return nil, err
	}

	tx, err := s.registry.IssueCertificate(ctx, from, models.IssueRequest{
		StudentAddress: n.StudentAddress,
		StudentName:    n.StudentName,
		StudentEmail:   n.StudentEmail,
		FormationName:  n.FormationName,
		CertType:       n.CertType,
		IPFSHash:       ipfsHash,
		IssuedAt:       issuedAt,
	})
	if err != nil {
		return nil, err
	}

	if tx.CertID != 0 && tx.CertID != counter+1 {
		log.WithFields(log.Fields{"expected": certID, "onchain": tx.CertID, "tx": tx.Hash}).
			Warn("certificate id moved between counter read and issuance")
		certID = certid.Format(year, tx.CertID)
	}

	return &IssuedCertificate{
		CertID:    certID,
		IPFSHash:  ipfsHash,
		VerifyURL: certid.VerifyURL(s.appURL, certID),
		Tx:        tx,
	}, nil
}

func (s *CertificateService) Revoke(ctx context.Context, org, id string) (*models.TxResult, error) {
	from, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}

	cert, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(cert.Issuer, from.Hex()) {
		return nil, fmt.Errorf("%w: certificate was issued by another organization", ErrForbidden)
	}
	if cert.Revoked {
		return nil, fmt.Errorf("%w: certificate already revoked", ErrInvalidInput)
	}

	res, err := s.registry.RevokeCertificate(ctx, from, cert.ID)
	if err != nil {
		return nil, err
	}

	record(ctx, s.activity, models.Activity{Actor: from.Hex(), Action: models.ActivityRevokeCertificate, Subject: cert.CertID, TxHash: res.Hash})
	return res, nil
}

// ListForOrganization returns every certificate of org with issuance and revocation
// hashes searched from the deploy block.
func (s *CertificateService) ListForOrganization(ctx context.Context, org string) (*OrganizationCertificates, error) {
	orgAddr, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}

	certs, err := s.registry.OrganizationCertificates(ctx, orgAddr)
	if err != nil {
		return nil, err
	}

	from := s.deployBlock
	orgTopic := []common.Hash{chain.AddressTopic(orgAddr)}
	issued := s.txHashes(ctx, chain.LogQuery{Event: chain.EventCertificateIssued, Topics: [][]common.Hash{nil, orgTopic}, From: &from})
	revoked := s.txHashes(ctx, chain.LogQuery{Event: chain.EventCertificateRevoked, Topics: [][]common.Hash{nil, orgTopic}, From: &from})

	students := map[string]struct{}{}
	out := &OrganizationCertificates{Certificates: certs}
	for i := range out.Certificates {
		c := &out.Certificates[i]
		if h, ok := issued[c.ID]; ok {
			c.TxHash = h.Hex()
		}
		if h, ok := revoked[c.ID]; ok {
			c.RevokeTxHash = h.Hex()
		}

		out.Stats.Total++
		if c.Revoked {
			out.Stats.Revoked++
		} else {
			out.Stats.Active++
		}
		students[strings.ToLower(c.Student)] = struct{}{}
	}
	out.Stats.UniqueStudents = len(students)

	return out, nil
}

// txHashes degrades to no hashes when the node refuses the log query.
func (s *CertificateService) txHashes(ctx context.Context, q chain.LogQuery) map[uint64]common.Hash {
	hashes, err := s.logs.TxHashes(ctx, q)
	if err != nil {
		log.Warnf("%s log lookup failed: %v", q.Event, err)
		return nil
	}
	return hashes
}

// Document returns the pinned HTML of a certificate.
func (s *CertificateService) Document(ctx context.Context, id string) (*models.Certificate, []byte, error) {
	cert, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	doc, err := s.pinner.Fetch(ctx, cert.IPFSHash)
	if err != nil {
		return nil, nil, err
	}
	return cert, doc, nil
}

func (s *CertificateService) lookup(ctx context.Context, id string) (*models.Certificate, error) {
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
	return cert, nil
}
