package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/certify-services/internal/certdoc"
	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testRenderer = certdoc.Renderer{QRAPIURL: "https://qr.example", AppBaseURL: "https://certs.example"}

func newCertService(reg Registry, logs EventLog, pin Pinner, act ActivityRecorder) *CertificateService {
	s := NewCertificateService(reg, logs, pin, testRenderer, act, "https://certs.example", 0)
	s.now = fixedClock
	return s
}

func sampleRequest() csvbatch.Normalized {
	return csvbatch.Normalized{
		StudentAddress: studentAddr.Hex(),
		StudentName:    "Jean Dupont",
		StudentEmail:   "jean@example.com",
		FormationName:  "Master Informatique",
		CertType:       "diplôme",
		ObtainedDate:   "2024-06-30",
	}
}

func TestNextID(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("CertificateCounter", mock.Anything).Return(uint64(41), nil)

	id, err := newCertService(reg, nil, nil, nil).NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CERT-2025-0042", id)
}

func TestIssue(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("Organization", mock.Anything, orgAddr).Return(activeOrg(), nil)
	reg.On("CertificateCounter", mock.Anything).Return(uint64(6), nil)
	reg.On("IssueCertificate", mock.Anything, orgAddr, models.IssueRequest{
		StudentAddress: studentAddr.Hex(),
		StudentName:    "Jean Dupont",
		StudentEmail:   "jean@example.com",
		FormationName:  "Master Informatique",
		CertType:       "Diplôme",
		IPFSHash:       "ipfs://bafy-certificate-CERT-2025-0007.html",
		IssuedAt:       time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC),
	}).Return(&models.TxResult{Hash: "0xissue", CertID: 7}, nil).Once()

	pin := &fakePinner{}
	act := &memActivity{}
	s := newCertService(reg, nil, pin, act)

	issued, err := s.Issue(context.Background(), orgAddr.Hex(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "CERT-2025-0007", issued.CertID)
	assert.Equal(t, "0xissue", issued.Tx.Hash)
	assert.Equal(t, "https://certs.example?verify=CERT-2025-0007", issued.VerifyURL)

	doc := string(pin.pinned["certificate-CERT-2025-0007.html"])
	assert.Contains(t, doc, "Jean Dupont")
	assert.Contains(t, doc, "Université de Lyon")
	assert.Contains(t, doc, "30 juin 2024")

	require.Len(t, act.entries, 1)
	assert.Equal(t, "CERT-2025-0007", act.entries[0].Subject)
	reg.AssertExpectations(t)
}

func TestIssueUsesOnchainIDWhenCounterMoved(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("Organization", mock.Anything, orgAddr).Return(activeOrg(), nil)
	reg.On("CertificateCounter", mock.Anything).Return(uint64(6), nil)
	reg.On("IssueCertificate", mock.Anything, orgAddr, mock.Anything).Return(&models.TxResult{Hash: "0xissue", CertID: 9}, nil)

	issued, err := newCertService(reg, nil, &fakePinner{}, nil).Issue(context.Background(), orgAddr.Hex(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "CERT-2025-0009", issued.CertID)
}

func TestIssueRejects(t *testing.T) {
	t.Run("invalid row", func(t *testing.T) {
		reg := &mockRegistry{}
		req := sampleRequest()
		req.StudentEmail = "broken"
		req.CertType = "Licence"

		_, err := newCertService(reg, nil, &fakePinner{}, nil).Issue(context.Background(), orgAddr.Hex(), req)
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), "invalid email")
		assert.Contains(t, err.Error(), "invalid type")
		reg.AssertNotCalled(t, "IssueCertificate")
	})

	t.Run("inactive organization", func(t *testing.T) {
		reg := &mockRegistry{}
		reg.On("Organization", mock.Anything, orgAddr).Return(&models.Organization{IsActive: false}, nil)

		_, err := newCertService(reg, nil, &fakePinner{}, nil).Issue(context.Background(), orgAddr.Hex(), sampleRequest())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("pinning failure stops before the transaction", func(t *testing.T) {
		reg := &mockRegistry{}
		reg.On("Organization", mock.Anything, orgAddr).Return(activeOrg(), nil)
		reg.On("CertificateCounter", mock.Anything).Return(uint64(1), nil)

		_, err := newCertService(reg, nil, &fakePinner{err: errors.New("pinata upload failed (401): INVALID_CREDENTIALS")}, nil).
			Issue(context.Background(), orgAddr.Hex(), sampleRequest())
		assert.ErrorContains(t, err, "INVALID_CREDENTIALS")
		reg.AssertNotCalled(t, "IssueCertificate")
	})
}

func TestRevokeCertificate(t *testing.T) {
	mine := &models.Certificate{ID: 5, CertID: "CERT-2024-0005", Issuer: orgAddr.Hex()}
	theirs := &models.Certificate{ID: 6, Issuer: otherOrg.Hex()}
	revoked := &models.Certificate{ID: 8, Issuer: orgAddr.Hex(), Revoked: true}

	reg := &mockRegistry{}
	reg.On("Certificate", mock.Anything, uint64(5)).Return(mine, nil)
	reg.On("Certificate", mock.Anything, uint64(6)).Return(theirs, nil)
	reg.On("Certificate", mock.Anything, uint64(7)).Return(&models.Certificate{}, nil)
	reg.On("Certificate", mock.Anything, uint64(8)).Return(revoked, nil)
	reg.On("RevokeCertificate", mock.Anything, orgAddr, uint64(5)).Return(&models.TxResult{Hash: "0xrev"}, nil).Once()

	s := newCertService(reg, nil, nil, nil)
	ctx := context.Background()

	res, err := s.Revoke(ctx, orgAddr.Hex(), "CERT-2024-0005")
	require.NoError(t, err)
	assert.Equal(t, "0xrev", res.Hash)

	_, err = s.Revoke(ctx, orgAddr.Hex(), "6")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Revoke(ctx, orgAddr.Hex(), "7")
	assert.ErrorIs(t, err, ErrCertificateNotFound)

	_, err = s.Revoke(ctx, orgAddr.Hex(), "8")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Revoke(ctx, orgAddr.Hex(), "CERT-XX")
	assert.ErrorIs(t, err, certid.ErrInvalidID)

	reg.AssertExpectations(t)
}

func TestListForOrganization(t *testing.T) {
	certs := []models.Certificate{
		{ID: 1, Student: studentAddr.Hex()},
		{ID: 2, Student: strings.ToLower(studentAddr.Hex()), Revoked: true},
		{ID: 3, Student: otherOrg.Hex()},
	}
	reg := &mockRegistry{}
	reg.On("OrganizationCertificates", mock.Anything, orgAddr).Return(certs, nil)

	logs := &fakeLogs{
		issued:  map[uint64]common.Hash{1: common.HexToHash("0x01"), 2: common.HexToHash("0x02")},
		revoked: map[uint64]common.Hash{2: common.HexToHash("0x22")},
	}
	s := newCertService(reg, logs, nil, nil)
	s.deployBlock = 500

	out, err := s.ListForOrganization(context.Background(), orgAddr.Hex())
	require.NoError(t, err)

	assert.Equal(t, models.CertificateStats{Total: 3, Active: 2, Revoked: 1, UniqueStudents: 2}, out.Stats)
	assert.Equal(t, common.HexToHash("0x01").Hex(), out.Certificates[0].TxHash)
	assert.Equal(t, common.HexToHash("0x22").Hex(), out.Certificates[1].RevokeTxHash)
	assert.Empty(t, out.Certificates[2].TxHash)

	require.Len(t, logs.queries, 2)
	for _, q := range logs.queries {
		require.NotNil(t, q.From)
		assert.Equal(t, uint64(500), *q.From)
		assert.Equal(t, []common.Hash{chain.AddressTopic(orgAddr)}, q.Topics[1])
	}
}

func TestListForOrganizationWithoutLogs(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("OrganizationCertificates", mock.Anything, orgAddr).Return([]models.Certificate{{ID: 1}}, nil)

	out, err := newCertService(reg, &fakeLogs{err: errors.New("range too large")}, nil, nil).
		ListForOrganization(context.Background(), orgAddr.Hex())
	require.NoError(t, err)
	assert.Empty(t, out.Certificates[0].TxHash)
}

func TestDocument(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("Certificate", mock.Anything, uint64(3)).Return(&models.Certificate{ID: 3, IPFSHash: "ipfs://bafy3"}, nil)

	pin := &fakePinner{docs: map[string][]byte{"ipfs://bafy3": []byte("<html>3</html>")}}
	cert, doc, err := newCertService(reg, nil, pin, nil).Document(context.Background(), "CERT-2025-0003")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cert.ID)
	assert.Equal(t, "<html>3</html>", string(doc))
}
