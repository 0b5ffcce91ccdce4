package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAnalytics(t *testing.T) {
	var certs []models.Certificate
	issued := map[uint64]common.Hash{}
	for i := uint64(1); i <= 13; i++ {
		certs = append(certs, models.Certificate{ID: i, CertID: fmt.Sprintf("CERT-2025-%04d", i)})
		if i != 2 { // no issuance log
			issued[i] = common.BigToHash(new(big.Int).SetUint64(i))
		}
	}

	reg := &mockRegistry{}
	reg.On("OrganizationCertificates", mock.Anything, orgAddr).Return(certs, nil)
	// 0.001 ETH per transaction at 100k gas
	reg.On("GasCost", mock.Anything, issued[3]).Return(uint64(0), nil, errors.New("receipt not found"))
	reg.On("GasCost", mock.Anything, mock.Anything).Return(uint64(100_000), big.NewInt(1_000_000_000_000_000), nil)

	certSvc := newCertService(reg, &fakeLogs{issued: issued}, nil, nil)
	out, err := NewAnalyticsService(certSvc, reg).Analytics(context.Background(), orgAddr.Hex())
	require.NoError(t, err)

	require.Len(t, out.RecentTransactions, 10)
	assert.Equal(t, "CERT-2025-0001", out.RecentTransactions[0].CertID)
	assert.Equal(t, "CERT-2025-0004", out.RecentTransactions[1].CertID, "certs without a hash or receipt are skipped")
	assert.Equal(t, uint64(1_000_000), out.TotalGasUsed)
	assert.Equal(t, uint64(100_000), out.AvgGasPerCert)
	assert.Equal(t, "0.01", out.TotalGasCostETH.String())
	assert.Equal(t, "0.001", out.RecentTransactions[0].GasCostETH.String())
}

func TestAnalyticsEmpty(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("OrganizationCertificates", mock.Anything, orgAddr).Return([]models.Certificate{}, nil)

	out, err := NewAnalyticsService(newCertService(reg, &fakeLogs{}, nil, nil), reg).Analytics(context.Background(), orgAddr.Hex())
	require.NoError(t, err)
	assert.Zero(t, out.AvgGasPerCert)
	assert.True(t, out.TotalGasCostETH.IsZero())
	assert.Empty(t, out.RecentTransactions)
}
