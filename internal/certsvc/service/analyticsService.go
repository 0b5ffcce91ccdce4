package service

import (
	"context"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const analyticsSampleSize = 10

type AnalyticsService struct {
	certs    *CertificateService
	registry Registry
}

func NewAnalyticsService(certs *CertificateService, registry Registry) *AnalyticsService {
	return &AnalyticsService{certs: certs, registry: registry}
}

// Analytics sums gas over the first certificates of org that have a known transaction.
func (s *AnalyticsService) Analytics(ctx context.Context, org string) (*models.Analytics, error) {
	list, err := s.certs.ListForOrganization(ctx, org)
	if err != nil {
		return nil, err
	}

	out := &models.Analytics{
		TotalGasCostETH:    decimal.Zero,
		RecentTransactions: []models.TxCost{},
	}
	totalWei := decimal.Zero

	for _, c := range list.Certificates {
		if len(out.RecentTransactions) == analyticsSampleSize {
			break
		}
		if c.TxHash == "" {
			continue
		}

		used, wei, err := s.registry.GasCost(ctx, common.HexToHash(c.TxHash))
		if err != nil {
			log.Warnf("gas cost of %s unavailable: %v", c.TxHash, err)
			continue
		}

		weiDec := decimal.NewFromBigInt(wei, 0)
		totalWei = totalWei.Add(weiDec)
		out.TotalGasUsed += used
		out.RecentTransactions = append(out.RecentTransactions, models.TxCost{
			CertID:        c.CertID,
			StudentName:   c.StudentName,
			FormationName: c.FormationName,
			TxHash:        c.TxHash,
			GasUsed:       used,
			GasCostETH:    weiToETH(weiDec),
			Date:          c.IssuedAt,
		})
	}

	out.TotalGasCostETH = weiToETH(totalWei)
	if n := len(out.RecentTransactions); n > 0 {
		out.AvgGasPerCert = out.TotalGasUsed / uint64(n)
	}
	return out, nil
}

func weiToETH(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-18).Round(6)
}
