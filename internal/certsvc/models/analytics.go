package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxCost struct {
	CertID        string          `json:"certId"`
	StudentName   string          `json:"studentName"`
	FormationName string          `json:"formationName"`
	TxHash        string          `json:"txHash"`
	GasUsed       uint64          `json:"gasUsed"`
	GasCostETH    decimal.Decimal `json:"gasCostEth"`
	Date          time.Time       `json:"date"`
}

type Analytics struct {
	TotalGasUsed       uint64          `json:"totalGasUsed"`
	TotalGasCostETH    decimal.Decimal `json:"totalGasCostEth"`
	AvgGasPerCert      uint64          `json:"avgGasPerCert"`
	RecentTransactions []TxCost        `json:"recentTransactions"`
}
