package models

import "time"

type Certificate struct {
	ID            uint64    `json:"id"`
	CertID        string    `json:"certId"` // cosmetic CERT-YYYY-NNNN
	Issuer        string    `json:"issuer"`
	IssuerName    string    `json:"issuerName"`
	Student       string    `json:"student"`
	StudentName   string    `json:"studentName"`
	StudentEmail  string    `json:"studentEmail"`
	FormationName string    `json:"formationName"`
	CertType      string    `json:"certType"`
	IPFSHash      string    `json:"ipfsHash"`
	IssuedAt      time.Time `json:"issuedAt"`
	Revoked       bool      `json:"revoked"`
	TxHash        string    `json:"transactionHash,omitempty"`
	RevokeTxHash  string    `json:"revokeTransactionHash,omitempty"`
	LinkedInURL   string    `json:"linkedinUrl,omitempty"`
}

type IssueRequest struct {
	StudentAddress string    `json:"studentAddress"`
	StudentName    string    `json:"studentName"`
	StudentEmail   string    `json:"studentEmail"`
	FormationName  string    `json:"formationName"`
	CertType       string    `json:"certType"`
	IPFSHash       string    `json:"ipfsHash"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// TxResult describes a mined registry transaction.
type TxResult struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	CertID      uint64 `json:"certId,omitempty"` // set by issueCertificate when the event is found
}

type CertificateStats struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Revoked        int `json:"revoked"`
	UniqueStudents int `json:"uniqueStudents,omitempty"`
	Organizations  int `json:"organizations,omitempty"`
}

const (
	VerificationValid   = "valid"
	VerificationRevoked = "revoked"
)

type Verification struct {
	Certificate  *Certificate `json:"certificate"`
	Status       string       `json:"status"`
	TxHash       *string      `json:"transactionHash"`
	RevokeTxHash *string      `json:"revokeTransactionHash"`
	VerifyURL    string       `json:"verifyUrl"`
	ExplorerURL  string       `json:"explorerUrl,omitempty"`
	LinkedInURL  string       `json:"linkedinUrl,omitempty"`
}
