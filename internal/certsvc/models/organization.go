package models

import "time"

type Organization struct {
	Address        string    `json:"address"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	OrgType        string    `json:"orgType"`
	IsActive       bool      `json:"isActive"`
	RegisteredAt   time.Time `json:"registeredAt"`
	TotalIssued    uint64    `json:"totalIssued"`
	TotalRevoked   uint64    `json:"totalRevoked"`
	UniqueStudents uint64    `json:"uniqueStudents"`
}

type OrganizationRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	OrgType string `json:"orgType"`
}

// GlobalStats mirrors getGlobalStats() on the registry.
type GlobalStats struct {
	TotalOrganizations  uint64 `json:"totalOrganizations"`
	ActiveOrganizations uint64 `json:"activeOrganizations"`
	TotalCertificates   uint64 `json:"totalCertificates"`
	RevokedCertificates uint64 `json:"revokedCertificates"`
}
