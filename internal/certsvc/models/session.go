package models

import "time"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOrganization Role = "organization"
	RoleUnauthorized Role = "unauthorized"
)

type Session struct {
	Address      string        `json:"address"`
	Role         Role          `json:"role"`
	Organization *Organization `json:"organization,omitempty"`
	Token        string        `json:"token,omitempty"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	CanSign      bool          `json:"canSign"`
}

type Nonce struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}
