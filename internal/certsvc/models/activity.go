package models

import "time"

const (
	ActivityLogin             = "login"
	ActivityRegisterOrg       = "register-organization"
	ActivityRevokeOrg         = "revoke-organization"
	ActivityIssueCertificate  = "issue-certificate"
	ActivityRevokeCertificate = "revoke-certificate"
	ActivityBatchSubmitted    = "batch-submitted"
)

type Activity struct {
	Actor     string    `json:"actor" bson:"actor"`
	Action    string    `json:"action" bson:"action"`
	Subject   string    `json:"subject" bson:"subject"`
	TxHash    string    `json:"txHash,omitempty" bson:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt time.Time `json:"-" bson:"expires_at"`
}
