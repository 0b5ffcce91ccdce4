package certid

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	LinkedInAddURL = "https://www.linkedin.com/profile/add"

	// PublicGateway serves pinned documents when no dedicated gateway is configured.
	PublicGateway = "https://ipfs.io/ipfs/"
)

// Credential is what LinkedIn's "add certification" form is prefilled with.
type Credential struct {
	CertID      string // display id, derived from ID and IssuedAt when empty
	ID          uint64
	Name        string // formation name
	Authority   string // issuing organization
	IssuedAt    time.Time
	DocumentURL string
}

// LinkedInURL builds the profile "add certification" link for a certificate.
func LinkedInURL(c Credential) string {
	issued := c.IssuedAt.UTC()
	id := c.CertID
	if id == "" {
		id = Format(issued.Year(), c.ID)
	}

	q := url.Values{}
	q.Set("startTask", "CERT_ADD")
	q.Set("name", c.Name)
	q.Set("authority", c.Authority)
	q.Set("organizationName", c.Authority)
	q.Set("issueYear", strconv.Itoa(issued.Year()))
	q.Set("issueMonth", strconv.Itoa(int(issued.Month())))
	if c.DocumentURL != "" {
		q.Set("certUrl", c.DocumentURL)
	}
	q.Set("certId", id)

	return LinkedInAddURL + "?" + q.Encode()
}

// PublicDocumentURL resolves "ipfs://<cid>" through the public gateway.
func PublicDocumentURL(ipfsRef string) string {
	cid := strings.TrimPrefix(ipfsRef, "ipfs://")
	if cid == "" {
		return ""
	}
	return PublicGateway + cid
}
