// Package certdoc renders the printable HTML certificate that gets pinned to IPFS.
package certdoc

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certid"
)

//go:embed certificate.html.tmpl
var certificateTmpl string

var tmpl = template.Must(template.New("certificate").Parse(certificateTmpl))

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

type Data struct {
	CertID         string
	StudentName    string
	StudentAddress string
	FormationName  string
	CertType       string
	OrgName        string
	IssuerAddress  string
	IssuedAt       time.Time
}

type Renderer struct {
	QRAPIURL   string
	AppBaseURL string
}

type view struct {
	Data
	FormattedDate string
	QRCodeURL     template.URL
}

// Render produces a self-contained A4 landscape document.
func (r Renderer) Render(d Data) (string, error) {
	v := view{
		Data:          d,
		FormattedDate: FormatFrenchDate(d.IssuedAt),
		QRCodeURL:     template.URL(r.QRCodeURL(d.CertID)),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render certificate %s: %w", d.CertID, err)
	}
	return buf.String(), nil
}

// QRCodeURL points the QR image service at the verification page for certID.
func (r Renderer) QRCodeURL(certID string) string {
	target := certid.QRTargetURL(r.AppBaseURL, certID)
	return strings.TrimRight(r.QRAPIURL, "/") + "/?size=150x150&data=" + url.QueryEscape(target)
}

// FormatFrenchDate renders "2 janvier 2025".
func FormatFrenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

func FileName(certID string) string {
	return "certificate-" + certID + ".html"
}
