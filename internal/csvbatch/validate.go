package csvbatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const DefaultCertType = "Diplôme"

var (
	addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	dateSepRe = regexp.MustCompile(`[/\-]`)

	validCertTypes = map[string]bool{
		"diplôme":       true,
		"certification": true,
		"formation":     true,
		"attestation":   true,
	}
)

type Validation struct {
	Valid      bool
	Errors     []string
	Normalized Normalized
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidateRow checks one raw row. An unparseable or missing obtained date falls back
// to today instead of failing the row.
func ValidateRow(raw map[string]string, today time.Time) Validation {
	var errs []string

	addr := lookup(raw, FieldStudentAddress)
	switch {
	case addr == "":
		errs = append(errs, "missing address")
	case !IsAddress(addr):
		errs = append(errs, "invalid address")
	}

	name := lookup(raw, FieldStudentName)
	if name == "" {
		errs = append(errs, "missing name")
	}

	email := lookup(raw, FieldStudentEmail)
	switch {
	case email == "":
		errs = append(errs, "missing email")
	case !IsEmail(email):
		errs = append(errs, "invalid email")
	}

	formation := lookup(raw, FieldFormationName)
	if formation == "" {
		errs = append(errs, "missing formation")
	}

	certType := lookup(raw, FieldCertType)
	if certType == "" {
		certType = DefaultCertType
	}
	if !validCertTypes[strings.ToLower(certType)] {
		errs = append(errs, "invalid type (Diplôme, Certification, Formation, Attestation)")
	}

	obtained := ParseObtainedDate(lookup(raw, FieldObtainedDate), today)

	return Validation{
		Valid:  len(errs) == 0,
		Errors: errs,
		Normalized: Normalized{
			StudentAddress: addr,
			StudentName:    name,
			StudentEmail:   email,
			FormationName:  formation,
			CertType:       capitalize(certType),
			ObtainedDate:   obtained.Format("2006-01-02"),
		},
	}
}

// ValidateNormalized runs the row rules over an already normalized request, used by
// single issuance so both paths accept the same input.
func ValidateNormalized(n Normalized, today time.Time) Validation {
	return ValidateRow(map[string]string{
		"studentaddress": n.StudentAddress,
		"studentname":    n.StudentName,
		"studentemail":   n.StudentEmail,
		"formationname":  n.FormationName,
		"certtype":       n.CertType,
		"obtaineddate":   n.ObtainedDate,
	}, today)
}

func lookup(raw map[string]string, f Field) string {
	for _, k := range aliases[f] {
		if v := strings.TrimSpace(raw[k]); v != "" {
			return v
		}
	}
	return ""
}

// ParseObtainedDate accepts ISO dates first, then day/month/year split on "/" or "-".
func ParseObtainedDate(s string, today time.Time) time.Time {
	if s == "" {
		return today
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	parts := dateSepRe.Split(s, -1)
	if len(parts) == 3 {
		d, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
		m, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		y, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
		if errD == nil && errM == nil && errY == nil {
			// time.Date normalizes overflow (32/01 -> 01/02)
			return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		}
	}

	return today
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
