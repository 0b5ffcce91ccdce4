// Package csvbatch turns an uploaded CSV into validated certificate requests.
//
// Parsing is deliberately naive: lines are split on "\n" and cells on ",". Quoted
// commas are not supported and rows whose column count disagrees with the header
// are dropped without notice.
package csvbatch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoDataRows = errors.New("csv must contain at least one data row")

type Field string

const (
	FieldStudentAddress Field = "studentAddress"
	FieldStudentName    Field = "studentName"
	FieldStudentEmail   Field = "studentEmail"
	FieldFormationName  Field = "formationName"
	FieldCertType       Field = "certType"
	FieldObtainedDate   Field = "obtainedDate"
)

// Fields lists the editable normalized columns in display order.
var Fields = []Field{
	FieldStudentAddress,
	FieldStudentName,
	FieldStudentEmail,
	FieldFormationName,
	FieldCertType,
	FieldObtainedDate,
}

// header aliases in lookup order, the first non-empty one wins
var aliases = map[Field][]string{
	FieldStudentAddress: {"studentaddress", "adresse"},
	FieldStudentName:    {"studentname", "nom"},
	FieldStudentEmail:   {"studentemail", "email"},
	FieldFormationName:  {"formationname", "formation", "skillname", "skill"},
	FieldCertType:       {"certtype", "type"},
	FieldObtainedDate:   {"obtaineddate", "date"},
}

type Normalized struct {
	StudentAddress string `json:"studentAddress"`
	StudentName    string `json:"studentName"`
	StudentEmail   string `json:"studentEmail"`
	FormationName  string `json:"formationName"`
	CertType       string `json:"certType"`
	ObtainedDate   string `json:"obtainedDate"` // YYYY-MM-DD
}

type Row struct {
	Line       int               `json:"line"`
	Raw        map[string]string `json:"raw"`
	Valid      bool              `json:"valid"`
	Errors     []string          `json:"errors"`
	Normalized Normalized        `json:"normalized"`
}

type Batch struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Parse splits text into rows and validates every one of them against today.
// A leading UTF-8 byte order mark (spreadsheet "CSV UTF-8" exports) is ignored.
func Parse(text string, today time.Time) (*Batch, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, ErrNoDataRows
	}

	headers := splitTrim(lines[0])
	for i := range headers {
		headers[i] = strings.ToLower(headers[i])
	}

	b := &Batch{Headers: headers}
	for i := 1; i < len(lines); i++ {
		values := splitTrim(lines[i])
		if len(values) != len(headers) {
			continue
		}

		raw := make(map[string]string, len(headers))
		for idx, h := range headers {
			raw[h] = values[idx]
		}

		row := Row{Line: i + 1, Raw: raw}
		row.apply(ValidateRow(raw, today))
		b.Rows = append(b.Rows, row)
	}

	return b, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Edit overwrites one normalized cell and re-validates that row only.
func (b *Batch) Edit(idx int, field Field, value string, today time.Time) error {
	if idx < 0 || idx >= len(b.Rows) {
		return fmt.Errorf("row %d out of range", idx)
	}
	keys, ok := aliases[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}

	row := &b.Rows[idx]
	if row.Raw == nil {
		row.Raw = map[string]string{}
	}
	// drop every alias so the edited value is the one looked up
	for _, k := range keys {
		delete(row.Raw, k)
	}
	row.Raw[keys[0]] = value

	row.apply(ValidateRow(row.Raw, today))
	return nil
}

func (r *Row) apply(v Validation) {
	r.Valid = v.Valid
	r.Errors = v.Errors
	r.Normalized = v.Normalized
}

// ValidRows returns copies of the rows that passed validation, in file order.
func (b *Batch) ValidRows() []Row {
	var out []Row
	for _, r := range b.Rows {
		if r.Valid {
			out = append(out, r)
		}
	}
	return out
}

func (b *Batch) Counts() (valid, invalid int) {
	for _, r := range b.Rows {
		if r.Valid {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid
}

// Template is the sample file offered for download next to the upload form.
func Template(today time.Time) string {
	d := today.Format("2006-01-02")
	return "studentAddress,studentName,studentEmail,formationName,certType,obtainedDate\n" +
		"0x1234567890abcdef1234567890abcdef12345678,Jean Dupont,jean.dupont@email.com,Master Informatique,Diplôme," + d + "\n" +
		"0xabcdef1234567890abcdef1234567890abcdef12,Marie Martin,marie.martin@email.com,AWS Solutions Architect,Certification," + d + "\n"
}
