package csvbatch

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)

const goodAddr = "0x1234567890abcdef1234567890abcdef12345678"

func TestParseDropsMismatchedRows(t *testing.T) {
	text := strings.Join([]string{
		"StudentAddress, StudentName ,studentEmail,formationName,certType,obtainedDate",
		goodAddr + ",Jean Dupont,jean@example.com,Master,Diplôme,2025-01-15",
		goodAddr + ",Too,Few,Columns",
		goodAddr + ",Marie, Martin,marie@example.com,AWS,Certification,2025-01-15",
		goodAddr + ",Marie Martin,marie@example.com,AWS,Certification,2025-01-15\r",
	}, "\n")

	b, err := Parse(text, today)
	require.NoError(t, err)

	assert.Equal(t, []string{"studentaddress", "studentname", "studentemail", "formationname", "certtype", "obtaineddate"}, b.Headers)
	require.Len(t, b.Rows, 2)
	assert.Equal(t, 2, b.Rows[0].Line)
	assert.Equal(t, 5, b.Rows[1].Line)
	assert.True(t, b.Rows[1].Valid)
	assert.Equal(t, "2025-01-15", b.Rows[1].Normalized.ObtainedDate)
}

func TestParseByteOrderMark(t *testing.T) {
	text := "\ufeffstudentAddress,studentName,studentEmail,formationName\n" +
		goodAddr + ",Jean,jean@example.com,Master\n"

	b, err := Parse(text, today)
	require.NoError(t, err)

	assert.Equal(t, "studentaddress", b.Headers[0])
	require.Len(t, b.Rows, 1)
	assert.True(t, b.Rows[0].Valid, "errors: %v", b.Rows[0].Errors)
	assert.Equal(t, goodAddr, b.Rows[0].Normalized.StudentAddress)
}

func TestParseNeedsDataRow(t *testing.T) {
	_, err := Parse("studentAddress,studentName\n", today)
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = Parse("", today)
	assert.ErrorIs(t, err, ErrNoDataRows)
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]string
		valid    bool
		errs     []string
		certType string
		date     string
	}{
		{
			name:     "complete row",
			raw:      map[string]string{"studentaddress": goodAddr, "studentname": "Jean", "studentemail": "jean@example.com", "formationname": "Master", "certtype": "certification", "obtaineddate": "2024-06-30"},
			valid:    true,
			certType: "Certification",
			date:     "2024-06-30",
		},
		{
			name:     "french aliases and defaults",
			raw:      map[string]string{"adresse": goodAddr, "nom": "Jean", "email": "jean@example.com", "skill": "Go"},
			valid:    true,
			certType: "Diplôme",
			date:     "2025-03-04",
		},
		{
			name:     "day month year date",
			raw:      map[string]string{"studentaddress": goodAddr, "studentname": "Jean", "studentemail": "jean@example.com", "formation": "Master", "date": "15/01/2025"},
			valid:    true,
			certType: "Diplôme",
			date:     "2025-01-15",
		},
		{
			name:     "unparseable date falls back to today",
			raw:      map[string]string{"studentaddress": goodAddr, "studentname": "Jean", "studentemail": "jean@example.com", "formation": "Master", "date": "soon"},
			valid:    true,
			certType: "Diplôme",
			date:     "2025-03-04",
		},
		{
			name:     "uppercase type is normalized",
			raw:      map[string]string{"studentaddress": goodAddr, "studentname": "Jean", "studentemail": "jean@example.com", "formation": "Master", "type": "DIPLÔME"},
			valid:    true,
			certType: "Diplôme",
			date:     "2025-03-04",
		},
		{
			name:     "everything missing",
			raw:      map[string]string{},
			errs:     []string{"missing address", "missing name", "missing email", "missing formation"},
			certType: "Diplôme",
			date:     "2025-03-04",
		},
		{
			name:     "bad address email and type",
			raw:      map[string]string{"studentaddress": "0x1234", "studentname": "Jean", "studentemail": "jean@", "formation": "Master", "type": "badge"},
			errs:     []string{"invalid address", "invalid email", "invalid type (Diplôme, Certification, Formation, Attestation)"},
			certType: "Badge",
			date:     "2025-03-04",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateRow(tt.raw, today)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.errs, v.Errors)
			assert.Equal(t, tt.certType, v.Normalized.CertType)
			assert.Equal(t, tt.date, v.Normalized.ObtainedDate)
		})
	}
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress(goodAddr))
	assert.True(t, IsAddress("0xABCDEF1234567890abcdef1234567890ABCDEF12"))
	assert.False(t, IsAddress("1234567890abcdef1234567890abcdef12345678"))
	assert.False(t, IsAddress(goodAddr+"0"))
	assert.False(t, IsAddress("0x1234567890abcdef1234567890abcdef1234567g"))
}

func TestInvalidAddressExcludedFromValidRows(t *testing.T) {
	text := "studentAddress,studentName,studentEmail,formationName\n" +
		goodAddr + ",Jean,jean@example.com,Master\n" +
		"0xnothex,Marie,marie@example.com,Master\n"

	b, err := Parse(text, today)
	require.NoError(t, err)

	valid := b.ValidRows()
	require.Len(t, valid, 1)
	assert.Equal(t, "Jean", valid[0].Normalized.StudentName)

	v, inv := b.Counts()
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, inv)
}

func TestEditRevalidatesOnlyThatRow(t *testing.T) {
	text := "adresse,nom,email,formation\n" +
		"0xbad,Jean,jean@example.com,Master\n" +
		goodAddr + ",Marie,marie@example.com,Master\n" +
		goodAddr + ",Paul,paul@example.com,Licence\n"

	b, err := Parse(text, today)
	require.NoError(t, err)
	require.False(t, b.Rows[0].Valid)

	before := make([]Row, len(b.Rows))
	for i, r := range b.Rows {
		raw := make(map[string]string, len(r.Raw))
		for k, v := range r.Raw {
			raw[k] = v
		}
		r.Raw = raw
		before[i] = r
	}

	require.NoError(t, b.Edit(0, FieldStudentAddress, goodAddr, today))

	assert.True(t, b.Rows[0].Valid)
	assert.Empty(t, b.Rows[0].Errors)
	assert.Equal(t, goodAddr, b.Rows[0].Normalized.StudentAddress)
	assert.Equal(t, before[1:], b.Rows[1:])
}

func TestEditCanInvalidate(t *testing.T) {
	b, err := Parse("studentAddress,studentName,studentEmail,formationName\n"+goodAddr+",Jean,jean@example.com,Master\n", today)
	require.NoError(t, err)

	require.NoError(t, b.Edit(0, FieldStudentEmail, "nope", today))
	assert.False(t, b.Rows[0].Valid)
	assert.Equal(t, []string{"invalid email"}, b.Rows[0].Errors)

	assert.Error(t, b.Edit(3, FieldStudentEmail, "x", today))
	assert.Error(t, b.Edit(0, Field("grade"), "x", today))
}

func TestWriteResults(t *testing.T) {
	results := []Result{
		{Normalized: Normalized{StudentAddress: goodAddr, StudentName: "Jean", StudentEmail: "jean@example.com", FormationName: "Master", CertType: "Diplôme"}, CertID: "CERT-2025-0001", Status: StatusSuccess, TxHash: "0xabc"},
		{Normalized: Normalized{StudentAddress: goodAddr, StudentName: "Marie"}, CertID: "-", Status: StatusError, Error: "execution reverted: not authorized"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "studentAddress,studentName,studentEmail,formationName,certType,certId,status,error", lines[0])
	assert.Equal(t, goodAddr+",Jean,jean@example.com,Master,Diplôme,CERT-2025-0001,success,", lines[1])
	assert.Equal(t, goodAddr+",Marie,,,,-,error,execution reverted: not authorized", lines[2])

	ok, failed := Summary(results)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestTemplateParses(t *testing.T) {
	b, err := Parse(Template(today), today)
	require.NoError(t, err)
	v, inv := b.Counts()
	assert.Equal(t, 2, v)
	assert.Equal(t, 0, inv)
}
