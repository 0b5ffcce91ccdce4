package csvbatch

import (
	"encoding/csv"
	"io"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of one issuance attempt.
type Result struct {
	Line int `json:"line"`
	Normalized
	CertID string `json:"certId"`
	Status string `json:"status"`
	TxHash string `json:"txHash,omitempty"`
	Error  string `json:"error,omitempty"`
}

var resultHeaders = []string{"studentAddress", "studentName", "studentEmail", "formationName", "certType", "certId", "status", "error"}

// WriteResults writes the downloadable results file.
func WriteResults(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeaders); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{r.StudentAddress, r.StudentName, r.StudentEmail, r.FormationName, r.CertType, r.CertID, r.Status, r.Error}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary counts successes in a results list.
func Summary(results []Result) (success, failed int) {
	for _, r := range results {
		if r.Status == StatusSuccess {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}
