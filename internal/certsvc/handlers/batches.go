package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/go-chi/chi"
)

const maxUploadSize = 5 << 20

type cellEdit struct {
	Field csvbatch.Field `json:"field"`
	Value string         `json:"value"`
}

func (h *Handler) TemplateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="template.csv"`)
	io.WriteString(w, csvbatch.Template(h.now()))
}

// UploadBatchHandler takes a multipart "file" field.
func (h *Handler) UploadBatchHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.badRequest(w, "unable to read upload")
		return
	}

	b, err := h.svc.Batches.Upload(r.Context(), sessionAddress(r.Context()), hdr.Filename, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	valid, invalid := b.CSV().Counts()
	h.CreateResponse(w, Response{
		Message: fmt.Sprintf("%d valid, %d invalid rows", valid, invalid),
		Code:    http.StatusCreated,
		Data:    b,
	})
}

func (h *Handler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.Batches.List(r.Context(), sessionAddress(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "batches", batches)
}

func (h *Handler) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Batches.Get(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "batch", b)
}

func (h *Handler) EditRowHandler(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.badRequest(w, "row index must be a number")
		return
	}

	var req cellEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	row, err := h.svc.Batches.EditCell(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "batchID"), idx, req.Field, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "row updated", row)
}

// SubmitBatchHandler answers 202; progress arrives over the websocket.
func (h *Handler) SubmitBatchHandler(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Batches.Submit(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: fmt.Sprintf("%d certificates queued", len(job.Rows)),
		Code:    http.StatusAccepted,
		Data:    map[string]interface{}{"batchId": job.BatchID, "total": len(job.Rows)},
	})
}

func (h *Handler) BatchResultsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Batches.Results(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success, failed := csvbatch.Summary(results)
	h.ok(w, fmt.Sprintf("%d issued, %d failed", success, failed), results)
}

func (h *Handler) BatchResultsCSVHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")

	var buf bytes.Buffer
	if err := h.svc.Batches.ResultsCSV(r.Context(), sessionAddress(r.Context()), id, &buf); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results-%s.csv"`, id))
	w.Write(buf.Bytes())
}
