package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Line      int    `json:"line,omitempty"`
	LotID     int64  `json:"lot_id,omitempty"`
	ItemID    int64  `json:"item_id,omitempty"`
	Available *int64 `json:"available,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
}

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrMissingTraceability):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var (
		ise *errs.InsufficientStockError
		mtd *errs.MissingTraceabilityDataError
		ve  *errs.ValidationError
	)
	switch {
	case errors.As(err, &ise):
		body.LotID, body.ItemID = ise.LotID, ise.ItemID
		body.Available, body.Requested = &ise.Available, &ise.Requested
	case errors.As(err, &mtd):
		body.Line, body.ItemID, body.Field = mtd.Line, mtd.ItemID, mtd.Field
	case errors.As(err, &ve):
		body.Field = ve.Field
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Invalid("body", "is not valid JSON: "+err.Error())
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Invalid("id", "must be a positive integer")
	}
	return id, nil
}
