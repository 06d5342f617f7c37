package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"fincoach/internal/core"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// isInputError reports whether err stems from bad client input rather than a
// backend failure.
func isInputError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyID,
		core.ErrEmptyMerchant,
		core.ErrEmptyCategory,
		core.ErrEmptyName,
		core.ErrEmptyMessage,
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrInvalidTarget,
		core.ErrInvalidMonths,
		core.ErrInvalidBalance,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
