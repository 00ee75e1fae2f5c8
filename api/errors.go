package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/stegokey/backend-go/pkg/client"
)

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Carrier string `json:"carrier,omitempty"`
}

func statusFor(kind client.Kind) int {
	switch kind {
	case client.InputMissing, client.EnvelopeFormatError:
		return http.StatusBadRequest
	case client.IntegrityViolation:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	var e *client.Error
	if !errors.As(err, &e) {
		s.log.WithError(err).WithField("op", op).Error("operation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	entry := s.log.WithError(err).WithFields(logrus.Fields{"op": op, "kind": e.Kind, "carrier": e.Carrier})
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		entry.Error("operation failed")
	} else {
		entry.Warn("operation rejected")
	}
	writeJSON(w, status, errorResponse{
		Error:   message(op, e),
		Kind:    string(e.Kind),
		Carrier: string(e.Carrier),
	})
}

func message(op string, e *client.Error) string {
	name := capitalize(string(e.Carrier))
	switch e.Kind {
	case client.InputMissing:
		if e.Err != nil {
			return capitalize(e.Err.Error())
		}
		return "Missing input"
	case client.EnvelopeFormatError:
		return "Invalid ciphertext format. Cannot read integrity data."
	case client.IntegrityViolation:
		return fmt.Sprintf("SECURITY ALERT: %s file corrupted or tampered.", name)
	case client.CodecFailure:
		if e.Carrier == "" {
			return "Encryption failed"
		}
		if op == "encode" {
			return fmt.Sprintf("Failed to hide key in %s", e.Carrier)
		}
		return fmt.Sprintf("Failed to extract key from %s", e.Carrier)
	case client.KeyReconstructionError:
		return "Failed to reconstruct key"
	case client.DecryptionError:
		return "Decryption failed"
	}
	return "internal error"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read multipart form"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
