package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// bind decodes a single JSON object into dst and validates its tags.
// Failures match authcore.ErrValidation.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrValidation, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body must contain a single JSON value", authcore.ErrValidation)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", authcore.ErrValidation, describe(err))
	}
	return nil
}

// describe lists the failing fields of a validator error.
func describe(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, strings.ToLower(f.Field())+" "+f.Tag())
	}
	return strings.Join(parts, ", ")
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func principal(r *http.Request) *authcore.Principal {
	p, _ := authcore.PrincipalFromContext(r.Context())
	return p
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	middleware.WriteJSON(w, status, messageResponse{Message: msg})
}

func writeData(w http.ResponseWriter, status int, data any) {
	middleware.WriteJSON(w, status, dataResponse{Data: data})
}
