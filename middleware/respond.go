package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authcore"
	"github.com/rs/zerolog"
)

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError renders err through [authcore.Classify]. Server errors are
// logged with the request logger and never echoed to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	p := authcore.Classify(err)
	if p.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	if p.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(p.RetryAfter.Seconds()))))
	}
	WriteJSON(w, p.Status, p)
}
