package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/rs/zerolog"
)

const maxAuditBody = 64 << 10

// RequestSink receives one record per request. Payload is already redacted.
type RequestSink interface {
	Record(ctx context.Context, rec authcore.RequestRecord)
}

// RequestSinkFunc adapts a function to RequestSink.
type RequestSinkFunc func(ctx context.Context, rec authcore.RequestRecord)

func (f RequestSinkFunc) Record(ctx context.Context, rec authcore.RequestRecord) { f(ctx, rec) }

// LogRequests returns a sink that writes records through logger.
func LogRequests(logger zerolog.Logger) RequestSink {
	logger = logger.With().Str("component", "http").Logger()
	return RequestSinkFunc(func(_ context.Context, rec authcore.RequestRecord) {
		ev := logger.Info()
		switch {
		case rec.Status >= 500:
			ev = logger.Error()
		case rec.Status >= 400:
			ev = logger.Warn()
		}
		if rec.AccountID != nil {
			ev = ev.Str("user_id", *rec.AccountID)
		}
		if len(rec.Payload) > 0 {
			ev = ev.Interface("payload", rec.Payload)
		}
		ev.Str("method", rec.Method).
			Str("path", rec.Path).
			Int("status", rec.Status).
			Str("ip", rec.IP).
			Dur("duration", rec.Duration).
			Msg("http request")
	})
}

type auditSlot struct {
	accountID string
}

type auditSlotKey struct{}

// noteAccount records the caller for the enclosing RequestAudit.
func noteAccount(ctx context.Context, accountID string) {
	if slot, ok := ctx.Value(auditSlotKey{}).(*auditSlot); ok {
		slot.accountID = accountID
	}
}

// NoteAccount lets a handler name the caller of an unauthenticated route,
// such as a completed login.
func NoteAccount(ctx context.Context, accountID string) {
	noteAccount(ctx, accountID)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RequestAudit hands every request to sink with its caller, status,
// duration and redacted JSON payload. A nil sink only feeds the latency
// histogram.
func RequestAudit(engine *authcore.Engine, sink RequestSink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			payload := readPayload(r)

			slot := &auditSlot{}
			ctx := context.WithValue(r.Context(), auditSlotKey{}, slot)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			out := authcore.RequestRecord{
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    status,
				IP:        authcore.ClientIPFromContext(ctx),
				UserAgent: r.UserAgent(),
				Payload:   engine.RedactPayload(payload),
				Duration:  time.Since(start),
			}
			if slot.accountID != "" {
				id := slot.accountID
				out.AccountID = &id
			}
			engine.ObserveRequest(out)
			if sink != nil {
				sink.Record(ctx, out)
			}
		})
	}
}

// readPayload decodes a JSON object body and restores it for the handler.
func readPayload(r *http.Request) map[string]any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) == 0 {
		return nil
	}
	var payload map[string]any
	if json.Unmarshal(buf, &payload) != nil {
		return nil
	}
	return payload
}
