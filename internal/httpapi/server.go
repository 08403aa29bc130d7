package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rfidd/internal/session"
	"rfidd/pkg/types"
)

// defaultPower is applied when POST /power omits the value.
const defaultPower = 30

// Service defines the methods required by the HTTP API layer.
// *session.Session implements it.
type Service interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	StartInventory(ctx context.Context) (bool, error)
	StopInventory(ctx context.Context) (bool, error)
	SetOutputPower(ctx context.Context, power int) (bool, error)
	ReadMemory(ctx context.Context, req session.ReadRequest) (session.Outcome, error)
	WriteMemory(ctx context.Context, req session.WriteRequest) (session.Outcome, error)
	WriteEpc(ctx context.Context, req session.EpcWriteRequest) (session.Outcome, error)
	TriggerPressed()
	TriggerReleased()
	Status(ctx context.Context) (session.Status, error)
	Connected() bool
}

// EventSource feeds GET /events. *session.Broadcaster implements it.
type EventSource interface {
	Subscribe() (uuid.UUID, <-chan session.Event, func())
}

// NewMux builds the router. events may be nil, in which case /events is
// not mounted.
func NewMux(svc Service, events EventSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	r.Group(func(r chi.Router) {
		// SSE must not be buffered by the compressor.
		r.Use(middleware.Compress(5, "application/json"))

		r.Post("/connect", h.connect)
		r.Post("/disconnect", h.disconnect)
		r.Post("/inventory/start", h.startInventory)
		r.Post("/inventory/stop", h.stopInventory)
		r.Post("/power", h.setPower)
		r.Post("/memory/read", h.readMemory)
		r.Post("/memory/write", h.writeMemory)
		r.Post("/epc/write", h.writeEpc)
		r.Post("/trigger/press", h.triggerPress)
		r.Post("/trigger/release", h.triggerRelease)
		r.Get("/status", h.status)
	})

	if events != nil {
		r.Get("/events", eventsHandler(events))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Connected() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("disconnected"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// fail writes err as a JSON error unless the client is already gone.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error) {
	if r.Context().Err() != nil {
		return
	}
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(op)
	}
	writeJSONError(w, status, err.Error())
	logOutcome(r, op, status, start, err)
}

func (h *handlers) ok(w http.ResponseWriter, r *http.Request, op string, start time.Time, v any) {
	writeJSON(w, http.StatusOK, v)
	logOutcome(r, op, http.StatusOK, start, nil)
}

// decodeBody enforces the JSON content type and the body size limit.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// oversize bodies surface here too; keep the size limit out of the message
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// intOr returns *v, or def when the field was omitted. Range checks belong to
// the session so that a busy reader answers first.
func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (h *handlers) connect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	if err := h.svc.Connect(ctx); err != nil {
		if ctx.Err() == nil {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			logOutcome(r, "connect", http.StatusServiceUnavailable, start, err)
			return
		}
		h.fail(w, r, "connect", start, err)
		return
	}
	h.ok(w, r, "connect", start, types.OKResponse{OK: true})
}

func (h *handlers) disconnect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	if err := h.svc.Disconnect(ctx); err != nil {
		h.fail(w, r, "disconnect", start, err)
		return
	}
	h.ok(w, r, "disconnect", start, types.OKResponse{OK: true})
}

func (h *handlers) startInventory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	ok, err := h.svc.StartInventory(ctx)
	if err != nil {
		h.fail(w, r, "inventory_start", start, err)
		return
	}
	h.ok(w, r, "inventory_start", start, types.OKResponse{OK: ok})
}

func (h *handlers) stopInventory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	ok, err := h.svc.StopInventory(ctx)
	if err != nil {
		h.fail(w, r, "inventory_stop", start, err)
		return
	}
	h.ok(w, r, "inventory_stop", start, types.OKResponse{OK: ok})
}

func (h *handlers) setPower(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.PowerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	power := defaultPower
	if req.Power != nil {
		power = *req.Power
	}
	ctx, cancel := requestContext(r, 0)
	defer cancel()
	ok, err := h.svc.SetOutputPower(ctx, power)
	if err != nil {
		h.fail(w, r, "set_power", start, err)
		return
	}
	h.ok(w, r, "set_power", start, types.OKResponse{OK: ok})
}

func (h *handlers) readMemory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body types.ReadMemoryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req := session.ReadRequest{
		EPC:      body.EPC,
		Bank:     intOr(body.MemBank, session.DefaultBank),
		Start:    intOr(body.StartAddr, session.DefaultStartWord),
		Length:   intOr(body.Length, session.DefaultWordCount),
		Password: body.Password,
	}
	ctx, cancel := requestContext(r, accessTimeout)
	defer cancel()
	out, err := h.svc.ReadMemory(ctx, req)
	if err != nil {
		h.fail(w, r, "read_memory", start, err)
		return
	}
	var resp types.ReadMemoryResponse
	if out.OK {
		resp.Data = &out.Data
	}
	h.ok(w, r, "read_memory", start, resp)
}

func (h *handlers) writeMemory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body types.WriteMemoryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req := session.WriteRequest{
		EPC:      body.EPC,
		Bank:     intOr(body.MemBank, session.DefaultBank),
		Start:    intOr(body.StartAddr, session.DefaultStartWord),
		Length:   intOr(body.Length, session.DefaultWordCount),
		Data:     body.Data,
		Password: body.Password,
	}
	ctx, cancel := requestContext(r, accessTimeout)
	defer cancel()
	out, err := h.svc.WriteMemory(ctx, req)
	if err != nil {
		h.fail(w, r, "write_memory", start, err)
		return
	}
	h.ok(w, r, "write_memory", start, types.OKResponse{OK: out.OK})
}

func (h *handlers) writeEpc(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body types.WriteEpcRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ctx, cancel := requestContext(r, accessTimeout)
	defer cancel()
	out, err := h.svc.WriteEpc(ctx, session.EpcWriteRequest{
		TargetEPC: body.TargetEPC,
		NewEPC:    body.NewEPC,
		Password:  body.Password,
	})
	if err != nil {
		h.fail(w, r, "write_epc", start, err)
		return
	}
	h.ok(w, r, "write_epc", start, types.OKResponse{OK: out.OK})
}

func (h *handlers) triggerPress(w http.ResponseWriter, r *http.Request) {
	h.svc.TriggerPressed()
	h.ok(w, r, "trigger_press", time.Now(), types.OKResponse{OK: true})
}

func (h *handlers) triggerRelease(w http.ResponseWriter, r *http.Request) {
	h.svc.TriggerReleased()
	h.ok(w, r, "trigger_release", time.Now(), types.OKResponse{OK: true})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := requestContext(r, accessTimeout)
	defer cancel()
	st, err := h.svc.Status(ctx)
	if err != nil {
		h.fail(w, r, "status", start, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
