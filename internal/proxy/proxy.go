package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/metrics"
	"github.com/Kounain2234/AI-Recruitment-App/internal/webhook"
)

// AllowHeaders are the request headers browsers may send to the proxy.
var AllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

const noResponseMessage = "No response from webhook"

// Doer is the subset of *http.Client the proxy needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Handler relays multipart screening submissions to the first webhook
// candidate that does not answer 404.
type Handler struct {
	candidates   []string
	client       Doer
	maxBodyBytes int64
	logger       zerolog.Logger
}

// Options configures a Handler.
type Options struct {
	PrimaryURL   string
	Client       Doer
	Timeout      time.Duration
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// NewHandler resolves the webhook candidates once; the primary URL is static
// for the lifetime of the process.
func NewHandler(opts Options) *Handler {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 25 << 20
	}
	return &Handler{
		candidates:   webhook.Resolve(opts.PrimaryURL),
		client:       client,
		maxBodyBytes: maxBody,
		logger:       opts.Logger.With().Str("component", "screening-proxy").Logger(),
	}
}

// Candidates returns the resolved webhook URLs in attempt order.
func (h *Handler) Candidates() []string {
	return append([]string(nil), h.candidates...)
}

// NewRouter mounts the handler with CORS, panic recovery and health routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.CORS(AllowHeaders...))
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Post("/", h.ServeHTTP)
	r.Post("/resume-screening", h.ServeHTTP)
	return r
}

type upstreamResponse struct {
	status int
	body   []byte
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.SetCORSHeaders(w, strings.Join(AllowHeaders, ", "))
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	entries, err := readEntries(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info().
		Int("candidates", len(h.candidates)).
		Int("fields", len(entries)).
		Msg("forwarding submission to webhook")

	var last *upstreamResponse
	for _, target := range h.candidates {
		resp, err := h.forward(r.Context(), target, entries)
		if err != nil {
			h.fail(w, err)
			return
		}
		last = resp
		metrics.ProxyAttemptsCount.WithLabelValues(strconv.Itoa(resp.status)).Inc()
		h.logger.Info().Str("url", target).Int("status", resp.status).Msg("webhook responded")

		if resp.status == http.StatusNotFound {
			continue
		}
		metrics.ProxyRequestsCount.WithLabelValues("relayed").Inc()
		writeRelayed(w, resp.status, resp.body)
		return
	}

	status := http.StatusNotFound
	body := []byte(noResponseMessage)
	if last != nil {
		status, body = last.status, last.body
	}
	h.logger.Warn().Int("status", status).Msg("no webhook candidate accepted the submission")
	metrics.ProxyRequestsCount.WithLabelValues("exhausted").Inc()
	writeRelayed(w, status, body)
}

func (h *Handler) forward(ctx context.Context, target string, entries []formEntry) (*upstreamResponse, error) {
	body, contentType, err := buildBody(entries)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	return &upstreamResponse{status: resp.StatusCode, body: data}, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("error proxying to webhook")
	metrics.ProxyRequestsCount.WithLabelValues("failed").Inc()
	httpx.WriteError(w, http.StatusInternalServerError, err.Error())
}

// writeRelayed relays body as JSON when it parses, otherwise wraps it as {"raw": text}.
// Statuses that forbid a body are relayed bare.
func writeRelayed(w http.ResponseWriter, status int, body []byte) {
	if !bodyAllowed(status) {
		w.WriteHeader(status)
		return
	}
	var payload any = map[string]string{"raw": string(body)}
	if json.Valid(body) {
		payload = json.RawMessage(body)
	}
	httpx.WriteJSON(w, status, payload)
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
