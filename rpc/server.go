package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fortunex/core"
	"fortunex/crypto"
	"fortunex/native/lottery"
	"fortunex/observability"
	"fortunex/services/archive"
)

const (
	defaultWinnersLimit = archive.DefaultWinnersLimit
	maxWinnersLimit     = 500
)

// Querier is the read surface of the node.
type Querier interface {
	Height() uint64
	Registry() (*lottery.Registry, error)
	Pools() ([]*lottery.Pool, error)
	Pool(id uint64) (*lottery.Pool, error)
	Draw(poolID uint64) (*lottery.DrawHistory, error)
	Tickets(poolID uint64, owner [20]byte) (*lottery.UserTicket, error)
}

// WinnerArchive serves recent winners from the SQL archive.
type WinnerArchive interface {
	RecentWinners(ctx context.Context, limit int) ([]archive.Draw, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Node    Querier
	Archive WinnerArchive
	Logger  *slog.Logger
	Metrics *observability.LotteryMetrics

	ListenAddress      string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
	// TrustProxyHeaders honours X-Real-IP / X-Forwarded-For. Enable only
	// behind a reverse proxy that overwrites them.
	TrustProxyHeaders  bool
}

// Server exposes the lottery state over a read-only HTTP API.
type Server struct {
	node    Querier
	archive WinnerArchive
	log     *slog.Logger
	metrics *observability.LotteryMetrics
	limiter *clientLimiter
	cfg     Config

	router http.Handler
}

// New constructs the router.
func New(cfg Config) (*Server, error) {
	if cfg.Node == nil {
		return nil, errors.New("rpc: node required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Lottery()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	srv := &Server{
		node:    cfg.Node,
		archive: cfg.Archive,
		log:     cfg.Logger.With(slog.String("component", "rpc")),
		metrics: cfg.Metrics,
		cfg:     cfg,
	}
	if cfg.RateLimitPerSecond > 0 {
		srv.limiter = newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if s.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.rateLimit)
		api.Get("/registry", s.handleRegistry)
		api.Get("/pools", s.handlePools)
		api.Get("/pools/{id}", s.handlePool)
		api.Get("/pools/{id}/draw", s.handleDraw)
		api.Get("/pools/{id}/tickets/{address}", s.handleTickets)
		api.Get("/winners", s.handleWinners)
	})

	return otelhttp.NewHandler(r, "fortunex.rpc")
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("rpc: listening", "address", s.cfg.ListenAddress)
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRPC(route, status, time.Since(start))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientID(r)) {
			s.metrics.RecordThrottle("rpc")
			writeJSONError(w, http.StatusTooManyRequests, errors.New(http.StatusText(http.StatusTooManyRequests)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "height": s.node.Height()})
}

func (s *Server) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	reg, err := s.node.Registry()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registryView(reg))
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	var filter *lottery.PoolStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := lottery.ParsePoolStatus(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		filter = &status
	}
	pools, err := s.node.Pools()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]PoolView, 0, len(pools))
	for _, pool := range pools {
		if filter != nil && pool.Status != *filter {
			continue
		}
		out = append(out, poolView(pool, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": out})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	pool, err := s.node.Pool(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolView(pool, true))
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	draw, err := s.node.Draw(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawView(draw))
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	owner, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid address: %w", err))
		return
	}
	tickets, err := s.node.Tickets(id, owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketsView(tickets))
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	limit := defaultWinnersLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxWinnersLimit {
		limit = maxWinnersLimit
	}

	var out []DrawView
	if s.archive != nil {
		draws, err := s.archive.RecentWinners(r.Context(), limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		for _, d := range draws {
			out = append(out, archivedDrawView(d))
		}
	} else {
		var err error
		if out, err = s.winnersFromState(limit); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if out == nil {
		out = []DrawView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": out})
}

// winnersFromState answers /v1/winners without an archive by walking every
// completed pool.
func (s *Server) winnersFromState(limit int) ([]DrawView, error) {
	pools, err := s.node.Pools()
	if err != nil {
		return nil, err
	}
	var out []DrawView
	for _, pool := range pools {
		if pool.Status != lottery.PoolStatusCompleted {
			continue
		}
		draw, err := s.node.Draw(pool.ID)
		if errors.Is(err, core.ErrDrawNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, drawView(draw))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DrawTimestamp != out[j].DrawTimestamp {
			return out[i].DrawTimestamp > out[j].DrawTimestamp
		}
		return out[i].PoolID > out[j].PoolID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func poolIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.New("pool id must be an unsigned integer"))
		return 0, false
	}
	return id, true
}

// statusFor maps lottery errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lottery.ErrRegistryNotFound),
		errors.Is(err, lottery.ErrPoolNotFound),
		errors.Is(err, lottery.ErrTicketNotFound),
		errors.Is(err, core.ErrDrawNotFound),
		errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	}
	switch lottery.Classify(err) {
	case lottery.ClassValidation:
		return http.StatusBadRequest
	case lottery.ClassStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("rpc: request failed", "error", err)
		err = errors.New(http.StatusText(status))
	}
	writeJSONError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
