package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/health"
	"github.com/Stellouuuuu/mojaloop-pension/internal/ingest"
	"github.com/Stellouuuuu/mojaloop-pension/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (any, error)

type Config struct {
	ListenAddr     string
	ListenPort     int
	MetricsPort    int
	ProbesPort     int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
	ID             string
}

type Server struct {
	config     *Config
	batches    *store.BatchStore
	pensioners *store.PensionerStore
	reporter   *store.Reporter
	ingest     *ingest.Pipeline
	health     *health.Checker
	validate   *validator.Validate
	log        *slog.Logger
}

func NewServer(config *Config, batches *store.BatchStore, pensioners *store.PensionerStore,
	reporter *store.Reporter, pipeline *ingest.Pipeline, checker *health.Checker) *Server {
	return &Server{
		config:     config,
		batches:    batches,
		pensioners: pensioners,
		reporter:   reporter,
		ingest:     pipeline,
		health:     checker,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        slog.With("pod", config.ID, "component", "web-server"),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /batches", WithJSONResponse(s.CreateBatchHandler))
	mux.HandleFunc("GET /batches", WithJSONResponse(s.ListBatchesHandler))
	mux.HandleFunc("GET /batches/{id}", WithJSONResponse(s.GetBatchHandler))
	mux.HandleFunc("PATCH /batches/{id}", WithJSONResponse(s.UpdateBatchHandler))
	mux.HandleFunc("PUT /batches/{id}/status", WithJSONResponse(s.UpdateBatchStatusHandler))
	mux.HandleFunc("PUT /batches/{id}/success-rate", WithJSONResponse(s.UpdateBatchSuccessRateHandler))
	mux.HandleFunc("POST /batches/{id}/success-rate/refresh", WithJSONResponse(s.RefreshSuccessRateHandler))
	mux.HandleFunc("DELETE /batches/{id}", WithJSONResponse(s.DeleteBatchHandler))
	mux.HandleFunc("GET /batches/{id}/pensioners", WithJSONResponse(s.ListBatchPensionersHandler))
	mux.HandleFunc("GET /batches/{id}/summary", WithJSONResponse(s.BatchSummaryHandler))
	mux.HandleFunc("GET /batch-codes/{code}", WithJSONResponse(s.GetBatchByCodeHandler))
	mux.HandleFunc("GET /reports/batches-with-pensioners", WithJSONResponse(s.BatchesWithPensionersHandler))

	mux.HandleFunc("POST /pensioners", WithJSONResponse(s.CreatePensionerHandler))
	mux.HandleFunc("GET /pensioners", WithJSONResponse(s.ListPensionersHandler))
	mux.HandleFunc("GET /pensioners/{id}", WithJSONResponse(s.GetPensionerHandler))
	mux.HandleFunc("PATCH /pensioners/{id}", WithJSONResponse(s.UpdatePensionerHandler))
	mux.HandleFunc("PUT /pensioners/{id}/status", WithJSONResponse(s.UpdatePensionerStatusHandler))
	mux.HandleFunc("DELETE /pensioners/{id}", WithJSONResponse(s.DeletePensionerHandler))
	mux.HandleFunc("GET /pensioner-ids/{uniqueID}", WithJSONResponse(s.GetPensionerByUniqueIDHandler))

	mux.HandleFunc("POST /ingest", WithJSONResponse(s.IngestHandler))
	mux.HandleFunc("GET /ingest/batches", WithJSONResponse(s.ListIngestedHandler))
	mux.HandleFunc("GET /ingest/batches/{batchID}", WithJSONResponse(s.GetIngestedHandler))

	return WithRequestLogging(mux, s.log)
}

// ProbesHandler serves the liveness and readiness probes.
func (s *Server) ProbesHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

// Start serves the API, the probes and the metrics until ctx is cancelled,
// then shuts the listeners down gracefully.
func (s *Server) Start(ctx context.Context) error {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	servers := []struct {
		name    string
		port    int
		handler http.Handler
	}{
		// The order of middleware calls is outside in: the timeout handler
		// runs first, then the request logging and the route handlers.
		{"api", s.config.ListenPort, http.TimeoutHandler(s.Handler(), s.config.WriteTimeout, "Timeout")},
		{"probes", s.config.ProbesPort, s.ProbesHandler()},
		{"metrics", s.config.MetricsPort, metricsMux},
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		httpServer := &http.Server{
			Handler:      srv.handler,
			ReadTimeout:  s.config.ReadTimeout,
			WriteTimeout: s.config.WriteTimeout + time.Second,
			IdleTimeout:  s.config.IdleTimeout,
		}

		g.Go(func() error {
			return s.run(ctx, srv.name, srv.port, httpServer)
		})

		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.log.Error("Server forced to shutdown", "server", srv.name, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	s.log.Info("Server exiting")

	return err
}

func (s *Server) run(ctx context.Context, name string, port int, httpServer *http.Server) error {
	s.log.Info("Starting server", "server", name, "port", port)

	// Use ListenConfig to create a listener with context support
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.config.ListenAddr, port))
	if err != nil {
		s.log.Error("Error creating listener", "server", name, "error", err)
		return err
	}

	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		s.log.Error("Could not start server", "server", name, "error", err)
		return err
	}

	return nil
}
