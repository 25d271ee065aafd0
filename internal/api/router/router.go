package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/api/handlers"
	"github.com/finproofs/receivable-zkp/internal/api/middleware"
	"github.com/finproofs/receivable-zkp/internal/common/config"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	commitmentHandler *handlers.CommitmentHandler,
	registryHandler *handlers.RegistryHandler,
	healthHandler *handlers.HealthHandler,
	cfg *config.Config,
	logger *zap.Logger,
) *mux.Router {

	r := mux.NewRouter()

	// ========================================================================
	// Global Middleware (applies to ALL routes)
	// ========================================================================

	// 1. Recovery - catch panics and return 500 instead of crashing
	r.Use(middleware.Recovery(logger))

	// 2. Request ID - add unique ID to each request for tracing
	r.Use(middleware.RequestID(logger))

	// 3. Body size limit (5MB)
	r.Use(middleware.BodySizeLimit(middleware.MaxRequestBodySize, logger))

	// 4. Rate limiting
	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
		r.Use(rateLimiter.Middleware())
	}

	// 5. Logging - log every request
	r.Use(middleware.Logging(logger))

	// 6. CORS - allow browser requests from the configured origins
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))
	}

	// 7. Timeout - proof generation is the slowest request we serve, so the
	// budget follows the proving timeout rather than a generic 30s
	r.Use(middleware.Timeout(cfg.ZKP.ProofTimeout + 10*time.Second))

	// ========================================================================
	// API Routes
	// ========================================================================

	api := r.PathPrefix("/api/v1").Subrouter()

	// Commitment and proof pipeline
	api.HandleFunc("/commitments", commitmentHandler.CreateCommitment).Methods("POST")
	api.HandleFunc("/proofs", commitmentHandler.GenerateProof).Methods("POST")
	api.HandleFunc("/proofs", commitmentHandler.ListProofs).Methods("GET")
	api.HandleFunc("/proofs/{id}", commitmentHandler.GetProof).Methods("GET")

	// Catalog and scheme introspection
	api.HandleFunc("/fields", registryHandler.ListFields).Methods("GET")
	api.HandleFunc("/fields/base-public", registryHandler.ListBasePublicFields).Methods("GET")
	api.HandleFunc("/schemes", registryHandler.ListSchemes).Methods("GET")
	api.HandleFunc("/schemes/{name}", registryHandler.GetScheme).Methods("GET")

	// ========================================================================
	// Health & Status
	// ========================================================================

	r.HandleFunc("/health", healthHandler.Liveness).Methods("GET")
	r.HandleFunc("/ready", healthHandler.Readiness).Methods("GET")
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service": "receivable-zkp", "version": "0.1.0"}`))
	}).Methods("GET")

	return r
}
