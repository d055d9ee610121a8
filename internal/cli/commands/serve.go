package commands

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sievecache "github.com/sievelang/sieve/internal/cache"
	"github.com/sievelang/sieve/internal/cli/config"
	"github.com/sievelang/sieve/internal/compiler"
	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/schema"
	"github.com/sievelang/sieve/internal/schemastore/notify"
	"github.com/sievelang/sieve/internal/schemastore/postgres"
	"github.com/sievelang/sieve/internal/web/auth"
	webcache "github.com/sievelang/sieve/internal/web/cache"
	"github.com/sievelang/sieve/internal/web/middleware"
	"github.com/sievelang/sieve/internal/web/ratelimit"
	"github.com/sievelang/sieve/internal/web/router"
	"github.com/sievelang/sieve/internal/web/server"
	"github.com/sievelang/sieve/internal/wsquery"
)

var serveAddr string

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sieve compile HTTP service",
		Long: `Serve starts the HTTP service that exposes POST /v1/compile: it accepts
a JSON body carrying a query string, and returns the emitted query document or
a structured 400 on a parse error. The middleware chain applies request ID,
recovery, structured access logging, CORS, compression, rate limiting, and
JWT authentication, in that order.`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default: from sieve.yml)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Address
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var schemaCfg *schema.Config
	generation := new(atomic.Int64)
	var dbConfig *server.DatabaseConfig

	if cfg.Schema.Source == "postgres" && cfg.Database.URL != "" {
		store, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer store.Close()

		schemaCfg, err = store.Load(cmd.Context())
		if err != nil {
			return err
		}

		dbConfig = server.DefaultDatabaseConfig(store.DB())

		if listener, err := notify.New(cfg.Database.URL, func(extra string) {
			generation.Add(1)
			logger.Info("schema change notification received", zap.String("extra", extra))
		}); err != nil {
			logger.Warn("schema change notifications unavailable", zap.Error(err))
		} else {
			defer listener.Close()
		}
	} else {
		schemaPath := cfg.Schema.Path
		if schemaPath == "" {
			schemaPath = "sieve-schema.json"
		}
		schemaCfg, err = loadSchemaFile(schemaPath)
		if err != nil {
			return err
		}
	}

	var distributed webcache.Cache
	var redisCache *webcache.RedisCache
	if cfg.Redis.URL != "" {
		var err error
		redisCache, err = webcache.NewRedisCacheWithConfig(webcache.RedisConfig{
			Addr:        cfg.Redis.URL,
			CacheConfig: webcache.CacheConfig{DefaultTTL: 5 * time.Minute, Prefix: "sieve:"},
		})
		if err != nil {
			logger.Warn("redis cache unavailable, compiling without a distributed tier", zap.Error(err))
			redisCache = nil
		} else {
			distributed = redisCache
			defer redisCache.Close()
		}
	}

	compileCache, err := sievecache.New(1024, distributed, 5*time.Minute)
	if err != nil {
		return err
	}

	tokenTTL, err := time.ParseDuration(cfg.Auth.TokenTTL)
	if err != nil {
		tokenTTL = time.Hour
	}
	authService := auth.NewAuthService(cfg.Auth.JWTSecret, tokenTTL)

	// The rate limiter reuses the compile cache's Redis connection when one
	// is configured, falling back to the in-process token bucket otherwise
	// (single-instance deployments, or Redis unavailable).
	var limiter ratelimit.RateLimiter
	if redisCache != nil {
		redisLimiter, err := ratelimit.NewRedisRateLimiter(ratelimit.DefaultRedisRateLimiterConfig(redisCache.Client()))
		if err != nil {
			logger.Warn("redis rate limiter unavailable, falling back to in-process token bucket", zap.Error(err))
			limiter = ratelimit.NewTokenBucket()
		} else {
			limiter = redisLimiter
		}
	} else {
		limiter = ratelimit.NewTokenBucket()
	}

	tokenPath := cfg.Server.APIPrefix + "/auth/token"

	r := router.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryWithLogger(logger),
		middleware.LoggingWithLogger(logger),
		middleware.CORS(),
		middleware.CompressionWithConfig(compressionConfig(cfg.Server.APIPrefix)),
		middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter:      limiter,
			KeyFunc:      middleware.ClientKeyFunc,
			ErrorHandler: middleware.DefaultRateLimitErrorHandler,
			FailOpen:     true,
		}),
		middleware.AuthWithConfig(middleware.AuthConfig{
			AuthService: authService,
			SkipPaths:   []string{tokenPath},
		}),
	)
	r.Post(cfg.Server.APIPrefix+"/compile", compileHandler(schemaCfg, compileCache, generation, logger))
	r.Post(tokenPath, tokenHandler(cfg.Auth.Clients, authService))

	streamServer := wsquery.NewServer(cmd.Context(), func() *schema.Config { return schemaCfg }, clock.System{})
	defer streamServer.Shutdown()
	r.Get(cfg.Server.APIPrefix+"/compile/stream", wsquery.Handler(streamServer))

	srvConfig := server.DefaultConfig(r)
	srvConfig.Address = addr
	srvConfig.Database = dbConfig

	httpServer, err := server.New(srvConfig)
	if err != nil {
		return err
	}

	shutdownConfig := server.DefaultShutdownConfig()
	shutdownConfig.Logger = logger

	infoColor.Printf("sieve listening on %s\n", addr)
	return server.StartWithGracefulShutdown(httpServer, shutdownConfig)
}

// compressionConfig excludes the compile-stream WebSocket upgrade path from
// gzip compression: the wrapped response writer it would otherwise apply
// doesn't implement http.Hijacker, which the upgrade requires.
func compressionConfig(apiPrefix string) middleware.CompressionConfig {
	config := middleware.DefaultCompressionConfig()
	config.ExcludedPaths = []string{apiPrefix + "/compile/stream"}
	return config
}

type tokenRequest struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// tokenHandler exchanges a registered client's ID and secret for a
// short-lived bearer token, checked against the bcrypt hashes in
// cfg.Auth.Clients.
func tokenHandler(clients map[string]string, authService *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		hash, ok := clients[req.ClientID]
		if !ok || !auth.VerifyClientSecret(req.Secret, hash) {
			http.Error(w, "invalid client credentials", http.StatusUnauthorized)
			return
		}

		token, err := authService.GenerateToken(req.ClientID, nil)
		if err != nil {
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(tokenResponse{Token: token})
	}
}

type compileRequest struct {
	Query string `json:"query"`
}

type compileResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func compileHandler(cfg *schema.Config, cache *sievecache.CompileCache, generation *atomic.Int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req compileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeCompileError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		key := sievecache.Key(generation.Load(), req.Query)
		if doc, ok := cache.Get(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Sieve-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(compileResponse{Result: doc})
			return
		}

		doc, err := compiler.Compile(req.Query, *cfg, clock.System{})
		if err != nil {
			logger.Info("compile rejected", zap.String("client", auth.GetClientID(r.Context())), zap.Error(err))
			if ii, ok := cerr.AsInvalidInput(err); ok {
				writeCompileError(w, http.StatusBadRequest, ii.Error())
				return
			}
			writeCompileError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := cache.Set(r.Context(), key, doc); err != nil {
			logger.Warn("failed to populate compile cache", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(compileResponse{Result: doc})
	}
}

func writeCompileError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(compileResponse{Error: message})
}
