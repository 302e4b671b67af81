// Command server starts the Veritas media API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"veritas-media/internal/api"
	"veritas-media/internal/auth"
	"veritas-media/internal/events"
	"veritas-media/internal/observability/logging"
	"veritas-media/internal/observability/metrics"
	"veritas-media/internal/redisclient"
	"veritas-media/internal/server"
	"veritas-media/internal/storage"
)

// devFallbackAPIKey keeps local development working without configuration.
// Production deployments must supply their own keys.
const devFallbackAPIKey = "veritas-dev-key"

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "", "HTTP listen address")
	mediaDir := flag.String("media-dir", "", "directory for stored media files")
	dataPath := flag.String("data", "", "path to JSON catalog datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	apiKeys := flag.String("api-keys", "", "comma separated API keys accepted on the upload surface")
	apiKeysFile := flag.String("api-keys-file", "", "path to a file of API keys, plaintext or pbkdf2 entries")
	identityMode := flag.String("identity-mode", "", "bearer token verification mode (static or remote)")
	identityURL := flag.String("identity-url", "", "token introspection endpoint for remote verification")
	identityClientID := flag.String("identity-client-id", "", "client ID sent to the introspection endpoint")
	identityClientSecret := flag.String("identity-client-secret", "", "client secret sent to the introspection endpoint")
	identitySecret := flag.String("identity-secret", "", "shared HS256 secret for static verification")
	identityIssuer := flag.String("identity-issuer", "", "expected token issuer")
	identityAudience := flag.String("identity-audience", "", "expected token audience")
	identityTimeout := flag.Duration("identity-timeout", 0, "timeout for remote token verification")
	tokenCache := flag.String("token-cache", "", "verification cache driver (memory or redis)")
	tokenCacheTTL := flag.Duration("token-cache-ttl", 0, "how long verified tokens stay cached")
	tokenCacheRedisAddr := flag.String("token-cache-redis-addr", "", "Redis address for the verification cache")
	tokenCacheRedisAddrs := flag.String("token-cache-redis-addrs", "", "comma separated Redis addresses for the verification cache")
	tokenCacheRedisUsername := flag.String("token-cache-redis-username", "", "Redis username for the verification cache")
	tokenCacheRedisPassword := flag.String("token-cache-redis-password", "", "Redis password for the verification cache")
	tokenCacheRedisMasterName := flag.String("token-cache-redis-master-name", "", "Redis sentinel master name for the verification cache")
	tokenCacheRedisPoolSize := flag.Int("token-cache-redis-pool-size", 0, "maximum Redis connections for the verification cache")
	tokenCacheRedisTLSCA := flag.String("token-cache-redis-tls-ca", "", "path to Redis TLS CA certificate for the verification cache")
	tokenCacheRedisTLSCert := flag.String("token-cache-redis-tls-cert", "", "path to Redis TLS client certificate for the verification cache")
	tokenCacheRedisTLSKey := flag.String("token-cache-redis-tls-key", "", "path to Redis TLS client key for the verification cache")
	tokenCacheRedisTLSServerName := flag.String("token-cache-redis-tls-server-name", "", "override Redis TLS server name for the verification cache")
	tokenCacheRedisTLSSkipVerify := flag.Bool("token-cache-redis-tls-skip-verify", false, "skip Redis TLS verification for the verification cache")
	eventsDriver := flag.String("events-driver", "", "catalog event publisher driver (none or redis)")
	eventsRedisAddr := flag.String("events-redis-addr", "", "Redis address for catalog events")
	eventsRedisAddrs := flag.String("events-redis-addrs", "", "comma separated Redis addresses for catalog events")
	eventsRedisUsername := flag.String("events-redis-username", "", "Redis username for catalog events")
	eventsRedisPassword := flag.String("events-redis-password", "", "Redis password for catalog events")
	eventsRedisStream := flag.String("events-redis-stream", "", "Redis stream key for catalog events")
	eventsRedisMasterName := flag.String("events-redis-master-name", "", "Redis sentinel master name for catalog events")
	eventsRedisPoolSize := flag.Int("events-redis-pool-size", 0, "maximum Redis connections for catalog events")
	eventsRedisTLSCA := flag.String("events-redis-tls-ca", "", "path to Redis TLS CA certificate for catalog events")
	eventsRedisTLSCert := flag.String("events-redis-tls-cert", "", "path to Redis TLS client certificate for catalog events")
	eventsRedisTLSKey := flag.String("events-redis-tls-key", "", "path to Redis TLS client key for catalog events")
	eventsRedisTLSServerName := flag.String("events-redis-tls-server-name", "", "override Redis TLS server name for catalog events")
	eventsRedisTLSSkipVerify := flag.Bool("events-redis-tls-skip-verify", false, "skip Redis TLS verification for catalog events")
	publicBaseURL := flag.String("public-base-url", "", "base URL used when rendering download links")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed by CORS, or * for any")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum accepted upload size in bytes")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("VERITAS_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("VERITAS_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")
	recorder := metrics.Default()

	listenAddr := firstNonEmpty(*addr, os.Getenv("VERITAS_ADDR"), ":8000")

	keyring, err := resolveKeyring(*apiKeys, *apiKeysFile, logger)
	if err != nil {
		logger.Error("failed to configure api keys", "error", err)
		os.Exit(1)
	}

	verifier, verifierCloser, err := resolveVerifier(verifierSettings{
		Mode:         firstNonEmpty(*identityMode, os.Getenv("VERITAS_IDENTITY_MODE")),
		URL:          firstNonEmpty(*identityURL, os.Getenv("VERITAS_IDENTITY_URL")),
		ClientID:     firstNonEmpty(*identityClientID, os.Getenv("VERITAS_IDENTITY_CLIENT_ID")),
		ClientSecret: firstNonEmpty(*identityClientSecret, os.Getenv("VERITAS_IDENTITY_CLIENT_SECRET")),
		Secret:       firstNonEmpty(*identitySecret, os.Getenv("VERITAS_IDENTITY_SECRET")),
		Issuer:       firstNonEmpty(*identityIssuer, os.Getenv("VERITAS_IDENTITY_ISSUER")),
		Audience:     firstNonEmpty(*identityAudience, os.Getenv("VERITAS_IDENTITY_AUDIENCE")),
		Timeout:      resolveDuration(*identityTimeout, "VERITAS_IDENTITY_TIMEOUT", 5*time.Second),
		CacheDriver:  firstNonEmpty(*tokenCache, os.Getenv("VERITAS_TOKEN_CACHE")),
		CacheTTL:     resolveDuration(*tokenCacheTTL, "VERITAS_TOKEN_CACHE_TTL", 5*time.Minute),
		CacheRedis: redisclient.Options{
			Addr:       firstNonEmpty(*tokenCacheRedisAddr, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_ADDR")),
			Addrs:      splitAndTrim(firstNonEmpty(*tokenCacheRedisAddrs, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_ADDRS"))),
			Username:   firstNonEmpty(*tokenCacheRedisUsername, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_USERNAME")),
			Password:   firstNonEmpty(*tokenCacheRedisPassword, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_PASSWORD")),
			MasterName: firstNonEmpty(*tokenCacheRedisMasterName, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_MASTER_NAME")),
			PoolSize:   resolveInt(*tokenCacheRedisPoolSize, "VERITAS_TOKEN_CACHE_REDIS_POOL_SIZE"),
			TLS: redisclient.TLSConfig{
				CAFile:             firstNonEmpty(*tokenCacheRedisTLSCA, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_TLS_CA")),
				CertFile:           firstNonEmpty(*tokenCacheRedisTLSCert, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_TLS_CERT")),
				KeyFile:            firstNonEmpty(*tokenCacheRedisTLSKey, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_TLS_KEY")),
				ServerName:         firstNonEmpty(*tokenCacheRedisTLSServerName, os.Getenv("VERITAS_TOKEN_CACHE_REDIS_TLS_SERVER_NAME")),
				InsecureSkipVerify: resolveBool(*tokenCacheRedisTLSSkipVerify, "VERITAS_TOKEN_CACHE_REDIS_TLS_SKIP_VERIFY"),
			},
		},
	}, logger)
	if err != nil {
		logger.Error("failed to configure token verification", "error", err)
		os.Exit(1)
	}

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver := resolveStorageDriver(*storageDriver, os.Getenv("VERITAS_STORAGE_DRIVER"), postgresDefaultDSN)
	var store storage.Repository
	switch driver {
	case "json":
		dataFile := firstNonEmpty(*dataPath, os.Getenv("VERITAS_DATA"), "data/catalog.json")
		store, err = storage.NewJSONRepository(dataFile)
	case "postgres":
		if postgresDefaultDSN == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		var pgOptions []storage.Option
		maxConns := resolveInt(*postgresMaxConns, "VERITAS_POSTGRES_MAX_CONNS")
		minConns := resolveInt(*postgresMinConns, "VERITAS_POSTGRES_MIN_CONNS")
		if maxConns > 0 || minConns > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolLimits(int32(maxConns), int32(minConns)))
		}
		maxLifetime := resolveDuration(*postgresMaxConnLifetime, "VERITAS_POSTGRES_MAX_CONN_LIFETIME", 0)
		maxIdle := resolveDuration(*postgresMaxConnIdle, "VERITAS_POSTGRES_MAX_CONN_IDLE", 0)
		healthInterval := resolveDuration(*postgresHealthInterval, "VERITAS_POSTGRES_HEALTH_INTERVAL", 0)
		if maxLifetime > 0 || maxIdle > 0 || healthInterval > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval))
		}
		if acquireTimeout := resolveDuration(*postgresAcquireTimeout, "VERITAS_POSTGRES_ACQUIRE_TIMEOUT", 0); acquireTimeout > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresAcquireTimeout(acquireTimeout))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("VERITAS_POSTGRES_APP_NAME")); appName != "" {
			pgOptions = append(pgOptions, storage.WithPostgresApplicationName(appName))
		}
		store, err = storage.NewPostgresRepository(postgresDefaultDSN, pgOptions...)
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	publisher, err := resolveEventPublisher(eventSettings{
		Driver: firstNonEmpty(*eventsDriver, os.Getenv("VERITAS_EVENTS_DRIVER")),
		Stream: firstNonEmpty(*eventsRedisStream, os.Getenv("VERITAS_EVENTS_REDIS_STREAM")),
		Redis: redisclient.Options{
			Addr:       firstNonEmpty(*eventsRedisAddr, os.Getenv("VERITAS_EVENTS_REDIS_ADDR")),
			Addrs:      splitAndTrim(firstNonEmpty(*eventsRedisAddrs, os.Getenv("VERITAS_EVENTS_REDIS_ADDRS"))),
			Username:   firstNonEmpty(*eventsRedisUsername, os.Getenv("VERITAS_EVENTS_REDIS_USERNAME")),
			Password:   firstNonEmpty(*eventsRedisPassword, os.Getenv("VERITAS_EVENTS_REDIS_PASSWORD")),
			MasterName: firstNonEmpty(*eventsRedisMasterName, os.Getenv("VERITAS_EVENTS_REDIS_MASTER_NAME")),
			PoolSize:   resolveInt(*eventsRedisPoolSize, "VERITAS_EVENTS_REDIS_POOL_SIZE"),
			TLS: redisclient.TLSConfig{
				CAFile:             firstNonEmpty(*eventsRedisTLSCA, os.Getenv("VERITAS_EVENTS_REDIS_TLS_CA")),
				CertFile:           firstNonEmpty(*eventsRedisTLSCert, os.Getenv("VERITAS_EVENTS_REDIS_TLS_CERT")),
				KeyFile:            firstNonEmpty(*eventsRedisTLSKey, os.Getenv("VERITAS_EVENTS_REDIS_TLS_KEY")),
				ServerName:         firstNonEmpty(*eventsRedisTLSServerName, os.Getenv("VERITAS_EVENTS_REDIS_TLS_SERVER_NAME")),
				InsecureSkipVerify: resolveBool(*eventsRedisTLSSkipVerify, "VERITAS_EVENTS_REDIS_TLS_SKIP_VERIFY"),
			},
		},
	})
	if err != nil {
		logger.Error("failed to configure event publisher", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, keyring, verifier)
	handler.Events = publisher
	handler.MediaDir = firstNonEmpty(*mediaDir, os.Getenv("VERITAS_MEDIA_DIR"), "uploads")
	handler.PublicBaseURL = firstNonEmpty(*publicBaseURL, os.Getenv("VERITAS_PUBLIC_BASE_URL"))
	handler.MaxUploadBytes = resolveInt64(*maxUploadBytes, "VERITAS_MAX_UPLOAD_BYTES")
	handler.Logger = logger
	handler.Metrics = recorder

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var purgeStop func()
	if cachingVerifier, ok := verifier.(*auth.CachingVerifier); ok {
		purgeStop = startCachePurgeWorker(workerCtx, logging.WithComponent(logger, "token-cache"), cachingVerifier, 15*time.Minute)
	} else {
		purgeStop = func() {}
	}
	defer purgeStop()

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("VERITAS_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("VERITAS_TLS_KEY")),
		},
		CORS:        server.CORSConfig{AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("VERITAS_CORS_ORIGINS")))},
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Veritas media API listening", "addr", listenAddr, "storage_driver", driver, "media_dir", handler.MediaDir)
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	purgeStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if verifierCloser != nil {
		if err := verifierCloser(); err != nil {
			logger.Warn("failed to close token verifier", "error", err)
		}
	}

	if err := publisher.Close(); err != nil {
		logger.Warn("failed to close event publisher", "error", err)
	}

	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	} else if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	}

	logger.Info("server stopped")
}

// resolveKeyring assembles the upload keyring from flags, environment, and an
// optional key file. Without any configured key the development fallback is
// installed so local setups keep working.
func resolveKeyring(flagKeys, flagFile string, logger *slog.Logger) (*auth.Keyring, error) {
	plain := splitAndTrim(firstNonEmpty(flagKeys, os.Getenv("VERITAS_API_KEYS")))

	var hashed []string
	keyFile := firstNonEmpty(flagFile, os.Getenv("VERITAS_API_KEYS_FILE"))
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read api key file: %w", err)
		}
		for _, entry := range auth.ParseKeyFile(data) {
			if strings.HasPrefix(entry, "pbkdf2$") {
				hashed = append(hashed, entry)
			} else {
				plain = append(plain, entry)
			}
		}
	}

	if len(plain) == 0 && len(hashed) == 0 {
		logger.Warn("no api keys configured, falling back to the development key; do not run this in production")
		plain = []string{devFallbackAPIKey}
	}
	return auth.NewKeyring(plain, hashed)
}

type verifierSettings struct {
	Mode         string
	URL          string
	ClientID     string
	ClientSecret string
	Secret       string
	Issuer       string
	Audience     string
	Timeout      time.Duration
	CacheDriver  string
	CacheTTL     time.Duration
	CacheRedis   redisclient.Options
}

// resolveVerifier builds the bearer token verifier chain. The mode defaults to
// static when a shared secret is configured and remote when only an
// introspection URL is present; without either, management endpoints reject
// every request.
func resolveVerifier(settings verifierSettings, logger *slog.Logger) (auth.TokenVerifier, func() error, error) {
	mode := strings.ToLower(strings.TrimSpace(settings.Mode))
	if mode == "" {
		switch {
		case settings.Secret != "":
			mode = "static"
		case settings.URL != "":
			mode = "remote"
		default:
			logger.Warn("no token verifier configured, management endpoints will reject all requests")
			return nil, nil, nil
		}
	}

	var base auth.TokenVerifier
	switch mode {
	case "static":
		verifier, err := auth.NewStaticJWTVerifier(auth.StaticJWTConfig{
			Secret:   settings.Secret,
			Issuer:   settings.Issuer,
			Audience: settings.Audience,
		})
		if err != nil {
			return nil, nil, err
		}
		base = verifier
	case "remote":
		verifier, err := auth.NewRemoteVerifier(auth.RemoteVerifierConfig{
			IntrospectURL: settings.URL,
			ClientID:      settings.ClientID,
			ClientSecret:  settings.ClientSecret,
			Timeout:       settings.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		base = verifier
	default:
		return nil, nil, fmt.Errorf("unsupported identity mode %q", mode)
	}

	cache, err := resolveTokenCache(settings.CacheDriver, settings.CacheRedis)
	if err != nil {
		return nil, nil, err
	}
	caching := auth.NewCachingVerifier(base,
		auth.WithCache(cache),
		auth.WithCacheTTL(settings.CacheTTL),
		auth.WithLogger(logging.WithComponent(logger, "token-cache")),
	)
	return caching, caching.Close, nil
}

func resolveTokenCache(driver string, redisOpts redisclient.Options) (auth.TokenCache, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return auth.NewMemoryTokenCache(), nil
	case "redis":
		client, err := redisclient.New(redisOpts)
		if err != nil {
			return nil, fmt.Errorf("configure token cache redis: %w", err)
		}
		return auth.NewRedisTokenCache(client, auth.DefaultTokenCachePrefix)
	default:
		return nil, fmt.Errorf("unsupported token cache driver %q", driver)
	}
}

type eventSettings struct {
	Driver string
	Stream string
	Redis  redisclient.Options
}

func resolveEventPublisher(settings eventSettings) (events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Driver)) {
	case "", "none":
		return events.NewNoopPublisher(), nil
	case "redis":
		return events.NewRedisPublisher(events.RedisPublisherConfig{
			Redis:  settings.Redis,
			Stream: settings.Stream,
		})
	default:
		return nil, fmt.Errorf("unsupported events driver %q", settings.Driver)
	}
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) string {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres"
	}
	return "json"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("VERITAS_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
