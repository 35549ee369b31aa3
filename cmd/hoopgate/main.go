package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/hoopgate/adapters/events"
	"github.com/layer-3/hoopgate/adapters/ratelimit"
	"github.com/layer-3/hoopgate/adapters/shortener"
	"github.com/layer-3/hoopgate/adapters/store"
	"github.com/layer-3/hoopgate/adapters/tokenizer"
	"github.com/layer-3/hoopgate/internal/config"
	"github.com/layer-3/hoopgate/internal/logger"
	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/ports"
	"github.com/layer-3/hoopgate/service"
	transport "github.com/layer-3/hoopgate/transport/http"
)

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("HOOPGATE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name})
	defer logger.Sync()
	log := logger.L()

	if err := run(cfg, log); err != nil {
		log.Fatal("hoopgate stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signKey, err := signingKey(cfg.Gate.SigningKeyPEM)
	if err != nil {
		return err
	}
	if cfg.Gate.SigningKeyPEM == "" {
		log.Warn("no signing key configured, sessions will not survive a restart")
	}

	var redisClient *redis.Client
	if cfg.Store.Kind == "redis" || cfg.Events.Kind == "redis" {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	var kv ports.KV
	var limiter ports.RateLimiter
	if cfg.Store.Kind == "redis" {
		kv = store.NewRedisKV(redisClient)
		limiter = ratelimit.NewRedisLimiter(redisClient, "", cfg.RateLimit.Max, cfg.RateLimit.Window.Std())
	} else {
		kv = store.NewMemoryKV(cfg.Store.CleanupInterval.Std())
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window.Std())
	}

	publisher, err := newPublisher(cfg.Events.Kind, redisClient, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events.Kind != "none" {
		eventPub = events.NewWatermillPublisher(publisher)
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	links := store.NewCachedLinks(store.NewKVLinks(kv))
	httpClient := &http.Client{Timeout: cfg.Shortener.Timeout.Std()}
	defaultShortener := shortener.NewFallback(shortener.NewHTTPShortener(httpClient, cfg.Shortener.APIToken, cfg.Shortener.Site))

	gate := service.NewGateService(
		store.NewKVStore(kv, time.Now),
		links,
		tokenizer.NewJWTTokenizer(signKey),
		eventPub,
		[]byte(cfg.Gate.Secret),
		service.WithTTLs(cfg.Gate.ChallengeTTL.Std(), cfg.Gate.GrantTTL.Std(), cfg.Gate.ReceiptTTL.Std()),
		service.WithDefaultMinWait(cfg.Gate.DefaultMinWait.Std()),
		service.WithFallbackRedirect(cfg.Gate.FallbackRedirect),
		service.WithThresholds(cfg.Behavior),
		service.WithMetrics(m),
	)
	linkService := service.NewLinkService(links, defaultShortener, shortener.NewFactory(httpClient), m, cfg.Gate.DefaultMinWait.Std())

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := transport.SetupRouter(transport.RouterConfig{
		Gate:           gate,
		Links:          linkService,
		Limiter:        limiter,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger.Named("http"),
		TrustedProxies: cfg.Server.TrustedProxies,
		StaticDir:      cfg.Server.StaticDir,
	})
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Kind))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// signingKey parses an EC private key in PEM, or generates an ephemeral one
func signingKey(pem string) (*ecdsa.PrivateKey, error) {
	if pem == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

func newPublisher(kind string, client *redis.Client, log *zap.Logger) (message.Publisher, error) {
	wlog := events.NewZapLogger(log)
	if kind == "redis" {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			wlog,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		return publisher, nil
	}
	return gochannel.NewGoChannel(gochannel.Config{}, wlog), nil
}
