package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/tricket/tricket-integrations/app/controllers"
	"github.com/tricket/tricket-integrations/app/repository"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/authgate"
	"github.com/tricket/tricket-integrations/internal/pkg/cache"
	"github.com/tricket/tricket-integrations/internal/pkg/config"
	"github.com/tricket/tricket-integrations/internal/pkg/crypto"
	"github.com/tricket/tricket-integrations/internal/pkg/database"
	"github.com/tricket/tricket-integrations/internal/pkg/env"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/asaas"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/cappta"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/gs1"
	"github.com/tricket/tricket-integrations/internal/pkg/jobqueue"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
	"github.com/tricket/tricket-integrations/internal/pkg/objectstore"
	"github.com/tricket/tricket-integrations/internal/pkg/pipeline"
	"github.com/tricket/tricket-integrations/internal/pkg/reconcile"
	"github.com/tricket/tricket-integrations/internal/pkg/router"
	"github.com/tricket/tricket-integrations/internal/pkg/secrets"
	"github.com/tricket/tricket-integrations/internal/pkg/tokenbroker"
	"github.com/tricket/tricket-integrations/internal/pkg/webhook"
)

const (
	resweepInterval = 5 * time.Minute
	resweepAge      = 10 * time.Minute
	resweepBatch    = 200
	shutdownTimeout = 10 * time.Second
)

func main() {
	env.SetupEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app, manager, err := NewApplication(cfg)
	if err != nil {
		log.Fatal(err)
	}
	manager.Start()

	ln, err := net.Listen(app.Config().Network, fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port))
	if err != nil {
		manager.Stop()
		log.Fatal(err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	err = serve(app, ln, quit, func() {
		manager.Stop()
		_ = cache.Close()
	})
	if err != nil {
		manager.Stop()
		log.Fatal(err)
	}
	log.Println("[Server] Stopped")
}

// serve blocks until the server has drained after a signal on quit and stop
// has run. Only a failure to serve is returned.
func serve(app *fiber.App, ln net.Listener, quit <-chan os.Signal, stop func()) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-quit
		_ = app.ShutdownWithTimeout(shutdownTimeout)
		stop()
	}()

	// Listener returns nil as soon as shutdown begins.
	if err := app.Listener(ln); err != nil {
		return err
	}
	<-stopped
	return nil
}

// NewApplication wires storage, upstream clients and the pipeline into a
// fiber app and the background job manager.
func NewApplication(cfg *config.Config) (*fiber.App, *jobqueue.Manager, error) {
	db, err := database.SetupDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	redisClient, cacheErr := cache.SetupCache(cfg.Cache)
	if cacheErr != nil {
		log.Printf("cache unavailable at startup, continuing: %v", cacheErr)
	}

	cipher, err := crypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("init cipher: %w", err)
	}

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()
	store := reconcile.NewStore(db)
	secretStore := secrets.NewStore(secrets.Chain{secrets.EnvSource{}, secrets.NewVaultSource(db, cipher)})

	capptaClient := cappta.New(gateway.NewClient(cappta.ServiceName, cfg.Cappta.BaseURL), cfg.Cappta.ResellerDocument)
	asaasClient := asaas.New(gateway.NewClient(asaas.ServiceName, cfg.Asaas.BaseURL))
	gs1Client := gs1.New(gateway.NewClient(gs1.ServiceName, cfg.GS1.BaseURL))

	objects, err := newObjectStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	orchestrator := pipeline.New(secretStore, tokenbroker.New(gs1Client), gs1Client, store, objects,
		pipeline.WithFanOut(cfg.Pipeline.FanOut))

	queue := jobqueue.NewQueue(redisClient, cfg.Pipeline.Workers)
	orchestrator.SetHandoff(pipeline.NewQueueHandoff(queue, orchestrator))
	manager := jobqueue.NewManager(queue, jobqueue.Task{
		Name:     "pipeline-resweep",
		Interval: resweepInterval,
		Run: func(ctx context.Context) error {
			_, err := orchestrator.ResweepPending(ctx, resweepAge, resweepBatch)
			return err
		},
	})

	deps := &controllers.Dependencies{
		Repos:    repos,
		Store:    store,
		Secrets:  secretStore,
		Cappta:   capptaClient,
		Asaas:    asaasClient,
		Cipher:   cipher,
		Ingestor: webhook.NewIngestor(repos.WebhookSubscription, repos.AsaasAccount, repos.WebhookEvent, secretStore),
		Pipeline: orchestrator,
		Queue:    queue,
	}

	metrics.MustRegister()
	app := fiber.New(fiber.Config{
		AppName:      "tricket-integrations",
		ErrorHandler: apperror.ErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})
	app.Use(recover.New(), requestid.New(), logger.New(), metrics.Middleware())

	opts := router.Options{
		Deps:       deps,
		Gate:       authgate.New(authgate.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), repos.Role),
		ServiceKey: cfg.InternalServiceKey,
	}
	// the redis storage panics when it cannot connect
	if cacheErr == nil {
		if storage := limiterStorage(cfg.Cache); storage != nil {
			opts.LimiterStorage = storage
		}
	}
	router.InstallRouter(app, opts)

	return app, manager, nil
}

func newObjectStore(cfg *config.Config) (objectstore.Store, error) {
	if !cfg.StorageEnabled() {
		log.Println("object storage not configured, product images are kept in memory")
		return objectstore.NewMemoryStore(cfg.Storage.PublicBaseURL), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s3Store, err := objectstore.NewS3Store(ctx, cfg.Storage, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return s3Store, nil
}

// limiterStorage keeps webhook rate-limit counters in Redis DB 2, apart
// from the cache (0) and the job queue keys.
func limiterStorage(cfg config.CacheConfig) *redisstorage.Storage {
	host, portStr, err := net.SplitHostPort(cache.Addr(cfg))
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: cfg.Password,
		Database: 2,
		Reset:    false,
	})
}
