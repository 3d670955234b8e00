// cmd/assistant-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inventory-assistant/internal/agents"
	"inventory-assistant/internal/assistant/dispatch"
	"inventory-assistant/internal/assistant/orchestrator"
	"inventory-assistant/internal/assistant/quality"
	"inventory-assistant/internal/assistant/router"
	"inventory-assistant/internal/catalog"
	awsclients "inventory-assistant/internal/common/aws"
	"inventory-assistant/internal/common/camunda"
	"inventory-assistant/internal/common/config"
	"inventory-assistant/internal/common/database"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/observability"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"
	"inventory-assistant/internal/movement/pending"
	hu "inventory-assistant/internal/workers/conversation/handle-utterance"
	"inventory-assistant/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting inventory assistant worker...")

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init incomplete", zap.Error(err))
	}
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.App.Name, cfg.Metrics.JaegerEndpoint)
	if err != nil {
		zapLog.Warn("span export disabled", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL (inventory, source of truth) ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if dir := cfg.Database.Postgres.MigrationsDir; dir != "" {
		applied, err := pg.Migrate(ctx, dir)
		if err != nil {
			zapLog.Fatal("migrations failed", zap.String("dir", dir), zap.Error(err))
		}
		zapLog.Info("migrations applied", zap.Strings("files", applied))
	}

	// --- Redis (continuations, history) ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	if cfg.Assistant.ResetPendingOnStart {
		dropped, err := rdb.Purge(ctx, cfg.Assistant.ContinuationPrefix)
		if err != nil {
			zapLog.Warn("pending continuations not reset", zap.Error(err))
		} else {
			zapLog.Info("pending continuations reset", zap.Int("dropped", dropped))
		}
	}

	// --- Elasticsearch (catalog search, optional) ---
	var search agents.Searcher
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, catalog search disabled", zap.Error(err))
		} else {
			index := cfg.Database.Elasticsearch.CatalogIndex
			if created, err := esClient.EnsureIndex(ctx, index, catalog.IndexMapping); err != nil {
				zapLog.Warn("catalog index check failed", zap.String("index", index), zap.Error(err))
			} else if created {
				zapLog.Info("catalog index created", zap.String("index", index))
			}
			search = catalog.NewSearch(esClient.Client, index, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Notification channels ---
	var notifier agents.Notifier
	if senders := notificationSenders(ctx, cfg.Notifications, zapLog); len(senders) > 0 {
		notifier = awsclients.NewNotifier(senders...)
	}

	// --- Language model and routing ---
	manifest, err := registry.LoadOrDefault(cfg.Assistant.ManifestPath)
	if err != nil {
		zapLog.Fatal("agent manifest invalid", zap.Error(err))
	}

	llm := genai.NewClient(&genai.Config{
		BaseURL:    cfg.GenAI.BaseURL,
		APIKey:     cfg.GenAI.APIKey,
		Timeout:    time.Duration(cfg.GenAI.Timeout) * time.Millisecond,
		MaxRetries: cfg.GenAI.MaxRetries,
		MaxTokens:  cfg.GenAI.MaxTokens,
	}, log)
	rt := router.New(llm, cfg.GenAI.FastModel, cfg.Assistant.RoutingTimeoutDuration(), manifest, log)

	// --- Movement pipeline ---
	store := inventory.NewPostgres(pg.DB, log)
	continuations := pending.NewRedisStore(rdb.Client, cfg.Assistant.ContinuationPrefix, cfg.Assistant.ContinuationTTLDuration(), log)
	sequencer := movement.NewSequencer(store, continuations, movement.SequencerConfig{
		StepTimeout: cfg.Assistant.StepTimeoutDuration(),
	}, log)
	extractor := movement.NewPatternExtractor()
	turns := history.NewRedisStore(rdb.Client, cfg.Assistant.HistoryPrefix, cfg.Assistant.HistorySize, 0, log)

	// --- Agents ---
	capable := cfg.GenAI.CapableModel
	movements := agents.NewMovementAgent("movement-agent", extractor, sequencer, llm, capable, log)
	agentRegistry, err := dispatch.NewRegistry(dispatch.Agents{
		Query:                 agents.NewQueryAgent(search, store, llm, capable, log),
		SingleMovement:        movements,
		MultiMovement:         movements,
		Analytics:             agents.NewAnalyticsAgent(store, llm, capable, log),
		CatalogManagement:     agents.NewCatalogAgent(store, store, search, llm, capable, log),
		Reporting:             agents.NewReportingAgent(store, log),
		Notification:          agents.NewNotificationAgent(store, store, notifier, log),
		DialogueClarification: agents.NewClarificationAgent(turns, llm, capable, log),
	})
	if err != nil {
		zapLog.Fatal("agent registry invalid", zap.Error(err))
	}

	assistant := orchestrator.New(orchestrator.Dependencies{
		Fast:      agents.NewFastTier(extractor, sequencer, store, llm, cfg.GenAI.FastModel, cfg.Assistant.FastTierTimeoutDuration(), log),
		Router:    rt,
		Registry:  agentRegistry,
		Gate:      quality.NewGate(cfg.Assistant.QualityMinLength),
		Sequencer: sequencer,
		Pending:   continuations,
		History:   turns,
		Recorder:  obs,
	}, orchestrator.Config{ContinuationTTL: cfg.Assistant.ContinuationTTLDuration()}, log)

	// --- Zeebe client and worker ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	workerCfg := hu.ConfigFrom(cfg)
	var workers []*camunda.CamundaWorker
	if workerCfg.Enabled {
		handler := hu.NewHandler(workerCfg, assistant, zeebe, log)
		w := camunda.NewWorker(zeebe.GetClient(), hu.TaskType, camunda.Options{
			MaxJobsActive: workerCfg.MaxJobsActive,
		}, handler, log)
		w.Start()
		workers = append(workers, w)
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", hu.TaskType))
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	_ = server.Shutdown(shutdownCtx)
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Inventory assistant stopped")
}

// notificationSenders builds the enabled AWS channels. A channel that fails
// to initialise is skipped.
func notificationSenders(ctx context.Context, cfg config.NotificationConfig, log *zap.Logger) []awsclients.Sender {
	var senders []awsclients.Sender
	if cfg.SNS.Enabled {
		sns, err := awsclients.NewSNSClient(ctx, cfg.AWS.Region, cfg.SNS.TopicARN)
		if err != nil {
			log.Warn("sns channel disabled", zap.Error(err))
		} else {
			senders = append(senders, sns)
		}
	}
	if cfg.Email.Enabled {
		ses, err := awsclients.NewSESClient(ctx, cfg.AWS.Region, cfg.Email.FromEmail, cfg.Email.ToEmail)
		if err != nil {
			log.Warn("email channel disabled", zap.Error(err))
		} else {
			senders = append(senders, ses)
		}
	}
	return senders
}
