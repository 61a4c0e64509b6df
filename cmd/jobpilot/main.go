// jobpilot — демон, который забирает задачи из удалённой очереди
// и выполняет каждую в изолированном executor'е.
//
// Демон:
//   - Опрашивает очередь по расписанию (interval или cron)
//   - Запускает executor, ведёт PING/START/ACK и ждёт результат
//   - Сообщает очереди успех или неудачу, локально повторяет crash
//   - Отдаёт операторский HTTP API, /healthz и /metrics
//   - Опционально публикует события в RabbitMQ и слушает control-очередь
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/jobpilot/internal/api"
	"github.com/shaiso/jobpilot/internal/config"
	"github.com/shaiso/jobpilot/internal/control"
	"github.com/shaiso/jobpilot/internal/executor"
	"github.com/shaiso/jobpilot/internal/mq"
	"github.com/shaiso/jobpilot/internal/orchestrator"
	"github.com/shaiso/jobpilot/internal/queue"
	"github.com/shaiso/jobpilot/internal/repo"
	"github.com/shaiso/jobpilot/internal/scheduler"
	"github.com/shaiso/jobpilot/internal/state"
	"github.com/shaiso/jobpilot/internal/stats"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

// httpShutdownTimeout — сколько ждать завершения HTTP-запросов.
const httpShutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("jobpilot failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	levelVar := new(slog.LevelVar)
	logger := telemetry.SetupLogger(telemetry.LogOptions{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		LevelVar: levelVar,
	})
	logger.Info("starting jobpilot", "config", cfgPath)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg.State)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	logger.Info("state store opened", "backend", cfg.State.Backend)

	clientID, err := state.ClientID(ctx, store)
	if err != nil {
		return fmt.Errorf("client id: %w", err)
	}

	queueClient := queue.NewClient(queue.Config{
		BaseURL:        cfg.Queue.BaseURL,
		Token:          cfg.Queue.Token,
		RequestTimeout: cfg.Queue.RequestTimeout,
		Logger:         logger,
	})

	recorder, err := stats.NewRecorder(ctx, store, cfg.Jobs.HistoryCapacity, logger)
	if err != nil {
		return err
	}

	// RabbitMQ
	var publisher orchestrator.EventPublisher
	var mqConn *mq.Connection
	if cfg.AMQP.URL != "" {
		mqConn, err = mq.NewConnection(cfg.AMQP.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			if cfg.AMQP.PublishEvents {
				publisher = mq.NewPublisher(mqConn, logger)
			}
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		Queue:               queueClient,
		Launcher:            newLauncher(cfg.Executor, logger),
		Recorder:            recorder,
		Store:               store,
		Publisher:           publisher,
		JobTimeout:          cfg.Jobs.Timeout,
		ReadyInterval:       cfg.Jobs.ReadyInterval,
		ReadyAttempts:       cfg.Jobs.ReadyAttempts,
		AckTimeout:          cfg.Jobs.AckTimeout,
		MaxLocalRetries:     cfg.Jobs.MaxLocalRetries,
		LocalRetryDelay:     cfg.Jobs.LocalRetryDelay,
		LocalRetryMaxDelay:  cfg.Jobs.LocalRetryMaxDelay,
		PersistLocalRetries: cfg.Jobs.PersistLocalRetries,
		Logger:              logger,
	})

	sched, err := scheduler.New(scheduler.Config{
		Queue:            queueClient,
		Orchestrator:     orch,
		Store:            store,
		ClientID:         clientID,
		Interval:         cfg.Poll.Interval,
		CronExpr:         cfg.Poll.Cron,
		MaxActiveJobs:    cfg.Poll.MaxActiveJobs,
		EnabledByDefault: cfg.Poll.Enabled,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	ctrl := control.New(control.Config{
		Queue:        queueClient,
		Scheduler:    sched,
		Orchestrator: orch,
		Recorder:     recorder,
		Store:        store,
		ClientID:     clientID,
		Logger:       logger,
	})

	// HTTP mux: API + /healthz + /metrics
	mux := http.NewServeMux()
	api.NewHandler(api.Config{Controller: ctrl, Logger: logger}).RegisterRoutes(mux, cfg.HTTP.Token)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("jobpilot started", "client_id", clientID, "interval", sched.Interval(), "enabled", sched.Enabled())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if mqConn != nil && cfg.AMQP.ConsumeControl {
		consumer := mq.NewControlConsumer(mqConn, ctrl, logger)
		g.Go(func() error {
			err := consumer.Start(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				// Брокер опционален: без control-очереди демон продолжает работу.
				logger.Warn("control consumer stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := config.Watch(gctx, cfgPath, logger, func(next *config.Config) {
			applyReload(next.Reloadable(), sched, levelVar, logger)
		})
		if err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdown(sched, orch, srv, cfg.ShutdownGrace, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("jobpilot stopped")
	return nil
}

// shutdown останавливает опрос, ждёт задачи в работе и гасит HTTP.
func shutdown(sched *scheduler.Scheduler, orch *orchestrator.Orchestrator, srv *http.Server, grace time.Duration, logger *slog.Logger) {
	logger.Info("shutting down", "grace", grace)
	sched.Stop()
	orch.Close()

	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := orch.Drain(drainCtx); err != nil {
		logger.Warn("jobs still active after shutdown grace", "active", orch.ActiveCount(), "error", err)
	}

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancelHTTP()
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}

// applyReload применяет изменения, не требующие рестарта.
func applyReload(r config.Reloadable, sched *scheduler.Scheduler, levelVar *slog.LevelVar, logger *slog.Logger) {
	if level := telemetry.ParseLevel(r.LogLevel); level != levelVar.Level() {
		levelVar.Set(level)
		logger.Info("log level changed", "level", level.String())
	}

	if r.PollInterval > 0 && r.PollInterval != sched.Interval() {
		if err := sched.SetInterval(r.PollInterval); err != nil {
			logger.Warn("failed to apply poll interval", "interval", r.PollInterval, "error", err)
			return
		}
		logger.Info("poll interval changed", "interval", sched.Interval())
	}
}

func openStore(ctx context.Context, sc config.StateConfig) (state.Store, error) {
	switch sc.Backend {
	case config.StateBackendMemory:
		return state.NewMemoryStore(), nil
	case config.StateBackendFile:
		return state.NewFileStore(sc.Path)
	case config.StateBackendRedis:
		return state.NewRedisStore(state.RedisConfig{
			Address:  sc.Redis.Address,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		})
	case config.StateBackendPostgres:
		pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: sc.Postgres.DSN, MaxConns: sc.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		stateRepo := repo.NewStateRepo(pool)
		if err := stateRepo.EnsureSchema(ctx); err != nil {
			stateRepo.Close()
			return nil, err
		}
		return stateRepo, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", sc.Backend)
	}
}

func newLauncher(ec config.ExecutorConfig, logger *slog.Logger) executor.Launcher {
	if ec.Mode == config.ExecutorModeInProcess {
		return executor.NewInProcessLauncher(executor.HTTPWork(executor.HTTPWorkConfig{
			Timeout:   ec.HTTPTimeout,
			UserAgent: ec.UserAgent,
		}), logger)
	}
	return executor.NewProcessLauncher(executor.ProcessConfig{
		Command: ec.Command,
		Args:    ec.Args,
		Env:     ec.Env,
		Dir:     ec.Dir,
		Logger:  logger,
	})
}
