package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"syscall"
	"time"

	"callbridge/internal/core/ports"
	"callbridge/internal/core/services"
	httphandlers "callbridge/internal/handlers/http"
	"callbridge/internal/infrastructure/board"
	"callbridge/internal/infrastructure/distributed"
	"callbridge/internal/infrastructure/hostevents"
	"callbridge/internal/infrastructure/monitoring"
	"callbridge/internal/infrastructure/platform/redisstore"
	"callbridge/internal/infrastructure/platform/rest"
	"callbridge/internal/infrastructure/signal"
	webrtcinfra "callbridge/internal/infrastructure/webrtc"
	"callbridge/pkg/circuitbreaker"
	"callbridge/pkg/config"
	"callbridge/pkg/logger"
	"callbridge/pkg/retry"
	"callbridge/pkg/tracing"
	"callbridge/pkg/utils"
	"callbridge/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const networkCheck = "network"

type platformDriver interface {
	ports.Platform
	Close()
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet; the default one is enough to explain the exit.
		zap.NewExample().Sugar().Fatalw("Failed to load configuration", "path", *configPath, "error", err)
	}
	if err := cfg.Validate(); err != nil {
		zap.NewExample().Sugar().Fatalw("Invalid configuration", "error", err)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("Failed to initialise tracing", "error", err)
	}

	registry := prometheus.NewRegistry()
	if cfg.Monitoring.PrometheusEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := monitoring.NewCallCollector(registry)
	health := monitoring.NewHealthChecker()

	props := cfg.CallProps()
	if err := validation.ValidateCallProps(props); err != nil {
		// Mount still runs; the controller reports missing credentials itself.
		log.Warnw("Call properties are incomplete", "error", err)
	}
	log.Infow("Starting call agent",
		"session_id", props.SessionID,
		"api_key", utils.MaskSecret(props.APIKey, 4),
		"token", utils.MaskSecret(props.Token, 4),
		"platform_driver", cfg.Platform.Driver,
	)
	callCtx := logger.WithSessionID(logger.WithCallID(ctx, utils.GenerateID("call")), props.SessionID)
	callLog := logger.NewContextLogger(zapLogger).Sugared(callCtx)

	platform, err := buildPlatform(ctx, cfg, metrics, health, log)
	if err != nil {
		log.Fatalw("Failed to initialise platform driver", "driver", cfg.Platform.Driver, "error", err)
	}

	engine, err := webrtcinfra.NewEngine(webrtcConfig(cfg), metrics, log)
	if err != nil {
		log.Fatalw("Failed to initialise media engine", "error", err)
	}

	sdk := signal.NewSDK(signalConfig(cfg), engine, metrics, log)

	host := hostevents.NewTarget(log)
	statusBoard := board.New(host, log)

	if cfg.Probe.Enabled {
		health.AddHTTPCheck(networkCheck, &http.Client{Timeout: cfg.Probe.Timeout}, cfg.Probe.URL, cfg.Probe.Interval, cfg.Probe.Timeout)
		hostevents.NewNetworkProbe(host, health, networkCheck, log)
	}

	notifier := services.NewAlertNotifier(statusBoard.Document(), callLog)
	bridge := services.NewPlatformBridge(platform, metrics, callLog)
	controller := services.NewCallController(props, services.CallControllerDeps{
		SDK:         sdk,
		Bridge:      bridge,
		Notifier:    notifier,
		Connections: services.NewConnectionLogger(callLog),
		Listeners:   services.NewListenerBundle(host, notifier, bridge, metrics, callLog),
		EndCallHook: statusBoard,
		Metrics:     metrics,
		Logger:      callLog,
	})

	health.AddConditionCheck("video_session", func() bool {
		session := controller.Session()
		return session != nil && session.IsConnected()
	}, 10*time.Second, time.Second)
	health.StartBackgroundChecks(ctx)

	var srv *http.Server
	serverErr := make(chan error, 1)
	if cfg.Board.Enabled {
		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := httphandlers.NewBoardHandler(statusBoard, health, registry, httphandlers.BoardHandlerConfig{
			JWTSecret:         cfg.Board.JWTSecret,
			RequestsPerSecond: cfg.Board.RateLimit.RequestsPerSecond,
			Burst:             cfg.Board.RateLimit.Burst,
		}, log)

		srv = &http.Server{
			Addr:         cfg.Board.Address,
			Handler:      httphandlers.NewRouter(handler, log),
			ReadTimeout:  cfg.Board.ReadTimeout,
			WriteTimeout: cfg.Board.WriteTimeout,
		}
		go func() {
			log.Infow("Starting status board", "address", cfg.Board.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	if err := controller.Mount(ctx); err != nil {
		log.Errorw("Failed to mount call", "error", err)
	}

	waitCtx, stopWaiting := context.WithCancel(ctx)
	go func() {
		select {
		case err := <-serverErr:
			log.Errorw("Status board failed", "error", err)
			stopWaiting()
		case <-waitCtx.Done():
		}
	}()

	if sig := hostevents.WaitForShutdown(waitCtx, host, syscall.SIGINT, syscall.SIGTERM); sig != nil {
		log.Infow("Shutting down call agent", "signal", sig.String())
	}
	stopWaiting()

	controller.Unmount()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Board.ShutdownTimeout)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error during board shutdown", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Errorw("Error force closing board", "error", closeErr)
			}
		}
	}

	cancel()
	sdk.Close()
	platform.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Infow("Call agent stopped", "final_state", controller.State().String())
}

func buildPlatform(
	ctx context.Context,
	cfg *config.Config,
	metrics *monitoring.CallCollector,
	health *monitoring.HealthChecker,
	log *zap.SugaredLogger,
) (platformDriver, error) {
	switch cfg.Platform.Driver {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
		if err != nil {
			return nil, err
		}
		health.AddRedisCheck(client, 10*time.Second, 2*time.Second)

		bus := distributed.NewEventBus(client, utils.GenerateID("agent"), cfg.Redis.ActionChannel, log)
		go watchPeerActions(ctx, bus, log)

		store := redisstore.NewStore(client, bus, cfg.Redis.KeyPrefix, metrics, log)
		return &redisDriver{Store: store, client: client}, nil
	default:
		breaker := circuitbreaker.DefaultConfig()
		if cfg.Platform.BreakerFails > 0 {
			breaker.FailureThreshold = cfg.Platform.BreakerFails
		}
		if cfg.Platform.BreakerTimeout > 0 {
			breaker.Timeout = cfg.Platform.BreakerTimeout
		}
		client, err := rest.New(rest.Config{
			BaseURL:   cfg.Platform.BaseURL,
			Timeout:   cfg.Platform.Timeout,
			JWTSecret: cfg.Platform.JWTSecret,
			TokenTTL:  cfg.Platform.TokenTTL,
			Breaker:   breaker,
		}, metrics, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// redisDriver closes the shared client after the store drains.
type redisDriver struct {
	*redisstore.Store
	client *redis.Client
}

func (d *redisDriver) Close() {
	d.Store.Close()
	d.client.Close()
}

// watchPeerActions logs workflow actions published by other agents on the channel.
func watchPeerActions(ctx context.Context, bus *distributed.EventBus, log *zap.SugaredLogger) {
	err := bus.Subscribe(ctx, func(event *distributed.Event) error {
		if event.Type != distributed.EventWorkflowAction || event.Action == nil {
			return nil
		}
		log.Infow("Peer agent triggered workflow action",
			"instance", event.InstanceID,
			"action", event.Action.ActionName,
			"guids", event.Action.GUIDs,
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warnw("Action channel subscription ended", "channel", bus.Channel(), "error", err)
	}
}

func webrtcConfig(cfg *config.Config) webrtcinfra.Config {
	var wc webrtcinfra.Config
	for _, s := range cfg.WebRTC.ICEServers {
		wc.ICEServers = append(wc.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(wc.ICEServers) == 0 {
		wc.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	wc.PortRange.Min = cfg.WebRTC.PortRange.Min
	wc.PortRange.Max = cfg.WebRTC.PortRange.Max
	return wc
}

func signalConfig(cfg *config.Config) signal.Config {
	sc := signal.DefaultConfig()
	sc.URL = cfg.Signal.URL
	sc.PingInterval = cfg.Signal.PingInterval
	sc.PongTimeout = cfg.Signal.PongTimeout
	sc.RequestTimeout = cfg.Signal.RequestTimeout

	reconnect := retry.DefaultConfig()
	reconnect.MaxAttempts = cfg.Signal.ReconnectAttempts
	if cfg.Signal.ReconnectDelay > 0 {
		reconnect.InitialDelay = cfg.Signal.ReconnectDelay
	}
	if cfg.Signal.ReconnectMaxDelay > 0 {
		reconnect.MaxDelay = cfg.Signal.ReconnectMaxDelay
	}
	reconnect.Enabled = cfg.Signal.ReconnectAttempts > 0
	sc.Reconnect = reconnect
	return sc
}
