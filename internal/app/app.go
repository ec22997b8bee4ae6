package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/controller"
	"github.com/sharetube/roomsync/internal/repository/connection/inmemory"
	roomRedis "github.com/sharetube/roomsync/internal/repository/room/redis"
	"github.com/sharetube/roomsync/internal/service/playback"
	"github.com/sharetube/roomsync/internal/service/supervisor"
	"github.com/sharetube/roomsync/pkg/ctxlogger"
	"github.com/sharetube/roomsync/pkg/redisclient"
	"github.com/sharetube/roomsync/pkg/ytvideodata"
)

const (
	shutdownTimeout  = 30 * time.Second
	videoDataTimeout = 10 * time.Second
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	RoomTTL       time.Duration `json:"room_ttl"`
	JoinTimeout   time.Duration `json:"join_timeout"`
	MembersLimit  int           `json:"members_limit"`
	PlaylistLimit int           `json:"playlist_limit"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.MembersLimit < 1 {
		errs = append(errs, errors.New("members limit must be greater than 0"))
	}
	if cfg.PlaylistLimit < 1 {
		errs = append(errs, errors.New("playlist limit must be greater than 0"))
	}
	if cfg.RoomTTL <= 0 {
		errs = append(errs, errors.New("room ttl must be positive"))
	}
	if cfg.JoinTimeout <= 0 {
		errs = append(errs, errors.New("join timeout must be positive"))
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}

	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

// newHandler wires repositories and the controller on top of rc.
func newHandler(rc *redis.Client, cfg *AppConfig, videoData *ytvideodata.Client, logger *slog.Logger) http.Handler {
	roomRepo := roomRedis.NewRepo(rc, &roomRedis.Config{
		ExpireDuration: cfg.RoomTTL,
		JoinTimeout:    cfg.JoinTimeout,
		MembersLimit:   cfg.MembersLimit,
	}, logger)
	connRepo := inmemory.NewRepo(logger)

	controller := controller.NewController(roomRepo, connRepo, videoData, &controller.Config{
		PlaylistLimit: cfg.PlaylistLimit,
		Playback:      playback.DefaultConfig(),
		Supervisor:    supervisor.DefaultConfig(),
	}, logger)

	return controller.GetMux()
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel, _ := parseLogLevel(cfg.LogLevel)
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	videoData := ytvideodata.New(&http.Client{Timeout: videoDataTimeout})
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: newHandler(rc, cfg, videoData, logger),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, shutdownTimeout)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// Shutdown does not wait for hijacked websocket connections.
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
