package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/pkg/randstr"
)

const (
	roomCodeLength   = 6
	roomCodeAttempts = 8
	maxTxRetries     = 16

	defaultExistenceCheck = 30 * time.Second
)

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	// ExpireDuration is the idle time after which a room key is dropped.
	ExpireDuration time.Duration
	// JoinTimeout bounds the room lookup of JoinRoom.
	JoinTimeout time.Duration
	// MembersLimit caps the members of a room; zero means no limit.
	MembersLimit int
	// ExistenceCheck is how often a subscription looks for an expired room
	// key. Expiry publishes nothing, so this is how subscribers learn of it.
	ExistenceCheck time.Duration
}

type repo struct {
	rc             *redis.Client
	generator      iGenerator
	expireDuration time.Duration
	joinTimeout    time.Duration
	membersLimit   int
	existenceCheck time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func NewRepo(rc *redis.Client, cfg *Config, logger *slog.Logger) *repo {
	existenceCheck := cfg.ExistenceCheck
	if existenceCheck <= 0 {
		existenceCheck = defaultExistenceCheck
	}

	return &repo{
		rc:             rc,
		generator:      randstr.New([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")),
		expireDuration: cfg.ExpireDuration,
		joinTimeout:    cfg.JoinTimeout,
		membersLimit:   cfg.MembersLimit,
		existenceCheck: existenceCheck,
		logger:         logger,
		now:            time.Now,
	}
}
