package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/sharetube/roomsync/internal/service/playback"
	"github.com/sharetube/roomsync/internal/service/supervisor"
	"github.com/sharetube/roomsync/pkg/validator"
	"github.com/sharetube/roomsync/pkg/ytvideodata"
)

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (string, bool, error)
	RejoinRoom(context.Context, *room.RejoinRoomParams) (bool, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	MutateRoomState(context.Context, string, func(*room.State) *room.Patch) error
	SubscribeToRoom(context.Context, string, func(*room.State)) (func(), error)
	GetRoom(context.Context, string) (*room.State, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, memberID string) *websocket.Conn
	RemoveByConn(conn *websocket.Conn) error
	GetConn(memberID string) (*websocket.Conn, error)
	Len() int
}

type iVideoData interface {
	Get(ctx context.Context, videoId string) (*ytvideodata.VideoData, error)
}

type Config struct {
	PlaylistLimit int
	Playback      playback.Config
	Supervisor    supervisor.Config
}

type controller struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	videoData iVideoData
	upgrader  websocket.Upgrader
	validate  *validator.Validator
	cfg       Config
	logger    *slog.Logger
}

func NewController(roomRepo iRoomRepo, connRepo iConnRepo, videoData iVideoData, cfg *Config, logger *slog.Logger) *controller {
	return &controller{
		roomRepo:  roomRepo,
		connRepo:  connRepo,
		videoData: videoData,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		cfg:      *cfg,
		logger:   logger,
	}
}
