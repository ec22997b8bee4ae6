package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/player/wsplayer"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/sharetube/roomsync/internal/service/playback"
	"github.com/sharetube/roomsync/internal/service/supervisor"
)

const videoDataTimeout = 5 * time.Second

type emptyInput struct{}

func (cl *client) handleAlive(context.Context, *websocket.Conn, emptyInput) error {
	return nil
}

// handleLeave stops the player before the membership goes away, then ends the
// connection.
func (cl *client) handleLeave(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	cl.engine.Reset(ctx)
	if err := cl.session.Leave(ctx); err != nil {
		return err
	}

	cl.conn.Send(ctx, "LEFT", nil)
	cl.conn.CloseWith(websocket.CloseNormalClosure, errLeft.Error())
	cl.leave(errLeft)

	return nil
}

type trackInput struct {
	ID        string `json:"id"`
	VideoID   string `json:"video_id" validate:"required,len=11"`
	Title     string `json:"title" validate:"max=256"`
	Artist    string `json:"artist" validate:"max=256"`
	Thumbnail string `json:"thumbnail" validate:"omitempty,url"`
	Duration  string `json:"duration" validate:"max=16"`
}

// resolveTrack fills in metadata the client did not send. A failed lookup is
// not fatal, the video id stands in for the title.
func (cl *client) resolveTrack(ctx context.Context, input trackInput) room.Track {
	track := room.Track{
		ID:        input.ID,
		VideoID:   input.VideoID,
		Title:     input.Title,
		Artist:    input.Artist,
		Thumbnail: input.Thumbnail,
		Duration:  input.Duration,
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}

	if track.Title == "" {
		ctx, cancel := context.WithTimeout(ctx, videoDataTimeout)
		defer cancel()

		videoData, err := cl.ctrl.videoData.Get(ctx, input.VideoID)
		if err != nil {
			cl.logger.WarnContext(ctx, "failed to get video data", "video_id", input.VideoID, "error", err)
			track.Title = input.VideoID
			return track
		}

		track.Title = videoData.Title
		if track.Artist == "" {
			track.Artist = videoData.AuthorName
		}
		if track.Thumbnail == "" {
			track.Thumbnail = videoData.ThumbnailUrl
		}
	}

	return track
}

func (cl *client) handlePlayTrack(ctx context.Context, _ *websocket.Conn, input trackInput) error {
	return cl.session.Play(ctx, cl.resolveTrack(ctx, input))
}

func (cl *client) handlePause(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.Pause(ctx)
}

func (cl *client) handleResume(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.Resume(ctx)
}

type timeInput struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
}

func (cl *client) handleSeek(ctx context.Context, _ *websocket.Conn, input timeInput) error {
	return cl.session.Seek(ctx, input.CurrentTime)
}

func (cl *client) handleUpdateTime(ctx context.Context, _ *websocket.Conn, input timeInput) error {
	return cl.session.UpdateCurrentTime(ctx, input.CurrentTime)
}

type volumeInput struct {
	Volume int `json:"volume" validate:"gte=0,lte=100"`
}

func (cl *client) handleSetVolume(ctx context.Context, _ *websocket.Conn, input volumeInput) error {
	return cl.session.SetVolume(ctx, input.Volume)
}

func (cl *client) handleAddTrack(ctx context.Context, _ *websocket.Conn, input trackInput) error {
	return cl.session.AddToPlaylist(ctx, cl.resolveTrack(ctx, input))
}

type removeTrackInput struct {
	TrackID string `json:"track_id" validate:"required"`
}

func (cl *client) handleRemoveTrack(ctx context.Context, _ *websocket.Conn, input removeTrackInput) error {
	return cl.session.RemoveFromPlaylist(ctx, input.TrackID)
}

func (cl *client) handlePlayNext(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.PlayNext(ctx)
}

type transferHostInput struct {
	MemberID string `json:"member_id" validate:"required"`
}

func (cl *client) handleTransferHost(ctx context.Context, _ *websocket.Conn, input transferHostInput) error {
	return cl.session.TransferHost(ctx, input.MemberID)
}

func (cl *client) handleStartMovieMode(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.StartMovieMode(ctx)
}

func (cl *client) handleExitMovieMode(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.ExitMovieMode(ctx)
}

type movieInput struct {
	ID              string   `json:"id" validate:"required"`
	Title           string   `json:"title" validate:"required,max=256"`
	Year            string   `json:"year"`
	Poster          string   `json:"poster" validate:"omitempty,url"`
	Plot            string   `json:"plot"`
	Runtime         string   `json:"runtime"`
	Genre           string   `json:"genre"`
	IMDbRating      string   `json:"imdb_rating"`
	Director        string   `json:"director"`
	Actors          string   `json:"actors"`
	EmbedURL        string   `json:"embed_url" validate:"omitempty,url"`
	StreamURL       string   `json:"stream_url" validate:"omitempty,url"`
	FallbackSources []string `json:"fallback_sources" validate:"dive,url"`
}

func (cl *client) handleSelectMovie(ctx context.Context, _ *websocket.Conn, input movieInput) error {
	return cl.session.SelectMovie(ctx, room.Movie{
		ID:              input.ID,
		Title:           input.Title,
		Year:            input.Year,
		Poster:          input.Poster,
		Plot:            input.Plot,
		Runtime:         input.Runtime,
		Genre:           input.Genre,
		IMDbRating:      input.IMDbRating,
		Director:        input.Director,
		Actors:          input.Actors,
		EmbedURL:        input.EmbedURL,
		StreamURL:       input.StreamURL,
		FallbackSources: input.FallbackSources,
	})
}

func (cl *client) handlePlayMovie(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.PlayMovie(ctx)
}

func (cl *client) handlePauseMovie(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return cl.session.PauseMovie(ctx)
}

func (cl *client) handleSeekMovie(ctx context.Context, _ *websocket.Conn, input timeInput) error {
	return cl.session.SeekMovie(ctx, input.CurrentTime)
}

func (cl *client) handleUpdateMovieTime(ctx context.Context, _ *websocket.Conn, input timeInput) error {
	return cl.session.UpdateMovieTime(ctx, input.CurrentTime)
}

func (cl *client) handleSetMovieVolume(ctx context.Context, _ *websocket.Conn, input volumeInput) error {
	return cl.session.SetMovieVolume(ctx, input.Volume)
}

type playerReadyInput struct {
	MediaID string `json:"media_id" validate:"required"`
}

func (cl *client) handlePlayerReady(ctx context.Context, _ *websocket.Conn, input playerReadyInput) error {
	return cl.player.Ready(ctx, input.MediaID)
}

type playerStateInput struct {
	MediaID     string  `json:"media_id"`
	State       string  `json:"state" validate:"required,oneof=unstarted playing paused ended buffering"`
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

func (cl *client) handlePlayerState(ctx context.Context, _ *websocket.Conn, input playerStateInput) error {
	state, err := playback.ParsePlayerState(input.State)
	if err != nil {
		return err
	}

	return cl.player.Update(ctx, wsplayer.Telemetry{
		MediaID:     input.MediaID,
		State:       state,
		CurrentTime: input.CurrentTime,
		Duration:    input.Duration,
	})
}

type playerErrorInput struct {
	MediaID string `json:"media_id" validate:"required"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (cl *client) handlePlayerError(ctx context.Context, _ *websocket.Conn, input playerErrorInput) error {
	return cl.player.Fail(ctx, input.MediaID, fmt.Errorf("player error %d: %s", input.Code, input.Message))
}

type visibilityInput struct {
	Hidden bool `json:"hidden"`
}

func (cl *client) handleVisibilityChanged(ctx context.Context, _ *websocket.Conn, input visibilityInput) error {
	if cl.supervisor == nil {
		return nil
	}

	cl.supervisor.SetHidden(input.Hidden)
	if !input.Hidden {
		// Catch up right away instead of waiting for the next tick.
		cl.engine.ForceSync(ctx)
	}

	return nil
}

func (cl *client) handleGetSyncStats(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	var stats supervisor.Stats
	if cl.supervisor != nil {
		stats = cl.supervisor.Stats()
	}

	return cl.conn.Send(ctx, "SYNC_STATS", stats)
}
