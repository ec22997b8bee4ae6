package controller

import (
	"github.com/sharetube/roomsync/pkg/wsrouter"
)

func (cl *client) newWSRouter(mws ...wsrouter.Middleware) *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(mws...)

	wsrouter.Handle(mux, "ALIVE", cl.handleAlive)
	wsrouter.Handle(mux, "LEAVE", cl.handleLeave)

	// player
	wsrouter.Handle(mux, "PLAY_TRACK", cl.handlePlayTrack)
	wsrouter.Handle(mux, "PAUSE", cl.handlePause)
	wsrouter.Handle(mux, "RESUME", cl.handleResume)
	wsrouter.Handle(mux, "SEEK", cl.handleSeek)
	wsrouter.Handle(mux, "UPDATE_TIME", cl.handleUpdateTime)
	wsrouter.Handle(mux, "SET_VOLUME", cl.handleSetVolume)

	// playlist
	wsrouter.Handle(mux, "ADD_TRACK", cl.handleAddTrack)
	wsrouter.Handle(mux, "REMOVE_TRACK", cl.handleRemoveTrack)
	wsrouter.Handle(mux, "PLAY_NEXT", cl.handlePlayNext)

	// member
	wsrouter.Handle(mux, "TRANSFER_HOST", cl.handleTransferHost)

	// movie
	wsrouter.Handle(mux, "START_MOVIE_MODE", cl.handleStartMovieMode)
	wsrouter.Handle(mux, "EXIT_MOVIE_MODE", cl.handleExitMovieMode)
	wsrouter.Handle(mux, "SELECT_MOVIE", cl.handleSelectMovie)
	wsrouter.Handle(mux, "PLAY_MOVIE", cl.handlePlayMovie)
	wsrouter.Handle(mux, "PAUSE_MOVIE", cl.handlePauseMovie)
	wsrouter.Handle(mux, "SEEK_MOVIE", cl.handleSeekMovie)
	wsrouter.Handle(mux, "UPDATE_MOVIE_TIME", cl.handleUpdateMovieTime)
	wsrouter.Handle(mux, "SET_MOVIE_VOLUME", cl.handleSetMovieVolume)

	// player telemetry
	wsrouter.Handle(mux, "PLAYER_READY", cl.handlePlayerReady)
	wsrouter.Handle(mux, "PLAYER_STATE", cl.handlePlayerState)
	wsrouter.Handle(mux, "PLAYER_ERROR", cl.handlePlayerError)

	// sync supervision
	wsrouter.Handle(mux, "VISIBILITY_CHANGED", cl.handleVisibilityChanged)
	wsrouter.Handle(mux, "GET_SYNC_STATS", cl.handleGetSyncStats)

	return mux
}
