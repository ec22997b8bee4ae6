package room

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrStorage        = errors.New("room store unavailable")
	ErrConflict       = errors.New("room was modified concurrently")
	ErrCodeExhausted  = errors.New("failed to allocate room code")
	ErrRoomFull       = errors.New("room is full")
)
