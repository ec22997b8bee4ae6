package room

type CreateRoomParams struct {
	HostDisplayName string
}

type CreateRoomResponse struct {
	RoomID string
	HostID string
}

type JoinRoomParams struct {
	RoomID      string
	DisplayName string
}

type RejoinRoomParams struct {
	RoomID   string
	MemberID string
}

type LeaveRoomParams struct {
	RoomID   string
	MemberID string
}
