package room

type SetRoomParams struct {
	RoomId    string
	VideoURL  string
	CreatedAt int64
}

type SetMemberParams struct {
	MemberId string
	Username string
	JoinedAt int64
	RoomId   string
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

type SetPlayerParams struct {
	IsPlaying   bool
	CurrentTime float64
	UpdatedAt   int64
	RoomId      string
}

type UpdatePlayerStateParams struct {
	IsPlaying   bool
	CurrentTime float64
	UpdatedAt   int64
	RoomId      string
}

type SetConnectSessionParams struct {
	Token    string
	Username string
	RoomId   string
}
