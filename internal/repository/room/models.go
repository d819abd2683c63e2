package room

type Room struct {
	VideoURL  string `redis:"video_url" json:"video_url"`
	CreatedAt int64  `redis:"created_at" json:"created_at"`
	Started   bool   `redis:"started" json:"started"`
}

type Member struct {
	Username string `redis:"username" json:"username"`
	JoinedAt int64  `redis:"joined_at" json:"joined_at"`
}

// Player is the last known playback snapshot used to seed late joiners.
type Player struct {
	IsPlaying   bool    `redis:"is_playing" json:"is_playing"`
	CurrentTime float64 `redis:"current_time" json:"current_time"`
	UpdatedAt   int64   `redis:"updated_at" json:"updated_at"`
}

type ConnectSession struct {
	Username string `json:"username"`
	RoomId   string `json:"room_id"`
}
