package room

// Player is the last known playback snapshot of a room, used to seed late
// joiners.
type Player struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	UpdatedAt   int64   `json:"updated_at"`
}

// RoomState is the authoritative view clients reconverge on.
type RoomState struct {
	RoomId       string   `json:"room_id"`
	VideoURL     string   `json:"video_url"`
	Participants []string `json:"participants"`
	ReadyCount   int      `json:"ready_count"`
	Started      bool     `json:"started"`
	Player       Player   `json:"player"`
}
