package domain

// One relay channel per concern per room.

func SyncChannel(roomId string) string {
	return "sync." + roomId
}

func UsersStartedChannel(roomId string) string {
	return "users-started." + roomId
}

func UsersJoinedChannel(roomId string) string {
	return "users-joined." + roomId
}

func UsersLeftChannel(roomId string) string {
	return "users-left." + roomId
}

func WebRTCChannel(roomId string) string {
	return "webrtc." + roomId
}
