package protocol

// REST bodies of the room-creation boundary.

type CreateRoomRequest struct {
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`
}

type CreateRoomResponse struct {
	RoomID  string `json:"roomId"`
	JoinURL string `json:"joinUrl"`
}

type RoomInfo struct {
	RoomID           string `json:"roomId"`
	HostName         string `json:"hostName"`
	ParticipantCount int    `json:"participantCount"`
	IsActive         bool   `json:"isActive"`
}

type APIError struct {
	Error string `json:"error"`
}
