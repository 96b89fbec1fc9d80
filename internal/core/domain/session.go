package domain

// Session exists iff the connection has joined exactly one room.
type Session struct {
	ConnID ConnID
	UserID UserID
	Name   string
	RoomID RoomID
}
