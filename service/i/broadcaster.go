package i

// Broadcaster fans room events out to the connections subscribed to a room.
type Broadcaster interface {
	// Subscribe adds the connection to the room's audience.
	Subscribe(roomCode string, connID string)

	// Unsubscribe removes the connection from the room's audience.
	Unsubscribe(roomCode string, connID string)

	// Broadcast delivers an already encoded event to every subscriber of the room.
	Broadcast(roomCode string, msg []byte)
}

// Publisher mirrors encoded room events to an external channel.
// Implementations must not block the caller.
type Publisher interface {
	Publish(roomCode string, msg []byte)
}
