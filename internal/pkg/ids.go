package pkg

import "github.com/google/uuid"

// GenerateConnectionID - names one WebSocket connection in logs and the hub.
func GenerateConnectionID() string {
	return uuid.NewString()
}
