package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a random id with the given prefix.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GenerateRequestID returns an id for correlating a signaling request with its ack.
func GenerateRequestID() string {
	return uuid.NewString()
}

func GeneratePublisherID() string {
	return GenerateID("pub")
}

func GenerateSubscriberID() string {
	return GenerateID("sub")
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
