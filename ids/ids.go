// Package ids generates the opaque identifiers used for views,
// beacons and ad request correlation.
package ids

import (
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// New returns a time-ordered unique id, falling back to a random one
// if UUIDv7 generation fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		log.WithError(err).Warn("failed to generate UUIDv7, falling back to UUIDv4")
		return uuid.New().String()
	}
	return id.String()
}

// Short returns a compact id for high-volume correlation fields where
// a full UUID is wasteful.
func Short() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return raw[:12]
}
