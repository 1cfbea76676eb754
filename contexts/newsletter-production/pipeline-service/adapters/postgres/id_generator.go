package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator mints identifiers for campaigns, articles, and events.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
