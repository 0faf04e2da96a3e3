package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates a deterministic RNG stream for one partition of a stage.
	// Equal arguments yield identical streams; distinct partition keys yield independent ones.
	Stream(ctx context.Context, runKey, stageName, partitionKey string, baseSeed int64) (*rand.Rand, error)
}
