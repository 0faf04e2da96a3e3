// Package rng implements ports.RNGPort on PCG generators from math/rand/v2.
package rng

import (
	"context"
	"math/rand/v2"
)

// SeededAdapter hands out independent PCG streams derived from a base seed
type SeededAdapter struct{}

// NewSeededAdapter creates a new seeded RNG adapter
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

// Stream creates a deterministic RNG stream for a specific stage partition.
// Every key component is hashed into the stream selector so that partitions,
// stages and runs never share a sequence for the same base seed.
func (a *SeededAdapter) Stream(ctx context.Context, runKey, stageName, partitionKey string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selector := hashString(runKey)
	selector = mix(selector ^ hashString(stageName))
	selector = mix(selector ^ hashString(partitionKey))
	return rand.New(rand.NewPCG(mix(uint64(baseSeed)), selector)), nil
}

// hashString is a 64-bit djb2 hash
func hashString(s string) uint64 {
	var hash uint64 = 5381
	for i := 0; i < len(s); i++ {
		hash = hash*33 + uint64(s[i])
	}
	return hash
}

// mix is the splitmix64 finalizer
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
