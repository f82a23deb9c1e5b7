package testutil

import (
	"fmt"
	"sync"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// SequentialUUIDGenerator generates well-formed, predictable document uuids:
// 00000000-0000-4000-8000-000000000001, ...-000000000002, and so on.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario run twice assigns the same uuids in the same order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialUUIDGenerator struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialUUIDGenerator creates a generator whose first uuid ends in 1.
func NewSequentialUUIDGenerator() *SequentialUUIDGenerator {
	return &SequentialUUIDGenerator{}
}

// Generate returns the next uuid.
//
// Implements backend.UUIDGenerator.
func (g *SequentialUUIDGenerator) Generate() model.DocumentUuid {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return SequentialUUID(g.n)
}

// SequentialUUID returns the n-th uuid a SequentialUUIDGenerator produces.
func SequentialUUID(n uint64) model.DocumentUuid {
	return model.DocumentUuid(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
}
