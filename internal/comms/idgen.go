package comms

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator allocates identifiers for terminals, messages, alerts
// and responders. It is injected so tests can assert on ids
// deterministically.
type IDGenerator interface {
	NewID(prefix string) string
}

// NewUUIDGenerator returns the production generator: prefix plus a
// random UUID.
func NewUUIDGenerator() IDGenerator { return uuidGenerator{} }

type uuidGenerator struct{}

func (uuidGenerator) NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// SequentialIDGenerator allocates prefix-1, prefix-2, ... per prefix.
// Intended for tests.
type SequentialIDGenerator struct {
	mu   sync.Mutex
	next map[string]int
}

// NewSequentialIDGenerator creates a fresh sequential generator.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{next: make(map[string]int)}
}

// NewID returns the next id for the prefix.
func (g *SequentialIDGenerator) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.next[prefix])
}
