package backend

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// UUIDGenerator generates surrogate keys for new documents.
// Implemented by UUIDv7Generator (production) and
// testutil.SequentialUUIDGenerator (tests).
type UUIDGenerator interface {
	Generate() model.DocumentUuid
}

// UUIDv7Generator generates time-sortable UUIDv7 document uuids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() model.DocumentUuid {
	return model.DocumentUuid(uuid.Must(uuid.NewV7()).String())
}

// IsValidDocumentUuid reports whether s parses as a UUID.
func IsValidDocumentUuid(s model.DocumentUuid) bool {
	_, err := uuid.Parse(string(s))
	return err == nil
}

// LockTokenGenerator generates the values written into referenced
// documents' lock marker. Tokens only need to differ between writes.
type LockTokenGenerator interface {
	Generate() string
}

// ULIDGenerator generates monotonic ULID lock tokens.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a ULID generator backed by crypto/rand with
// monotonic entropy.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
