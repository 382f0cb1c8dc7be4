// Package id generates the identifiers used across the preview service.
//
// IDs are ULIDs with a short type prefix (prj_*, rnd_*, dep_*, cli_*, trc_*):
// lexicographically sortable by creation time and readable in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProjectID identifies a persisted project
type ProjectID string

// RenderID identifies one render of a document into a fresh sandbox
type RenderID string

// DeploymentID identifies a permanent deployment
type DeploymentID string

// ClientID identifies a websocket client
type ClientID string

// TraceID identifies one traced request or render
type TraceID string

const (
	ProjectPrefix    = "prj"
	RenderPrefix     = "rnd"
	DeploymentPrefix = "dep"
	ClientPrefix     = "cli"
	TracePrefix      = "trc"
	SpanPrefix       = "spn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

func NewProjectID() ProjectID {
	return ProjectID(Default().GenerateWithPrefix(ProjectPrefix))
}

func NewRenderID() RenderID {
	return RenderID(Default().GenerateWithPrefix(RenderPrefix))
}

func NewDeploymentID() DeploymentID {
	return DeploymentID(Default().GenerateWithPrefix(DeploymentPrefix))
}

func NewClientID() ClientID {
	return ClientID(Default().GenerateWithPrefix(ClientPrefix))
}

func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewSpanID returns a span identifier
func NewSpanID() string {
	return Default().GenerateWithPrefix(SpanPrefix)
}

func (id ProjectID) String() string    { return string(id) }
func (id RenderID) String() string     { return string(id) }
func (id DeploymentID) String() string { return string(id) }
func (id ClientID) String() string     { return string(id) }
func (id TraceID) String() string      { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a type prefix if present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
