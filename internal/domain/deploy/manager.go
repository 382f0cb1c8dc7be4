package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// ErrNotFound is returned when a deployment does not exist
var ErrNotFound = errors.New("deployment not found")

const (
	documentFile = "index.html"
	metadataFile = "deployment.json"
	slugLength   = 12
)

// Input is what gets published
type Input struct {
	ProjectID string
	Title     string
	Entry     string
	Digest    string
	Document  string
}

// Manager publishes documents under permanent slugs and tracks the last
// status their sandbox reported
type Manager struct {
	artifacts ArtifactStore
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	bySlug map[string]*types.Deployment
}

// NewManager creates a manager. metrics may be nil.
func NewManager(artifacts ArtifactStore, metrics *monitoring.Metrics, logger *zap.Logger) *Manager {
	if artifacts == nil {
		artifacts = NewMemoryArtifacts()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		artifacts: artifacts,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		bySlug:    make(map[string]*types.Deployment),
	}
}

// Deploy stores the document and registers a pending deployment
func (m *Manager) Deploy(ctx context.Context, in Input) (*types.Deployment, error) {
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if in.Document == "" {
		return nil, fmt.Errorf("document is required")
	}

	now := m.now()
	d := &types.Deployment{
		ID:        id.NewDeploymentID().String(),
		Slug:      m.newSlug(),
		ProjectID: in.ProjectID,
		Title:     in.Title,
		Entry:     in.Entry,
		Digest:    in.Digest,
		Status:    types.DeploymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.artifacts.Put(ctx, key(d.Slug, documentFile), []byte(in.Document), "text/html; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := m.persist(ctx, d); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.bySlug[d.Slug] = d
	m.mu.Unlock()

	m.record(d.Status)
	m.logger.Info("Deployed project",
		zap.String("project_id", d.ProjectID),
		zap.String("slug", d.Slug),
		zap.String("digest", d.Digest))
	out := *d
	return &out, nil
}

// Get returns a deployment by slug, loading it from the artifact store
// when it is not indexed in memory
func (m *Manager) Get(ctx context.Context, slug string) (*types.Deployment, error) {
	d, err := m.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := *d
	return &out, nil
}

// List returns indexed deployments, newest first
func (m *Manager) List(projectID string) []types.Deployment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Deployment, 0, len(m.bySlug))
	for _, d := range m.bySlug {
		if projectID == "" || d.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// Document returns the published document
func (m *Manager) Document(ctx context.Context, slug string) (string, error) {
	if _, err := m.lookup(ctx, slug); err != nil {
		return "", err
	}
	b, err := m.artifacts.Get(ctx, key(slug, documentFile))
	if errors.Is(err, ErrArtifactNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load document: %w", err)
	}
	return string(b), nil
}

// Apply folds a signal reported by a sandboxed render into the
// deployment status. The most recent report wins.
func (m *Manager) Apply(ctx context.Context, slug string, sig types.ExecutionSignal) (*types.Deployment, error) {
	if _, err := m.lookup(ctx, slug); err != nil {
		return nil, err
	}

	m.mu.Lock()
	d := m.bySlug[slug]
	prev := d.Status
	d.Apply(sig, m.now())
	out := *d
	m.mu.Unlock()

	if err := m.persist(ctx, &out); err != nil {
		return nil, err
	}
	if out.Status != prev {
		m.record(out.Status)
		m.logger.Info("Deployment status changed",
			zap.String("slug", slug),
			zap.String("from", string(prev)),
			zap.String("to", string(out.Status)),
			zap.String("error", out.Error))
	}
	return &out, nil
}

// Delete removes a deployment and its artifacts
func (m *Manager) Delete(ctx context.Context, slug string) error {
	if _, err := m.lookup(ctx, slug); err != nil {
		return err
	}
	for _, name := range []string{documentFile, metadataFile} {
		if err := m.artifacts.Delete(ctx, key(slug, name)); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	m.mu.Lock()
	delete(m.bySlug, slug)
	m.mu.Unlock()
	return nil
}

func (m *Manager) lookup(ctx context.Context, slug string) (*types.Deployment, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" || strings.ContainsAny(slug, "/\\.") {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	d, ok := m.bySlug[slug]
	m.mu.RUnlock()
	if ok {
		return d, nil
	}

	raw, err := m.artifacts.Get(ctx, key(slug, metadataFile))
	if errors.Is(err, ErrArtifactNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment: %w", err)
	}
	var loaded types.Deployment
	if err := sonic.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("failed to decode deployment: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.bySlug[slug]; ok {
		return existing, nil
	}
	m.bySlug[slug] = &loaded
	return &loaded, nil
}

func (m *Manager) persist(ctx context.Context, d *types.Deployment) error {
	raw, err := sonic.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode deployment: %w", err)
	}
	if err := m.artifacts.Put(ctx, key(d.Slug, metadataFile), raw, "application/json"); err != nil {
		return fmt.Errorf("failed to store deployment: %w", err)
	}
	return nil
}

func (m *Manager) newSlug() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for {
		slug := strings.ReplaceAll(uuid.NewString(), "-", "")[:slugLength]
		if _, taken := m.bySlug[slug]; !taken {
			return slug
		}
	}
}

func (m *Manager) record(status types.DeploymentStatus) {
	if m.metrics != nil {
		m.metrics.RecordDeployment(string(status))
	}
}

func key(slug, name string) string {
	return slug + "/" + name
}
