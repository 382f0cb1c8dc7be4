package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/project"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// DefaultCacheSize is the number of assembled documents kept in memory
const DefaultCacheSize = 256

// ErrVerifyUnavailable is returned by Verify when no sandbox host is set
var ErrVerifyUnavailable = errors.New("headless verification is not configured")

// Options configures a Service. Every field is optional.
type Options struct {
	CacheSize int
	Host      *sandbox.Host
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Build is one pipeline result for a project snapshot
type Build struct {
	Project types.ProjectMetadata
	Digest  string
	Result  *bundle.Result
	Cached  bool
}

// Verification is the outcome of running a document headlessly
type Verification struct {
	ProjectID string            `json:"project_id"`
	Digest    string            `json:"digest"`
	Entry     string            `json:"entry"`
	Outcome   sandbox.Outcome   `json:"outcome"`
	Snapshot  *sandbox.Snapshot `json:"snapshot,omitempty"`
}

// Service turns persisted projects into preview documents. Documents are
// cached by snapshot digest, so an edit always misses.
type Service struct {
	store   project.Store
	builder *bundle.Builder
	host    *sandbox.Host
	cache   *lru.Cache[string, *bundle.Result]
	hasher  *utils.Hasher
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	latest map[string]string // project id -> last built digest
}

// NewService creates a preview service
func NewService(store project.Store, builder *bundle.Builder, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("project store is required")
	}
	if builder == nil {
		builder = bundle.NewBuilder(bundle.DefaultOptions())
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *bundle.Result](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   store,
		builder: builder,
		host:    opts.Host,
		cache:   cache,
		hasher:  utils.DefaultHasher(),
		metrics: opts.Metrics,
		logger:  logger,
		latest:  make(map[string]string),
	}, nil
}

// Builder returns the pipeline the service runs
func (s *Service) Builder() *bundle.Builder {
	return s.builder
}

// Load fetches a project from the store
func (s *Service) Load(ctx context.Context, projectID string) (*types.Project, error) {
	return s.store.Get(ctx, projectID)
}

// Build loads a project and runs the pipeline
func (s *Service) Build(ctx context.Context, projectID string) (*Build, error) {
	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Compile(p)
}

// Compile runs the pipeline for a snapshot, reusing a cached result when
// the snapshot digest has been built before
func (s *Service) Compile(p *types.Project) (*Build, error) {
	digest := s.hasher.HashFiles(p.Title, p.Files)
	meta := p.ToMetadata()

	if res, ok := s.cache.Get(digest); ok {
		s.recordCache(true)
		return &Build{Project: meta, Digest: digest, Result: res, Cached: true}, nil
	}
	s.recordCache(false)

	timer := monitoring.NewTimer()
	res, err := s.builder.Build(p)
	elapsed := timer.Elapsed()
	if err != nil {
		result := "error"
		if _, ok := bundle.AsPrecondition(err); ok {
			result = "precondition"
		}
		s.recordBuild(result, elapsed, nil)
		s.logger.Info("Build aborted",
			zap.String("project_id", p.ID),
			zap.Int("files", len(p.Files)),
			zap.Error(err))
		return nil, err
	}
	s.recordBuild("success", elapsed, res)

	s.cache.Add(digest, res)
	s.mu.Lock()
	if prev, ok := s.latest[p.ID]; ok && prev != digest {
		s.cache.Remove(prev)
	}
	s.latest[p.ID] = digest
	s.mu.Unlock()

	s.logger.Debug("Built preview",
		zap.String("project_id", p.ID),
		zap.String("entry", res.Entry),
		zap.Int("modules", len(res.Modules)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", elapsed))
	return &Build{Project: meta, Digest: digest, Result: res}, nil
}

// Document returns the assembled document for a project. When the build
// fails a precondition, the failure panel is returned together with the
// *bundle.PreconditionError.
func (s *Service) Document(ctx context.Context, projectID string) (string, error) {
	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	b, err := s.Compile(p)
	if err != nil {
		if pe, ok := bundle.AsPrecondition(err); ok {
			panel, perr := bundle.AssembleFailure(p.Title, pe)
			if perr != nil {
				return "", perr
			}
			return panel, err
		}
		return "", err
	}
	return b.Result.Document, nil
}

// Verify builds a project and executes the document in a headless
// frame, waiting for its terminal signal or the fallback timer
func (s *Service) Verify(ctx context.Context, projectID string) (*Verification, error) {
	if s.host == nil {
		return nil, ErrVerifyUnavailable
	}
	b, err := s.Build(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, projectID, b)
}

// Execute runs an already built document headlessly
func (s *Service) Execute(ctx context.Context, projectID string, b *Build) (*Verification, error) {
	if s.host == nil {
		return nil, ErrVerifyUnavailable
	}
	session, err := s.host.Render(ctx, b.Result.Document)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("Failed to close frame", zap.String("render_id", session.ID.String()), zap.Error(err))
		}
	}()

	outcome, err := session.Wait(ctx)
	if err != nil {
		return nil, err
	}
	s.RecordOutcome(outcome, "headless")

	v := &Verification{
		ProjectID: projectID,
		Digest:    b.Digest,
		Entry:     b.Result.Entry,
		Outcome:   outcome,
	}
	if snap, ok := session.Frame().(sandbox.Snapshotter); ok {
		// The frame is still writing after a timeout
		if !outcome.TimedOut {
			shot := snap.Snapshot()
			v.Snapshot = &shot
		}
	}

	s.logger.Info("Verified preview",
		zap.String("project_id", projectID),
		zap.String("render_id", outcome.RenderID.String()),
		zap.String("state", string(outcome.State)),
		zap.Bool("timed_out", outcome.TimedOut))
	return v, nil
}

// RecordOutcome feeds a render outcome into the metrics
func (s *Service) RecordOutcome(o sandbox.Outcome, source string) {
	if s.metrics == nil {
		return
	}
	if o.Signal != nil {
		s.metrics.RecordSignal(string(o.Signal.Kind), source, o.Duration)
	}
	if o.TimedOut {
		s.metrics.RecordTimeout()
	}
	if o.Late {
		s.metrics.RecordLateSignal()
	}
}

// Invalidate drops the cached document of a project
func (s *Service) Invalidate(projectID string) {
	s.mu.Lock()
	digest, ok := s.latest[projectID]
	delete(s.latest, projectID)
	s.mu.Unlock()

	if ok {
		s.cache.Remove(digest)
		s.logger.Debug("Invalidated preview", zap.String("project_id", projectID))
	}
}

// Cached reports how many documents are cached
func (s *Service) Cached() int {
	return s.cache.Len()
}

func (s *Service) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache(hit)
	}
}

func (s *Service) recordBuild(result string, d time.Duration, res *bundle.Result) {
	if s.metrics == nil {
		return
	}
	if res == nil {
		s.metrics.RecordBuild(result, d, 0, 0, 0)
		return
	}
	s.metrics.RecordBuild(result, d, len(res.Modules), len(res.Warnings), len(res.Document))
}
