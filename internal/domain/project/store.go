// Package project persists the files a preview is built from.
package project

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// ErrNotFound is returned when a project does not exist
var ErrNotFound = errors.New("project not found")

// Store defines operations for persisting project snapshots. Get returns
// files in their persisted order.
type Store interface {
	List(ctx context.Context) ([]types.ProjectMetadata, error)
	Get(ctx context.Context, id string) (*types.Project, error)
	Put(ctx context.Context, project *types.Project) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps projects in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*types.Project
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*types.Project),
		now:      time.Now,
	}
}

func (s *MemoryStore) List(_ context.Context) ([]types.ProjectMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ProjectMetadata, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.ToMetadata())
	}
	sortMetadata(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s *MemoryStore) Put(_ context.Context, project *types.Project) error {
	if err := utils.ValidateProject(project); err != nil {
		return err
	}
	p := clone(project)
	p.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	project.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func clone(p *types.Project) *types.Project {
	c := *p
	c.Files = append([]types.SourceFile(nil), p.Files...)
	return &c
}

// sortMetadata orders most recently updated first, then by id
func sortMetadata(list []types.ProjectMetadata) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
