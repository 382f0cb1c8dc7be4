package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// DefaultIgnore is applied to every disk project on top of its manifest
var DefaultIgnore = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.next/**",
	"**/dist/**",
	"**/build/**",
	"**/*.map",
	"**/.DS_Store",
	ManifestYAML,
	ManifestTOML,
}

// DiskStore keeps one directory per project under a root directory
type DiskStore struct {
	root   string
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewDiskStore creates the root directory if needed
func NewDiskStore(root string, logger *zap.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project root: %w", err)
	}
	return &DiskStore{root: abs, logger: logger}, nil
}

// Root returns the absolute root directory
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) dir(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := utils.ValidateID(id, "id", true); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

func (s *DiskStore) List(ctx context.Context) ([]types.ProjectMetadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	out := make([]types.ProjectMetadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := s.Get(ctx, e.Name())
		if err != nil {
			s.logger.Warn("Skipping unreadable project", zap.String("project_id", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, p.ToMetadata())
	}
	sortMetadata(out)
	return out, nil
}

func (s *DiskStore) Get(ctx context.Context, id string) (*types.Project, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	manifest, _, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	ignore := append(append([]string{}, DefaultIgnore...), manifest.Ignore...)

	var (
		mu      sync.Mutex
		files   = map[string]types.SourceFile{}
		updated = info.ModTime()
	)

	// fastwalk invokes the callback concurrently
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignored(rel, ignore) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > utils.MaxFileSize {
			return nil
		}
		content, ok, err := readSource(p)
		if err != nil {
			s.logger.Debug("Skipping file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}

		mu.Lock()
		files[rel] = types.SourceFile{Path: rel, Content: content, Language: types.LanguageFromPath(rel)}
		if fi.ModTime().After(updated) {
			updated = fi.ModTime()
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project: %w", err)
	}

	title := manifest.Title
	if title == "" {
		title = filepath.Base(dir)
	}
	return &types.Project{
		ID:        filepath.Base(dir),
		Title:     title,
		Files:     orderFiles(files, manifest.Files),
		UpdatedAt: updated.UTC(),
	}, nil
}

// Put replaces the project directory. Files are written to a staging
// directory first so readers never observe a half-written project.
func (s *DiskStore) Put(_ context.Context, project *types.Project) error {
	if err := utils.ValidateProject(project); err != nil {
		return err
	}
	dir, err := s.dir(project.ID)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(s.root, ".staging-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	manifest := Manifest{Title: project.Title}
	for _, f := range project.Files {
		rel := filepath.FromSlash(strings.ReplaceAll(f.Path, "\\", "/"))
		target := filepath.Join(staging, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		manifest.Files = append(manifest.Files, filepath.ToSlash(rel))
	}
	if err := writeManifest(staging, manifest); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	project.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *DiskStore) Delete(_ context.Context, id string) error {
	dir, err := s.dir(id)
	if err != nil {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

func ignored(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// orderFiles returns listed paths first, in manifest order, then the rest
// sorted. Listed paths that no longer exist are skipped.
func orderFiles(files map[string]types.SourceFile, listed []string) []types.SourceFile {
	out := make([]types.SourceFile, 0, len(files))
	seen := make(map[string]bool, len(listed))
	for _, p := range listed {
		if f, ok := files[p]; ok && !seen[p] {
			out = append(out, f)
			seen[p] = true
		}
	}

	rest := make([]string, 0, len(files))
	for p := range files {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	for _, p := range rest {
		out = append(out, files[p])
	}
	return out
}

// readSource reads a text file as UTF-8. Binary files report ok=false;
// other encodings are detected and converted.
func readSource(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if len(data) == 0 {
		return "", true, nil
	}
	if !isText(mimetype.Detect(data)) {
		return "", false, nil
	}
	if utf8.Valid(data) {
		return string(data), true, nil
	}
	decoded, err := decode(data)
	if err != nil {
		return "", false, err
	}
	return decoded, true, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func decode(data []byte) (string, error) {
	cs := "windows-1252"
	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil && result != nil {
		cs = strings.ToLower(result.Charset)
	}
	r, err := charset.NewReader(bytes.NewReader(data), "text/plain; charset="+cs)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %s: %w", cs, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
