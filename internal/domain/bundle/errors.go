package bundle

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

var (
	ErrNoFiles               = errors.New("no files")
	ErrNoRenderableComponent = errors.New("no renderable component found")
)

// FileSummary describes one input file in a precondition report
type FileSummary struct {
	Path     string         `json:"path"`
	Language types.Language `json:"language"`
	Size     int            `json:"size"`
}

// PreconditionError aborts a build before any sandbox is created. It
// carries the full file listing so the failure can be debugged.
type PreconditionError struct {
	Reason error
	Files  []FileSummary
}

func newPreconditionError(reason error, files []types.SourceFile) *PreconditionError {
	summaries := make([]FileSummary, len(files))
	for i, f := range files {
		summaries[i] = FileSummary{Path: f.Path, Language: f.Language, Size: f.Size()}
	}
	return &PreconditionError{Reason: reason, Files: summaries}
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v (%d files)", e.Reason, len(e.Files))
}

func (e *PreconditionError) Unwrap() error {
	return e.Reason
}

// AsPrecondition extracts a PreconditionError from err
func AsPrecondition(err error) (*PreconditionError, bool) {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
