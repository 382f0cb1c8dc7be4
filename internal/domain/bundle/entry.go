package bundle

import (
	"path"
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// CanonicalEntryPaths are checked first, in order
var CanonicalEntryPaths = []string{
	"app/page.tsx",
	"app/page.jsx",
	"src/app/page.tsx",
	"src/app/page.jsx",
}

var (
	pageBasenames = []string{"page.tsx", "page.jsx"}
	appShellName  = "App"
)

// EntryMatch explains how an entry point was chosen
type EntryMatch string

const (
	EntryCanonical EntryMatch = "canonical"
	EntryPage      EntryMatch = "page"
	EntryAppShell  EntryMatch = "app_shell"
	EntryFirst     EntryMatch = "first"
)

// ResolveEntry picks the component to mount. It searches canonical page
// paths, then any page file, then any file whose name contains the app
// shell name, then falls back to the first component. An empty list
// yields ok=false.
func ResolveEntry(components []types.SourceFile) (types.SourceFile, EntryMatch, bool) {
	if len(components) == 0 {
		return types.SourceFile{}, "", false
	}
	for _, canonical := range CanonicalEntryPaths {
		for _, f := range components {
			if cleanPath(f.Path) == canonical {
				return f, EntryCanonical, true
			}
		}
	}
	for _, f := range components {
		base := path.Base(cleanPath(f.Path))
		for _, page := range pageBasenames {
			if base == page {
				return f, EntryPage, true
			}
		}
	}
	for _, f := range components {
		if strings.Contains(path.Base(cleanPath(f.Path)), appShellName) {
			return f, EntryAppShell, true
		}
	}
	return components[0], EntryFirst, true
}
