package bundle

import (
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// StyleSeparator joins stylesheet contents
const StyleSeparator = "\n"

// AggregateStyles concatenates stylesheet contents in input order.
// Nothing is deduplicated, scoped or validated.
func AggregateStyles(stylesheets []types.SourceFile) string {
	parts := make([]string, len(stylesheets))
	for i, f := range stylesheets {
		parts[i] = f.Content
	}
	return strings.Join(parts, StyleSeparator)
}
