package sandbox

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Compile turns the TSX program into plain JavaScript the way the
// in-browser compiler does: TypeScript stripped, classic JSX runtime.
func Compile(source, filename string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:      api.LoaderTSX,
		JSX:         api.JSXTransform,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Target:      api.ES2017,
		Sourcefile:  filename,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return "", fmt.Errorf("%s", strings.Join(msgs, "\n"))
	}
	return string(result.Code), nil
}
