package bundle

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"text/template"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.tmpl templates/*.js templates/*.css
var templateFS embed.FS

var (
	documentTmpl = template.Must(template.New("document.html.tmpl").
			Funcs(templateFuncs).
			ParseFS(templateFS, "templates/document.html.tmpl"))
	failureTmpl = template.Must(template.New("failure.html.tmpl").
			Funcs(templateFuncs).
			ParseFS(templateFS, "templates/failure.html.tmpl"))

	baseStyles       = mustRead("templates/base.css")
	preludeSource    = mustRead("templates/prelude.js")
	bootstrapSource  = mustRead("templates/bootstrap.js")
	titlePolicy      = bluemonday.StrictPolicy()
	styleCloseMarker = regexp.MustCompile(`(?i)</(style)`)
)

var templateFuncs = template.FuncMap{
	"attr": html.EscapeString,
	"text": html.EscapeString,
}

func mustRead(name string) string {
	b, err := templateFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// DefaultTitle is used when a project has no usable title
const DefaultTitle = "Preview"

// CDNConfig holds the third-party origins the document loads. The
// defaults track floating major or latest tags.
type CDNConfig struct {
	React    string `json:"react"`
	ReactDOM string `json:"react_dom"`
	Icons    string `json:"icons"`
	Tailwind string `json:"tailwind"`
	Compiler string `json:"compiler"`
}

// DefaultCDN returns the unpinned origins
func DefaultCDN() CDNConfig {
	return CDNConfig{
		React:    "https://unpkg.com/react@18/umd/react.production.min.js",
		ReactDOM: "https://unpkg.com/react-dom@18/umd/react-dom.production.min.js",
		Icons:    "https://unpkg.com/lucide-react@latest/dist/umd/lucide-react.js",
		Tailwind: "https://cdn.tailwindcss.com",
		Compiler: "https://unpkg.com/@babel/standalone/babel.min.js",
	}
}

// Dependency is one external script tag
type Dependency struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Dependencies returns the eagerly loaded scripts in load order. The
// compiler is loaded later by the bootstrap script.
func (c CDNConfig) Dependencies() []Dependency {
	deps := []Dependency{
		{Name: "react", URL: c.React},
		{Name: "react-dom", URL: c.ReactDOM},
		{Name: "lucide-react", URL: c.Icons},
		{Name: "tailwind", URL: c.Tailwind},
	}
	out := deps[:0]
	for _, d := range deps {
		if d.URL != "" {
			out = append(out, d)
		}
	}
	return out
}

// All returns every origin including the compiler
func (c CDNConfig) All() []Dependency {
	return append(c.Dependencies(), Dependency{Name: "compiler", URL: c.Compiler})
}

// DocumentInput is everything the assembler embeds
type DocumentInput struct {
	Title   string
	Entry   string
	Styles  string
	Program string
	MountID string
	CDN     CDNConfig
}

type documentData struct {
	Title        string
	Entry        string
	BaseStyles   string
	Styles       string
	Prelude      string
	Bootstrap    string
	Program      string
	MountID      string
	CompilerURL  string
	Dependencies []Dependency
}

// Assemble builds the self-contained HTML document. It executes nothing.
func Assemble(in DocumentInput) (string, error) {
	if in.CDN.Compiler == "" {
		return "", errors.New("compiler url is required")
	}
	if in.MountID == "" {
		in.MountID = DefaultMountID
	}
	program, err := sonic.ConfigStd.MarshalToString(in.Program)
	if err != nil {
		return "", fmt.Errorf("failed to encode program: %w", err)
	}

	data := documentData{
		Title:        sanitizeTitle(in.Title),
		Entry:        in.Entry,
		BaseStyles:   baseStyles,
		Styles:       styleCloseMarker.ReplaceAllString(in.Styles, `<\/$1`),
		Prelude:      preludeSource,
		Bootstrap:    bootstrapSource,
		Program:      program,
		MountID:      in.MountID,
		CompilerURL:  in.CDN.Compiler,
		Dependencies: in.CDN.Dependencies(),
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

type failureData struct {
	Title   string
	Message string
	Reason  string
	Files   []FileSummary
}

// AssembleFailure renders the precondition failure panel listing every
// file and its size
func AssembleFailure(title string, pe *PreconditionError) (string, error) {
	if pe == nil {
		return "", errors.New("precondition error is required")
	}
	data := failureData{
		Title:   sanitizeTitle(title),
		Message: html.EscapeString(capitalize(pe.Reason.Error())),
		Reason:  pe.Reason.Error(),
		Files:   pe.Files,
	}
	var buf bytes.Buffer
	if err := failureTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render failure panel: %w", err)
	}
	return buf.String(), nil
}

// sanitizeTitle strips markup and returns HTML-escaped text
func sanitizeTitle(title string) string {
	clean := strings.TrimSpace(titlePolicy.Sanitize(title))
	if clean == "" {
		return DefaultTitle
	}
	return clean
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
