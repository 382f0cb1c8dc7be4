package preview

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
)

//go:embed templates/host.html.tmpl templates/host.js
var pageFS embed.FS

var (
	hostTmpl    = template.Must(template.ParseFS(pageFS, "templates/host.html.tmpl"))
	hostScript  = mustRead("templates/host.js")
	titleStrict = bluemonday.StrictPolicy()
)

func mustRead(name string) string {
	b, err := pageFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// PageConfig drives the browser host page. DocumentURL is fetched on
// every render; SocketURL enables live reload and signal relay;
// SignalURL receives signals by POST when there is no socket.
type PageConfig struct {
	Title         string        `json:"title"`
	DocumentURL   string        `json:"documentURL"`
	SocketURL     string        `json:"socketURL,omitempty"`
	SignalURL     string        `json:"signalURL,omitempty"`
	SignalTimeout time.Duration `json:"-"`
}

type pageConfigJSON struct {
	PageConfig
	TimeoutMS int64 `json:"signalTimeout"`
}

type pageData struct {
	Title  string
	Config string
	Script string
}

// HostPage renders the page that runs documents in fresh sandboxed
// iframes
func HostPage(cfg PageConfig) (string, error) {
	if cfg.DocumentURL == "" {
		return "", fmt.Errorf("document url is required")
	}
	if cfg.SignalTimeout <= 0 {
		cfg.SignalTimeout = 5 * time.Second
	}
	title := strings.TrimSpace(titleStrict.Sanitize(cfg.Title))
	if title == "" {
		title = bundle.DefaultTitle
	}
	cfg.Title = html.UnescapeString(title)

	raw, err := sonic.ConfigStd.MarshalToString(pageConfigJSON{
		PageConfig: cfg,
		TimeoutMS:  cfg.SignalTimeout.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode page config: %w", err)
	}

	var buf bytes.Buffer
	err = hostTmpl.Execute(&buf, pageData{
		Title:  title,
		Config: raw,
		Script: hostScript,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render host page: %w", err)
	}
	return buf.String(), nil
}
