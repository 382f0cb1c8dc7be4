package preview

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPage(t *testing.T) {
	page, err := HostPage(PageConfig{
		Title:         `Shop <script>alert(1)</script> & Co`,
		DocumentURL:   "/api/projects/shop/document",
		SocketURL:     "/ws/projects/shop",
		SignalTimeout: 3 * time.Second,
	})
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "Shop  & Co", doc.Find("title").Text())
	assert.Equal(t, 0, doc.Find("iframe").Length(), "frames are created per render")
	assert.Equal(t, 1, doc.Find("#preview-retry").Length())

	var cfg map[string]interface{}
	require.NoError(t, sonic.UnmarshalString(doc.Find("#preview-config").Text(), &cfg))
	assert.Equal(t, "/api/projects/shop/document", cfg["documentURL"])
	assert.Equal(t, "/ws/projects/shop", cfg["socketURL"])
	assert.Equal(t, float64(3000), cfg["signalTimeout"])
	assert.NotContains(t, cfg, "signalURL")

	assert.Contains(t, page, `'allow-scripts allow-same-origin'`)
	assert.NotContains(t, page, "<script>alert(1)</script>")
}

func TestHostPageDefaults(t *testing.T) {
	page, err := HostPage(PageConfig{DocumentURL: "/d/x/document", SignalURL: "/api/deployments/x/signal"})
	require.NoError(t, err)
	assert.Contains(t, page, "<title>Preview</title>")
	assert.Contains(t, page, `"signalTimeout":5000`)

	_, err = HostPage(PageConfig{})
	assert.Error(t, err)
}

func TestHostPageBuildFailureSkipsTimer(t *testing.T) {
	page, err := HostPage(PageConfig{DocumentURL: "/api/projects/x/document", SocketURL: "/ws/projects/x"})
	require.NoError(t, err)

	assert.Contains(t, page, "res.status === 422")
	assert.Contains(t, page, "mount(html, failed)")

	branch := strings.Index(page, "if (failed) {")
	relay := strings.Index(page, "signal: { kind: 'error', message: 'project cannot be built' }")
	timer := strings.Index(page, "run.timer = setTimeout")
	require.NotEqual(t, -1, branch)
	require.NotEqual(t, -1, relay)
	require.NotEqual(t, -1, timer)
	assert.Less(t, branch, relay, "failure is relayed as an error signal")
	assert.Less(t, relay, timer, "fallback timer is only armed for renderable documents")
}
