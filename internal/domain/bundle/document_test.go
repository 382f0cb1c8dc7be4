package bundle

import (
	"errors"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

func parseDocument(t *testing.T, doc string) *html.Node {
	t.Helper()
	root, err := htmlquery.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return root
}

func TestAssemble(t *testing.T) {
	cdn := DefaultCDN()
	program := `(function () { var s = "</script><script>alert(1)</script>"; })();`

	doc, err := Assemble(DocumentInput{
		Title:   "<b>Tom</b> & Jerry",
		Entry:   "page",
		Styles:  "body{color:red}</style><script>alert(2)</script>",
		Program: program,
		CDN:     cdn,
	})
	require.NoError(t, err)
	root := parseDocument(t, doc)

	title := htmlquery.FindOne(root, "//title")
	require.NotNil(t, title)
	assert.Equal(t, "Tom & Jerry", htmlquery.InnerText(title))

	deps := htmlquery.Find(root, "//head/script[@src]")
	require.Len(t, deps, 4)
	for i, want := range cdn.Dependencies() {
		assert.Equal(t, want.URL, htmlquery.SelectAttr(deps[i], "src"))
		assert.Equal(t, want.Name, htmlquery.SelectAttr(deps[i], "data-dependency"))
		assert.Contains(t, htmlquery.SelectAttr(deps[i], "onerror"), "__previewDependencyFailed")
	}

	// Only the prelude, the program and the bootstrap are inline.
	inline := htmlquery.Find(root, "//script[not(@src)]")
	assert.Len(t, inline, 3)

	embedded := htmlquery.FindOne(root, "//script[@id='preview-program']")
	require.NotNil(t, embedded)
	assert.Equal(t, "application/json", htmlquery.SelectAttr(embedded, "type"))
	var decoded string
	require.NoError(t, sonic.UnmarshalString(htmlquery.InnerText(embedded), &decoded))
	assert.Equal(t, program, decoded)

	bootstrap := htmlquery.FindOne(root, "//script[@id='preview-bootstrap']")
	require.NotNil(t, bootstrap)
	assert.Equal(t, cdn.Compiler, htmlquery.SelectAttr(bootstrap, "data-compiler"))
	assert.Contains(t, htmlquery.InnerText(bootstrap), "Babel.transform")

	styles := htmlquery.FindOne(root, "//style[@id='preview-styles']")
	require.NotNil(t, styles)
	assert.Contains(t, htmlquery.InnerText(styles), `body{color:red}<\/style>`)

	assert.NotNil(t, htmlquery.FindOne(root, "//body/div[@id='root']"))
	assert.NotNil(t, htmlquery.FindOne(root, "//div[@id='preview-error'][@hidden]"))
	assert.NotNil(t, htmlquery.FindOne(root, "//meta[@name='preview-entry'][@content='page']"))
}

func TestAssembleStyleCloseAnyCase(t *testing.T) {
	for _, tag := range []string{"</style>", "</STYLE>", "</Style>", "</sTyLe >"} {
		t.Run(tag, func(t *testing.T) {
			doc, err := Assemble(DocumentInput{
				Title:   "x",
				Entry:   "page",
				Styles:  "p{margin:0}" + tag + "<script id=\"escaped\">alert(3)</script>",
				Program: "(function () {})();",
				CDN:     DefaultCDN(),
			})
			require.NoError(t, err)
			root := parseDocument(t, doc)

			assert.Nil(t, htmlquery.FindOne(root, "//script[@id='escaped']"))
			styles := htmlquery.FindOne(root, "//style[@id='preview-styles']")
			require.NotNil(t, styles)
			assert.Contains(t, htmlquery.InnerText(styles), `p{margin:0}<\/`+tag[2:])
		})
	}
}

func TestAssembleSelfContained(t *testing.T) {
	doc, err := Assemble(DocumentInput{Title: "x", Program: "1", CDN: DefaultCDN()})
	require.NoError(t, err)
	root := parseDocument(t, doc)

	for _, node := range htmlquery.Find(root, "//*[@src or @href]") {
		for _, attr := range []string{"src", "href"} {
			if v := htmlquery.SelectAttr(node, attr); v != "" {
				assert.True(t, strings.HasPrefix(v, "https://"), "non-CDN reference %q", v)
			}
		}
	}
}

func TestAssembleRequiresCompiler(t *testing.T) {
	_, err := Assemble(DocumentInput{Title: "x"})
	assert.Error(t, err)
}

func TestAssembleDefaultTitle(t *testing.T) {
	doc, err := Assemble(DocumentInput{Title: "<script></script>", CDN: DefaultCDN()})
	require.NoError(t, err)
	title := htmlquery.FindOne(parseDocument(t, doc), "//title")
	assert.Equal(t, DefaultTitle, htmlquery.InnerText(title))
}

func TestAssembleFailure(t *testing.T) {
	pe := newPreconditionError(ErrNoRenderableComponent, []types.SourceFile{
		{Path: "app/globals.css", Content: "body{}", Language: types.LanguageCSS},
		{Path: "README <b>.md", Content: "hello world", Language: types.LanguageOther},
	})

	doc, err := AssembleFailure("Demo", pe)
	require.NoError(t, err)
	root := parseDocument(t, doc)

	heading := htmlquery.FindOne(root, "//h1")
	assert.Equal(t, "No renderable component found", htmlquery.InnerText(heading))

	rows := htmlquery.Find(root, "//tr[@class='preview-file']")
	require.Len(t, rows, 2)
	assert.Equal(t, "app/globals.css", htmlquery.InnerText(htmlquery.FindOne(rows[0], "./td[@class='path']")))
	assert.Equal(t, "6 B", htmlquery.InnerText(htmlquery.FindOne(rows[0], "./td[@class='size']")))
	assert.Equal(t, "README <b>.md", htmlquery.InnerText(htmlquery.FindOne(rows[1], "./td[@class='path']")))
	assert.Equal(t, "11 B", htmlquery.InnerText(htmlquery.FindOne(rows[1], "./td[@class='size']")))

	assert.NotNil(t, htmlquery.FindOne(root, "//button[@id='preview-retry']"))
}

func TestAssembleFailureRequiresError(t *testing.T) {
	_, err := AssembleFailure("x", nil)
	assert.Error(t, err)
}

func TestPreconditionError(t *testing.T) {
	var err error = newPreconditionError(ErrNoFiles, nil)
	assert.True(t, errors.Is(err, ErrNoFiles))
	pe, ok := AsPrecondition(err)
	require.True(t, ok)
	assert.Empty(t, pe.Files)
	assert.Equal(t, "no files (0 files)", err.Error())
}
