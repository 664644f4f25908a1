package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"plain answer", false},
		{"# heading\n\n- item", false},
		{"a < b and c > d", false},
		{"<p>hello</p>", true},
		{"line<br/>break", true},
		{"<DIV class=\"x\">y</DIV>", true},
		{"<ul><li>one</li></ul>", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeHTML(tt.in))
		})
	}
}

func TestConvert_Page(t *testing.T) {
	page := `<html><head><title>Launch plan</title><style>p{color:red}</style></head>
<body>
<nav><a href="/">Home</a></nav>
<main>
<h2>Goals</h2>
<p>Ship <strong>v1</strong> by June.</p>
<ul><li>beta</li><li>release</li></ul>
</main>
<footer>copyright</footer>
<script>alert(1)</script>
</body></html>`

	res, err := NewConverter().Convert([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, "Launch plan", res.Title)
	assert.Contains(t, res.Markdown, "## Goals")
	assert.Contains(t, res.Markdown, "Ship **v1** by June.")
	assert.Contains(t, res.Markdown, "- beta")
	assert.NotContains(t, res.Markdown, "Home")
	assert.NotContains(t, res.Markdown, "copyright")
	assert.NotContains(t, res.Markdown, "alert")
	assert.NotContains(t, res.Markdown, "color:red")
}

func TestConvert_TitleFromHeading(t *testing.T) {
	res, err := NewConverter().Convert([]byte(`<h1>Research notes</h1><p>body</p>`))
	require.NoError(t, err)
	assert.Equal(t, "Research notes", res.Title)
	assert.Contains(t, res.Markdown, "# Research notes")
}

func TestNormalize(t *testing.T) {
	c := NewConverter()

	assert.Equal(t, "already markdown", c.Normalize("  already markdown \n"))
	assert.Equal(t, "**bold** answer", c.Normalize("<p><b>bold</b> answer</p>"))

	out := c.Normalize("<p>one</p>\n\n\n\n<p>two</p>")
	assert.Equal(t, "one\n\ntwo", out)
}
