package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTitleAndBody(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><head><title> Sample Page </title></head>
<body><h1>Heading</h1><p>First paragraph.</p></body></html>`)

	title, body, err := NewExtractor().Extract(html)
	require.NoError(t, err)
	require.Equal(t, "Sample Page", title)
	require.Contains(t, body, "Heading")
	require.Contains(t, body, "First paragraph.")
}

func TestExtractRemovesNoiseElements(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body>
<p>visible text</p>
<a href="/x">link text</a>
<script>var hidden = 1;</script>
<form><input value="field"></form>
<i>italic noise</i>
<textarea>textarea content</textarea>
<iframe src="/f">frame body</iframe>
<footer>footer text</footer>
</body></html>`)

	_, body, err := NewExtractor().Extract(html)
	require.NoError(t, err)
	require.Contains(t, body, "visible text")
	require.NotContains(t, body, "link text")
	require.NotContains(t, body, "hidden")
	require.NotContains(t, body, "italic noise")
	require.NotContains(t, body, "textarea content")
	require.NotContains(t, body, "footer text")
}

func TestExtractMissingTitle(t *testing.T) {
	t.Parallel()

	title, body, err := NewExtractor().Extract([]byte(`<html><body><p>no title here</p></body></html>`))
	require.NoError(t, err)
	require.Empty(t, title)
	require.Contains(t, body, "no title here")
}

func TestExtractEmptyDocument(t *testing.T) {
	t.Parallel()

	title, body, err := NewExtractor().Extract([]byte(""))
	require.NoError(t, err)
	require.Empty(t, title)
	require.Empty(t, body)
}
