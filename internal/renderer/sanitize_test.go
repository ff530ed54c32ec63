package renderer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeGradientsRewritesURLRefs(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg">
<defs><linearGradient id="g1"><stop offset="0" stop-color="#112233"/><stop offset="1" stop-color="#445566"/></linearGradient></defs>
<rect width="10" height="10" fill="url(#g1)"/>
</svg>`)

	out, changed := sanitizeGradients(svg)
	assert.True(t, changed)
	s := string(out)
	assert.Contains(t, s, `fill="#112233"`)
	assert.NotContains(t, s, "url(#g1)")
}

func TestSanitizeGradientsStyleStopColor(t *testing.T) {
	svg := []byte(`<svg><radialGradient id="r"><stop style="stop-color: #abcdef; stop-opacity:1"/></radialGradient><circle fill="url(#r)"/></svg>`)

	out, changed := sanitizeGradients(svg)
	assert.True(t, changed)
	assert.Contains(t, string(out), `fill="#abcdef"`)
}

func TestSanitizeGradientsDefaultColor(t *testing.T) {
	svg := []byte(`<svg><linearGradient id="empty"></linearGradient><rect fill="url(#empty)"/></svg>`)

	out, changed := sanitizeGradients(svg)
	assert.True(t, changed)
	assert.Contains(t, string(out), `fill="#808080"`)
}

func TestSanitizeGradientsNoGradient(t *testing.T) {
	svg := []byte(`<svg><rect fill="#ff0000"/></svg>`)

	out, changed := sanitizeGradients(svg)
	assert.False(t, changed)
	assert.Equal(t, svg, out)
}

func TestHasRasterImage(t *testing.T) {
	assert.True(t, hasRasterImage([]byte(`<svg><image href="pic.png"/></svg>`)))
	assert.False(t, hasRasterImage([]byte(`<svg><rect/></svg>`)))
}

func TestLocalizeImagesInline(t *testing.T) {
	dir := t.TempDir()
	// minimal PNG header so detection yields an image mimetype
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), png, 0o644))

	svg := []byte(`<svg><image xlink:href="pic.png" width="10" height="10"/></svg>`)
	out := localizeImages(svg, dir, "", true)
	assert.Contains(t, string(out), "data:image/png;base64,")
	assert.NotContains(t, string(out), `"pic.png"`)
}

func TestLocalizeImagesCacheCopy(t *testing.T) {
	dir := t.TempDir()
	cache := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), []byte("fake"), 0o644))

	svg := []byte(`<svg><image href="pic.png"/></svg>`)
	out := localizeImages(svg, dir, cache, false)
	assert.Contains(t, string(out), cache)

	copied, err := os.ReadFile(filepath.Join(cache, "pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "fake", string(copied))
}

func TestLocalizeImagesRejectsEscapingPath(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "assets")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.png"), []byte("secret"), 0o644))

	svg := []byte(`<svg><image href="../secret.png"/></svg>`)
	out := localizeImages(svg, dir, "", true)
	assert.Equal(t, svg, out, "escaping reference must be left untouched")
	assert.False(t, strings.Contains(string(out), "secret.png") && strings.Contains(string(out), "data:"))
}

func TestLocalizeImagesLeavesAbsoluteAndRemoteRefs(t *testing.T) {
	dir := t.TempDir()
	svg := []byte(`<svg><image href="https://example.com/pic.png"/><image href="data:image/png;base64,AA=="/></svg>`)
	out := localizeImages(svg, dir, "", true)
	assert.Equal(t, svg, out)
}
