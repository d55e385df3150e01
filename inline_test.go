package forge

import (
	"encoding/base64"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineAssetsEmbedsDataURIs(t *testing.T) {
	ws := t.TempDir()
	writeThemeAssets(t, ws, "assets/graphics/chicken.png", "assets/audio/click.mp3")
	require.NoError(t, os.WriteFile(path.Join(ws, "assets", "graphics", "chicken.png"), []byte("pngbytes"), 0o644))

	htmlPath := path.Join(ws, "index.html")
	doc := `<html><body>` +
		`<img src="assets/graphics/chicken.png">` +
		`<img src="./assets/graphics/chicken.png">` +
		`<audio src="assets/audio/click.mp3"></audio>` +
		`</body></html>`
	require.NoError(t, os.WriteFile(htmlPath, []byte(doc), 0o644))

	require.NoError(t, InlineAssets(htmlPath, ws, nil, discardLogger()))

	out, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	res := string(out)

	wantPNG := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pngbytes"))
	assert.Contains(t, res, `<img src="`+wantPNG+`">`)
	assert.Contains(t, res, "data:audio/mpeg;base64,")
	assert.NotContains(t, res, "assets/graphics/chicken.png")
	assert.NotContains(t, res, "assets/audio/click.mp3")
}

func TestInlineAssetsIsIdempotent(t *testing.T) {
	ws := t.TempDir()
	writeThemeAssets(t, ws, "assets/graphics/bg.png")

	htmlPath := path.Join(ws, "index.html")
	doc := `<html><body><img src="assets/graphics/bg.png"></body></html>`
	require.NoError(t, os.WriteFile(htmlPath, []byte(doc), 0o644))

	require.NoError(t, InlineAssets(htmlPath, ws, nil, discardLogger()))
	first, err := os.ReadFile(htmlPath)
	require.NoError(t, err)

	require.NoError(t, InlineAssets(htmlPath, ws, nil, discardLogger()))
	second, err := os.ReadFile(htmlPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestInlineAssetsSubstitutesPlaceholdersForKnownGaps(t *testing.T) {
	ws := t.TempDir()
	htmlPath := path.Join(ws, "index.html")
	doc := `<audio src="assets/audio/neon_theme.mp3"></audio><img src="assets/graphics/neon_bg.png">`
	require.NoError(t, os.WriteFile(htmlPath, []byte(doc), 0o644))

	placeholders := Resolve("game_railroad").PlaceholderAssets["cyberpunk"]
	require.NoError(t, InlineAssets(htmlPath, ws, placeholders, discardLogger()))

	out, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	res := string(out)
	assert.Contains(t, res, `<audio src="data:audio/mpeg;base64,"></audio>`)
	assert.Contains(t, res, `<img src="data:image/png;base64,">`)
}

func TestInlineAssetsToleratesUnresolvedReferences(t *testing.T) {
	ws := t.TempDir()
	htmlPath := path.Join(ws, "index.html")
	doc := `<img src="assets/graphics/gone.png"><link href="assets/fonts/odd.xyz123">`
	require.NoError(t, os.WriteFile(htmlPath, []byte(doc), 0o644))

	require.NoError(t, InlineAssets(htmlPath, ws, nil, discardLogger()))

	out, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	// Missing and unknown-extension references are left in place.
	assert.Contains(t, string(out), "assets/graphics/gone.png")
	assert.Contains(t, string(out), "assets/fonts/odd.xyz123")
}
