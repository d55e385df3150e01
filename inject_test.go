package forge

import (
	"encoding/json"
	"os"
	"path"
	"regexp"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTemplateConfigJSONMode(t *testing.T) {
	ws := t.TempDir()
	tpl := Resolve("game_railroad")
	rc := RuntimeConfig{Language: "pt", Currency: "R$", StartingBalance: 500, ThemeID: "chicken_farm", Watermarked: true}

	require.NoError(t, WriteTemplateConfig(tpl, ws, rc))

	raw, err := os.ReadFile(path.Join(ws, "src", "UserConfig.json"))
	require.NoError(t, err)
	doc := gjson.ParseBytes(raw)
	assert.Equal(t, "pt", doc.Get("language").String())
	assert.Equal(t, "R$", doc.Get("currency").String())
	assert.EqualValues(t, 500, doc.Get("startingBalance").Int())
	assert.EqualValues(t, 50, doc.Get("defaultBet").Int())
	assert.EqualValues(t, 10, doc.Get("minBet").Int())
	assert.EqualValues(t, 1000, doc.Get("maxBet").Int())
	assert.True(t, doc.Get("isWatermarked").Bool())
}

func TestWriteTemplateConfigLegacyJSMode(t *testing.T) {
	ws := t.TempDir()
	tpl := Resolve("game_plinko_classic")
	rc := RuntimeConfig{Language: "es", Currency: "€", StartingBalance: 1000, ThemeID: "default"}

	require.NoError(t, WriteTemplateConfig(tpl, ws, rc))

	raw, err := os.ReadFile(path.Join(ws, "src", "config.js"))
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "window.GAME_SETTINGS = {"))
	assert.Contains(t, body, `"currency":"€"`)
}

func TestWriteTemplateConfigNoneModeWritesNothing(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, WriteTemplateConfig(Resolve("game_match3"), ws, RuntimeConfig{}))
	_, err := os.Stat(path.Join(ws, "src"))
	assert.True(t, os.IsNotExist(err))
}

func writeHTML(t *testing.T, body string) string {
	t.Helper()
	p := path.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

var userConfigRe = regexp.MustCompile(`window\.__USER_CONFIG__ = (.*);`)

func embeddedConfig(t *testing.T, doc string) RuntimeConfig {
	t.Helper()
	m := userConfigRe.FindStringSubmatch(doc)
	require.NotNil(t, m, "document should embed window.__USER_CONFIG__")
	var rc RuntimeConfig
	require.NoError(t, json.Unmarshal([]byte(m[1]), &rc))
	return rc
}

func TestInjectRuntimeConfigRoundTrip(t *testing.T) {
	p := writeHTML(t, `<html><head><title>g</title></head><body></body></html>`)
	in := RuntimeConfig{Language: "pt", Currency: "₸", StartingBalance: 777, ThemeID: "chicken_farm", Watermarked: false}

	require.NoError(t, InjectRuntimeConfig(p, in, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	doc := string(raw)

	assert.Equal(t, in, embeddedConfig(t, doc))
	assert.NotContains(t, doc, "PREVIEW MODE")
	assert.NotContains(t, doc, "__CLICK_URL__")

	// Script lands inside head.
	assert.Less(t, strings.Index(doc, "__USER_CONFIG__"), strings.Index(doc, "</head>"))
}

func TestInjectRuntimeConfigPrependsWhenNoHead(t *testing.T) {
	p := writeHTML(t, `<div>bare fragment</div>`)
	require.NoError(t, InjectRuntimeConfig(p, RuntimeConfig{Language: "en"}, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<script>"))
	assert.True(t, strings.HasSuffix(string(raw), "<div>bare fragment</div>"))
}

func TestInjectRuntimeConfigAddsWatermarkOnce(t *testing.T) {
	p := writeHTML(t, `<html><head></head><body></body></html>`)
	require.NoError(t, InjectRuntimeConfig(p, RuntimeConfig{Watermarked: true}, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "PREVIEW MODE"))
}

func TestInjectRuntimeConfigSkipsWatermarkWhenNativePresent(t *testing.T) {
	p := writeHTML(t, `<html><head></head><body><div id="watermark-overlay">PREVIEW</div></body></html>`)
	require.NoError(t, InjectRuntimeConfig(p, RuntimeConfig{Watermarked: true}, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "PREVIEW MODE")
}

func TestInjectRuntimeConfigStripsWatermarkWhenUnflagged(t *testing.T) {
	p := writeHTML(t, `<html><head></head><body><div id="watermark-overlay">PREVIEW</div></body></html>`)
	require.NoError(t, InjectRuntimeConfig(p, RuntimeConfig{Watermarked: false}, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "watermark-overlay, .watermark")
	assert.NotContains(t, string(raw), "PREVIEW MODE")
}

func TestInjectRuntimeConfigEmbedsClickURLAndDesignSize(t *testing.T) {
	p := writeHTML(t, `<html><head></head><body></body></html>`)
	require.NoError(t, InjectRuntimeConfig(p, RuntimeConfig{}, "https://example.com/lp?a=1&b=2"))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	doc := string(raw)
	assert.Contains(t, doc, "window.__CLICK_URL__")
	assert.Contains(t, doc, "window.__DESIGN_WIDTH__ = 1080;")
	assert.Contains(t, doc, "window.__DESIGN_HEIGHT__ = 1920;")
}

func TestInjectRuntimeConfigEscapesScriptBreakers(t *testing.T) {
	p := writeHTML(t, `<html><head></head><body></body></html>`)
	in := RuntimeConfig{Currency: `</script><script>`, Language: "x-->y"}
	require.NoError(t, InjectRuntimeConfig(p, in, ""))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	doc := string(raw)

	assert.NotContains(t, doc, `</script><script>`)
	assert.NotContains(t, doc, `-->`)
	// The payload still round-trips to the original values.
	assert.Equal(t, in, embeddedConfig(t, doc))
}
