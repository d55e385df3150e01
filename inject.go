package forge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"

	"github.com/tidwall/sjson"
)

// Fixed design resolution every playable is authored against. Ad networks
// scale the canvas from these globals.
const (
	DesignWidth  = 1080
	DesignHeight = 1920
)

// RuntimeConfig is the sanitized configuration embedded into the compiled
// artifact. Values are passed through as given; locale and currency
// validation belongs to the order-intake collaborator.
type RuntimeConfig struct {
	Language        string `json:"language"`
	Currency        string `json:"currency"`
	StartingBalance int    `json:"startingBalance"`
	ThemeID         string `json:"themeId"`
	Watermarked     bool   `json:"isWatermarked"`
	TargetBalance   int    `json:"targetBalance,omitempty"`
}

// WriteTemplateConfig writes the template's pre-compile config file, if its
// convention requires one. Every field has a defined default so a sparse
// order still compiles.
func WriteTemplateConfig(tpl *TemplateConfig, workspace string, rc RuntimeConfig) error {
	if tpl.ConfigMode == ConfigModeNone {
		return nil
	}

	doc := "{}"
	var err error
	for _, kv := range []struct {
		key string
		val any
	}{
		{"language", rc.Language},
		{"currency", rc.Currency},
		{"startingBalance", rc.StartingBalance},
		{"defaultBet", 50},
		{"minBet", 10},
		{"maxBet", 1000},
		{"themeId", rc.ThemeID},
		{"isWatermarked", rc.Watermarked},
	} {
		if doc, err = sjson.Set(doc, kv.key, kv.val); err != nil {
			return fmt.Errorf("forge: template config: %w", err)
		}
	}

	switch tpl.ConfigMode {
	case ConfigModeJSON:
		target := path.Join(workspace, "src", "UserConfig.json")
		if err := os.MkdirAll(path.Dir(target), 0o755); err != nil {
			return fmt.Errorf("forge: template config: %w", err)
		}
		return os.WriteFile(target, []byte(doc), 0o644)
	case ConfigModeLegacyJS:
		target := path.Join(workspace, "src", "config.js")
		if err := os.MkdirAll(path.Dir(target), 0o755); err != nil {
			return fmt.Errorf("forge: template config: %w", err)
		}
		body := "window.GAME_SETTINGS = " + doc + ";\n"
		return os.WriteFile(target, []byte(body), 0o644)
	}
	return nil
}

var headClose = regexp.MustCompile(`(?i)</head>`)

// nativeWatermark matches watermark markup the template may have rendered
// itself via its UserConfig.
var nativeWatermark = regexp.MustCompile(`id=["']watermark-overlay["']`)

// InjectRuntimeConfig embeds the final runtime payload into the compiled
// HTML: the sanitized config as window.__USER_CONFIG__, the optional
// click-through URL, the fixed design dimensions, and the watermark overlay
// (added when flagged and not natively present, removed when unflagged).
func InjectRuntimeConfig(htmlPath string, rc RuntimeConfig, clickURL string) error {
	doc, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("forge: inject runtime config: %w", err)
	}

	payload, err := scriptSafeJSON(rc)
	if err != nil {
		return fmt.Errorf("forge: inject runtime config: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("<script>\n")
	fmt.Fprintf(&b, "window.__USER_CONFIG__ = %s;\n", payload)
	if clickURL != "" {
		u, err := scriptSafeJSON(clickURL)
		if err != nil {
			return fmt.Errorf("forge: inject runtime config: %w", err)
		}
		fmt.Fprintf(&b, "window.__CLICK_URL__ = %s;\n", u)
	}
	fmt.Fprintf(&b, "window.__DESIGN_WIDTH__ = %d;\nwindow.__DESIGN_HEIGHT__ = %d;\n", DesignWidth, DesignHeight)

	switch {
	case rc.Watermarked && !nativeWatermark.Match(doc):
		b.WriteString(watermarkAddScript)
	case !rc.Watermarked:
		b.WriteString(watermarkRemoveScript)
	}
	b.WriteString("</script>")

	var out []byte
	if loc := headClose.FindIndex(doc); loc != nil {
		out = append(out, doc[:loc[0]]...)
		out = append(out, b.Bytes()...)
		out = append(out, doc[loc[0]:]...)
	} else {
		out = append(b.Bytes(), doc...)
	}
	return os.WriteFile(htmlPath, out, 0o644)
}

// scriptSafeJSON marshals v with "<", ">" and "&" escaped so the embedded
// JSON can never terminate the surrounding script block or close an HTML
// comment early.
func scriptSafeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

const watermarkAddScript = `(function(){
var add = function(){
  if (document.getElementById('watermark-overlay')) return;
  var el = document.createElement('div');
  el.id = 'watermark-overlay';
  el.textContent = 'PREVIEW MODE';
  el.style.cssText = 'position:absolute;top:50%;left:50%;transform:translate(-50%,-50%) rotate(-45deg);font-size:40px;color:rgba(255,0,0,0.3);font-weight:900;pointer-events:none;z-index:9999;white-space:nowrap;text-transform:uppercase;border:5px solid rgba(255,0,0,0.3);padding:20px;';
  document.body.appendChild(el);
};
if (document.readyState === 'complete') { add(); } else { window.addEventListener('DOMContentLoaded', add); }
})();
`

const watermarkRemoveScript = `(function(){
var strip = function(){
  var nodes = document.querySelectorAll('#watermark-overlay, .watermark, .watermark-overlay');
  for (var i = 0; i < nodes.length; i++) { nodes[i].parentNode.removeChild(nodes[i]); }
};
if (document.readyState === 'complete') { strip(); } else { window.addEventListener('DOMContentLoaded', strip); }
})();
`
