package forge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// assetRef matches relative asset references the templates emit, e.g.
// assets/graphics/chicken.png or ./assets/audio/win.mp3. Base64 payloads can
// never match because the pattern requires a dot before the extension.
var assetRef = regexp.MustCompile(`(?:\./)?assets/[0-9A-Za-z_\-./]+\.[0-9A-Za-z]+`)

var assetMIME = map[string]string{
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".mp3":   "audio/mpeg",
	".ogg":   "audio/ogg",
	".wav":   "audio/wav",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".json":  "application/json",
}

const unresolvedLogSample = 5

// InlineAssets rewrites the compiled HTML so every locally referenced asset
// becomes an embedded data URI. References matching a placeholder glob are
// known to be intentionally absent and get an empty data URI of the right
// MIME type. Remaining unresolved references are logged but tolerated; the
// game logic degrades gracefully without them.
func InlineAssets(htmlPath, workspace string, placeholders []string, log *slog.Logger) error {
	doc, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("forge: inline assets: %w", err)
	}

	refs := assetRef.FindAll(doc, -1)
	seen := map[string]bool{}
	var unresolved []string

	for _, raw := range refs {
		// Dedupe on the normalized path so ./-prefixed and bare spellings
		// of the same asset are handled together.
		rel := strings.TrimPrefix(string(raw), "./")
		if seen[rel] {
			continue
		}
		seen[rel] = true

		mime, ok := assetMIME[strings.ToLower(path.Ext(rel))]
		if !ok {
			log.Warn("asset with unknown extension left unresolved", "ref", rel)
			continue
		}

		var uri string
		if data, err := os.ReadFile(path.Join(workspace, rel)); err == nil {
			uri = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		} else if matchesAny(placeholders, rel) {
			// Not produced yet for this theme variant; keep the build alive
			// with an empty payload of the right type.
			uri = "data:" + mime + ";base64,"
		} else {
			unresolved = append(unresolved, rel)
			continue
		}
		// Replace the prefixed spelling first so the bare one is not matched
		// as its substring.
		doc = bytes.ReplaceAll(doc, []byte("./"+rel), []byte(uri))
		doc = bytes.ReplaceAll(doc, []byte(rel), []byte(uri))
	}

	if len(unresolved) > 0 {
		sample := unresolved
		if len(sample) > unresolvedLogSample {
			sample = sample[:unresolvedLogSample]
		}
		log.Warn("unresolved asset references",
			"count", len(unresolved), "sample", strings.Join(sample, ", "))
	}

	return os.WriteFile(htmlPath, doc, 0o644)
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
