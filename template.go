package forge

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ConfigMode selects which legacy config-file convention a template expects
// before compiling.
type ConfigMode int

const (
	// ConfigModeNone is for static templates with no pre-compile config file.
	ConfigModeNone ConfigMode = iota
	// ConfigModeJSON writes src/UserConfig.json, the newer convention.
	ConfigModeJSON
	// ConfigModeLegacyJS writes src/config.js assigning window.GAME_SETTINGS,
	// kept for templates that predate the JSON convention.
	ConfigModeLegacyJS
)

// ContractCheck is a named structural invariant verified against template
// source before compiling. Checks are plain substrings; the name identifies
// the failed invariant in logs.
type ContractCheck struct {
	Name    string
	File    string
	Pattern string
}

// TemplateConfig describes one buildable game template. Instances are static
// and shared; they are never mutated at runtime.
type TemplateConfig struct {
	Game         string
	Dir          string
	DisplayName  string
	BuildCommand string // empty for static templates
	RequiredBins []string
	OutputFile   string
	ConfigMode   ConfigMode
	DefaultTheme string

	Contract []ContractCheck

	// Themes maps a theme id to the asset manifest that must exist in the
	// copied workspace. Entries may be doublestar globs.
	Themes map[string][]string

	// PlaceholderAssets lists glob patterns of references that are known to
	// be intentionally absent for a theme; the inliner substitutes empty
	// data URIs for them instead of failing the build.
	PlaceholderAssets map[string][]string
}

// DefaultGame is the fallback for unknown or missing game ids.
const DefaultGame = "game_railroad"

var railroadContract = []ContractCheck{
	{Name: "design width 1080", File: "src/Game.ts", Pattern: "width: 1080"},
	{Name: "design height 1920", File: "src/Game.ts", Pattern: "height: 1920"},
}

var templates = map[string]*TemplateConfig{
	"game_railroad": {
		Game:         "game_railroad",
		Dir:          "railroad",
		DisplayName:  "Railroad",
		BuildCommand: "npm run build",
		RequiredBins: []string{"tsc", "vite"},
		OutputFile:   "dist/index.html",
		ConfigMode:   ConfigModeJSON,
		DefaultTheme: "chicken_farm",
		Contract:     railroadContract,
		Themes: map[string][]string{
			"chicken_farm": {
				"assets/graphics/background.png",
				"assets/graphics/chicken.png",
				"assets/graphics/track.png",
				"assets/graphics/cart.png",
				"assets/audio/*.mp3",
			},
			"cyberpunk": {
				"assets/graphics/background.png",
				"assets/graphics/track.png",
			},
		},
		PlaceholderAssets: map[string][]string{
			"cyberpunk": {
				"assets/audio/**",
				"assets/graphics/neon_*",
			},
		},
	},
	"game_plinko_classic": {
		Game:         "game_plinko_classic",
		Dir:          "plinko",
		DisplayName:  "Plinko Classic",
		BuildCommand: "npm run build",
		RequiredBins: []string{"vite"},
		OutputFile:   "dist/index.html",
		ConfigMode:   ConfigModeLegacyJS,
		DefaultTheme: "default",
	},
	"game_olympus": {
		Game:         "game_olympus",
		Dir:          "olympus",
		DisplayName:  "Olympus",
		BuildCommand: "npm run build",
		RequiredBins: []string{"tsc", "vite"},
		OutputFile:   "dist/index.html",
		ConfigMode:   ConfigModeJSON,
		DefaultTheme: "default",
	},
	"game_drag": {
		Game:         "game_drag",
		Dir:          "drag",
		DisplayName:  "Drag Racing",
		BuildCommand: "npm run build",
		RequiredBins: []string{"vite"},
		OutputFile:   "dist/index.html",
		ConfigMode:   ConfigModeJSON,
		DefaultTheme: "default",
	},
	"game_match3": {
		Game:         "game_match3",
		Dir:          "match3",
		DisplayName:  "Match3",
		BuildCommand: "",
		OutputFile:   "index.html",
		ConfigMode:   ConfigModeNone,
		DefaultTheme: "default",
	},
}

// Resolve maps a game id to its template. Unknown ids never error; they fall
// back to the default game so a stale storefront entry still produces a
// working playable.
func Resolve(game string) *TemplateConfig {
	if tpl, ok := templates[game]; ok {
		return tpl
	}
	return templates[DefaultGame]
}

// Games lists the supported game ids in stable order.
func Games() []string {
	ids := maps.Keys(templates)
	slices.Sort(ids)
	return ids
}

// ValidateContract checks each of the template's structural invariants
// against the copied workspace source. It is a best-effort guard against
// template drift silently breaking the fixed-aspect-ratio assumption.
func ValidateContract(tpl *TemplateConfig, workspace string) error {
	byFile := map[string][]ContractCheck{}
	for _, c := range tpl.Contract {
		byFile[c.File] = append(byFile[c.File], c)
	}
	files := maps.Keys(byFile)
	slices.Sort(files)

	for _, file := range files {
		src, err := os.ReadFile(path.Join(workspace, file))
		if err != nil {
			names := make([]string, 0, len(byFile[file]))
			for _, c := range byFile[file] {
				names = append(names, c.Name)
			}
			return &ContractError{Game: tpl.Game, File: file, Checks: names}
		}
		var failed []string
		for _, c := range byFile[file] {
			if !strings.Contains(string(src), c.Pattern) {
				failed = append(failed, c.Name)
			}
		}
		if len(failed) > 0 {
			return &ContractError{Game: tpl.Game, File: file, Checks: failed}
		}
	}
	return nil
}

// ValidateThemeAssets verifies that every asset in the theme's manifest
// exists in the workspace. Misses are reported in aggregate so all gaps can
// be fixed in one pass.
func ValidateThemeAssets(tpl *TemplateConfig, workspace, theme string) error {
	if len(tpl.Themes) == 0 {
		return nil
	}
	manifest, ok := tpl.Themes[theme]
	if !ok {
		theme = tpl.DefaultTheme
		manifest = tpl.Themes[theme]
	}

	root := os.DirFS(workspace)
	var missing []string
	for _, entry := range manifest {
		if strings.ContainsAny(entry, "*?[{") {
			matches, err := doublestar.Glob(root, entry)
			if err != nil || len(matches) == 0 {
				missing = append(missing, entry)
			}
			continue
		}
		if _, err := fs.Stat(root, entry); err != nil {
			missing = append(missing, entry)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &MissingAssetsError{Theme: theme, Missing: missing}
	}
	return nil
}

// templatePath resolves a template directory under the templates root.
func templatePath(templatesDir string, tpl *TemplateConfig) (string, error) {
	dir := path.Join(templatesDir, tpl.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("forge: template %q: %w", tpl.Game, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("forge: template %q: %s is not a directory", tpl.Game, dir)
	}
	return dir, nil
}
