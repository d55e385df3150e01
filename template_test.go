package forge

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFallsBackToDefaultGame(t *testing.T) {
	assert.Equal(t, "game_railroad", Resolve("doesnotexist").Game)
	assert.Equal(t, "game_railroad", Resolve("").Game)
	assert.Equal(t, "game_plinko_classic", Resolve("game_plinko_classic").Game)
}

func TestGamesIsStable(t *testing.T) {
	assert.Equal(t, Games(), Games())
	assert.Contains(t, Games(), DefaultGame)
}

func writeGameSource(t *testing.T, workspace, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path.Join(workspace, "src"), 0o755))
	require.NoError(t, os.WriteFile(path.Join(workspace, "src", "Game.ts"), []byte(body), 0o644))
}

func TestValidateContractAcceptsDesignResolution(t *testing.T) {
	ws := t.TempDir()
	writeGameSource(t, ws, "const cfg = {\n  width: 1080,\n  height: 1920,\n};\n")
	require.NoError(t, ValidateContract(Resolve("game_railroad"), ws))
}

func TestValidateContractReportsFailedChecksByName(t *testing.T) {
	ws := t.TempDir()
	writeGameSource(t, ws, "const cfg = {\n  width: 1080,\n  height: 1280,\n};\n")

	err := ValidateContract(Resolve("game_railroad"), ws)
	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"design height 1920"}, cerr.Checks)
	assert.Contains(t, err.Error(), "design height 1920")
}

func TestValidateContractReportsMissingSourceFile(t *testing.T) {
	ws := t.TempDir()

	err := ValidateContract(Resolve("game_railroad"), ws)
	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, cerr.Checks, 2)
}

func TestValidateContractNoopForUncontractedTemplates(t *testing.T) {
	require.NoError(t, ValidateContract(Resolve("game_match3"), t.TempDir()))
}

func writeThemeAssets(t *testing.T, ws string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := path.Join(ws, f)
		require.NoError(t, os.MkdirAll(path.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestValidateThemeAssetsAggregatesAllMisses(t *testing.T) {
	ws := t.TempDir()
	writeThemeAssets(t, ws, "assets/graphics/background.png")

	err := ValidateThemeAssets(Resolve("game_railroad"), ws, "chicken_farm")
	var merr *MissingAssetsError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "chicken_farm", merr.Theme)
	assert.ElementsMatch(t, []string{
		"assets/graphics/chicken.png",
		"assets/graphics/track.png",
		"assets/graphics/cart.png",
		"assets/audio/*.mp3",
	}, merr.Missing)
}

func TestValidateThemeAssetsPassesWithFullManifest(t *testing.T) {
	ws := t.TempDir()
	writeThemeAssets(t, ws,
		"assets/graphics/background.png",
		"assets/graphics/chicken.png",
		"assets/graphics/track.png",
		"assets/graphics/cart.png",
		"assets/audio/click.mp3",
	)
	require.NoError(t, ValidateThemeAssets(Resolve("game_railroad"), ws, "chicken_farm"))
}

func TestValidateThemeAssetsUnknownThemeUsesDefaultManifest(t *testing.T) {
	ws := t.TempDir()

	err := ValidateThemeAssets(Resolve("game_railroad"), ws, "nosuchtheme")
	var merr *MissingAssetsError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "chicken_farm", merr.Theme)
}

func TestValidateThemeAssetsNoopForUnthemedTemplates(t *testing.T) {
	require.NoError(t, ValidateThemeAssets(Resolve("game_match3"), t.TempDir(), "whatever"))
}
