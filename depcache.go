package forge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/singleflight"
)

// depsCacheDirName is the persistent subtree under the temp root that
// survives workspace cleanup sweeps.
const depsCacheDirName = "_deps_cache"

const npmInstallCmd = "npm install --no-audit --no-fund --include=dev"

// DepCache maintains one shared installed-dependency tree per
// (template, required bins) key. Entries are installed once and then reused
// read-only by every workspace whose requirements match; concurrent callers
// for the same key coalesce into a single install.
type DepCache struct {
	root         string // <temp>/_deps_cache
	templatesDir string
	log          *slog.Logger
	group        singleflight.Group

	// installFn runs the package install in dir. Overridden in tests.
	installFn func(ctx context.Context, dir string) error
}

func NewDepCache(tempDir, templatesDir string, log *slog.Logger) *DepCache {
	c := &DepCache{
		root:         path.Join(tempDir, depsCacheDirName),
		templatesDir: templatesDir,
		log:          log,
	}
	c.installFn = c.npmInstall
	return c
}

// Dir returns the cache root, preserved across workspace sweeps.
func (c *DepCache) Dir() string { return c.root }

func cacheKey(tpl *TemplateConfig) string {
	bins := slices.Clone(tpl.RequiredBins)
	slices.Sort(bins)
	if len(bins) == 0 {
		return tpl.Dir
	}
	return tpl.Dir + "-" + strings.Join(bins, "+")
}

// Ensure returns the node_modules path for the template's cache entry,
// installing it first if the entry is missing or invalid. Safe for
// concurrent use; callers for the same key observe a single install.
func (c *DepCache) Ensure(ctx context.Context, tpl *TemplateConfig) (string, error) {
	key := cacheKey(tpl)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.ensure(ctx, tpl, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *DepCache) ensure(ctx context.Context, tpl *TemplateConfig, key string) (string, error) {
	entryDir := path.Join(c.root, key)
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return "", fmt.Errorf("forge: deps cache: %w", err)
	}

	// The entry mirrors the template's manifest so npm resolves the same
	// tree the template would.
	tplDir := path.Join(c.templatesDir, tpl.Dir)
	pkg, err := os.ReadFile(path.Join(tplDir, "package.json"))
	if err != nil {
		return "", fmt.Errorf("forge: deps cache: template manifest: %w", err)
	}
	if err := os.WriteFile(path.Join(entryDir, "package.json"), pkg, 0o644); err != nil {
		return "", fmt.Errorf("forge: deps cache: %w", err)
	}
	if lock, err := os.ReadFile(path.Join(tplDir, "package-lock.json")); err == nil {
		if err := os.WriteFile(path.Join(entryDir, "package-lock.json"), lock, 0o644); err != nil {
			return "", fmt.Errorf("forge: deps cache: %w", err)
		}
	}

	nodeModules := path.Join(entryDir, "node_modules")
	valid, reason := depTreeValid(entryDir, tpl.RequiredBins)
	if !valid {
		c.log.Info("installing dependency cache", "key", key, "reason", reason)
		if err := c.installFn(ctx, entryDir); err != nil {
			return "", fmt.Errorf("forge: deps cache install %q: %w", key, err)
		}
		if valid, reason = depTreeValid(entryDir, tpl.RequiredBins); !valid {
			return "", &DependencyError{Dir: entryDir, Reason: reason}
		}
	}
	return nodeModules, nil
}

// Invalidate drops the memoized state for a template so the next Ensure
// revalidates against the current manifest. The installed tree itself is left
// in place; workspaces linked against it stay intact.
func (c *DepCache) Invalidate(tpl *TemplateConfig) {
	key := cacheKey(tpl)
	c.group.Forget(key)
	// Removing the mirrored manifest forces a fresh sync on next Ensure.
	_ = os.Remove(path.Join(c.root, key, "package.json"))
	c.log.Info("dependency cache invalidated", "key", key)
}

func (c *DepCache) npmInstall(ctx context.Context, dir string) error {
	args := strings.Fields(npmInstallCmd)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &CompilerError{Command: npmInstallCmd, Output: string(out), Err: err}
	}
	return nil
}

// depTreeValid reports whether dir holds a usable installed tree: every
// declared dev dependency has a manifest under node_modules, and every
// required build tool is present in node_modules/.bin.
func depTreeValid(dir string, bins []string) (bool, string) {
	nodeModules := path.Join(dir, "node_modules")
	if _, err := os.Stat(nodeModules); err != nil {
		return false, "node_modules missing"
	}
	pkg, err := os.ReadFile(path.Join(dir, "package.json"))
	if err != nil {
		return false, "package.json missing"
	}
	for dep := range gjson.GetBytes(pkg, "devDependencies").Map() {
		manifest := path.Join(nodeModules, path.Join(strings.Split(dep, "/")...), "package.json")
		if _, err := os.Stat(manifest); err != nil {
			return false, fmt.Sprintf("dev dependency %q not installed", dep)
		}
	}
	for _, bin := range bins {
		if _, err := os.Stat(path.Join(nodeModules, ".bin", bin)); err != nil {
			return false, fmt.Sprintf("build tool %q not installed", bin)
		}
	}
	return true, ""
}
