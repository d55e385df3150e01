package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strings"

	"github.com/stoewer/go-strcase"
)

// OrderConfig is the storefront-collected configuration for one playable.
type OrderConfig struct {
	Game            string `json:"game"`
	ThemeID         string `json:"themeId"`
	Language        string `json:"language"`
	Currency        string `json:"currency"`
	StartingBalance int    `json:"startingBalance"`
	Watermarked     bool   `json:"isWatermarked"`
	ClickURL        string `json:"clickUrl,omitempty"`
	TargetBalance   int    `json:"targetBalance,omitempty"`
}

// Order is one build request. The ID doubles as the workspace and preview
// naming key and must be filesystem-safe and unique among in-flight orders.
type Order struct {
	ID     string      `json:"id"`
	Config OrderConfig `json:"config"`
}

// Builder compiles orders into standalone single-file playables. It is the
// sole entry point the storefront consumes; all failure modes are caught
// here, logged with their classification, and returned as a plain error the
// caller may treat uniformly.
type Builder struct {
	cfg   *Config
	log   *slog.Logger
	sched *scheduler
	deps  *DepCache

	// compileFn runs the template's build command inside the workspace and
	// returns its combined output. Overridden in tests.
	compileFn func(ctx context.Context, dir, command string) ([]byte, error)
}

func NewBuilder(cfg *Config, log *slog.Logger) (*Builder, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, dir := range []string{cfg.TempDir, cfg.PreviewsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("forge: %w", err)
		}
	}
	b := &Builder{
		cfg:   cfg,
		log:   log,
		sched: newScheduler(cfg.MaxConcurrentBuilds, cfg.QueueCapacity),
		deps:  NewDepCache(cfg.TempDir, cfg.TemplatesDir, log),
	}
	b.compileFn = b.runCompiler
	return b, nil
}

// Deps exposes the dependency cache, mainly for the template watcher.
func (b *Builder) Deps() *DepCache { return b.deps }

// Build compiles one order and returns the path of the finished artifact.
// When saturated, the request waits in FIFO order; when the wait queue is
// full it fails immediately with ErrQueueFull. Build never panics.
func (b *Builder) Build(ctx context.Context, order *Order) (string, error) {
	if err := b.sched.acquire(ctx); err != nil {
		if errors.Is(err, ErrQueueFull) {
			b.log.Warn("build rejected, queue full", "order", order.ID, "queued", b.sched.queued())
		}
		return "", err
	}
	defer b.sched.release()

	out, err := b.performBuild(ctx, order)
	if err != nil {
		b.logFailure(order, err)
		return "", err
	}
	b.log.Info("build finished", "order", order.ID, "artifact", out)
	return out, nil
}

func (b *Builder) performBuild(ctx context.Context, order *Order) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forge: build %s panicked: %v", order.ID, r)
		}
	}()

	tpl := Resolve(order.Config.Game)
	rc := normalize(tpl, order.Config)
	mode := "FINAL"
	if rc.Watermarked {
		mode = "PREVIEW"
	}
	b.log.Info("processing build", "order", order.ID, "game", tpl.Game, "mode", mode)

	if b.cfg.FastTest {
		return b.fastTestArtifact(order, tpl, rc)
	}

	tplDir, err := templatePath(b.cfg.TemplatesDir, tpl)
	if err != nil {
		return "", err
	}

	workDir := path.Join(b.cfg.TempDir, order.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("forge: workspace: %w", err)
	}
	defer func() {
		// Workspaces never outlive their build attempt.
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			b.log.Warn("workspace cleanup failed", "order", order.ID, "err", rmErr)
		}
	}()

	skip := []string{"node_modules", "node_modules/**", "dist", "dist/**"}
	if err := copyTree(tplDir, workDir, skip); err != nil {
		return "", fmt.Errorf("forge: copy template: %w", err)
	}

	if tpl.BuildCommand != "" {
		if err := b.linkDependencies(ctx, tpl, tplDir, workDir); err != nil {
			return "", err
		}
	}

	if err := WriteTemplateConfig(tpl, workDir, rc); err != nil {
		return "", err
	}
	if err := ValidateContract(tpl, workDir); err != nil {
		return "", err
	}
	if err := ValidateThemeAssets(tpl, workDir, rc.ThemeID); err != nil {
		return "", err
	}

	if tpl.BuildCommand != "" {
		b.log.Info("compiling", "order", order.ID, "command", tpl.BuildCommand)
		cctx, cancel := context.WithTimeout(ctx, b.cfg.BuildTimeout)
		defer cancel()
		output, err := b.compileFn(cctx, workDir, tpl.BuildCommand)
		if err != nil {
			if cctx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("%w: %q exceeded %s", ErrBuildTimeout, tpl.BuildCommand, b.cfg.BuildTimeout)
			}
			return "", &CompilerError{Command: tpl.BuildCommand, Output: string(output), Err: err}
		}
	}

	outPath := path.Join(workDir, tpl.OutputFile)
	if _, err := os.Stat(outPath); err != nil {
		return "", &CompilerError{
			Command: tpl.BuildCommand,
			Err:     fmt.Errorf("no output at %s: %w", tpl.OutputFile, err),
		}
	}

	if err := InlineAssets(outPath, workDir, tpl.PlaceholderAssets[rc.ThemeID], b.log); err != nil {
		return "", err
	}
	if err := InjectRuntimeConfig(outPath, rc, order.Config.ClickURL); err != nil {
		return "", err
	}

	final := path.Join(b.cfg.PreviewsDir, artifactName(order, tpl, rc))
	if err := copyFile(outPath, final); err != nil {
		return "", fmt.Errorf("forge: publish artifact: %w", err)
	}
	return final, nil
}

// linkDependencies makes workDir/node_modules available without a mid-build
// network install: the template's own pre-installed tree is reused when
// valid, otherwise the shared cache entry is linked in.
func (b *Builder) linkDependencies(ctx context.Context, tpl *TemplateConfig, tplDir, workDir string) error {
	workNM := path.Join(workDir, "node_modules")

	if valid, _ := depTreeValid(tplDir, tpl.RequiredBins); valid {
		if err := linkOrCopy(path.Join(tplDir, "node_modules"), workNM); err != nil {
			return fmt.Errorf("forge: link template deps: %w", err)
		}
	} else {
		cacheNM, err := b.deps.Ensure(ctx, tpl)
		if err != nil {
			return err
		}
		if err := linkOrCopy(cacheNM, workNM); err != nil {
			return fmt.Errorf("forge: link cached deps: %w", err)
		}
	}

	if valid, reason := depTreeValid(workDir, tpl.RequiredBins); !valid {
		return &DependencyError{Dir: workDir, Reason: reason}
	}
	return nil
}

func (b *Builder) runCompiler(ctx context.Context, dir, command string) ([]byte, error) {
	args := strings.Fields(command)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// fastTestArtifact synthesizes a minimal placeholder document carrying the
// injected runtime payload, so the surrounding system can be integration
// tested without paying compiler cost.
func (b *Builder) fastTestArtifact(order *Order, tpl *TemplateConfig, rc RuntimeConfig) (string, error) {
	final := path.Join(b.cfg.PreviewsDir, artifactName(order, tpl, rc))
	doc := `<!doctype html><html><head><meta charset="utf-8"></head><body></body></html>`
	if err := os.WriteFile(final, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("forge: fast-test artifact: %w", err)
	}
	if err := InjectRuntimeConfig(final, rc, order.Config.ClickURL); err != nil {
		return "", err
	}
	return final, nil
}

// ResetWorkspaceArea clears all stale per-order workspaces while preserving
// the shared dependency cache. Idempotent; call once before accepting
// traffic.
func (b *Builder) ResetWorkspaceArea() error {
	entries, err := os.ReadDir(b.cfg.TempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(b.cfg.TempDir, 0o755)
		}
		return fmt.Errorf("forge: reset workspace area: %w", err)
	}
	for _, e := range entries {
		if e.Name() == depsCacheDirName {
			continue
		}
		if err := os.RemoveAll(path.Join(b.cfg.TempDir, e.Name())); err != nil {
			return fmt.Errorf("forge: reset workspace area: %w", err)
		}
	}
	return os.MkdirAll(b.cfg.PreviewsDir, 0o755)
}

func (b *Builder) logFailure(order *Order, err error) {
	var (
		contractErr *ContractError
		assetsErr   *MissingAssetsError
		depErr      *DependencyError
		compErr     *CompilerError
	)
	switch {
	case errors.Is(err, ErrBuildTimeout):
		b.log.Error("build timed out", "order", order.ID, "err", err)
	case errors.As(err, &contractErr):
		b.log.Error("template contract violation", "order", order.ID, "err", err)
	case errors.As(err, &assetsErr):
		b.log.Error("theme assets missing", "order", order.ID, "err", err)
	case errors.As(err, &depErr):
		b.log.Error("dependency tree unusable", "order", order.ID, "err", err)
	case errors.As(err, &compErr):
		b.log.Error("compiler failed", "order", order.ID, "err", err, "output", truncate(compErr.Output, 2000))
	default:
		b.log.Error("build failed", "order", order.ID, "err", err)
	}
}

func normalize(tpl *TemplateConfig, cfg OrderConfig) RuntimeConfig {
	rc := RuntimeConfig{
		Language:        cfg.Language,
		Currency:        cfg.Currency,
		StartingBalance: cfg.StartingBalance,
		ThemeID:         cfg.ThemeID,
		Watermarked:     cfg.Watermarked,
		TargetBalance:   cfg.TargetBalance,
	}
	if rc.Language == "" {
		rc.Language = "en"
	}
	if rc.Currency == "" {
		rc.Currency = "$"
	}
	if rc.StartingBalance <= 0 {
		rc.StartingBalance = 1000
	}
	if rc.ThemeID == "" {
		rc.ThemeID = tpl.DefaultTheme
	}
	return rc
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// artifactName derives the deterministic preview-directory filename: the
// order id for previews, game/theme/language/currency for finals.
func artifactName(order *Order, tpl *TemplateConfig, rc RuntimeConfig) string {
	if rc.Watermarked {
		return fmt.Sprintf("PREVIEW_%s.html", unsafeChars.ReplaceAllString(order.ID, ""))
	}
	game := strcase.UpperCamelCase(tpl.DisplayName)
	return fmt.Sprintf("%s_%s_%s_%s.html",
		game,
		unsafeChars.ReplaceAllString(rc.ThemeID, ""),
		strings.ToUpper(unsafeChars.ReplaceAllString(rc.Language, "")),
		unsafeChars.ReplaceAllString(rc.Currency, ""),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
