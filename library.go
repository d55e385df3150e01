package forge

import (
	"context"
	"fmt"
	"os"
	"path"

	"golang.org/x/sync/errgroup"
)

// GEO is a bundled (language, currency) locale preset offered to the end
// user by the storefront.
type GEO struct {
	ID       string
	Name     string
	Lang     string
	Currency string
	Label    string
}

var GEOs = []GEO{
	{ID: "en_usd", Name: "Global", Lang: "en", Currency: "$", Label: "EN | USD"},
	{ID: "pt_brl", Name: "Brazil", Lang: "pt", Currency: "R$", Label: "PT | BRL"},
	{ID: "es_eur", Name: "Spain/Latam", Lang: "es", Currency: "€", Label: "ES | EUR"},
}

// PrebuildLibrary builds the preview and final variant of every supported
// game for every GEO preset into libraryDir, so the storefront can hand out
// artifacts without waiting on a live build. Failed combinations are skipped
// and reported; the rest of the library still gets built.
func (b *Builder) PrebuildLibrary(ctx context.Context, libraryDir string) error {
	g, ctx := errgroup.WithContext(ctx)
	// The builder's own scheduler throttles actual builds; the group bound
	// only keeps the queue from overflowing.
	g.SetLimit(b.cfg.MaxConcurrentBuilds + b.cfg.QueueCapacity)

	for _, game := range Games() {
		gameDir := path.Join(libraryDir, game)
		if err := os.MkdirAll(gameDir, 0o755); err != nil {
			return fmt.Errorf("forge: prebuild library: %w", err)
		}
		for _, geo := range GEOs {
			game, geo := game, geo
			for _, variant := range []struct {
				suffix      string
				watermarked bool
			}{
				{"preview", true},
				{"final", false},
			} {
				variant := variant
				g.Go(func() error {
					order := &Order{
						ID: fmt.Sprintf("lib_%s_%s_%s", game, geo.ID, variant.suffix),
						Config: OrderConfig{
							Game:        game,
							Language:    geo.Lang,
							Currency:    geo.Currency,
							Watermarked: variant.watermarked,
						},
					}
					built, err := b.Build(ctx, order)
					if err != nil {
						b.log.Warn("library build skipped",
							"game", game, "geo", geo.ID, "variant", variant.suffix, "err", err)
						return nil
					}
					dest := path.Join(gameDir, fmt.Sprintf("%s_%s.html", geo.ID, variant.suffix))
					if err := copyFile(built, dest); err != nil {
						return fmt.Errorf("forge: prebuild library: %w", err)
					}
					b.log.Info("library artifact saved", "dest", dest)
					return nil
				})
			}
		}
	}
	return g.Wait()
}
