package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/erikgeiser/promptkit/confirmation"
	"github.com/erikgeiser/promptkit/selection"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"

	forge "github.com/rayzzy114/playable-forge"
)

func main() {
	if err := run(); err != nil {
		color.Error.Printf("forge: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := forge.ConfigFromEnv()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) == 1 {
		fmt.Println("usage: forge [command]")
		fmt.Println("")
		fmt.Println("build [-game id] [-theme id] [-geo id] [-watermark] [-id order]   Build one playable")
		fmt.Println("prebuild                                                         Build the full preview library")
		fmt.Println("serve                                                            Serve previews and accept build requests")
		fmt.Println("reset                                                            Clear stale workspaces")
		fmt.Println("")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
		game := buildCmd.String("game", "", "game id")
		theme := buildCmd.String("theme", "", "theme id")
		geoID := buildCmd.String("geo", "en_usd", "GEO preset id")
		watermark := buildCmd.Bool("watermark", false, "build the watermarked preview variant")
		orderID := buildCmd.String("id", "", "order id (defaults to a fresh uuid)")
		clickURL := buildCmd.String("click-url", "", "click-through URL to embed")
		balance := buildCmd.Int("balance", 0, "starting balance")
		if err := buildCmd.Parse(os.Args[2:]); err != nil {
			return err
		}

		if *game == "" {
			chosen, err := promptOrder()
			if err != nil {
				return err
			}
			*game = chosen.game
			*geoID = chosen.geo
			*watermark = chosen.watermark
		}

		geo, ok := findGEO(*geoID)
		if !ok {
			return fmt.Errorf("unknown GEO %q", *geoID)
		}
		id := *orderID
		if id == "" {
			id = uuid.NewString()
		}

		builder, err := forge.NewBuilder(cfg, log)
		if err != nil {
			return err
		}
		color.Printf("Building <cyan>%s</> for <cyan>%s</>\n", *game, geo.Label)
		built, err := builder.Build(context.Background(), &forge.Order{
			ID: id,
			Config: forge.OrderConfig{
				Game:            *game,
				ThemeID:         *theme,
				Language:        geo.Lang,
				Currency:        geo.Currency,
				StartingBalance: *balance,
				Watermarked:     *watermark,
				ClickURL:        *clickURL,
			},
		})
		if err != nil {
			return err
		}
		color.Printf("Playable ready: <green>%s</>\n", built)

	case "prebuild":
		builder, err := forge.NewBuilder(cfg, log)
		if err != nil {
			return err
		}
		if err := builder.ResetWorkspaceArea(); err != nil {
			return err
		}
		color.Printf("Prebuilding library into <cyan>%s</>\n", cfg.LibraryDir)
		if err := builder.PrebuildLibrary(context.Background(), cfg.LibraryDir); err != nil {
			return err
		}
		color.Println("<green>Library complete</>")

	case "serve":
		builder, err := forge.NewBuilder(cfg, log)
		if err != nil {
			return err
		}
		if err := builder.ResetWorkspaceArea(); err != nil {
			return err
		}
		watcher, err := forge.WatchTemplates(cfg.TemplatesDir, builder.Deps(), log)
		if err != nil {
			return err
		}
		defer watcher.Close()
		color.Printf("Serving previews on <cyan>:%d</>\n", cfg.Port)
		return forge.NewServer(builder, cfg, log).Serve()

	case "reset":
		builder, err := forge.NewBuilder(cfg, log)
		if err != nil {
			return err
		}
		return builder.ResetWorkspaceArea()

	default:
		return fmt.Errorf("unknown command %q", os.Args[1])
	}

	return nil
}

type orderChoice struct {
	game      string
	geo       string
	watermark bool
}

func promptOrder() (*orderChoice, error) {
	gameSel := selection.New("Which game?", forge.Games())
	gameSel.PageSize = 8
	game, err := gameSel.RunPrompt()
	if err != nil {
		return nil, err
	}

	geoIDs := make([]string, 0, len(forge.GEOs))
	for _, g := range forge.GEOs {
		geoIDs = append(geoIDs, g.ID)
	}
	geoSel := selection.New("Which GEO?", geoIDs)
	geo, err := geoSel.RunPrompt()
	if err != nil {
		return nil, err
	}

	wm := confirmation.New("Watermarked preview?", confirmation.Yes)
	watermark, err := wm.RunPrompt()
	if err != nil {
		return nil, err
	}

	return &orderChoice{game: game, geo: geo, watermark: watermark}, nil
}

func findGEO(id string) (forge.GEO, bool) {
	for _, g := range forge.GEOs {
		if g.ID == id {
			return g, true
		}
	}
	return forge.GEO{}, false
}
