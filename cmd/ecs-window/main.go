package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plus3/ecscore/ebitenloop"
	"github.com/plus3/ecscore/internal/config"
	"github.com/plus3/ecscore/internal/engine"
	"github.com/plus3/ecscore/internal/logging"
	"github.com/plus3/ecscore/saveload"
)

type options struct {
	configPath string
	loadPath   string
	savePath   string
	planets    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "ecs-window",
		Short: "Run an orbiting transform hierarchy in a window",
		Example: `  ecs-window --planets 8
  ecs-window --config engine.yaml --save world.yaml
  ecs-window --config engine.yaml --load world.yaml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "engine config file (yaml, toml or json)")
	cmd.Flags().StringVar(&opts.loadPath, "load", "", "start from a save file instead of the default scene")
	cmd.Flags().StringVar(&opts.savePath, "save", "", "write the world to this file on exit")
	cmd.Flags().IntVar(&opts.planets, "planets", 6, "number of planets in the default scene")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, nil)

	if (opts.loadPath != "" || opts.savePath != "") && !cfg.Features.SaveLoad {
		return fmt.Errorf("--load and --save need features.saveload: %w", engine.ErrSaveLoadDisabled)
	}

	e, err := engine.New(cfg,
		engine.WithLogger(logger),
		engine.WithComponents(registerComponents),
		engine.WithSystems(addSystems),
		engine.WithSaveComponents(registerSaves),
	)
	if err != nil {
		return err
	}

	if opts.loadPath != "" {
		if err := loadWorld(e, opts.loadPath); err != nil {
			return err
		}
	} else {
		spawnScene(e.Storage(), opts.planets, cfg.Features.SaveLoad)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if h := e.Handler(); h != nil {
		go func() {
			if err := e.Profiler().ListenAndServe(ctx, cfg.Metrics.Addr, h); err != nil {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	game := ebitenloop.New(e.Game(),
		ebitenloop.WithDraw(newRenderer(e.Storage()).Draw),
		ebitenloop.WithLayout(ScreenWidth, ScreenHeight),
		ebitenloop.WithQuit(func() bool {
			return ctx.Err() != nil || ebiten.IsKeyPressed(ebiten.KeyEscape)
		}),
	)
	if err := ebitenloop.Run(game, ebitenloop.WindowOptions{
		Title:  "ecscore - orbits",
		Width:  ScreenWidth,
		Height: ScreenHeight,
		TPS:    cfg.Loop.TickRate,
	}); err != nil {
		return err
	}

	if opts.savePath != "" {
		return saveWorld(e, opts.savePath, logger)
	}
	return nil
}

func loadWorld(e *engine.Engine, path string) error {
	format, err := saveload.FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = e.Load(f, format)
	return err
}

func saveWorld(e *engine.Engine, path string, logger zerolog.Logger) error {
	format, err := saveload.FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Save(f, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info().Str("path", path).Msg("world saved")
	return nil
}
