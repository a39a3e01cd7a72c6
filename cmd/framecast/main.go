// Package main provides the CLI entry point for framecast.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/framecast/pkg/adapters/chromesurface"
	"github.com/user/framecast/pkg/adapters/ggsurface"
	"github.com/user/framecast/pkg/adapters/logger"
	"github.com/user/framecast/pkg/adapters/osfilesystem"
	"github.com/user/framecast/pkg/adapters/smartcodec"
	"github.com/user/framecast/pkg/config"
	"github.com/user/framecast/pkg/export"
	"github.com/user/framecast/pkg/ports"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:  "framecast",
		Usage: l10n.T("Export a rendered timeline as a video artifact"),
		Commands: []*cli.Command{
			exportCommand(),
			probeCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Export failed: %s", err))
		os.Exit(1)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: l10n.T("Run an export against a timeline page or the built-in demo timeline"),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "url", Usage: l10n.T("URL of the timeline page to export")},
			&cli.BoolFlag{Name: "demo", Usage: l10n.T("Export the built-in synthetic timeline instead of a page")},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: l10n.T("Output file path")},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: l10n.T("Output video width")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: l10n.T("Output video height")},
			&cli.IntFlag{Name: "fps", Usage: l10n.T("Target frame rate")},
			&cli.IntFlag{Name: "bitrate", Usage: l10n.T("Target bitrate in bits per second")},
			&cli.StringFlag{Name: "quality", Usage: l10n.T("Quality preset: low, medium or high")},
			&cli.StringFlag{Name: "container", Usage: l10n.T("Container format: mp4 or webm")},
			&cli.Float64Flag{Name: "duration", Usage: l10n.T("Timeline duration in milliseconds")},
			&cli.Float64Flag{Name: "outro", Usage: l10n.T("Hold the final frame for this many milliseconds")},
			&cli.StringFlag{Name: "chrome-path", Usage: l10n.T("Path to the Chrome/Chromium executable")},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: l10n.T("Log level: debug, info, warn, error or quiet")},
		},
		Action: runExport,
	}
}

func runExport(c *cli.Context) error {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	applyFlags(c, &cfg)

	log := logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))

	if !c.Bool("demo") && cfg.URL == "" {
		return fmt.Errorf("either --url or --demo is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surface, err := buildSurface(ctx, c.Bool("demo"), cfg, log)
	if err != nil {
		return err
	}
	defer surface.Close()

	opts := cfg.ExportOptions()
	factory, info, err := smartcodec.New(opts.VideoCodec, opts.Container)
	if err != nil {
		return err
	}
	log.Debug("Selected %s backend for %s/%s", info.Backend, info.Codec, info.Container)

	coordinator := export.New(opts, surface, smartcodec.NewProbe(), factory, log)
	coordinator.Buffer = cfg.BufferConfig()
	defer coordinator.Close()

	slot := coordinator.Subscribe(func(p export.Progress) {
		log.Debug("Progress %.1f%% (%s) %s", p.Percent, p.Stage, p.Message)
	})
	defer coordinator.Unsubscribe(slot)

	go func() {
		<-ctx.Done()
		if coordinator.Status() == export.StatusExporting || coordinator.Status() == export.StatusPreparing {
			log.Info("Interrupted, shutting down...")
			coordinator.Cancel()
		}
	}()

	result, err := coordinator.Download(context.Background(), osfilesystem.New(), cfg.OutputPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s, %d bytes, %dms)\n", resultPath(cfg.OutputPath, result), result.MIMEType, result.Size, result.ExportTimeMillis)
	return nil
}

func buildSurface(ctx context.Context, demo bool, cfg config.Config, log ports.Logger) (ports.RenderSurface, error) {
	if demo {
		durationMs := cfg.DurationMs
		if durationMs <= 0 {
			durationMs = 3000
		}
		return ggsurface.New(ggsurface.Options{
			Width:      cfg.Width,
			Height:     cfg.Height,
			DurationMs: durationMs,
			Background: cfg.Background,
		})
	}
	return chromesurface.Launch(ctx, chromesurface.Options{
		URL:          cfg.URL,
		Width:        cfg.Width,
		Height:       cfg.Height,
		DurationMs:   cfg.DurationMs,
		DurationExpr: cfg.DurationExpr,
		SeekExpr:     cfg.SeekExpr,
		Headless:     cfg.Headless,
		ChromePath:   cfg.ChromePath,
	}, log)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("url"); v != "" {
		cfg.URL = v
	}
	if v := c.String("out"); v != "" {
		cfg.OutputPath = v
	}
	if v := c.Int("width"); v > 0 {
		cfg.Width = v
	}
	if v := c.Int("height"); v > 0 {
		cfg.Height = v
	}
	if v := c.Int("fps"); v > 0 {
		cfg.FrameRate = v
	}
	if v := c.Int("bitrate"); v > 0 {
		cfg.BitrateBps = v
	}
	if v := c.String("quality"); v != "" {
		cfg.Quality = v
	}
	if v := c.String("container"); v != "" {
		cfg.Container = v
	}
	if v := c.Float64("duration"); v > 0 {
		cfg.DurationMs = v
	}
	if v := c.Float64("outro"); v > 0 {
		cfg.OutroMs = v
	}
	if v := c.String("chrome-path"); v != "" {
		cfg.ChromePath = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
}

func resultPath(configured string, result *export.Result) string {
	if configured != "" {
		return configured
	}
	return result.Filename
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: l10n.T("Report codec and container support on this host"),
		Action: func(c *cli.Context) error {
			fmt.Printf("av01 (libaom): %v\n", smartcodec.IsAV1Available())
			fmt.Println("containers: mp4, webm")
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("framecast version %s", version))
			return nil
		},
	}
}
