// Package main provides the stembox entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/infra/config"
	"github.com/osa030/stembox/internal/infra/logger"
)

var (
	app        = kingpin.New("stembox", "Multi-stem mixing and playback console")
	configPath = app.Flag("config", "Path to config file").Default("config/stembox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
	deviceType = app.Flag("device", "Output device: speaker or null").Enum("speaker", "null")

	stemsCmd  = app.Command("stems", "Load stems and open the playback console")
	stemsDir  = stemsCmd.Flag("dir", "Load every WAV file in this directory as a stem").ExistingDir()
	stemsArgs = stemsCmd.Arg("stem", "Stem as name=path, or a path named after its file").Strings()

	localCmd  = app.Command("local", "Open a single local file in the playback console")
	localPath = localCmd.Arg("file", "Audio file (wav, mp3, flac, ogg)").Required().ExistingFile()

	renderCmd  = app.Command("render", "Mix stems into a WAV file in the output directory")
	renderDir  = renderCmd.Flag("dir", "Load every WAV file in this directory as a stem").ExistingDir()
	renderMute = renderCmd.Flag("mute", "Stem to leave out of the mix (repeatable)").Strings()
	renderGain = renderCmd.Flag("gain", "Stem gain as name=value (repeatable)").StringMap()
	renderOut  = renderCmd.Flag("out", "Output file name").Default("mix.wav").String()
	renderArgs = renderCmd.Arg("stem", "Stem as name=path, or a path named after its file").Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	zlog.Debug().Msgf("loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *deviceType != "" {
		cfg.Device.Type = *deviceType
	}

	closeLog, err := logger.Init(loggerConfig(cfg))
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, cfg); err != nil {
		zlog.Error().Msgf("stembox: %v", err)
		stop()
		_ = closeLog()
		os.Exit(1)
	}
}

// run executes the selected command. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(ctx context.Context, command string, cfg *config.Config) error {
	switch command {
	case stemsCmd.FullCommand():
		files, err := collectStems(*stemsDir, *stemsArgs)
		if err != nil {
			return err
		}
		return runConsole(ctx, cfg, func(c *console) error { return c.ctrl.LoadStems(ctx, files) })

	case localCmd.FullCommand():
		return runConsole(ctx, cfg, func(c *console) error { return c.ctrl.LoadLocal(ctx, *localPath) })

	case renderCmd.FullCommand():
		files, err := collectStems(*renderDir, *renderArgs)
		if err != nil {
			return err
		}
		path, err := renderToFile(ctx, cfg, renderRequest{
			Files: files,
			Mute:  *renderMute,
			Gains: *renderGain,
			Name:  *renderOut,
		})
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loggerConfig(cfg *config.Config) logger.Config {
	lc := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
	}
	// Override with command-line flags if specified
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}
