package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	aureamedia "github.com/menta2k/aurea-media"
	"github.com/menta2k/aurea-media/internal/config"
	"github.com/menta2k/aurea-media/internal/logging"
	"github.com/menta2k/aurea-media/pkg/client"
	"github.com/menta2k/aurea-media/pkg/detection"
	"github.com/menta2k/aurea-media/pkg/llamacpp"
	"github.com/menta2k/aurea-media/pkg/ollama"
	"github.com/menta2k/aurea-media/pkg/vision"
)

var (
	// Global flags
	configPath string
	logLevel   string
	envFiles   []string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aurea-media",
	Short: "Crop, suggest and publish portfolio media",
	Long: `aurea-media prepares portfolio images for publishing.

It crops sources with rotation, suggests crops around the subject of an
image, and resolves portfolio documents by uploading their pending local
assets and replacing them with remote URLs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}

		path := configPath
		if path == "" {
			if _, err := os.Stat(config.GetConfigPath()); err == nil {
				path = config.GetConfigPath()
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		if path != "" {
			logger.Debug("loaded configuration", zap.String("path", path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "aurea-media %s\n", aureamedia.GetVersion())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (json or yaml, default: "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default: .env)")

	rootCmd.AddCommand(cropCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLocator builds the subject locator for the configured vision backend
func newLocator(vc config.VisionConfig) (detection.Locator, error) {
	var visionClient client.VisionClient
	var err error

	switch strings.ToLower(vc.Backend) {
	case "", "saliency":
		return vision.New(), nil
	case "ollama":
		u := vc.URL
		if u == "" {
			u = "http://localhost:11434"
		}
		visionClient, err = ollama.NewClient(u)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(vc.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown vision backend: %s (use saliency, ollama or llamacpp)", vc.Backend)
	}

	return detection.NewDetector(visionClient, vc.Model,
		detection.WithSendImage(vc.SendFormat, vc.SendSize, vc.SendQuality),
	), nil
}

// parseAspect parses "W:H" into its two positive parts
func parseAspect(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid aspect %q (want W:H)", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect %q (want W:H)", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect %q (want W:H)", s)
	}
	return w, h, nil
}
