package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	aureamedia "github.com/menta2k/aurea-media"
	"github.com/menta2k/aurea-media/internal/utils"
	"github.com/menta2k/aurea-media/pkg/detection"
	"github.com/menta2k/aurea-media/pkg/types"
)

var suggestOpts struct {
	aspects []string
	zoom    float64
	outDir  string
}

// suggestion is one line of suggest output
type suggestion struct {
	Source string `json:"source"`
	Aspect string `json:"aspect"`
	detection.Suggestion
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <source|dir>...",
	Short: "Suggest crop regions around the subject of images",
	Long: `Suggest locates the subject of each source with the configured vision
backend (saliency, ollama or llamacpp) and prints the largest region of each
aspect ratio that keeps the subject as centered as possible. Directories are
searched for images. With --out, the suggested crops are also written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func init() {
	f := suggestCmd.Flags()
	f.StringSliceVarP(&suggestOpts.aspects, "aspect", "a", []string{"1:1"}, "aspect ratios as W:H (repeatable)")
	f.Float64Var(&suggestOpts.zoom, "zoom", 1.0, "shrink factor for the region (0.01..1.0)")
	f.StringVarP(&suggestOpts.outDir, "out", "o", "", "directory to write suggested crops to")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	type aspect struct {
		name string
		w, h int
	}
	var aspects []aspect
	for _, a := range suggestOpts.aspects {
		w, h, err := parseAspect(a)
		if err != nil {
			return err
		}
		aspects = append(aspects, aspect{a, w, h})
	}

	sources, err := expandSources(args)
	if err != nil {
		return err
	}

	locator, err := newLocator(cfg.Vision)
	if err != nil {
		return err
	}
	cc, err := cfg.CropperSettings()
	if err != nil {
		return err
	}
	media := aureamedia.New(aureamedia.Options{Cropper: cc, Locator: locator, Logger: logger})

	if err := utils.EnsureDir(suggestOpts.outDir); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	failed := 0
	for _, source := range sources {
		img, err := media.Processor().Decode(cmd.Context(), source)
		if err != nil {
			failed++
			logger.Warn("failed to load source", zap.String("source", source), zap.Error(err))
			_ = enc.Encode(suggestion{Source: source, Error: err.Error()})
			continue
		}

		for _, a := range aspects {
			line := suggestion{Source: source, Aspect: a.name}
			s, err := media.SuggestCropImage(cmd.Context(), img, a.w, a.h, suggestOpts.zoom)
			if err != nil {
				failed++
				line.Error = err.Error()
				_ = enc.Encode(line)
				continue
			}
			line.Suggestion = *s

			if suggestOpts.outDir != "" {
				cropped, err := media.CropImage(img, s.Region, 0)
				if err == nil {
					suffix := fmt.Sprintf("_%dx%d", a.w, a.h)
					out := utils.GenerateOutputFilename(source, suggestOpts.outDir, "", suffix, cc.Format)
					err = media.Processor().SaveImage(cropped, out, types.EncodeOptions{Format: cc.Format, Quality: cc.Quality, Lossless: cc.Lossless})
					line.Output = out
				}
				if err != nil {
					failed++
					line.Error = err.Error()
				}
			}

			if err := enc.Encode(line); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d suggestion(s) failed", failed)
	}
	return nil
}

// expandSources replaces directory arguments with the images inside them
func expandSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		if !utils.DirExists(arg) {
			sources = append(sources, arg)
			continue
		}
		files, err := utils.ListImageFiles(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		sources = append(sources, files...)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return sources, nil
}
