package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	aureamedia "github.com/menta2k/aurea-media"
	"github.com/menta2k/aurea-media/pkg/resolver"
	"github.com/menta2k/aurea-media/pkg/storage"
)

var resolveOpts struct {
	out     string
	baseDir string
	dryRun  bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <document>",
	Short: "Upload pending local assets in a portfolio document",
	Long: `Resolve reads a JSON or YAML portfolio document ("-" for stdin), uploads
every pending local asset to the configured storage backend, and writes the
document with each asset replaced by its remote URL.

A pending asset is an object with "isLocal": true, a "preview" locator and a
"file" path. Paths are relative to --base-dir, which defaults to the
document's directory. Assets sharing a preview are uploaded once. If any
upload fails nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVarP(&resolveOpts.out, "out", "o", "", "output file, .yaml/.yml writes YAML (default: JSON on stdout)")
	f.StringVar(&resolveOpts.baseDir, "base-dir", "", "directory relative asset paths are resolved against")
	f.BoolVar(&resolveOpts.dryRun, "dry-run", false, "list pending assets without uploading")
}

func runResolve(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	baseDir := resolveOpts.baseDir
	if baseDir == "" && args[0] != "-" {
		baseDir = filepath.Dir(args[0])
	}
	doc = resolver.BindLocalFiles(doc, baseDir)

	if resolveOpts.dryRun {
		for _, asset := range resolver.New(nil).Discover(doc) {
			size := asset.Blob.Size()
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", asset.Preview, asset.Blob.ContentType(), size); err != nil {
				return err
			}
		}
		return nil
	}

	uploader, err := storage.New(cfg.StorageSettings())
	if err != nil {
		return err
	}
	if err := storage.Prepare(cmd.Context(), uploader); err != nil {
		return err
	}

	media := aureamedia.New(aureamedia.Options{
		Uploader:       uploader,
		MaxConcurrency: cfg.Resolver.MaxConcurrency,
		Logger:         logger,
	})

	resolved, err := media.Resolve(cmd.Context(), doc)
	if err != nil {
		return err
	}

	data, err := encodeDocument(resolved, resolveOpts.out)
	if err != nil {
		return err
	}
	if resolveOpts.out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(resolveOpts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	logger.Info("wrote resolved document", zap.String("path", resolveOpts.out))
	return nil
}

// readDocument decodes a JSON or YAML document into plain maps and slices
func readDocument(path string, stdin io.Reader) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var doc any
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func encodeDocument(doc any, path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(doc)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
