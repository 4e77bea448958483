package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/segdl/internal/config"
	"github.com/tanq16/segdl/internal/output"
	"github.com/tanq16/segdl/internal/utils"
)

// BatchFile groups entries by source type ("http" or "s3").
type BatchFile map[string][]utils.DownloadEntry

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			entries, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			return runDownloads(cmd.Context(), cfg, entries)
		},
	}
}

func readBatchFile(path string) ([]utils.DownloadEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	var entries []utils.DownloadEntry
	for _, kind := range slices.Sorted(maps.Keys(batchFile)) {
		group := batchFile[kind]
		switch strings.ToLower(kind) {
		case "http", "https", "s3":
		default:
			output.PrintWarning(fmt.Sprintf("Warning: Unknown source type '%s', skipping...", kind))
			continue
		}
		for _, entry := range group {
			if entry.URL == "" {
				output.PrintWarning(fmt.Sprintf("Warning: Empty link found in %s section, skipping...", kind))
				continue
			}
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("no valid entries found in the batch file")
	}
	return entries, nil
}
