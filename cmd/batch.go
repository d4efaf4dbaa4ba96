package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tanq16/dlq/internal/config"
	"github.com/tanq16/dlq/internal/utils"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := config.LoadBatch(args[0])
			if err != nil {
				return err
			}
			return runDownloads(cmd, planBatch(entries))
		},
	}
	return cmd
}

func planBatch(entries []config.BatchEntry) []download {
	downloads := make([]download, 0, len(entries))
	for _, e := range entries {
		dest := e.OutputPath
		if dest == "" {
			dest = utils.FileNameFromURL(e.Link)
		}
		downloads = append(downloads, download{link: e.Link, dest: dest})
	}
	return downloads
}
