package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanq16/dlq/internal/utils"
)

func newGetCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get [URL...] [--output OUTPUT_PATH]",
		Short: "Download one or more http(s)://, s3:// or ghr:// links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			downloads, err := planGet(args, outputPath)
			if err != nil {
				return err
			}
			return runDownloads(cmd, downloads)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path, or a directory for the downloaded files")
	return cmd
}

// planGet picks a destination for every link. A directory output (existing
// or ending in a separator) receives files named after the URL path.
func planGet(links []string, outputPath string) ([]download, error) {
	isDir := strings.HasSuffix(outputPath, string(os.PathSeparator)) || strings.HasSuffix(outputPath, "/")
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		isDir = true
	}
	if len(links) > 1 && outputPath != "" && !isDir {
		return nil, fmt.Errorf("output must be a directory when downloading %d links", len(links))
	}
	downloads := make([]download, 0, len(links))
	for _, link := range links {
		dest := outputPath
		switch {
		case outputPath == "":
			dest = utils.FileNameFromURL(link)
		case isDir:
			dest = filepath.Join(outputPath, utils.FileNameFromURL(link))
		}
		downloads = append(downloads, download{link: link, dest: dest})
	}
	return downloads, nil
}
