package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"grabbit/internal/ytdlp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show grabbit and yt-dlp versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("grabbit %s\n", Version)

		extractor, err := ytdlp.New(cfg.YtDlpPath)
		if err != nil {
			fmt.Println("yt-dlp: not found")
			return
		}
		version, err := extractor.Version(context.Background())
		if err != nil {
			fmt.Println("yt-dlp: version check failed")
			return
		}
		fmt.Printf("yt-dlp %s\n", version)
	},
}
