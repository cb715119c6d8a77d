package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"grabbit/internal/store"
)

var (
	statsTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	statsValueStyle = lipgloss.NewStyle().Bold(true)
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show global download statistics",
	RunE:  statsRun,
}

func statsRun(cmd *cobra.Command, args []string) error {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.Statistics()
	if err != nil {
		return err
	}

	// Styling only when stdout is an interactive terminal.
	styled := term.IsTerminal(int(os.Stdout.Fd()))
	label := func(s string) string {
		if styled {
			return statsLabelStyle.Render(s)
		}
		return s
	}
	value := func(s string) string {
		if styled {
			return statsValueStyle.Render(s)
		}
		return s
	}

	title := "grabbit statistics"
	if styled {
		title = statsTitleStyle.Render(title)
	}
	fmt.Println(title)
	fmt.Printf("%s %s\n", label("users:"), value(fmt.Sprint(st.TotalUsers)))
	fmt.Printf("%s %s\n", label("downloads:"), value(fmt.Sprint(st.TotalDownloads)))
	fmt.Printf("%s %s\n", label("videos:"), value(fmt.Sprint(st.VideoDownloads)))
	fmt.Printf("%s %s\n", label("audio:"), value(fmt.Sprint(st.AudioDownloads)))

	if len(st.PerPlatform) > 0 {
		fmt.Println(label("by platform:"))
		platforms := make([]string, 0, len(st.PerPlatform))
		for p := range st.PerPlatform {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		for _, p := range platforms {
			fmt.Printf("  %s %s\n", label(p+":"), value(fmt.Sprint(st.PerPlatform[p])))
		}
	}
	return nil
}
