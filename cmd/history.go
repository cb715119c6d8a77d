package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"grabbit/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recent downloads",
	RunE:  historyRun,
}

// historyItem adapts a download row to the bubbles list item interface.
type historyItem struct {
	d store.Download
}

func (i historyItem) Title() string { return i.d.Title }
func (i historyItem) Description() string {
	return fmt.Sprintf("%s · %s · user %d · %s",
		i.d.Platform, i.d.Type, i.d.UserID, i.d.Timestamp.Format("2006-01-02 15:04"))
}
func (i historyItem) FilterValue() string { return i.d.Title }

type historyModel struct {
	list list.Model
}

func (m historyModel) Init() tea.Cmd { return nil }

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "esc" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m historyModel) View() string { return m.list.View() }

func historyRun(cmd *cobra.Command, args []string) error {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	downloads, err := db.RecentDownloads(100)
	if err != nil {
		return err
	}
	if len(downloads) == 0 {
		fmt.Println("No downloads recorded yet.")
		return nil
	}

	items := make([]list.Item, len(downloads))
	for i, d := range downloads {
		items[i] = historyItem{d: d}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recent downloads"

	_, err = tea.NewProgram(historyModel{list: l}, tea.WithAltScreen()).Run()
	return err
}
