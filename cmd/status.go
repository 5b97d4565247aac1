package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/truckfixgo/offline-agent/internal/config"
)

// NewStatusCmd returns the "status" subcommand that queries a running agent.
func NewStatusCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running agent",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStatus(cfg)
		},
	}
}

type agentStatus struct {
	Version      string         `json:"version"`
	State        string         `json:"state"`
	Online       bool           `json:"online"`
	Queues       map[string]int `json:"queues"`
	PageCount    int            `json:"pageCount"`
	InstallError string         `json:"installError"`
}

func runStatus(cfg *config.AppConfig) error {
	client := &http.Client{Timeout: 3 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/agent/status", cfg.Port)

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("agent not reachable on port %d (is it running?): %w", cfg.Port, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var st agentStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decoding status response: %w", err)
	}

	label := lipgloss.NewStyle().Bold(true).Width(14)
	good := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	bad := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	stateStyle := warn
	if st.State == "active" {
		stateStyle = good
	}
	connectivity := bad.Render("offline")
	if st.Online {
		connectivity = good.Render("online")
	}

	fmt.Println(label.Render("Version") + st.Version)
	fmt.Println(label.Render("State") + stateStyle.Render(st.State))
	fmt.Println(label.Render("Connectivity") + connectivity)
	fmt.Println(label.Render("Pages") + fmt.Sprintf("%d connected", st.PageCount))
	if st.InstallError != "" {
		fmt.Println(label.Render("Install") + bad.Render(st.InstallError))
	}

	names := make([]string, 0, len(st.Queues))
	for name := range st.Queues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		depth := st.Queues[name]
		rendered := good.Render("empty")
		if depth > 0 {
			rendered = warn.Render(fmt.Sprintf("%d pending", depth))
		}
		fmt.Println(label.Render(name) + rendered)
	}
	return nil
}
