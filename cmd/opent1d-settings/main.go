// Command opent1d-settings edits the LibreLinkUp settings of a running
// OpenT1D server from the terminal.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"opent1d/internal/config"
	"opent1d/internal/form"
	"opent1d/internal/gqlclient"
	"opent1d/internal/observability"
)

func main() {
	logCfg := observability.ConfigFromEnv()
	logCfg.Output = os.Stderr
	logger := observability.NewLogger(logCfg)

	cfg, err := config.LoadClient(os.Args[1:], gqlclient.DefaultURL)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("invalid configuration", observability.Err(err))
		os.Exit(2)
	}

	client, err := gqlclient.New(cfg.URL, gqlclient.WithHTTPClient(&http.Client{Timeout: requestTimeout}))
	if err != nil {
		logger.Error("create graphql client", observability.Err(err))
		os.Exit(1)
	}
	ctrl := form.New(client, form.WithAdoptSaved(cfg.AdoptSaved))

	if _, err := tea.NewProgram(newModel(ctrl)).Run(); err != nil {
		logger.Error("settings ui failed", observability.Err(err))
		os.Exit(1)
	}
}
