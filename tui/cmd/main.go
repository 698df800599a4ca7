package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/app"
	"github.com/zappabad/stockpond/internal/config"
	"github.com/zappabad/stockpond/internal/logging"
	"github.com/zappabad/stockpond/tui"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Console logging would corrupt the alt screen.
	if cfg.Log.Mode == "" || cfg.Log.Mode == "console" {
		cfg.Log.Mode = "file"
	}
	if err := logging.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logx.Close()

	// Interactive speeds stay within a watchable range.
	cfg.Playback.TickInterval = config.ClampTick(cfg.Playback.TickInterval)

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	model := tui.NewModel(a.Playback, a.Notices, a.Catalog)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
