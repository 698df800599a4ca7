package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/app"
	"github.com/zappabad/stockpond/internal/config"
	"github.com/zappabad/stockpond/internal/logging"
	"github.com/zappabad/stockpond/internal/market"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
)

var defaultSymbols = []string{"AAPL", "MSFT", "NVDA"}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	symbols := flag.String("symbols", "", "comma separated symbols, overrides the configured list")
	speed := flag.Int("speed", 0, "tick interval in milliseconds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *symbols != "" {
		cfg.Symbols = strings.Split(*symbols, ",")
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = defaultSymbols
	}
	if err := logging.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		logx.Errorf("build app: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	if *speed > 0 {
		if err := a.Playback.SetSpeed(*speed); err != nil {
			logx.Errorf("set speed: %v", err)
			os.Exit(1)
		}
	}

	if err := run(ctx, a.Playback); err != nil {
		logx.Errorf("playback: %v", err)
		os.Exit(1)
	}
}

// run starts playback and prints one line per snapshot until the run ends or
// ctx is cancelled.
func run(ctx context.Context, ctrl *playbackservice.Controller) error {
	events := ctrl.Events()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	for _, f := range ctrl.Failures() {
		fmt.Printf("! %v\n", f)
	}
	order := ctrl.Selected()

	// Events queued before Start belong to no run; the run is identified by
	// its index-0 snapshot.
	runID := ""
	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			snap := ev.Snapshot
			if snap == nil {
				continue
			}
			if runID == "" && snap.Index == 0 {
				runID = snap.RunID
			}
			if snap.RunID != runID {
				continue
			}
			fmt.Println(formatSnapshot(*snap, order))
			if !snap.Running {
				fmt.Printf("playback finished after %d days\n", snap.Index+1)
				return nil
			}
		}
	}
}

func formatSnapshot(s playbackservice.Snapshot, order []market.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "day %3d/%d %s", s.Index+1, s.MaxIndex+1, s.Day)
	for _, sym := range order {
		st, ok := s.PerSymbol[sym]
		if !ok {
			continue
		}
		marker := ""
		if st.IsPrediction {
			marker = "*"
		}
		fmt.Fprintf(&b, " | %-5s %9.2f %+6.2f%% %-7s%s", sym, st.Price, st.ChangePercent, st.Mood, marker)
	}
	return b.String()
}
