// Package app assembles the stockpond services and manages their lifecycle.
package app

import (
	"fmt"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/config"
	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/market"
	noticeservice "github.com/zappabad/stockpond/internal/notice/service"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
)

// App owns all subsystems.
type App struct {
	Catalog  market.Catalog
	Source   datasource.Source
	Notices  *noticeservice.NoticeService
	Playback *playbackservice.Controller

	cfg config.Config
	mu  sync.Mutex
}

// New builds an App from cfg.
func New(cfg config.Config, opts Options) (*App, error) {
	catalog := opts.Catalog
	if catalog == nil {
		if cfg.CatalogFile != "" {
			c, err := market.LoadCatalog(cfg.CatalogFile)
			if err != nil {
				return nil, err
			}
			catalog = c
		} else {
			catalog = market.DefaultCatalog()
		}
	}

	gen := generator.New(cfg.Generator)

	var src datasource.Source
	switch cfg.Source {
	case config.SourceSynthetic, "":
		src = datasource.NewSynthetic(cfg.Synthetic, gen, catalog)
	case config.SourceEODHD:
		eod := datasource.NewEODHD(cfg.EODHD, gen)
		// Series and quote requests share one spaced queue.
		if budget := eod.QueueBudget(2 * market.MaxSelected); cfg.Playback.FetchTimeout < budget {
			cfg.Playback.FetchTimeout = budget
		}
		src = eod
	default:
		return nil, fmt.Errorf("%w: source %q", market.ErrInvalidInput, cfg.Source)
	}

	a := &App{
		Catalog: catalog,
		Source:  src,
		cfg:     cfg,
	}
	a.Notices = noticeservice.NewNoticeService(cfg.Notices)
	a.Playback = playbackservice.NewController(cfg.Playback, src, opts.Clock, a.Notices)

	for _, s := range cfg.Symbols {
		if err := a.Playback.AddSymbol(s); err != nil {
			a.Close()
			return nil, fmt.Errorf("select %s: %w", s, err)
		}
	}
	logx.Infof("app: using %s source with %d startup symbols", src.Name(), len(cfg.Symbols))
	return a, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Close shuts down all subsystems, playback first.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Playback != nil {
		a.Playback.Close()
	}
	if a.Notices != nil {
		a.Notices.Close()
	}
}
