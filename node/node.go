// Package node assembles and runs the mirror: three ingestion pipelines and
// the read API as independent services sharing one cancellation signal.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/NethermindEth/feedermirror/db/pebble"
	"github.com/NethermindEth/feedermirror/feeder"
	"github.com/NethermindEth/feedermirror/gateway"
	"github.com/NethermindEth/feedermirror/service"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/sync"
	"github.com/NethermindEth/feedermirror/utils"
	"github.com/sourcegraph/conc"
)

// Config is the top-level mirror configuration.
type Config struct {
	LogLevel     utils.LogLevel `mapstructure:"log-level"`
	Colour       bool           `mapstructure:"colour"`
	DatabasePath string         `mapstructure:"db-path"`
	FeederURL    string         `mapstructure:"feeder-url"`
	Horizon      uint64         `mapstructure:"horizon"`
	APIAddr      string         `mapstructure:"api-addr"`
	PollInterval time.Duration  `mapstructure:"poll-interval"`
	APIKey       string         `mapstructure:"api-key"`

	Metrics     bool   `mapstructure:"metrics"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

type Node struct {
	cfg *Config
	db  *pebble.DB

	services []service.Service
	log      utils.Logger

	version string
}

// New opens the database and wires every service. Watermarks are recovered
// by each sequential pipeline at the start of its run.
func New(cfg *Config, version string) (*Node, error) {
	log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}
	dbLog, err := utils.NewZapLogger(utils.ERROR, cfg.Colour)
	if err != nil {
		return nil, fmt.Errorf("create DB logger: %w", err)
	}

	database, err := pebble.New(cfg.DatabasePath, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open DB: %w", err)
	}
	store := storage.New(database)

	ua := fmt.Sprintf("Feedermirror/%s Starknet Feeder Gateway Mirror", version)
	client := feeder.NewClient(cfg.FeederURL).
		WithUserAgent(ua).
		WithRetryDelay(cfg.PollInterval).
		WithLogger(log)
	if cfg.APIKey != "" {
		client = client.WithAPIKey(cfg.APIKey)
	}

	blockHead := new(sync.HeadTracker)
	stateHead := new(sync.HeadTracker)

	blockSync := sync.NewBlockSynchronizer(client, store, blockHead, cfg.Horizon, log).
		WithRetryDelay(cfg.PollInterval)
	stateSync := sync.NewStateUpdateSynchronizer(client, store, stateHead, cfg.Horizon, log).
		WithRetryDelay(cfg.PollInterval)
	classSync := sync.NewClassSynchronizer(client, store, cfg.Horizon, log).
		WithRetryDelay(cfg.PollInterval)

	services := []service.Service{blockSync, stateSync, classSync}

	readAPI := gateway.New(store, blockHead, stateHead, log)
	services = append(services, makeReadAPI(cfg.APIAddr, readAPI, log))

	if cfg.Metrics {
		database.WithListener(makeDBMetrics())
		client.WithListener(makeFeederMetrics())
		syncMetrics := makeSyncMetrics()
		blockSync.WithListener(syncMetrics)
		stateSync.WithListener(syncMetrics)
		classSync.WithListener(syncMetrics)
		services = append(services, makeMetrics(cfg.MetricsAddr))
	}

	return &Node{
		cfg:      cfg,
		db:       database,
		services: services,
		log:      log,
		version:  version,
	}, nil
}

// Run starts all services and waits for every one of them to return. Each
// service's outcome is logged on its own; a failure or panic in one service
// does not cancel its siblings, only external cancellation stops the mirror.
func (n *Node) Run(ctx context.Context) {
	defer func() {
		if closeErr := n.db.Close(); closeErr != nil {
			n.log.Errorw("Error while closing the DB", "err", closeErr)
		}
	}()

	n.log.Infow("Starting feeder gateway mirror", "version", n.version,
		"feeder", n.cfg.FeederURL, "horizon", n.cfg.Horizon, "api", n.cfg.APIAddr)

	wg := conc.NewWaitGroup()
	for _, s := range n.services {
		s := s
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service failed", "name", fmt.Sprintf("%T", s), "err", err)
			} else if reporter, ok := s.(service.Reporter); ok {
				n.log.Infow("Service stopped", "name", fmt.Sprintf("%T", s), "summary", reporter.Summary())
			} else {
				n.log.Infow("Service stopped", "name", fmt.Sprintf("%T", s))
			}
		})
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		n.log.Errorw("Service panicked", "panic", recovered.String())
	}
	n.log.Infow("Shutting down the mirror")
}

func (n *Node) Config() Config {
	return *n.cfg
}
