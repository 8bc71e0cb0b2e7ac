package main

import (
	"context"
	"fmt"
	"time"

	"github.com/NethermindEth/feedermirror/node"
	"github.com/NethermindEth/feedermirror/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set through ldflags at build time
var Version string

const greeting = `
Feedermirror caches a Starknet feeder gateway into local storage and re-serves it.

`

const (
	configF       = "config"
	logLevelF     = "log-level"
	colourF       = "colour"
	dbPathF       = "db-path"
	feederURLF    = "feeder-url"
	horizonF      = "horizon"
	apiAddrF      = "api-addr"
	pollIntervalF = "poll-interval"
	apiKeyF       = "api-key"
	metricsF      = "metrics"
	metricsAddrF  = "metrics-addr"

	defaultConfig       = ""
	defaultColour       = true
	defaultDBPath       = "feeder_db"
	defaultFeederURL    = "https://alpha-mainnet.starknet.io"
	defaultHorizon      = uint64(600000)
	defaultAPIAddr      = "127.0.0.1:3000"
	defaultPollInterval = 5 * time.Second
	defaultAPIKey       = ""
	defaultMetrics      = false
	defaultMetricsAddr  = "127.0.0.1:9090"

	configFlagUsage   = "The yaml configuration file."
	logLevelFlagUsage = "Options: debug, info, warn, error."
	colourUsage       = "Use colour in log outputs."
	dbPathUsage       = "Location of the database files."
	feederURLUsage    = "The base URL of the feeder gateway to mirror."
	horizonUsage      = "The highest block number to sync, inclusive."
	apiAddrUsage      = "The address on which the read API listens for requests."
	pollIntervalUsage = "How long to wait before retrying a rate-limited or " +
		"failed fetch, and before re-checking a dependency that is not ready."
	apiKeyUsage      = "API key for bypassing feeder gateway throttling."
	metricsUsage     = "Enables the prometheus metrics server."
	metricsAddrUsage = "The address on which the metrics server listens."
)

// Mirror is the surface of the node the command drives; a function type
// keeps it swappable in tests.
type Mirror interface {
	Run(ctx context.Context)
	Config() node.Config
}

type NewMirrorFn func(cfg *node.Config, version string) (Mirror, error)

// RunningMirror is set once the command has built its node. Exposed for tests.
var RunningMirror Mirror

func NewCmd(newMirrorFn NewMirrorFn) *cobra.Command {
	var cfgFile string

	mirrorCmd := &cobra.Command{
		Use:     "feedermirror [flags]",
		Short:   "Starknet feeder gateway mirror.",
		Version: Version,
	}

	logLevel := utils.INFO
	mirrorCmd.Flags().StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	mirrorCmd.Flags().Var(&logLevel, logLevelF, logLevelFlagUsage)
	mirrorCmd.Flags().Bool(colourF, defaultColour, colourUsage)
	mirrorCmd.Flags().String(dbPathF, defaultDBPath, dbPathUsage)
	mirrorCmd.Flags().String(feederURLF, defaultFeederURL, feederURLUsage)
	mirrorCmd.Flags().Uint64(horizonF, defaultHorizon, horizonUsage)
	mirrorCmd.Flags().String(apiAddrF, defaultAPIAddr, apiAddrUsage)
	mirrorCmd.Flags().Duration(pollIntervalF, defaultPollInterval, pollIntervalUsage)
	mirrorCmd.Flags().String(apiKeyF, defaultAPIKey, apiKeyUsage)
	mirrorCmd.Flags().Bool(metricsF, defaultMetrics, metricsUsage)
	mirrorCmd.Flags().String(metricsAddrF, defaultMetricsAddr, metricsAddrUsage)

	mirrorCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v := viper.New()
		if cfgFile != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}

		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if _, err := fmt.Fprint(cmd.OutOrStdout(), greeting); err != nil {
			return err
		}

		cfg := new(node.Config)
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		))); err != nil {
			return err
		}

		mirror, err := newMirrorFn(cfg, Version)
		if err != nil {
			return err
		}
		RunningMirror = mirror

		mirror.Run(cmd.Context())
		return nil
	}

	return mirrorCmd
}
