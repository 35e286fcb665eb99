package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridheadroom/internal/checker"
	"github.com/jgoulah/gridheadroom/internal/config"
	"github.com/jgoulah/gridheadroom/internal/geocode"
	"github.com/jgoulah/gridheadroom/internal/opendata"
	"github.com/jgoulah/gridheadroom/internal/zones"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gridheadroom",
	Short: "Look up the UK Power Networks primary substation zone for an address",
	Long: `GridHeadroom geocodes an address, finds the primary substation zone that covers
(or is nearest to) it using UK Power Networks open data, and reports the zone's
grid site, supply point, headroom and average daily demand profile.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// newClient creates the open-data client for cfg
func newClient(cfg *config.Config) (*opendata.Client, error) {
	loc, err := cfg.GetLocation()
	if err != nil {
		return nil, err
	}
	return opendata.New(cfg.OpenData, loc), nil
}

// newChecker wires the geocoder and open-data client into a checker
func newChecker(cfg *config.Config) (*checker.Checker, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return checker.New(geocode.NewNominatim(cfg.Geocoder), client, client), nil
}

// defaultOptions returns check options from config
func defaultOptions(cfg *config.Config) (checker.Options, error) {
	mode, err := zones.ParseMode(cfg.GetMode())
	if err != nil {
		return checker.Options{}, fmt.Errorf("config mode: %w", err)
	}
	return checker.Options{
		Mode:     mode,
		Fallback: cfg.GetFallback(),
		Radius:   cfg.GetSearchRadius(),
		Window:   cfg.GetWindowDegrees(),
	}, nil
}
