package main

import (
	"fmt"

	"github.com/Wyydra/yaphone/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/yaphone/internal/adapter/driven/persistence/sqlite"
	"github.com/Wyydra/yaphone/internal/config"
	"github.com/Wyydra/yaphone/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "phone",
	Short:        "Call signaling client with a local control API",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, deregisterCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	return cfg, nil
}

func openStore(cfg config.Config) (port.DeviceStore, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewDeviceStore(), func() error { return nil }, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
