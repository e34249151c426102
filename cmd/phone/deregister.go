package main

import (
	"context"
	"errors"

	"github.com/Wyydra/yaphone/internal/adapter/driven/rest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var deregisterCmd = &cobra.Command{
	Use:   "deregister",
	Short: "Delete the stored device registration",
	RunE:  deregister,
}

func deregister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	defer cancel()

	url, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if url == "" {
		return errors.New("no stored device")
	}
	registry := rest.NewRegistry(rest.NewClient(cfg.AccessToken, cfg.HTTPTimeout), cfg.RegistryURL, cfg.RegionURL)
	if err := registry.Deregister(ctx, url); err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	log.Info().Str("device_url", url).Msg("Device deregistered")
	return nil
}
