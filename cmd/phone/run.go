package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wyydra/yaphone/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/yaphone/internal/adapter/driven/media/pion"
	"github.com/Wyydra/yaphone/internal/adapter/driven/mercury"
	"github.com/Wyydra/yaphone/internal/adapter/driven/rest"
	handler "github.com/Wyydra/yaphone/internal/adapter/driving/http"
	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	noRegister bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register the device and serve the control API",
	RunE:  run,
}

func init() {
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "control API address (overrides PHONE_LISTEN_ADDR)")
	runCmd.Flags().BoolVar(&noRegister, "no-register", false, "wait for POST /device instead of registering at startup")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	media, err := pion.NewEngine(cfg.ICEServers)
	if err != nil {
		return err
	}

	client := rest.NewClient(cfg.AccessToken, cfg.HTTPTimeout)
	transport := mercury.NewTransport(mercury.Config{
		Token:      cfg.AccessToken,
		BackoffMin: cfg.BackoffMin,
		BackoffMax: cfg.BackoffMax,
	})
	hub := ws.NewHub()
	phone := service.NewPhone(
		rest.NewRegistry(client, cfg.RegistryURL, cfg.RegionURL),
		store,
		rest.NewLocus(client),
		transport,
		media,
		hub,
		service.PhoneConfig{DeviceInfo: domain.NewDeviceInfo(cfg.DeviceName)},
	)

	go hub.Run()
	go phone.Run()

	h := handler.NewHandler(phone, hub)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Starting control API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start control API")
		}
	}()

	if !noRegister {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		if _, err := phone.Register(ctx); err != nil {
			log.Error().Err(err).Msg("Initial registration failed, retry with POST /device")
		}
		cancel()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Control API forced to shutdown")
	}

	transport.Disconnect()
	phone.Stop()
	hub.Stop()
	log.Info().Msg("Phone exited")
	return nil
}
