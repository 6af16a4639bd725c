package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"snesclient/internal/app"
	"snesclient/internal/config"

	_ "snesclient/internal/games/alttp"
	_ "snesclient/internal/games/sm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	flag.StringVar(&cfg.GameTitle, "game", cfg.GameTitle, "game title to reconcile")
	flag.StringVar(&cfg.ServerAddress, "server", cfg.ServerAddress, "multiworld server address")
	flag.StringVar(&cfg.SlotName, "slot", cfg.SlotName, "slot name to authenticate as")
	flag.StringVar(&cfg.Password, "password", cfg.Password, "room password")
	flag.StringVar(&cfg.DeviceServerAddress, "device-server", cfg.DeviceServerAddress, "console device server address")
	flag.StringVar(&cfg.DeviceURI, "device", cfg.DeviceURI, "device uri when the server lists several")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := app.New(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("%v", err)
	}
}
