package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/open2log/open2log-go/internal/api"
	"github.com/open2log/open2log-go/internal/config"
	"github.com/open2log/open2log-go/internal/database"
	"github.com/open2log/open2log-go/internal/logging"
	"github.com/open2log/open2log-go/internal/netmon"
	"github.com/open2log/open2log-go/internal/store"
	"github.com/open2log/open2log-go/internal/sync"
	"github.com/open2log/open2log-go/internal/uploader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	client := api.New(cfg.APIURL, cfg.APITimeout)
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	manager := sync.NewManager(
		sync.Config{WifiOnly: cfg.WifiOnly, CacheTTL: cfg.CacheTTL},
		store.NewPendingUploadStore(db),
		store.NewShopCacheStore(db),
		client,
		uploader.New(client, cfg.UploadTimeout),
		logger,
	)
	manager.Subscribe(func(st sync.State) {
		logger.Debug("sync state",
			"online", st.Online,
			"wifi", st.Wifi,
			"syncing", st.Syncing,
			"progress", st.Progress,
			"pending", st.PendingCount,
			"stalled", st.StalledCount,
		)
	})

	monitor := netmon.New(cfg.ProbeTarget(), cfg.ProbeInterval, manager.HandleConnectivity)
	monitor.Start(context.Background())

	logger.Info("open2log sync engine running",
		"api", cfg.APIURL,
		"db", cfg.DBPath,
		"wifi_only", cfg.WifiOnly,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	monitor.Stop()
}
