package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatd/pkg/api"
	"chatd/pkg/auth"
	"chatd/pkg/banner"
	"chatd/pkg/chat"
	"chatd/pkg/config"
	"chatd/pkg/logger"
	"chatd/pkg/pubsub"
	"chatd/pkg/shutdown"
	"chatd/pkg/store"
)

func main() {
	// build metadata - set via ldflags during build/release
	var (
		version   = "dev"
		commit    = "none"
		buildDate = "unknown"
	)
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		shutdown.Abort("failed to load config", err)
	}
	logger.InitWithLevel(cfg.Logging.Level, cfg.Logging.Format)

	// Flags explicitly set win over env/config for addr and dbPath.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := dbVal
	if !setFlags["db"] && cfg.Storage.DBPath != "" {
		dbPath = cfg.Storage.DBPath
	}

	st, err := store.Open(dbPath)
	if err != nil {
		shutdown.Abort("failed to open pebble at "+dbPath, err)
	}

	var hub pubsub.Hub
	if cfg.Pubsub.URL != "" {
		hub = pubsub.NewWSHub(cfg.Pubsub.URL, cfg.Pubsub.APIKey)
	} else {
		logger.Warn("pubsub_url_unset", "fallback", "in-process hub")
		hub = pubsub.NewMemoryHub()
	}
	svc := chat.New(st, hub)

	backend, frontend, signing := cfg.SecKeys()
	sec := auth.SecConfig{
		BackendKeys:  backend,
		FrontendKeys: frontend,
		SigningKeys:  signing,
		RPS:          cfg.Security.RateLimit.RPS,
		Burst:        cfg.Security.RateLimit.Burst,
	}

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.Print(addr, dbPath, strings.Join(srcs, ", "), verStr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(svc, sec),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdown.Abort("http server failed", err)
		}
	}()
	shutdown.Graceful(srv, 10*time.Second, st.Close)
}
