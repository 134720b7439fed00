package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatterd/pkg/api"
	"chatterd/pkg/chat"
	"chatterd/pkg/config"
	"chatterd/pkg/logger"
	"chatterd/pkg/maintenance"
	"chatterd/pkg/models"
	"chatterd/pkg/security"
	"chatterd/pkg/store"
	"chatterd/pkg/telemetry"
	"chatterd/pkg/validation"
	"chatterd/pkg/ws"
)

// App wires the store, engine, hub and HTTP surface together and runs
// them until the context is cancelled.
type App struct {
	cfg *config.Config
}

// New builds an App from config.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run opens the store, starts the hub and maintenance sweep, and
// serves HTTP until ctx is cancelled. The store is closed last so
// in-flight status updates always land.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store_close_failed", "error", err)
		}
	}()

	if err := seedAdmin(st, cfg.Security.Admin); err != nil {
		return err
	}
	validation.SetMaxPayloadBytes(cfg.Websocket.MaxPayloadBytes.Int64())

	hub := ws.NewHub(cfg.Websocket.MaxFrameBytes.Int64(), cfg.Security.CORS.AllowedOrigins)
	engine := chat.NewEngine(st, st, hub)
	hub.Bind(engine)
	go hub.Run()

	stopMaint, err := maintenance.Start(ctx, cfg.Maintenance, st)
	if err != nil {
		return err
	}
	defer stopMaint()

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, w, r)
	})
	api.New(st, hub).Register(router)

	secCfg := security.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
	}
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: security.Middleware(secCfg)(router),
	}

	errc := make(chan error, 1)
	go func() {
		cert, key := cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errc <- srv.ListenAndServeTLS(cert, key)
			return
		}
		errc <- srv.ListenAndServe()
	}()
	logger.Info("server_listening", "addr", cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server_shutdown_forced", "error", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// seedAdmin creates the configured admin account if it does not exist.
func seedAdmin(st *store.Store, seed config.AdminSeed) error {
	if seed.Phone == "" || seed.Password == "" {
		logger.Info("admin_seed_skipped")
		return nil
	}
	if st.IdentityExists(seed.Phone) {
		return nil
	}
	u := models.User{Phone: seed.Phone, Username: seed.Username, Password: seed.Password, IsAdmin: true}
	if err := st.SaveUser(u); err != nil {
		return err
	}
	logger.Info("admin_seeded", "phone", seed.Phone)
	return nil
}
