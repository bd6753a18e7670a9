package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"peaceclaims.dev/internal/commands"
	"peaceclaims.dev/internal/config"
	"peaceclaims.dev/internal/engine"
	persistlog "peaceclaims.dev/internal/persistence/log"
	"peaceclaims.dev/internal/persistence/sqlite"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/players"
	"peaceclaims.dev/internal/service"
	"peaceclaims.dev/internal/transport/admin"
	"peaceclaims.dev/internal/transport/observer"
	"peaceclaims.dev/internal/transport/ws"
)

func main() {
	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	var (
		addr        = flag.String("addr", envString("PEACECLAIMS_ADDR", ":8080"), "http listen address")
		configPath  = flag.String("config", envString("PEACECLAIMS_CONFIG", ""), "path to config.yaml (empty: built-in defaults)")
		dataDir     = flag.String("data", envString("PEACECLAIMS_DATA", "./data"), "runtime data directory")
		backendName = flag.String("backend", envString("PEACECLAIMS_BACKEND", "sqlite"), "persistence backend: sqlite or memory")
	)
	flag.Parse()

	logger := newLogger("server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	backend, err := openBackend(*backendName, *dataDir)
	if err != nil {
		logger.Fatalf("open backend: %v", err)
	}
	defer backend.Close()

	writer := store.NewWriter(store.WriterConfig{
		Backend:   backend,
		Logger:    newLogger("store"),
		QueueSize: cfg.Persistence.QueueSize,
		OpTimeout: cfg.PersistenceTimeout(),
	})

	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()
	obsSrv := observer.NewServer(newLogger("observer"))
	obsSrv.AllowRemote = envBool("PEACECLAIMS_OBSERVER_REMOTE", false)

	ctx, cancel := signalContext()
	defer cancel()

	hub := ws.NewHub()
	dir := players.NewDirectory()
	var svc *service.Service
	loop := engine.New(engine.Config{
		Logger:     newLogger("engine"),
		SweepEvery: time.Hour,
		OnSweep: func(now time.Time) {
			r := svc.Sweep(ctx, now)
			logger.Printf("sweep: checked=%d credited=%d expired=%d failed=%d", r.Checked, r.Credited, r.Expired, r.Failed)
		},
	})

	econ := ws.NewEconomy(hub, economyTimeout)
	svc, err = service.New(cfg, service.Deps{
		Writer:   writer,
		Perms:    dir,
		Notifier: hub,
		Economy:  econ,
		Audit:    persistlog.Tee{auditLog, obsSrv},
		Logger:   newLogger("service"),
		Post:     loop.Post,
	})
	if err != nil {
		logger.Fatalf("service: %v", err)
	}
	hub.Render = func(key string, args ...any) string { return svc.Config().Render(key, args...) }

	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	err = svc.Load(loadCtx, backend)
	loadCancel()
	if err != nil {
		logger.Fatalf("load state: %v", err)
	}
	st := svc.State()
	logger.Printf("loaded %d claims, %d invitations, %d pvp areas from %s backend", st.Claims, st.Invitations, st.PvpAreas, *backendName)

	reload := func() (config.Config, error) { return config.Load(*configPath) }

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(loop, svc, hub, obsSrv))

	if envBool("PEACECLAIMS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		admin.NewServer(admin.Config{
			Service: svc,
			Loop:    loop,
			Logger:  newLogger("admin"),
			Secret:  []byte(envString("PEACECLAIMS_ADMIN_SECRET", "")),
			Reload:  reload,
		}).Register(mux)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (PEACECLAIMS_ENABLE_ADMIN_HTTP=false)")
	}

	bridgeToken := envString("PEACECLAIMS_BRIDGE_TOKEN", "")
	if bridgeToken == "" {
		logger.Printf("bridge token not set; only loopback hosts may connect to /v1/ws")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(ws.Config{
		Hub:            hub,
		Service:        svc,
		Dispatcher:     commands.New(svc, dir, reload),
		Loop:           loop,
		Directory:      dir,
		Logger:         newLogger("bridge"),
		Token:          bridgeToken,
		RequestTimeout: cfg.PersistenceTimeout() + 2*economyTimeout + time.Second,
	}).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
		loop.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := writer.Flush(flushCtx); err != nil {
		logger.Printf("flush: %v", err)
	}
	flushCancel()
	_ = writer.Close()
	logger.Printf("bye")
}

func newLogger(name string) *log.Logger {
	return log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lmicroseconds)
}

func openBackend(name, dataDir string) (store.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite":
		return sqlite.Open(filepath.Join(dataDir, "peaceclaims.sqlite"))
	case "memory", "none":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", name)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// economyTimeout bounds one balance or withdraw round trip to the host.
const economyTimeout = 2 * time.Second

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
