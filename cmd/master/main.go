package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/shipcluster/server/internal/channel"
	"github.com/shipcluster/server/internal/config"
	"github.com/shipcluster/server/internal/master"
	"github.com/shipcluster/server/internal/masterpersist"
	"github.com/shipcluster/server/internal/workerpool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────
// Adapted from the teacher's cmd/l1jgo banner/section helpers: same
// shape, ASCII box instead of CJK box-drawing text.

func printBanner(bindAddr string) {
	fmt.Println()
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Println("\033[36;1m  |\033[0m              shipcluster master            \033[36;1m|\033[0m")
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mbind:\033[0m %s\n\n", bindAddr)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m-- %s %s\033[0m\n", title, strings.Repeat("-", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m*\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m>\033[0m %s\n", msg)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SHIPCLUSTER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Master.BindAddress)

	printSection("identity")
	identity, err := channel.LoadOrCreateHostIdentity(cfg.Master.HostIdentityFile)
	if err != nil {
		return fmt.Errorf("host identity: %w", err)
	}
	printOK("host identity ready")

	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := masterpersist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("postgres connected")

	if err := masterpersist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations complete")
	fmt.Println()

	users := masterpersist.NewUserRepo(db)
	logins := masterpersist.NewLoginRepo(db)
	challenges := masterpersist.NewChallengeRepo(db, cfg.Master.ChallengeTTL)
	ships := masterpersist.NewShipRepo(db)

	pool := workerpool.New(cfg.Master.PasswordVerifyWorkers)
	defer pool.Close()

	reg := master.NewRegistry(log)
	dispatcher := master.NewDispatcher(cfg.Master, users, logins, challenges, ships, reg, pool, log)
	server := master.NewServer(identity, dispatcher, log)

	ln, err := net.Listen("tcp", cfg.Master.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Master.BindAddress, err)
	}
	defer ln.Close()

	// Ship registry's own single-shot responders (spec §4.3). These read
	// ship_list_ports/block_balance_port out of the Ship config section
	// since the same TOML file describes the whole deployment and these
	// ports belong to the master's side of the ship/master boundary.
	shipListListeners := make([]net.Listener, 0, len(cfg.Ship.ShipListPorts))
	for _, port := range cfg.Ship.ShipListPorts {
		addr := fmt.Sprintf(":%d", port)
		shipListLn, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen ship-list %s: %w", addr, err)
		}
		shipListListeners = append(shipListListeners, shipListLn)
	}
	var balanceLn net.Listener
	if cfg.Ship.BlockBalancePort != 0 {
		addr := fmt.Sprintf(":%d", cfg.Ship.BlockBalancePort)
		balanceLn, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen block-balance %s: %w", addr, err)
		}
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// The main listener and the ship registry's single-shot responders all
	// run for the process lifetime; errgroup lets the shutdown path wait on
	// all of them with one Wait() instead of a hand-rolled fan-in channel.
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return server.Run(gctx, ln)
	})
	for _, shipListLn := range shipListListeners {
		shipListLn := shipListLn
		g.Go(func() error {
			reg.ServeShipList(shipListLn)
			return nil
		})
	}
	if balanceLn != nil {
		g.Go(func() error {
			reg.ServeBlockBalance(balanceLn)
			return nil
		})
	}

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", ln.Addr().String()))
	fmt.Println()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	waitCh := make(chan error, 1)
	go func() { waitCh <- g.Wait() }()

	select {
	case sig := <-shutdownCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		stop()
		for _, ln := range shipListListeners {
			ln.Close()
		}
		if balanceLn != nil {
			balanceLn.Close()
		}
		<-waitCh
	case err := <-waitCh:
		stop()
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info("master stopped")
	return nil
}
