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

	"github.com/shipcluster/server/internal/block"
	"github.com/shipcluster/server/internal/channel"
	"github.com/shipcluster/server/internal/config"
	"github.com/shipcluster/server/internal/core/event"
	"github.com/shipcluster/server/internal/handler"
	"github.com/shipcluster/server/internal/itemdata"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/quest"
	"github.com/shipcluster/server/internal/scripting"
	"github.com/shipcluster/server/internal/shipclient"
	"github.com/shipcluster/server/internal/shippersist"
	"github.com/shipcluster/server/internal/worldmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────
// Same ASCII-adapted shape as cmd/master; kept duplicated rather than
// shared since the teacher itself never factored these out of main.go.

func printBanner(shipName string, shipID uint32) {
	fmt.Println()
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Println("\033[36;1m  |\033[0m              shipcluster ship             \033[36;1m|\033[0m")
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mship:\033[0m %s \033[90m(id: %d)\033[0m\n\n", shipName, shipID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m-- %s %s\033[0m\n", title, strings.Repeat("-", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat(".", dotsLen), numStr)
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

	printBanner(cfg.Ship.Name, cfg.Ship.ID)

	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := shippersist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("postgres connected")

	if err := shippersist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations complete")
	fmt.Println()

	stats := shippersist.NewServerStatsRepo(db)
	users := shippersist.NewUserRepo(db)
	characters := shippersist.NewCharacterRepo(db)
	symbolArts := shippersist.NewSymbolArtRepo(db)
	challenges := shippersist.NewChallengeCacheRepo(db)

	printSection("data")
	questCatalog, err := quest.LoadCatalog(cfg.Ship.QuestDir, log)
	if err != nil {
		return fmt.Errorf("load quest catalog: %w", err)
	}
	printStat("quests", questCatalog.Count())

	itemCatalog, err := itemdata.LoadCatalog("data/items.yaml")
	if err != nil {
		return fmt.Errorf("load item catalog: %w", err)
	}
	printStat("items", itemCatalog.Count())

	luaEngine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	printSection("master")
	trustStore, err := channel.LoadHostTrustStore(cfg.Ship.HostTrustFile)
	if err != nil {
		return fmt.Errorf("host trust store: %w", err)
	}
	masterClient, err := shipclient.Dial(cfg.Ship.MasterAddress, trustStore.Predicate(), cfg.Ship.ID, cfg.Ship.MasterPSK, log)
	if err != nil {
		return fmt.Errorf("dial master: %w", err)
	}
	defer masterClient.Close()
	printOK(fmt.Sprintf("connected to master at %s", cfg.Ship.MasterAddress))
	fmt.Println()

	lobby := worldmap.NewMap(cfg.Ship.LobbyMapName, 0, 0, nil, luaEngine, log)

	blockAddrs := make(map[uint32]handler.BlockAddr, len(cfg.Ship.Blocks))
	for _, entry := range cfg.Ship.Blocks {
		_, portStr, err := net.SplitHostPort(entry.BindAddr)
		if err != nil {
			return fmt.Errorf("block %d bind address %q: %w", entry.ID, entry.BindAddr, err)
		}
		var port uint16
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return fmt.Errorf("block %d bind port %q: %w", entry.ID, portStr, err)
		}
		blockAddrs[entry.ID] = handler.BlockAddr{Port: port}
	}

	deps := handler.NewDeps(log, lobby, questCatalog, itemCatalog, "en", masterClient, users, characters, symbolArts, challenges, blockAddrs)
	persister := handler.NewPersister(deps)

	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, deps)

	printSection("blocks")
	blocks := make([]*block.Block, 0, len(cfg.Ship.Blocks))
	for _, entry := range cfg.Ship.Blocks {
		b := block.NewBlock(block.Config{
			ID:         entry.ID,
			Name:       entry.Name,
			BindAddr:   entry.BindAddr,
			MaxPlayers: entry.MaxPlayers,
		}, reg, log)
		if err := b.Listen(); err != nil {
			return fmt.Errorf("block %d listen: %w", entry.ID, err)
		}
		b.SetSessionPersister(persister.Flush)
		event.Subscribe(b.Bus(), func(ev event.PlayerDisconnected) {
			handler.HandleDisconnect(ev.CharacterID, deps)
		})
		printStat(entry.Name, entry.MaxPlayers)
		blocks = append(blocks, b)
	}
	fmt.Println()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	errCh := make(chan error, len(blocks))
	for _, b := range blocks {
		go func(b *block.Block) {
			errCh <- b.Run(runCtx)
		}(b)
	}

	go reportPlayerCount(runCtx, cfg.Ship.Name, blocks, stats, log)

	printSection("ready")
	for i, entry := range cfg.Ship.Blocks {
		_ = i
		printReady(fmt.Sprintf("%s listening on %s", entry.Name, entry.BindAddr))
	}
	fmt.Println()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		stop()
		for range blocks {
			<-errCh
		}
	case err := <-errCh:
		if err != nil {
			log.Error("block stopped unexpectedly", zap.Error(err))
		}
		stop()
		for range blocks[1:] {
			<-errCh
		}
	}

	log.Info("ship stopped")
	return nil
}

// reportPlayerCount periodically writes this ship's total connected-player
// count to the shared server_stats table under a per-ship tag, the way the
// teacher's status line reports live connection counts to its operator but
// durable here so other ship processes (and the master) can read it back.
func reportPlayerCount(ctx context.Context, shipName string, blocks []*block.Block, stats *shippersist.ServerStatsRepo, log *zap.Logger) {
	tag := fmt.Sprintf("ship.%s.players", shipName)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := 0
			for _, b := range blocks {
				total += b.PlayerCount()
			}
			if err := stats.Set(ctx, tag, int64(total)); err != nil {
				log.Warn("server stats report failed", zap.Error(err))
			}
		}
	}
}
