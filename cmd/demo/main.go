// Package main is a runnable demonstration of the leaderboard package: it
// wires a Leaderboard and a PeriodicLeaderboard against a real store and
// exercises a handful of operations, narrating each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	lb "github.com/alem-hub/leaderboard"
	"github.com/alem-hub/leaderboard/config"
	"github.com/alem-hub/leaderboard/internal/store"
	"github.com/alem-hub/leaderboard/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		addr  = flag.String("addr", "", "store address as host:port, overriding the env-loaded config")
		key   = flag.String("key", "demo:scores", "base leaderboard key")
		cycle = flag.String("cycle", "", "periodic cycle override (minute|hourly|daily|weekly|monthly|yearly); empty keeps the PERIODIC_CYCLE setting")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *cycle != "" {
		cfg.Periodic.Cycle = *cycle
	}
	if *addr != "" {
		host, portStr, err := net.SplitHostPort(*addr)
		if err != nil {
			return fmt.Errorf("invalid -addr %q: %w", *addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid -addr port %q: %w", portStr, err)
		}
		cfg.Store.Host = host
		cfg.Store.Port = port
	}

	log := logger.Default().With(logger.Component("demo"))
	log.Info("starting leaderboard demo", logger.String("env", string(cfg.App.Environment)))

	storeCfg := store.Config{
		Host:         cfg.Store.Host,
		Port:         cfg.Store.Port,
		Password:     cfg.Store.Password,
		DB:           cfg.Store.DB,
		PoolSize:     cfg.Store.PoolSize,
		MinIdleConns: cfg.Store.MinIdleConns,
		MaxRetries:   cfg.Store.MaxRetries,
		DialTimeout:  cfg.Store.DialTimeout,
		ReadTimeout:  cfg.Store.ReadTimeout,
		WriteTimeout: cfg.Store.WriteTimeout,
		PoolTimeout:  cfg.Store.PoolTimeout,
	}

	log.Info("connecting to store...", logger.String("addr", storeCfg.Addr()))
	st, err := store.Open(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer func() {
		log.Info("closing store connection...")
		_ = st.Close()
	}()
	log.Info("store connection established")

	session := store.NewSession(st)
	board := lb.New(session, *key, lb.TypeInt64, lb.DefaultLeaderboardOptions().WithLimitTopN(100))

	if err := seedAndNarrate(ctx, log, board); err != nil {
		return fmt.Errorf("demo run failed: %w", err)
	}

	if cfg.Periodic.Cycle != "" {
		tag, err := cycleTag(cfg.Periodic.Cycle)
		if err != nil {
			return err
		}
		periodicOpts := lb.DefaultPeriodicOptions()
		periodicOpts.Cycle = lb.PredefinedCycle(tag)
		periodic, err := lb.NewPeriodic(session, *key+":periodic", lb.TypeInt64, periodicOpts)
		if err != nil {
			return fmt.Errorf("failed to construct periodic leaderboard: %w", err)
		}
		cur := periodic.GetLeaderboardNow()
		log.Info("periodic leaderboard resolved current cycle", logger.CycleKey(periodic.GetKeyNow()))
		if _, err := cur.UpdateOne(ctx, "demo-user", int64(10), nil).Wait(); err != nil {
			return fmt.Errorf("periodic demo update failed: %w", err)
		}
	}

	log.Info("leaderboard demo is running; press Ctrl+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	<-shutdownCtx.Done()

	log.Info("shutdown complete")
	return nil
}

func cycleTag(name string) (lb.CycleTag, error) {
	switch name {
	case "minute":
		return lb.Minute, nil
	case "hourly":
		return lb.Hourly, nil
	case "daily":
		return lb.Daily, nil
	case "weekly":
		return lb.Weekly, nil
	case "monthly":
		return lb.Monthly, nil
	case "yearly":
		return lb.Yearly, nil
	default:
		return 0, fmt.Errorf("unknown periodic cycle %q", name)
	}
}

func seedAndNarrate(ctx context.Context, log *logger.Logger, board *lb.Leaderboard) error {
	seed := []lb.EntryUpdate{
		{ID: "alice", Value: int64(150)},
		{ID: "bob", Value: int64(220)},
		{ID: "carol", Value: int64(90)},
	}
	results, err := board.Update(ctx, seed, nil).Wait()
	if err != nil {
		return err
	}
	for _, e := range results {
		log.Info("seeded member", logger.MemberID(e.ID), logger.Score(e.Score))
	}

	top, err := board.Top(ctx, 10).Wait()
	if err != nil {
		return err
	}
	log.Info("top members", logger.Int("count", len(top)))
	for _, e := range top {
		log.Info("  ranked member", logger.RankPosition(e.Rank), logger.MemberID(e.ID), logger.Score(e.Score))
	}

	rankResult, err := board.Rank(ctx, "bob").Wait()
	if err != nil {
		return err
	}
	if rankResult.Found {
		log.Info("bob's rank", logger.RankPosition(rankResult.Rank))
	}

	around, err := board.Around(ctx, "alice", 1, true).Wait()
	if err != nil {
		return err
	}
	log.Info("neighbors around alice", logger.Int("count", len(around)))

	return nil
}
