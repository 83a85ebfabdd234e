package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/robdel12/orbitdock/internal/config"
	"github.com/robdel12/orbitdock/internal/httpapi"
	"github.com/robdel12/orbitdock/internal/logging"
	"github.com/robdel12/orbitdock/internal/naming"
	"github.com/robdel12/orbitdock/internal/persistence"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/registry"
	"github.com/robdel12/orbitdock/internal/secrets"
	"github.com/robdel12/orbitdock/internal/sessionactor"
	"github.com/robdel12/orbitdock/internal/storage"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
	"github.com/robdel12/orbitdock/internal/transport"
)

var (
	startBind      string
	startDataDir   string
	startAuthToken string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the OrbitDock daemon",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startBind, "bind", "", "Address to listen on (overrides config)")
	startCmd.Flags().StringVar(&startDataDir, "data-dir", "", "Data directory (overrides config)")
	startCmd.Flags().StringVar(&startAuthToken, "auth-token", "", "Bearer token required of clients (overrides config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if startBind != "" {
		cfg.BindAddr = startBind
	}
	if startDataDir != "" {
		cfg.DataDir = startDataDir
	}

	paths := config.GetPaths()
	if cfg.DataDir != "" {
		paths.Data = cfg.DataDir
	}
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}

	authToken := startAuthToken
	if authToken == "" && cfg.AuthToken != "" {
		keyring, err := secrets.Open(os.Getenv("ORBITDOCK_ENCRYPTION_KEY"), paths.EncryptionKeyPath())
		if err != nil {
			return fmt.Errorf("opening encryption key: %w", err)
		}
		authToken, err = keyring.Decrypt(cfg.AuthToken)
		if err != nil {
			return fmt.Errorf("decrypting configured auth token: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, paths.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	writer := persistence.NewWriter(store)
	go writer.Run(ctx)

	reg := registry.New()
	hub := subscription.NewHub()
	defer hub.Close()
	namingGuard := naming.NewGuard()

	deps := httpapi.Deps{
		Ctx:      ctx,
		Registry: reg,
		Hub:      hub,
		Store:    store,
		Writer:   writer,
		Naming:   namingGuard,
		Propose:  naming.HeuristicProposer,
		Clock:    time.Now,
	}
	deps.WebSocket = transport.NewHandler(reg, hub)

	if err := respawnSessions(ctx, store, reg, deps); err != nil {
		return fmt.Errorf("restoring sessions: %w", err)
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.BindAddr = cfg.BindAddr
	httpCfg.AuthToken = authToken
	if len(cfg.CORSOrigins) > 0 {
		httpCfg.CORSOrigins = cfg.CORSOrigins
	}

	srv := httpapi.New(httpCfg, deps)

	go func() {
		logging.Info().Str("addr", httpCfg.BindAddr).Msg("orbitdockd: listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("orbitdockd: server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("orbitdockd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("orbitdockd: shutdown error")
	}

	logging.Info().Msg("orbitdockd: stopped")
	return nil
}

// respawnSessions restores an in-memory actor for every session this
// process previously persisted that never reached a terminal status,
// so clients reconnecting after a restart see continuous history. No
// connector bridge is reattached here: reconnecting to a live Codex/Claude
// process is the provider adapter's concern, out of this core (see
// DESIGN.md); a respawned session simply resumes serving its transcript
// and accepting new messages.
func respawnSessions(ctx context.Context, store *storage.Store, reg *registry.Registry, deps httpapi.Deps) error {
	summaries, err := store.ListSummaries(ctx)
	if err != nil {
		return err
	}

	sessionDeps := func() sessionactor.Dependencies {
		return sessionactor.Dependencies{
			Clock:     deps.Clock,
			Persist:   deps.Writer.AsPersistDependency(ctx),
			Broadcast: deps.Hub.Publish,
			Subscribe: deps.Hub.Subscribe,
			Notify:    deps.Registry.UpdateSummary,
			RequestNaming: func(sessionID string) {
				handle, ok := deps.Registry.Get(sessionID)
				if !ok {
					return
				}
				snap := handle.Snapshot()
				deps.Naming.Request(ctx, sessionID, snap.SummaryCandidate, deps.Propose, func(name string) {
					handle.TrySend(sessionactor.Mutate{Input: transition.CustomNameSet{Name: name}})
				})
			},
		}
	}

	restored := 0
	for _, summary := range summaries {
		if summary.Status == protocol.SessionEnded {
			continue
		}
		state, err := store.GetSession(ctx, summary.ID)
		if err != nil {
			logging.Warn().Err(err).Str("session_id", summary.ID).Msg("orbitdockd: failed to restore session, skipping")
			continue
		}
		handle := sessionactor.Spawn(ctx, state, sessionDeps())
		reg.Register(handle, "")
		reg.UpdateSummary(state.Summary())
		restored++
	}
	if restored > 0 {
		logging.Info().Int("count", restored).Msg("orbitdockd: restored sessions from storage")
	}
	return nil
}
