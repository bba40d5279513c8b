// Package app wires the bot together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"maunium.net/go/mautrix/event"

	"communibot/internal/commands"
	"communibot/internal/community"
	"communibot/internal/config"
	"communibot/internal/confirm"
	"communibot/internal/engine"
	"communibot/internal/matrix"
	"communibot/internal/onchain"
	"communibot/internal/resolve"
	"communibot/internal/signup"
	"communibot/internal/store"
	"communibot/internal/task"
)

// App is the assembled bot.
type App struct {
	config  *config.Config
	store   *store.Store
	catalog *community.Catalog
	matrix  *matrix.Client
	router  *commands.Router
	gate    *confirm.Gate
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, error) {
	st, err := store.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	catalog, err := community.Load(cfg.Catalog.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load community catalog: %w", err)
	}

	mx, err := matrix.New(&matrix.Config{
		Homeserver:   cfg.Matrix.Homeserver,
		UserID:       cfg.Matrix.UserID,
		AccessToken:  cfg.Matrix.AccessToken,
		Rooms:        roomIDs(catalog),
		UserTemplate: cfg.Matrix.UserTemplate,
	}, matrix.TokenStore{
		Load: st.SyncToken,
		Save: st.SetSyncToken,
	}, matrix.RoomCache{
		DMRoom:    st.DMRoom,
		SetDMRoom: st.SetDMRoom,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	chain := onchain.NewClient(0)
	bundler := onchain.NewBundler(cfg.Signer.Key, 0)
	gate := confirm.NewGate(st, cfg.Commands.ConfirmTimeout)

	eng := &engine.Engine{
		Resolver: &resolve.Resolver{
			Cards:      chain,
			Names:      chain,
			Profiles:   chain,
			NameRPCURL: cfg.Catalog.NameRPCURL,
		},
		Executor:      bundler,
		Balances:      chain,
		Notifier:      mx,
		Log:           st,
		HasSigningKey: cfg.Signer.Key != "",
	}

	classifier := task.NewClassifier(task.NewOracle(task.OracleConfig{
		APIKey:  cfg.Oracle.APIKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		Timeout: cfg.Oracle.Timeout,
	}))

	router := commands.NewRouter(cfg.Commands.Prefix)
	handlers := &commands.Handlers{
		Catalog:       catalog,
		Classifier:    classifier,
		Engine:        eng,
		Gate:          gate,
		Cards:         chain,
		Balances:      chain,
		Ledger:        st,
		History:       bundler,
		Messenger:     mx,
		Managers:      cfg.Commands.Managers,
		Owners:        chain,
		OwnerExec:     bundler,
		HasSigningKey: cfg.Signer.Key != "",
	}
	if cfg.Signup.WebhookURL != "" {
		handlers.Signups = signup.NewWebhook(cfg.Signup.WebhookURL, 0)
		handlers.SignupInvite = cfg.Signup.InviteURL
	}
	handlers.Register(router)

	return &App{
		config:  cfg,
		store:   st,
		catalog: catalog,
		matrix:  mx,
		router:  router,
		gate:    gate,
	}, nil
}

// Run starts the Matrix sync loop and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync", "user", a.matrix.UserID())
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	slog.Info("bot is running; press Ctrl+C to stop",
		"communities", strings.Join(a.catalog.Aliases(), ","))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop releases the app's resources.
func (a *App) Stop() {
	a.matrix.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
}

func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}
	text := msgContent.Body
	roomID := evt.RoomID.String()
	sender := evt.Sender.String()

	// Pending confirmation replies win over everything else.
	if a.gate.Deliver(roomID, sender, text) {
		return
	}

	response, err := a.router.Route(ctx, text, evt)
	if err != nil {
		if errors.Is(err, commands.ErrNotACommand) {
			// Ordinary chat, not addressed to the bot.
			return
		}
		if err := a.matrix.SendNotice(ctx, roomID, fmt.Sprintf("❌ %s", err)); err != nil {
			slog.Error("failed to send error notice", "room", roomID, "error", err)
		}
		return
	}
	if response == "" {
		return
	}
	if _, err := a.matrix.SendFormattedMessage(ctx, roomID, markdownToHTML(response), response); err != nil {
		slog.Error("failed to send response", "room", roomID, "error", err)
	}
}

// roomIDs collects the explicitly scoped room IDs from the catalog so the bot
// can join them on startup.
func roomIDs(catalog *community.Catalog) []string {
	var rooms []string
	for _, room := range catalog.Rooms() {
		if strings.HasPrefix(room, "!") {
			rooms = append(rooms, room)
		}
	}
	return rooms
}
