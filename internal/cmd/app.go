package cmd

import (
	"context"
	"fmt"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/config"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/identity"
	"github.com/curios-os/curios/internal/session"
	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tuilog"
)

// app is everything a command needs to talk to the backend. Commands that
// only need part of it still build all of it; construction does no I/O
// beyond opening local storage.
type app struct {
	cfg      config.Config
	store    storage.Storage
	sessions *session.Store
	auth     *identity.Adapter
	gotrue   *identity.GoTrueProvider // nil unless Supabase auth is configured
	client   *api.Client
	engine   *chat.Engine
}

// newApp loads config, opens storage and wires the engine. The identity
// adapter is initialized before returning so the first request carries the
// persisted token.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apiBase != "" {
		cfg.APIBase = apiBase
	}
	if contextID != "" {
		cfg.Context = contextID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := chat.ValidateContext(cfg.Context); err != nil {
		return nil, fmt.Errorf("context %q: %w", cfg.Context, err)
	}

	i18n.Init(i18n.ResolveLocale(cfg.Language))

	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		sessions: session.NewStore(store),
		client:   api.NewClient(cfg.ResolveAPIBase(apiBase), cfg.Timeout()),
	}

	var provider identity.Provider
	if usable, reason := cfg.Auth.AuthStatus(); usable {
		a.gotrue = identity.NewGoTrueProvider(cfg.Auth.URL, cfg.Auth.AnonKey, store)
		provider = a.gotrue
	} else if cfg.Auth.AccessToken != "" {
		provider = identity.NewStaticProvider(cfg.Auth.AccessToken, cfg.Auth.UserID, cfg.Auth.Email)
	} else {
		tuilog.Log.Debug("Identity provider unavailable", "reason", reason)
	}
	a.auth = identity.NewAdapter(provider)
	a.auth.Init(ctx)

	a.engine = chat.New(chat.Options{
		Backend:  a.client,
		Identity: a.auth,
		Sessions: a.sessions,
		Context:  cfg.Context,
		Texts:    chat.DefaultTexts(),
	})
	tuilog.Log.Debug("App ready", "api", a.client.BaseURL(), "storage", cfg.Storage.Backend, "auth", a.auth.Available(), "lang", i18n.Language())
	return a, nil
}

func (a *app) Close() {
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		tuilog.Log.Warn("Closing storage failed", "error", err)
	}
}

// meta is the request metadata for one-shot commands that bypass the engine.
func (a *app) meta() api.RequestMeta {
	id := a.auth.Current()
	return api.RequestMeta{
		SessionID:   a.sessions.Get(),
		UserHint:    id.Label(),
		AccessToken: id.AccessToken,
		Context:     a.cfg.Context,
	}
}
