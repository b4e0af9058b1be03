package main

import (
	"io"

	"lexchat/internal/chat"
	"lexchat/internal/client"
	"lexchat/internal/config"
	"lexchat/internal/identity"
	"lexchat/internal/logging"
	"lexchat/internal/store"
)

// chatRuntime is everything a command needs to drive the engine.
type chatRuntime struct {
	engine *chat.Engine
	cache  store.Repository
	logger logging.Logger
}

func (r *chatRuntime) Close() error {
	if r == nil || r.cache == nil {
		return nil
	}
	return r.cache.Close()
}

// runtimeFactory builds a runtime whose logs go to logOut.
type runtimeFactory func(logOut io.Writer) (*chatRuntime, error)

func newChatRuntime(logOut io.Writer) (*chatRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithFormat(logOut, logging.ParseLevel(cfg.LogLevel()), cfg.LogFormat())

	credentialsPath, err := cfg.CredentialsPath()
	if err != nil {
		return nil, err
	}
	id := identity.Chain{
		identity.Static{UserID: cfg.UserID(), AccessToken: cfg.Token()},
		identity.NewFile(credentialsPath),
	}
	api := client.New(cfg.BaseURL(), id,
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithLogger(logger),
	)

	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithIdentity(id),
		chat.WithDedupWindow(cfg.DedupWindow()),
		chat.WithUserType(cfg.UserType()),
	}
	var cache store.Repository
	if backend := cfg.CacheBackend(); backend != config.CacheBackendNone {
		path, err := cfg.CachePath()
		if err == nil {
			cache, err = store.OpenRepository(path, backend)
		}
		if err != nil {
			logger.Warn("local cache unavailable", logging.F("backend", backend), logging.F("error", err))
			cache = nil
		} else {
			opts = append(opts, chat.WithCache(cache))
		}
	}
	return &chatRuntime{
		engine: chat.NewEngine(api, opts...),
		cache:  cache,
		logger: logger,
	}, nil
}

// withRuntime opens a runtime, runs fn, and closes it.
func withRuntime(newRuntime runtimeFactory, logOut io.Writer, fn func(rt *chatRuntime) error) error {
	rt, err := newRuntime(logOut)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
