// Package app wires the bot together: config, logging, storage, the
// membership registry, the Telegram gateway and the update router.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rollcall/internal/config"
	"rollcall/internal/mention"
	"rollcall/internal/roster"
	"rollcall/internal/router"
	"rollcall/internal/storage"
	kit "rollcall/internal/transport"
	"rollcall/internal/transport/telegram"
	logx "rollcall/pkg/logx"
)

const (
	defaultStorePath   = "./members.db"
	defaultPollTimeout = 10 * time.Second
	updateQueueSize    = 256
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store   roster.Store
	reg     *roster.Registry
	adapter kit.Adapter
	rt      *router.Router

	flushEvery time.Duration
	cron       *cron.Cron

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New loads the config and constructs every component. Storage that cannot
// be opened at all is the one fatal startup path; a corrupt-but-openable
// store only degrades to a partial roster (the registry logs it).
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logxConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	// Environment wins over the file so tokens stay out of committed configs.
	token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN"))
	if token == "" {
		token = cfg.Telegram.Token
	}
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
		SendPerSec:  cfg.Telegram.SendPerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	storePath := strings.TrimSpace(cfg.Storage.Path)
	if storePath == "" {
		storePath = defaultStorePath
	}
	strict := true
	if cfg.Storage.StrictLoad != nil {
		strict = *cfg.Storage.StrictLoad
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        storePath,
		StrictLoad:  strict,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	reg := roster.New(store, log.With(logx.String("comp", "roster")))

	batch := cfg.Roster.BatchSize
	if batch <= 0 {
		batch = mention.DefaultBatchSize
	}
	rt := router.New(log.With(logx.String("comp", "router")), adapter, reg, batch)

	flushEvery, err := config.ParseDurationOrDefault("roster.flush_every", cfg.Roster.FlushEvery, 0)
	if err != nil {
		return nil, err
	}

	return &App{
		cfgm:       cfgm,
		logs:       logs,
		log:        log.With(logx.String("comp", "app")),
		store:      store,
		reg:        reg,
		adapter:    adapter,
		rt:         rt,
		flushEvery: flushEvery,
	}, nil
}

// Registry exposes the membership registry (used by operational tooling).
func (a *App) Registry() *roster.Registry { return a.reg }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.updates = make(chan kit.Update, updateQueueSize)

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.rt.Run(runCtx, a.updates)
	}()

	// Config hot-reload: watch the file, re-apply the logging section.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watcher failed", logx.Err(err))
		}
	}()
	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				if cfg != nil {
					a.logs.Apply(logxConfig(cfg.Logging))
					a.log.Info("logging config re-applied")
				}
			}
		}
	}()

	// Safety-net flush: every mutation already persists, but a periodic
	// save repairs durability after transient write failures.
	if a.flushEvery > 0 {
		a.cron = cron.New()
		_, err := a.cron.AddFunc("@every "+a.flushEvery.String(), func() {
			if err := a.reg.Flush(); err != nil {
				a.log.Warn("periodic roster flush failed", logx.Err(err))
				return
			}
			chats, members := a.reg.Stats()
			a.log.Debug("roster flushed",
				logx.Int("chats", chats), logx.Int("members", members),
				logx.Uint64("save_failures", a.reg.SaveFailures()))
		})
		if err != nil {
			cancel()
			return fmt.Errorf("schedule roster flush: %w", err)
		}
		a.cron.Start()
	}

	a.log.Info("started", logx.Duration("flush_every", a.flushEvery))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.cron != nil {
		cronCtx := a.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}

	err := a.adapter.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out waiting for workers")
	}

	// Final flush is a formality (mutations persist synchronously) but it
	// repairs durability if the last save failed.
	if ferr := a.reg.Flush(); ferr != nil {
		a.log.Error("final roster flush failed", logx.Err(ferr))
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return err
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}
