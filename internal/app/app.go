// Package app wires all voxnote subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject in-memory stores via functional options. When an option
// is not provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/enhance"
	"github.com/voxnote/voxnote/internal/folder"
	"github.com/voxnote/voxnote/internal/health"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/internal/preset"
	"github.com/voxnote/voxnote/internal/server"
	"github.com/voxnote/voxnote/internal/storage"
	"github.com/voxnote/voxnote/internal/storage/postgres"
	"github.com/voxnote/voxnote/internal/vocab"
	"github.com/voxnote/voxnote/pkg/provider/llm"
)

// shutdownGrace bounds how long the HTTP server may spend draining
// in-flight requests once the context is cancelled.
const shutdownGrace = 10 * time.Second

// Providers holds the configured LLM provider. Nil means AI enhancement is
// disabled and the pipeline serves cleaned text only. Populated by main.go.
type Providers struct {
	LLM llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	kv       storage.KV
	presets  *preset.Manager
	folders  folder.Store
	enhancer *enhance.Service
	pipeline *pipeline.Pipeline
	httpSrv  *http.Server
	tls      *config.TLSConfig

	// seeded maps config folder names to the store IDs they were created
	// under, so hot reloads can remove or replace them.
	seeded map[string]string

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithKV injects a key-value store instead of creating one from config.
func WithKV(kv storage.KV) Option {
	return func(a *App) { a.kv = kv }
}

// WithFolderStore injects a folder store instead of creating a MemStore.
func WithFolderStore(s folder.Store) Option {
	return func(a *App) { a.folders = s }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Initialisation is synchronous: storage connection,
// preset seeding and migration, folder seeding, and HTTP route construction
// all complete before New returns.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		seeded:    make(map[string]string),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	a.presets = preset.NewManager(a.kv)
	if err := a.presets.Init(ctx); err != nil {
		return nil, fmt.Errorf("app: init presets: %w", err)
	}

	if err := a.initFolders(ctx); err != nil {
		return nil, fmt.Errorf("app: init folders: %w", err)
	}

	a.initEnhancer()

	pipeOpts := []pipeline.Option{
		pipeline.WithEnhancer(a.enhancer),
		pipeline.WithHistory(a.kv),
	}
	if len(cfg.Vocabulary) > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithVocabulary(vocab.NewCorrector(cfg.Vocabulary)))
	}
	a.pipeline = pipeline.New(a.folders, pipeOpts...)

	a.tls = cfg.Server.TLS
	a.httpSrv = &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           a.buildRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// initStorage connects the configured persistence backend.
func (a *App) initStorage(ctx context.Context) error {
	if a.kv != nil {
		return nil
	}

	if a.cfg.Storage.Backend == config.StoragePostgres {
		store, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		a.kv = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		slog.Info("storage connected", "backend", "postgres")
		return nil
	}

	a.kv = storage.NewMemStore()
	slog.Info("storage connected", "backend", "memory")
	return nil
}

// initFolders creates the folder store and seeds the folders declared in the
// config file.
func (a *App) initFolders(ctx context.Context) error {
	if a.folders == nil {
		a.folders = folder.NewMemStore()
	}

	for _, fc := range a.cfg.Folders {
		f, err := a.folders.Add(ctx, folder.Folder{
			Name:             fc.Name,
			ActivationPhrase: fc.ActivationPhrase,
		})
		if err != nil {
			if errors.Is(err, folder.ErrDuplicateName) || errors.Is(err, folder.ErrDuplicatePhrase) {
				slog.Warn("skipping seeded folder, name or phrase taken", "name", fc.Name)
				continue
			}
			return fmt.Errorf("seed folder %q: %w", fc.Name, err)
		}
		a.seeded[fc.Name] = f.ID
		slog.Info("seeded folder", "name", fc.Name, "phrase", fc.ActivationPhrase)
	}
	return nil
}

// initEnhancer builds the enhancement service when an LLM provider is
// configured.
func (a *App) initEnhancer() {
	if a.providers == nil || a.providers.LLM == nil {
		slog.Info("no LLM provider, AI enhancement disabled")
		return
	}

	var opts []enhance.Option
	if t := a.cfg.Enhancement.Timeout(); t > 0 {
		opts = append(opts, enhance.WithTimeout(t))
	}
	if a.cfg.Enhancement.Temperature > 0 {
		opts = append(opts, enhance.WithTemperature(a.cfg.Enhancement.Temperature))
	}

	// A key in the config becomes the credential; local providers run
	// without one.
	var creds enhance.CredentialSource
	if key := a.cfg.LLM.Primary.APIKey; key != "" {
		creds = enhance.StaticCredentials(key)
	}

	a.enhancer = enhance.New(a.presets, a.providers.LLM, creds, opts...)
}

// buildRoutes constructs the HTTP handler with health checks wired to the
// real dependencies.
func (a *App) buildRoutes() http.Handler {
	probes := health.New()
	probes.Add("storage", health.StorageCheck(a.kv))
	if a.providers != nil && a.providers.LLM != nil {
		// Degrade, don't fail: cleaned transcripts still work without an LLM.
		probes.AddOptional("llm", health.ProviderCheck(a.providers.LLM))
	}

	opts := []server.Option{
		server.WithHealth(probes),
	}
	if a.enhancer != nil {
		opts = append(opts, server.WithEnhancer(a.enhancer))
	}

	return server.New(a.pipeline, a.presets, a.folders, opts...).Routes()
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr)
		var err error
		if tls := a.tls; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.httpSrv.Shutdown(drainCtx)
	})

	return g.Wait()
}

// ApplyConfig applies a hot-reloaded config: log level changes are handled by
// the caller (which owns the slog handler); this method retunes the
// enhancement service and reconciles seeded folders with the new config.
func (a *App) ApplyConfig(ctx context.Context, newCfg *config.Config) {
	d := config.Diff(a.cfg, newCfg)

	if d.EnhancementChanged && a.enhancer != nil {
		a.enhancer.Retune(newCfg.Enhancement.Timeout(), newCfg.Enhancement.Temperature)
	}

	if !d.FoldersChanged {
		a.cfg = newCfg
		return
	}

	byName := make(map[string]config.FolderConfig, len(newCfg.Folders))
	for _, fc := range newCfg.Folders {
		byName[fc.Name] = fc
	}

	for _, fd := range d.FolderChanges {
		switch {
		case fd.Removed:
			id, ok := a.seeded[fd.Name]
			if !ok {
				continue // created through the API, leave it alone
			}
			if err := a.folders.Remove(ctx, id); err != nil && !errors.Is(err, folder.ErrNotFound) {
				slog.Warn("failed to remove seeded folder", "name", fd.Name, "err", err)
				continue
			}
			delete(a.seeded, fd.Name)
			slog.Info("removed seeded folder", "name", fd.Name)

		case fd.Added, fd.PhraseChanged:
			if id, ok := a.seeded[fd.Name]; ok {
				if err := a.folders.Remove(ctx, id); err != nil && !errors.Is(err, folder.ErrNotFound) {
					slog.Warn("failed to replace seeded folder", "name", fd.Name, "err", err)
					continue
				}
				delete(a.seeded, fd.Name)
			}
			fc := byName[fd.Name]
			f, err := a.folders.Add(ctx, folder.Folder{
				Name:             fc.Name,
				ActivationPhrase: fc.ActivationPhrase,
			})
			if err != nil {
				slog.Warn("failed to seed folder on reload", "name", fc.Name, "err", err)
				continue
			}
			a.seeded[fc.Name] = f.ID
			slog.Info("reseeded folder", "name", fc.Name, "phrase", fc.ActivationPhrase)
		}
	}

	a.cfg = newCfg
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}
