// Package server wires the backend: REST surface, broker relay, evidence
// storage, cycle store, and the analysis pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agrisight-io/agrisight/internal/server/analysis"
	"github.com/agrisight-io/agrisight/internal/server/ingest"
	"github.com/agrisight-io/agrisight/internal/server/query"
	"github.com/agrisight-io/agrisight/internal/server/relay"
	"github.com/agrisight-io/agrisight/internal/server/state"
	"github.com/agrisight-io/agrisight/internal/server/storage"
	"github.com/agrisight-io/agrisight/internal/server/store"
	"github.com/agrisight-io/agrisight/pkg/log"
	"github.com/agrisight-io/agrisight/pkg/mqtt"
	mqtttopic "github.com/agrisight-io/agrisight/pkg/mqtt/topic"
	"github.com/agrisight-io/agrisight/pkg/options"
)

const shutdownTimeout = 5 * time.Second

// Server is the assembled backend.
type Server struct {
	addr string

	mc      mqtt.Client
	storage storage.Provider
	cycles  store.Store

	relay    *relay.Relay
	ingest   *ingest.Pipeline
	analysis *analysis.Pipeline
	query    *query.Service
}

// New builds a Server with real dependencies from cfg.
func New(ctx context.Context, cfg *Config) (*Server, error) {
	mc, err := mqtt.NewClient(cfg.Mqtt.ToClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create mqtt client: %w", err)
	}

	provider, err := storage.NewMinIOProvider(cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("create storage provider: %w", err)
	}

	cycles, err := newCycleStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("create cycle store: %w", err)
	}

	completer, err := analysis.NewOpenAICompleter(cfg.LLM)
	if err != nil {
		cycles.Close()
		return nil, fmt.Errorf("create completer: %w", err)
	}

	return newServer(cfg.HTTP.Addr, mc, provider, cycles, completer, cfg.Mqtt.TopicRoot), nil
}

// newServer assembles a Server from explicit dependencies. Tests inject
// in-memory implementations here.
func newServer(addr string, mc mqtt.Client, provider storage.Provider, cycles store.Store, completer analysis.Completer, topicRoot string) *Server {
	topics := mqtttopic.NewBuilder(topicRoot)
	return &Server{
		addr:     addr,
		mc:       mc,
		storage:  provider,
		cycles:   cycles,
		relay:    relay.New(mc, topics, state.NewMemoryStore()),
		ingest:   ingest.New(provider, cycles),
		analysis: analysis.New(completer, cycles),
		query:    query.New(cycles, provider),
	}
}

func newCycleStore(ctx context.Context, o *options.StoreOptions) (store.Store, error) {
	switch o.Driver {
	case options.StoreDriverPostgres:
		return store.NewPostgresStore(ctx, o.DSN)
	default:
		return store.NewMemoryStore(), nil
	}
}

// Run connects to the broker, checks the evidence bucket, and serves HTTP
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.cycles.Close()

	if err := s.mc.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.mc.Disconnect(disconnectCtx)
	}()

	if err := s.mc.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	if err := s.storage.CheckBucket(ctx); err != nil {
		return fmt.Errorf("check evidence bucket: %w", err)
	}

	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", "address", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	log.Info("Server stopped")
	return err
}
