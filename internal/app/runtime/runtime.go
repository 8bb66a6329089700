package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"spoilerBot/internal/app/events"
	"spoilerBot/internal/domain"
	"spoilerBot/internal/infrastructure/config"
	"spoilerBot/internal/infrastructure/render"
	"spoilerBot/internal/infrastructure/telemetry"
	"spoilerBot/internal/interface/adapters"
	ws "spoilerBot/internal/interface/api/ws"
	"spoilerBot/internal/usecase/handle_message"
	"spoilerBot/internal/usecase/notifications"
	"spoilerBot/internal/usecase/spoiler"
)

type Options struct {
	Config *config.Config

	// Client is a pre-built *discordgo.Session or *model.Client4, used
	// instead of Config.Token.
	Client any

	// ExtractSpoiler replaces the built-in spoiler syntaxes.
	ExtractSpoiler spoiler.ExtractFunc

	Logger zerolog.Logger
}

type Runtime struct {
	cancel context.CancelFunc
	group  *errgroup.Group
	log    zerolog.Logger
	cfg    *config.Config

	transport   domain.Transport
	interactor  *handle_message.Interactor
	bus         *events.Bus
	metrics     *telemetry.Metrics
	wsServer    *ws.Server
	eventLogger *notifications.EventLogger

	stopOnce sync.Once
	err      error
}

// Start validates the options, builds every component and runs them until
// ctx is cancelled, Stop is called, or the transport fails.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if opts.Config == nil {
		return nil, &config.Error{Msg: "missing configuration"}
	}
	if err := opts.Config.Validate(opts.Client != nil); err != nil {
		return nil, err
	}

	transport, err := adapters.New(adapters.Options{
		Backend:   opts.Config.Backend,
		Token:     opts.Config.Token,
		ServerURL: opts.Config.ServerURL,
		Client:    opts.Client,
	}, opts.Logger)
	if err != nil {
		return nil, &config.Error{Field: "client", Err: err}
	}

	r, err := assemble(opts, transport)
	if err != nil {
		return nil, err
	}
	r.launch(ctx)
	return r, nil
}

func assemble(opts Options, transport domain.Transport) (*Runtime, error) {
	cfg := opts.Config
	log := opts.Logger

	filter, err := spoiler.NewChannelFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, &config.Error{Field: "include", Err: err}
	}

	renderer, err := render.New(cfg.GIF, log)
	if err != nil {
		return nil, &config.Error{Field: "gif", Err: err}
	}

	bus := events.NewBus(log)
	metrics := telemetry.NewMetrics()

	engine := spoiler.NewEngine(spoiler.EngineConfig{
		Extract: opts.ExtractSpoiler,
		Authorizer: spoiler.NewAuthorizer(spoiler.Policy{
			AllowAll: cfg.MarkAllowAll,
			UserIDs:  cfg.MarkUserIDs,
			RoleIDs:  cfg.MarkRoleIDs,
		}, transport),
		Fetcher: transport,
		Logger:  log,
	})

	interactor, err := handle_message.NewInteractor(handle_message.Config{
		Transport: transport,
		Extractor: engine,
		Renderer:  renderer,
		Filter:    filter,
		MaxLines:  cfg.MaxLinesOrDefault(),
		Timeout:   cfg.PipelineTimeoutOrDefault(),
		Bus:       bus,
		Metrics:   metrics,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		log:         log.With().Str("component", "runtime").Logger(),
		cfg:         cfg,
		transport:   transport,
		interactor:  interactor,
		bus:         bus,
		metrics:     metrics,
		eventLogger: notifications.NewEventLogger(bus, events.Topics, log),
	}
	if cfg.EventsAddr != "" {
		r.wsServer = ws.NewServer(ws.Config{
			Addr:    cfg.EventsAddr,
			Topics:  events.Topics,
			Bus:     bus,
			Metrics: metrics.Handler(),
			Logger:  log,
		})
	}
	return r, nil
}

func (r *Runtime) launch(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	r.group = g

	r.transport.SetHandler(r.interactor.Handle)
	if text := r.cfg.StatusTextOrDefault(); text != "" {
		if err := r.transport.SetStatus(gctx, text); err != nil {
			r.log.Warn().Err(err).Msg("runtime: no se pudo fijar el estado")
		}
	}

	g.Go(func() error {
		r.eventLogger.Run(gctx)
		return nil
	})
	if r.wsServer != nil {
		g.Go(func() error {
			if err := r.wsServer.Start(gctx); err != nil {
				return fmt.Errorf("events server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer r.cancel()
		err := r.transport.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", r.transport.Platform(), err)
		}
		return nil
	})

	r.log.Info().
		Str("platform", string(r.transport.Platform())).
		Str("events_addr", r.cfg.EventsAddr).
		Msg("runtime: iniciado")
}

// Wait blocks until every component has stopped and in-flight pipelines
// have drained.
func (r *Runtime) Wait() error {
	r.stopOnce.Do(func() {
		r.err = r.group.Wait()
		r.cancel()
		r.interactor.Wait()
		r.bus.Close()
		r.log.Info().Msg("runtime: detenido")
	})
	return r.err
}

func (r *Runtime) Stop() error {
	if r == nil || r.cancel == nil {
		return nil
	}
	r.cancel()
	return r.Wait()
}

func (r *Runtime) Bus() *events.Bus {
	return r.bus
}

func (r *Runtime) Metrics() *telemetry.Metrics {
	return r.metrics
}

func (r *Runtime) Transport() domain.Transport {
	return r.transport
}
