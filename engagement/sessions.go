package engagement

import (
	"log/slog"
	"time"

	"blog-engagement/engagement/application"
	"blog-engagement/engagement/domain"
)

// SessionDeps é o que cada Controller novo recebe.
// DurableKV guarda flags por dispositivo; SessionKV por sessão.
type SessionDeps struct {
	Resolver  application.Resolver
	Remote    domain.MetricsService
	DurableKV domain.KeyValueStore
	SessionKV domain.KeyValueStore
	Events    domain.EventRecorder
	Logger    *slog.Logger

	WriteTimeout time.Duration
	FlagTimeout  time.Duration
}

// NewControllerFactory monta a factory usada pelo registro de sessões.
func NewControllerFactory(d SessionDeps) func(Visitor) *application.Controller {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	flagOpts := func(name string) []application.FlagStoreOption {
		opts := []application.FlagStoreOption{
			application.WithFlagName(name),
			application.WithFlagLogger(logger),
		}
		if d.FlagTimeout > 0 {
			opts = append(opts, application.WithFlagTimeout(d.FlagTimeout))
		}
		return opts
	}
	return func(v Visitor) *application.Controller {
		durable := application.NewFlagStore(d.DurableKV, v.DeviceID, flagOpts("durable")...)
		session := application.NewFlagStore(d.SessionKV, v.SessionID, flagOpts("session")...)
		return application.NewController(v.SessionID, application.ControllerDeps{
			Resolver:     d.Resolver,
			Remote:       d.Remote,
			Durable:      durable,
			Session:      session,
			Events:       d.Events,
			Logger:       logger,
			WriteTimeout: d.WriteTimeout,
		})
	}
}
