package injector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-search-dispatcher/internal/conf"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/biz"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/preset"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/service"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
	"github.com/lk2023060901/ai-search-dispatcher/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	Dispatcher *biz.Dispatcher
	HTTPServer *server.HTTPServer
}

// NewApp assembles the HTTP application
func NewApp(config *conf.Config, log *logger.Logger, creds backend.CredentialSource) (*App, error) {
	dispatcher, err := NewDispatcher(config, log, creds)
	if err != nil {
		return nil, err
	}

	searchService := service.NewSearchService(dispatcher)

	return &App{
		Config:     config,
		Logger:     log,
		Dispatcher: dispatcher,
		HTTPServer: server.NewHTTPServer(config, log, searchService),
	}, nil
}

// NewDispatcher builds the backend table and the dispatcher on top of it.
// Direct is preferred over Relay in auto mode. A backend without a usable
// credential, or whose client cannot be constructed, stays in the table
// without a transport so selection can report why it is unavailable.
func NewDispatcher(config *conf.Config, log *logger.Logger, creds backend.CredentialSource) (*biz.Dispatcher, error) {
	if creds == nil {
		creds = backend.EnvCredentials{}
	}

	factory := transport.NewFactory()
	backends := []struct {
		id     types.BackendID
		name   string
		config conf.BackendConfig
	}{
		{types.BackendDirect, "Perplexity", config.Backends.Direct},
		{types.BackendRelay, "OpenRouter", config.Backends.Relay},
	}

	descriptors := make([]*backend.Descriptor, 0, len(backends))
	for _, b := range backends {
		blog := log.With(zap.String("backend", string(b.id)))

		var tr transport.Transport
		if key, ok := creds.Lookup(b.config.CredentialKey); ok {
			t, err := factory.Create(b.id, b.config.Transport(key))
			if err != nil {
				blog.Error("failed to create transport", zap.Error(err))
			} else {
				if config.Breaker.Enabled {
					t = transport.NewBreakerTransport(t, config.Breaker, blog)
				}
				tr = t
			}
		} else {
			blog.Info("backend disabled: credential not set", zap.String("credential_key", b.config.CredentialKey))
		}

		descriptors = append(descriptors, backend.NewDescriptor(b.id, b.name, b.config.CredentialKey, tr))
	}

	table, err := backend.NewTable(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend table: %w", err)
	}

	return biz.NewDispatcher(config.Dispatch, preset.Default(), table, creds, log), nil
}
