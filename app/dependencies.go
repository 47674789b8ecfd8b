package app

import (
	"context"
	"fmt"

	"github.com/postflow/aicore/auth"
	"github.com/postflow/aicore/config"
	"github.com/postflow/aicore/handlers"
	"github.com/postflow/aicore/middleware"
	"github.com/postflow/aicore/services/generation"
	"github.com/postflow/aicore/services/providers"
	"github.com/postflow/aicore/services/providers/gemini"
	"github.com/postflow/aicore/services/providers/openai"
	"github.com/postflow/aicore/services/ratelimit"
	"github.com/postflow/aicore/services/safety"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Factory  *providers.Factory
	Adapters map[string]providers.Adapter

	GenerationService *generation.Service

	GenerateHandler *handlers.GenerateHandler
	HealthHandler   *handlers.HealthHandler

	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.GenerationService = generation.NewService(deps.Adapters, safety.NewFilter(), logger)

	deps.GenerateHandler = handlers.NewGenerateHandler(deps.GenerationService, logger)
	deps.HealthHandler = handlers.NewHealthHandler(deps.GenerationService, logger)

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initProviders registers adapter builders and instantiates one adapter per
// configured provider.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	factory := providers.NewFactory(d.Logger)
	if err := factory.Register("openai", openai.New); err != nil {
		return err
	}
	if err := factory.Register("gemini", gemini.New); err != nil {
		return err
	}
	d.Factory = factory

	d.Adapters = make(map[string]providers.Adapter)
	for name, pc := range map[string]config.ProviderConfig{
		"openai": cfg.Providers.OpenAI,
		"gemini": cfg.Providers.Gemini,
	} {
		if !pc.Enabled() {
			continue
		}
		adapter, err := factory.Create(adapterConfig(name, pc))
		if err != nil {
			return fmt.Errorf("failed to create %s adapter: %w", name, err)
		}
		d.Adapters[name] = adapter
	}

	if len(d.Adapters) == 0 {
		d.Logger.Warn("no AI providers configured")
	}
	return nil
}

// adapterConfig translates env-level provider settings into the adapter
// config, leaving zero values to the adapter's defaults.
func adapterConfig(name string, pc config.ProviderConfig) providers.Config {
	cfg := providers.Config{
		Provider:        name,
		APIKey:          pc.APIKey,
		BaseURL:         pc.BaseURL,
		RequestTimeout:  pc.RequestTimeout,
		OverallTimeout:  pc.OverallTimeout,
		PollInterval:    pc.PollInterval,
		MaxPollAttempts: pc.MaxPollAttempts,
	}

	models := make(map[providers.Capability]string)
	if pc.TextModel != "" {
		models[providers.CapabilityText] = pc.TextModel
	}
	if pc.ImageModel != "" {
		models[providers.CapabilityImage] = pc.ImageModel
	}
	if pc.VideoModel != "" {
		models[providers.CapabilityVideo] = pc.VideoModel
	}
	if len(models) > 0 {
		cfg.Models = models
	}

	if pc.MaxRequests > 0 && pc.RateWindow > 0 {
		cfg.RateLimit = &ratelimit.Config{
			MaxRequests: pc.MaxRequests,
			Window:      pc.RateWindow,
			WaitForSlot: pc.WaitForSlot,
			MaxWait:     pc.MaxWait,
		}
	}

	return cfg
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if !cfg.Auth.Enabled {
		d.Logger.Warn("authentication disabled")
		d.AuthMiddleware = nil
		return nil
	}

	validator, err := auth.NewValidator(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return nil
}
