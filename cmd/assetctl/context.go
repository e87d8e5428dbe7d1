package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/bootstrap"
	"asset-lifecycle-service/internal/config"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		bootstrap.InitLogger(cfg)
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp wires the services for one command and tears them down after fn.
func (c *commandContext) withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	// a CLI run never waits around for a viewer
	cfg.AutoTrigger.ProbeOnArm = false

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func parseAssetID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid asset id %q: %w", raw, err)
	}
	return id, nil
}
