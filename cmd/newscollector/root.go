package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"NewsCollector/internal/app"
	"NewsCollector/internal/config"
	"NewsCollector/internal/infrastructure/scheduler"
	"NewsCollector/internal/logging"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	cfg    config.Config
	cfgErr error
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	root := &cobra.Command{
		Use:           "newscollector",
		Short:         "Collect AI news from RSS feeds and web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(
		newRunCommand(ctx),
		newCollectCommand(ctx),
		newItemsCommand(ctx),
		newRunsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}

func (c *commandContext) config() (config.Config, error) {
	c.once.Do(func() {
		if *c.configFlag != "" {
			c.cfg = config.LoadFile(*c.configFlag)
		} else {
			c.cfg = config.Load()
		}
		if err := c.cfg.Validate(); err != nil {
			c.cfgErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		if err := scheduler.Validate(c.cfg.Scheduler.CronExpression); err != nil {
			c.cfgErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})
	return c.cfg, c.cfgErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, _ := c.config()
	return logging.New(cfg.Logging)
}

// withApp opens the application for the duration of fn.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}
