package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
	"github.com/tejashwikalptaru/playqueue/internal/config"
)

const defaultConfigPath = "playqueue.toml"

type commandContext struct {
	configFlag  *string
	libraryFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, libraryFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		libraryFlag: libraryFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.libraryFlag != nil && strings.TrimSpace(*c.libraryFlag) != "" {
			cfg.Database.Path = strings.TrimSpace(*c.libraryFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp builds the application, runs fn and shuts the application down.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *app.Application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	application, err := app.NewApplication(cmd.Context(), cfg, app.WithOutput(out, shouldColorize(out)))
	if err != nil {
		return err
	}

	runErr := fn(cmd.Context(), application)
	if err := application.Shutdown(); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
