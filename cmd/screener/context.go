package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"screener/internal/apiclient"
	"screener/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// serverAddress prefers --server, then the configured bind address.
func (c *commandContext) serverAddress() (string, error) {
	if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
		return strings.TrimSpace(*c.serverFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.API.Bind, nil
}

func (c *commandContext) client() (*apiclient.Client, error) {
	addr, err := c.serverAddress()
	if err != nil {
		return nil, err
	}
	return apiclient.New(addr)
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		addr, _ := c.serverAddress()
		return wrapDialError(err, addr)
	}
	return nil
}

func wrapDialError(err error, addr string) error {
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `screener serve`", addr)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("connect to daemon at %s: %w", addr, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
