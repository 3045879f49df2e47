package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/cfg"
	"github.com/vshn/guildsnap/discord"
	"github.com/vshn/guildsnap/stats"
	"github.com/vshn/guildsnap/store"
)

const configMetadataKeyName = "config"

// AppConfig retrieves the configuration loaded by the app's Before hook.
func AppConfig(c *cli.Context) *cfg.Configuration {
	if conf, ok := c.App.Metadata[configMetadataKeyName].(*cfg.Configuration); ok {
		return conf
	}
	return cfg.NewDefaultConfig()
}

// SetAppConfig stores the configuration for AppConfig.
func SetAppConfig(c *cli.Context, conf *cfg.Configuration) {
	c.App.Metadata[configMetadataKeyName] = conf
}

// NewStore opens the configured snapshot store.
func NewStore(ctx context.Context, conf *cfg.Configuration) (store.Store, error) {
	switch conf.Store {
	case cfg.StoreS3:
		s3 := store.NewS3(conf.S3Endpoint, conf.S3AccessKey, conf.S3SecretKey)
		if err := s3.Connect(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect to S3: %w", err)
		}
		return s3, nil
	default:
		return store.NewLocal(conf.BackupDir)
	}
}

// NewDiscordClient returns the platform client for the configured token.
func NewDiscordClient(conf *cfg.Configuration, log logr.Logger) (*discord.Client, error) {
	if conf.Token == "" {
		return nil, fmt.Errorf("a bot token is required (--token or %sTOKEN)", cfg.EnvPrefix)
	}
	return discord.New(conf.Token, conf.AuditReason, log)
}

// NewStatsHandler returns the report sinks. The instance label defaults to the hostname.
func NewStatsHandler(conf *cfg.Configuration, log logr.Logger) *stats.Handler {
	instance := conf.PromInstance
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return stats.NewHandler(conf.PromURL, instance, conf.WebhookURL, log)
}
