package cfg

import (
	"fmt"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/vshn/guildsnap/queue"
	"github.com/vshn/guildsnap/restore"
	"github.com/vshn/guildsnap/scheduler"
)

const (
	// EnvPrefix is the prefix of environment variables read by Load.
	EnvPrefix = "GUILDSNAP_"

	StoreLocal = "local"
	StoreS3    = "s3"
)

// Configuration holds a strongly-typed tree of the configuration
type Configuration struct {
	Token       string `koanf:"token"`
	AuditReason string `koanf:"audit-reason"`

	Store       string `koanf:"store"`
	BackupDir   string `koanf:"backup-dir"`
	S3Endpoint  string `koanf:"s3-endpoint"`
	S3AccessKey string `koanf:"s3-access-key"`
	S3SecretKey string `koanf:"s3-secret-key"`

	DeleteInterval time.Duration `koanf:"delete-interval"`
	CreateInterval time.Duration `koanf:"create-interval"`
	EmojiInterval  time.Duration `koanf:"emoji-interval"`
	FetchTimeout   time.Duration `koanf:"fetch-timeout"`

	PromURL      string `koanf:"prom-url"`
	PromInstance string `koanf:"prom-instance"`
	WebhookURL   string `koanf:"webhook-url"`
	// MetricsBindAddress is where the schedule command serves /metrics. Empty disables it.
	MetricsBindAddress string `koanf:"metrics-bind-address"`

	// Schedule is a cron expression for periodic captures of Guilds.
	Schedule string   `koanf:"schedule"`
	Guilds   []string `koanf:"guilds"`
	KeepLast int      `koanf:"keep-last"`
}

// NewDefaultConfig retrieves the config with sane defaults
func NewDefaultConfig() *Configuration {
	intervals := queue.DefaultIntervals()
	return &Configuration{
		AuditReason:    restore.AuditReason,
		Store:          StoreLocal,
		BackupDir:      "./backups",
		DeleteInterval: intervals[queue.Deletion],
		CreateInterval: intervals[queue.Creation],
		EmojiInterval:  intervals[queue.Emoji],
		FetchTimeout:   30 * time.Second,
		Schedule:       "@daily",
		KeepLast:       7,

		MetricsBindAddress: ":8080",
	}
}

// Load reads the optional YAML file at path and the environment, and fills
// unset values from NewDefaultConfig.
func Load(path string) (*Configuration, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("could not load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", keyNameMapper), nil); err != nil {
		return nil, fmt.Errorf("could not load environment variables: %w", err)
	}

	c := &Configuration{}
	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("could not parse settings: %w", err)
	}
	if err := mergo.Merge(c, NewDefaultConfig()); err != nil {
		return nil, fmt.Errorf("could not merge defaults with settings: %w", err)
	}
	return c, nil
}

// keyNameMapper turns GUILDSNAP_BACKUP_DIR into backup-dir.
func keyNameMapper(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

func (c Configuration) ValidateSyntax() error {
	switch c.Store {
	case StoreLocal:
		if c.BackupDir == "" {
			return fmt.Errorf("backup directory cannot be empty")
		}
	case StoreS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("s3 store requires endpoint, access key and secret key")
		}
	default:
		return fmt.Errorf("unknown store %q (should be %q or %q)", c.Store, StoreLocal, StoreS3)
	}
	for name, d := range map[string]time.Duration{
		"delete interval": c.DeleteInterval,
		"create interval": c.CreateInterval,
		"emoji interval":  c.EmojiInterval,
		"fetch timeout":   c.FetchTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.KeepLast < 0 {
		return fmt.Errorf("keep-last cannot be negative")
	}
	if c.Schedule != "" {
		if err := scheduler.Validate(c.Schedule); err != nil {
			return fmt.Errorf("cannot parse schedule: %w", err)
		}
	}
	return nil
}

// Intervals returns the pacing intervals for the restore queue.
func (c Configuration) Intervals() queue.Intervals {
	return queue.Intervals{
		queue.Deletion: c.DeleteInterval,
		queue.Creation: c.CreateInterval,
		queue.Emoji:    c.EmojiInterval,
	}
}
