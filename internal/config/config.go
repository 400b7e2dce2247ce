package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zgate/internal/connection"
	"zgate/internal/dataset"
	"zgate/internal/gateway"
	"zgate/internal/jcl"
	"zgate/internal/jobs"
)

const (
	DefaultConfigFile = ".zgateconfig"
	DefaultPort       = 443

	// NoPublicPattern disables the public dataset listing.
	NoPublicPattern = "-"
)

// Profile names a facility and a user. Passwords are never stored; they
// are supplied for each invocation.
type Profile struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	HLQ  string `yaml:"hlq"`
}

type Gateway struct {
	Facility      string        `yaml:"facility"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPolls      int           `yaml:"max_polls"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PublicPattern string        `yaml:"public_pattern"`
	MemberPath    string        `yaml:"member_path"` // paren, records
	JobCard       jcl.JobCard   `yaml:"job_card"`
}

type Config struct {
	Profiles       map[string]*Profile `yaml:"profiles"`
	DefaultProfile string              `yaml:"default_profile"`
	Gateway        Gateway             `yaml:"gateway"`
}

func New() *Config {
	cfg := &Config{Profiles: make(map[string]*Profile)}
	cfg.applyDefaults()
	return cfg
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigFile), nil
}

func Load(path string) (*Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\nRun 'zgate config setup' to create one", path)
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	cfg.applyDefaults()

	if err := cfg.Gateway.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for _, p := range c.Profiles {
		if p.Port == 0 {
			p.Port = DefaultPort
		}
		if p.HLQ == "" {
			p.HLQ = strings.ToUpper(p.User)
		}
	}

	g := &c.Gateway
	if g.Facility == "" {
		g.Facility = connection.DefaultFacility
	}
	if g.Timeout == 0 {
		g.Timeout = connection.DefaultTimeout
	}
	if g.MaxPolls == 0 {
		g.MaxPolls = jobs.DefaultMaxPolls
	}
	if g.PollInterval == 0 {
		g.PollInterval = jobs.DefaultPollInterval
	}
	if g.PublicPattern == "" {
		g.PublicPattern = gateway.DefaultPublicPattern
	}
	if g.MemberPath == "" {
		g.MemberPath = string(dataset.MemberPathParen)
	}
	g.JobCard = g.JobCard.WithDefaults()
}

func (c *Config) Save(path string) error {
	path, err := resolvePath(path)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile specified and no default profile set")
	}

	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return p, nil
}

func (p *Profile) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port: %d", p.Port)
	}
	if p.User == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}

// Connection combines the stored profile with a password supplied for
// this invocation.
func (p *Profile) Connection(password string) connection.Profile {
	return connection.Profile{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: password,
		HLQ:      p.HLQ,
	}
}

func (g *Gateway) Validate() error {
	if g.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if g.MaxPolls < 0 {
		return fmt.Errorf("max_polls cannot be negative")
	}
	if g.PollInterval < 0 {
		return fmt.Errorf("poll_interval cannot be negative")
	}
	if !dataset.MemberPath(g.MemberPath).Valid() {
		return fmt.Errorf("member_path must be 'paren' or 'records'")
	}
	for _, name := range []string{g.JobCard.Class, g.JobCard.MsgClass} {
		if len(name) != 1 {
			return fmt.Errorf("job_card class and msgclass must be a single character")
		}
	}
	return nil
}

// Settings converts the gateway block into gateway settings.
func (g *Gateway) Settings() gateway.Settings {
	public := g.PublicPattern
	if public == NoPublicPattern {
		public = ""
	}
	return gateway.Settings{
		Facility:      g.Facility,
		Timeout:       g.Timeout,
		MaxPolls:      g.MaxPolls,
		PollInterval:  g.PollInterval,
		PublicPattern: public,
		MemberPath:    dataset.MemberPath(g.MemberPath),
		JobCard:       g.JobCard,
	}
}
