package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

type (
	// Env holds the values of environment variable based configuration
	Env struct {
		Host            string        `envconfig:"HOST" default:"127.0.0.1"`
		Port            int           `envconfig:"PORT" default:"8080"`
		MocksDir        string        `envconfig:"MOCKS_DIR" default:"./mocks"`
		MockHeaders     string        `envconfig:"MOCK_HEADERS"`
		ConfigFilePath  string        `envconfig:"MOCKSERVER_CONFIG" default:"./mockserver.yaml"`
		WildcardRefresh time.Duration `envconfig:"WILDCARD_REFRESH" default:"0s"`
		LogLevel        string        `envconfig:"LOG_LEVEL"`
		Quiet           bool          `envconfig:"QUIET" default:"false"`
	}

	// File is the optional YAML configuration file
	File struct {
		Host            string   `yaml:"host"`
		Port            int      `yaml:"port"`
		Mocks           string   `yaml:"mocks"`
		Headers         []string `yaml:"headers"`
		Quiet           *bool    `yaml:"quiet"`
		WildcardRefresh string   `yaml:"wildcardRefresh"`
	}

	// Config is the merged configuration the server starts with
	Config struct {
		Host            string
		Port            int
		MocksDir        string
		WatchedHeaders  []string
		WildcardRefresh time.Duration
		LogLevel        string
		Verbose         bool
	}
)

// ReadFile decodes the YAML config at path. A missing file yields an empty config.
func ReadFile(path string) (*File, error) {
	f := &File{}

	configYaml, err := os.Open(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer configYaml.Close()

	if err := yaml.NewDecoder(configYaml).Decode(f); err != nil {
		return nil, fmt.Errorf("failed to decode yaml %s: %w", path, err)
	}

	return f, nil
}

// Merge layers the file config over the environment. Flags are applied by the caller afterwards.
func Merge(env *Env, file *File) (*Config, error) {
	cfg := &Config{
		Host:            env.Host,
		Port:            env.Port,
		MocksDir:        env.MocksDir,
		WildcardRefresh: env.WildcardRefresh,
		LogLevel:        env.LogLevel,
		Verbose:         !env.Quiet,
	}

	if file == nil {
		cfg.WatchedHeaders = ParseWatchedHeaders("", env.MockHeaders)
		return cfg, nil
	}

	if file.Host != "" {
		cfg.Host = file.Host
	}
	if file.Port != 0 {
		cfg.Port = file.Port
	}
	if file.Mocks != "" {
		cfg.MocksDir = file.Mocks
	}
	if file.Quiet != nil {
		cfg.Verbose = !*file.Quiet
	}
	if file.WildcardRefresh != "" {
		dur, err := time.ParseDuration(file.WildcardRefresh)
		if err != nil {
			return nil, fmt.Errorf("failed to parse wildcardRefresh %s: %w", file.WildcardRefresh, err)
		}
		cfg.WildcardRefresh = dur
	}

	cfg.WatchedHeaders = ParseWatchedHeaders(strings.Join(file.Headers, ","), env.MockHeaders)

	return cfg, nil
}

// Load reads the environment and the YAML file at path, or at MOCKSERVER_CONFIG when path is empty
func Load(path string) (*Config, error) {
	env := &Env{}
	if err := envconfig.Process("", env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if path == "" {
		path = env.ConfigFilePath
	}

	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Merge(env, file)
}

// ParseWatchedHeaders turns a comma separated header list into lower-cased, de-duplicated names.
// explicit wins over fallback whenever it holds anything but blanks.
func ParseWatchedHeaders(explicit, fallback string) []string {
	source := explicit
	if strings.Trim(source, " ,") == "" {
		source = fallback
	}

	var headers []string
	seen := map[string]bool{}
	for _, name := range strings.Split(source, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		headers = append(headers, name)
	}

	return headers
}
