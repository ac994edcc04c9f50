package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/devstack/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "devstack.json"

	// DefaultPort is the default port of the outer dev server.
	DefaultPort = 3000

	// DefaultWSPort is the base port of the per-router reload channels.
	DefaultWSPort = 16000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultServerEntry is the module node-handler routers load on every request.
	DefaultServerEntry = "./app/server"
)

// ConfigFileNames are the file names Load looks for, in order.
var ConfigFileNames = []string{ConfigFileName, "devstack.yaml", "devstack.yml"}

// Config represents a devstack configuration file.
type Config struct {
	// Routers are the router declarations, in order.
	Routers []RouterSpec `json:"routers" yaml:"routers"`

	// Bundlers are the bundler declarations.
	Bundlers []BundlerSpec `json:"bundlers" yaml:"bundlers"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port of the outer listening server.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// WSPort is the base reload channel port. Router i gets WSPort+i.
	WSPort int `json:"wsPort,omitempty" yaml:"wsPort,omitempty"`

	// ServerEntry is the server-render entry for node-handler routers.
	ServerEntry string `json:"serverEntry,omitempty" yaml:"serverEntry,omitempty"`

	// Ignore contains extra patterns the file watcher skips.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Dev: DevConfig{
			Port:        DefaultPort,
			Host:        DefaultHost,
			WSPort:      DefaultWSPort,
			ServerEntry: DefaultServerEntry,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for devstack.json, then devstack.yaml, then devstack.yml.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return nil, errors.New("E141").
		WithDetail("No devstack.json or devstack.yaml found in " + dir).
		WithSuggestion("Create devstack.json with your routers and bundlers")
}

// LoadFile reads configuration from the specified file path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path)).
				WithSuggestion("Check that the file is valid YAML").
				Wrap(err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path)).
				WithSuggestion("Check that the file is valid JSON").
				Wrap(err)
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path, as YAML or JSON by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.WSPort == 0 {
		c.Dev.WSPort = DefaultWSPort
	}
	if c.Dev.ServerEntry == "" {
		c.Dev.ServerEntry = DefaultServerEntry
	}
}

// ApplyEnv overrides dev settings from DEVSTACK_PORT, DEVSTACK_WS_PORT and DEVSTACK_HOST.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DEVSTACK_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("E122").WithDetail("DEVSTACK_PORT=" + v).Wrap(err)
		}
		c.Dev.Port = port
	}
	if v, ok := lookup("DEVSTACK_WS_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("E122").WithDetail("DEVSTACK_WS_PORT=" + v).Wrap(err)
		}
		c.Dev.WSPort = port
	}
	if v, ok := lookup("DEVSTACK_HOST"); ok && v != "" {
		c.Dev.Host = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535")
	}
	if c.Dev.WSPort <= 0 || c.Dev.WSPort > 65535 {
		return errors.New("E122").
			WithDetail("wsPort must be between 1 and 65535")
	}
	if last := c.Dev.WSPort + len(c.Routers) - 1; last > 65535 {
		return errors.New("E122").
			WithDetailf("reload channels need ports %d-%d", c.Dev.WSPort, last).
			WithSuggestion("Lower dev.wsPort")
	}
	return nil
}

// Resolve resolves the declared routers and bundlers against the config's directory.
func (c *Config) Resolve() (*AppConfig, error) {
	root := c.Dir()
	if root == "" {
		root = "."
	}
	return Resolve(c.Routers, c.Bundlers, root)
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No devstack config found in " + startDir + " or any parent directory").
				WithSuggestion("Create devstack.json with your routers and bundlers")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
