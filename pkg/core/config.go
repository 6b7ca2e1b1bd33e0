// Package core provides core types and configuration for subdive
package core

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultChunkSize caps the number of tasks held in flight by one runner chunk
const DefaultChunkSize = 100000

// Config holds all configuration for subdive
type Config struct {
	// Target configuration
	Domain string `yaml:"domain" json:"domain"`

	// Performance
	Workers   int     `yaml:"workers" json:"workers"`
	ChunkSize int     `yaml:"chunk_size" json:"chunk_size"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"` // probes per second, 0 = unlimited

	// Timeouts
	DNSTimeout     time.Duration `yaml:"dns_timeout" json:"dns_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	TLSTimeout     time.Duration `yaml:"tls_timeout" json:"tls_timeout"`
	RDAPTimeout    time.Duration `yaml:"rdap_timeout" json:"rdap_timeout"`

	// DNS configuration
	Nameservers []string `yaml:"nameservers" json:"nameservers"` // empty = system resolver

	// Port scanning
	Ports    []int  `yaml:"ports" json:"ports"`
	ProxyURL string `yaml:"proxy" json:"proxy"` // socks5://host:port

	// Ownership lookups
	RDAPURL string `yaml:"rdap_url" json:"rdap_url"`

	// Address filtering
	PublicOnly bool `yaml:"public_only" json:"public_only"`

	// Wildcard store
	StorePath string `yaml:"store_path" json:"store_path"`

	// Output configuration
	OutputFile string       `yaml:"output_file" json:"output_file"`
	Format     OutputFormat `yaml:"format" json:"format"`
	Quiet      bool         `yaml:"quiet" json:"quiet"`
	Verbose    bool         `yaml:"verbose" json:"verbose"`
	NoColor    bool         `yaml:"no_color" json:"no_color"`
	NoProgress bool         `yaml:"no_progress" json:"no_progress"`
}

// OutputFormat represents the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workers:        10,
		ChunkSize:      DefaultChunkSize,
		DNSTimeout:     1 * time.Second,
		ConnectTimeout: 1 * time.Second,
		TLSTimeout:     2 * time.Second,
		RDAPTimeout:    10 * time.Second,
		Ports:          []int{80, 443},
		RDAPURL:        "https://rdap.org",
		PublicOnly:     true,
		StorePath:      "subdive.db",
		Format:         FormatText,
	}
}

// Validate checks if the configuration is valid and normalises nameservers
func (c *Config) Validate() error {
	if c.Workers < 1 {
		c.Workers = 1
	}

	if c.Workers > 1000 {
		return ErrTooManyWorkers
	}

	if c.ChunkSize < 1 {
		return ErrInvalidChunkSize
	}

	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, p)
		}
	}

	switch c.Format {
	case FormatText, FormatJSON, FormatCSV:
	case "":
		c.Format = FormatText
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}

	for i, ns := range c.Nameservers {
		normalized, err := NormalizeNameserver(ns)
		if err != nil {
			return err
		}
		c.Nameservers[i] = normalized
	}

	return nil
}

// NormalizeNameserver returns ns as host:port, defaulting the port to 53
func NormalizeNameserver(ns string) (string, error) {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "", fmt.Errorf("%w: empty nameserver", ErrInvalidConfig)
	}

	if host, port, err := net.SplitHostPort(ns); err == nil {
		if _, err := strconv.Atoi(port); err != nil {
			return "", fmt.Errorf("%w: nameserver %q has invalid port", ErrInvalidConfig, ns)
		}
		return net.JoinHostPort(host, port), nil
	}

	return net.JoinHostPort(strings.Trim(ns, "[]"), "53"), nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// DefaultConfigPath returns ~/.config/subdive/config.yaml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "subdive", "config.yaml"), nil
}

// Load resolves the configuration file to use. An explicit path must exist;
// otherwise the default path is used when present, falling back to defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(defaultPath); err != nil {
		return DefaultConfig(), nil
	}
	return LoadFromFile(defaultPath)
}

// MergeFlags copies values from cli into c for every flag explicitly set in fs.
// Flag names follow the CLI: workers, chunk-size, rate, dns-timeout, ...
func (c *Config) MergeFlags(fs *pflag.FlagSet, cli *Config) {
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("domain") {
		c.Domain = cli.Domain
	}
	if changed("workers") {
		c.Workers = cli.Workers
	}
	if changed("chunk-size") {
		c.ChunkSize = cli.ChunkSize
	}
	if changed("rate") {
		c.RateLimit = cli.RateLimit
	}
	if changed("dns-timeout") {
		c.DNSTimeout = cli.DNSTimeout
	}
	if changed("connect-timeout") {
		c.ConnectTimeout = cli.ConnectTimeout
	}
	if changed("tls-timeout") {
		c.TLSTimeout = cli.TLSTimeout
	}
	if changed("rdap-timeout") {
		c.RDAPTimeout = cli.RDAPTimeout
	}
	if changed("nameserver") {
		c.Nameservers = cli.Nameservers
	}
	if changed("ports") {
		c.Ports = cli.Ports
	}
	if changed("proxy") {
		c.ProxyURL = cli.ProxyURL
	}
	if changed("rdap-url") {
		c.RDAPURL = cli.RDAPURL
	}
	if changed("public-only") {
		c.PublicOnly = cli.PublicOnly
	}
	if changed("store") {
		c.StorePath = cli.StorePath
	}
	if changed("output") {
		c.OutputFile = cli.OutputFile
	}
	if changed("format") {
		c.Format = cli.Format
	}
	if changed("quiet") {
		c.Quiet = cli.Quiet
	}
	if changed("verbose") {
		c.Verbose = cli.Verbose
	}
	if changed("no-color") {
		c.NoColor = cli.NoColor
	}
	if changed("no-progress") {
		c.NoProgress = cli.NoProgress
	}
}
