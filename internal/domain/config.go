package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Registry RegistryConfig `mapstructure:"registry"`
	Download DownloadConfig `mapstructure:"download"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP API configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RegistryConfig contains registry endpoint configuration
type RegistryConfig struct {
	BaseURL         string        `mapstructure:"base_url"`         // JSON metadata endpoint root
	SimpleURL       string        `mapstructure:"simple_url"`       // plain file-listing endpoint root
	FilesURL        string        `mapstructure:"files_url"`        // host for schemeless artifact URLs
	UserAgent       string        `mapstructure:"user_agent"`       // sent on artifact downloads
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`  // metadata requests
	DownloadTimeout time.Duration `mapstructure:"download_timeout"` // artifact transfers
}

// DownloadConfig contains pipeline configuration
type DownloadConfig struct {
	OutputDir     string        `mapstructure:"output_dir"`
	Workers       int           `mapstructure:"workers"`
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`   // per-package deadline
	ProgressEvery int           `mapstructure:"progress_every"` // completions between progress snapshots
	ProgressBar   bool          `mapstructure:"progress_bar"`   // terminal progress bar
}

// RetryConfig contains retry-round configuration
type RetryConfig struct {
	Rounds   int           `mapstructure:"rounds"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// LedgerConfig contains result ledger configuration
type LedgerConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Registry: RegistryConfig{
			BaseURL:         "https://pypi.org/pypi",
			SimpleURL:       "https://pypi.org/simple",
			FilesURL:        "https://files.pythonhosted.org",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			RequestTimeout:  30 * time.Second,
			DownloadTimeout: 60 * time.Second,
		},
		Download: DownloadConfig{
			OutputDir:     "$HOME/pyforce/benign_downloads",
			Workers:       3, // be nice to the registry servers
			ItemTimeout:   5 * time.Minute,
			ProgressEvery: 50,
			ProgressBar:   true,
		},
		Retry: RetryConfig{
			Rounds:   2,
			Cooldown: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			DatabasePath: "$HOME/pyforce/fetch_ledger.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
