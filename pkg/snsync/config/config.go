package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Pair is one local tree exported to the device. A relative Dest is resolved
// under the device's documents directory; an empty Dest is the documents
// directory itself.
type Pair struct {
	Source string `mapstructure:"source" yaml:"source"`
	Dest   string `mapstructure:"dest" yaml:"dest"`
}

// DeviceConfig configures mount root discovery.
type DeviceConfig struct {
	SerialEnv     string `mapstructure:"serial_env" yaml:"serial_env"`
	MountTemplate string `mapstructure:"mount_template" yaml:"mount_template"`
	DocumentsDir  string `mapstructure:"documents_dir" yaml:"documents_dir"`
	Root          string `mapstructure:"root" yaml:"root"` // bypasses discovery when set
}

// ExportConfig configures pushing local documents to the device.
type ExportConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Pairs         []Pair   `mapstructure:"pairs" yaml:"pairs"`
	Exclude       []string `mapstructure:"exclude" yaml:"exclude"`
	Ignore        []string `mapstructure:"ignore" yaml:"ignore"`
	IgnoreMarkers []string `mapstructure:"ignore_markers" yaml:"ignore_markers"`
	IgnoreFile    bool     `mapstructure:"ignore_file" yaml:"ignore_file"`
}

// BackupConfig configures copying native notebooks off the device.
type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dest    string `mapstructure:"dest" yaml:"dest"`
}

// ImportConfig configures rendering notebooks as PDF.
type ImportConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dest    string `mapstructure:"dest" yaml:"dest"`
	Tool    string `mapstructure:"tool" yaml:"tool"`
}

// OrgConfig configures Org to PDF conversion.
type OrgConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Emacs   string `mapstructure:"emacs" yaml:"emacs"`
}

// ConvertConfig groups the conversion rules.
type ConvertConfig struct {
	Org OrgConfig `mapstructure:"org" yaml:"org"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	DryRun      bool          `mapstructure:"dry_run" yaml:"dry_run"`
	CopyRetries int           `mapstructure:"copy_retries" yaml:"copy_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig bounds the log file and its rotated backups.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool `mapstructure:"daily" yaml:"daily"`
}

// Writer returns the settings for the logging package's rotating writer.
func (r RotationConfig) Writer() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSize:    int64(r.MaxSizeMB) * 1024 * 1024,
		MaxAge:     r.MaxAgeDays,
		MaxBackups: r.MaxBackups,
		Daily:      r.Daily,
	}
}

// JournalConfig configures the run history.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Config represents the application configuration.
type Config struct {
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Export  ExportConfig  `mapstructure:"export" yaml:"export"`
	Backup  BackupConfig  `mapstructure:"backup" yaml:"backup"`
	Import  ImportConfig  `mapstructure:"import" yaml:"import"`
	Convert ConvertConfig `mapstructure:"convert" yaml:"convert"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	EnvFile string        `mapstructure:"env_file" yaml:"env_file"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/snsync/config.yaml
//   - $HOME/.config/snsync/config.yaml
//
// Environment variables are prefixed with SNSYNC_ (e.g., SNSYNC_SYNC_DRY_RUN).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from the default locations when
// path is empty. A missing default config file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "snsync"))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "snsync"))
	}

	v.SetEnvPrefix("SNSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.serial_env", device.DefaultSerialEnv)
	v.SetDefault("device.mount_template", device.DefaultMountTemplate)
	v.SetDefault("device.documents_dir", device.DefaultDocumentsDir)
	v.SetDefault("device.root", "")

	v.SetDefault("export.enabled", true)
	v.SetDefault("export.pairs", []Pair{})
	v.SetDefault("export.exclude", []string{})
	v.SetDefault("export.ignore", []string{})
	v.SetDefault("export.ignore_markers", DefaultIgnoreMarkers)
	v.SetDefault("export.ignore_file", true)

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.dest", DefaultBackupDest)

	v.SetDefault("import.enabled", true)
	v.SetDefault("import.dest", DefaultImportDest)
	v.SetDefault("import.tool", "supernote-tool")

	v.SetDefault("convert.org.enabled", true)
	v.SetDefault("convert.org.emacs", "emacs")

	v.SetDefault("sync.dry_run", false)
	v.SetDefault("sync.copy_retries", DefaultCopyRetries)
	v.SetDefault("sync.retry_delay", DefaultRetryDelay)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.components", map[string]string{})
	v.SetDefault("logging.rotation.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("logging.rotation.max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.rotation.daily", false)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means use JournalDir
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("env_file", "") // Empty means use DefaultEnvFile
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Device.Root,
		&c.Backup.Dest,
		&c.Import.Dest,
		&c.Logging.Path,
		&c.Journal.Path,
		&c.EnvFile,
	}
	for i := range c.Export.Pairs {
		paths = append(paths, &c.Export.Pairs[i].Source)
	}

	for _, p := range paths {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate reports every unusable value, each wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	for i, p := range c.Export.Pairs {
		switch {
		case p.Source == "":
			invalid("export.pairs[%d]: source is empty", i)
		case !filepath.IsAbs(p.Source):
			invalid("export.pairs[%d]: source %q must be absolute", i, p.Source)
		}
		if filepath.IsAbs(p.Dest) {
			invalid("export.pairs[%d]: dest %q must be relative to the documents directory", i, p.Dest)
		}
		if strings.HasPrefix(filepath.Clean(p.Dest), "..") {
			invalid("export.pairs[%d]: dest %q leaves the documents directory", i, p.Dest)
		}
	}
	if c.Backup.Enabled && c.Backup.Dest == "" {
		invalid("backup.dest is empty")
	}
	if c.Import.Enabled && c.Import.Dest == "" {
		invalid("import.dest is empty")
	}
	if c.Sync.CopyRetries < 0 {
		invalid("sync.copy_retries must not be negative")
	}
	if c.Sync.RetryDelay < 0 {
		invalid("sync.retry_delay must not be negative")
	}
	if c.Journal.RetentionDays < 0 {
		invalid("journal.retention_days must not be negative")
	}
	if c.Watch.Debounce <= 0 {
		invalid("watch.debounce must be positive")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		invalid("logging.level: %v", err)
	}
	if c.Logging.Rotation.MaxSizeMB < 0 {
		invalid("logging.rotation.max_size_mb must not be negative")
	}
	if c.Logging.Rotation.MaxAgeDays < 0 {
		invalid("logging.rotation.max_age_days must not be negative")
	}
	if c.Logging.Rotation.MaxBackups < 0 {
		invalid("logging.rotation.max_backups must not be negative")
	}
	for component, level := range c.Logging.Components {
		if _, err := logging.ParseLevel(level); err != nil {
			invalid("logging.components.%s: %v", component, err)
		}
	}

	return errors.Join(errs...)
}

// DeviceOptions returns the discovery options for the device package.
func (c *Config) DeviceOptions() device.Options {
	return device.Options{
		SerialEnv:     c.Device.SerialEnv,
		MountTemplate: c.Device.MountTemplate,
	}
}

// JournalDir returns the configured journal directory or the default one.
func (c *Config) JournalDir() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return DefaultJournalDir()
}

// LoadEnv loads variables from a dotenv file without overriding variables
// already set. An empty path uses DefaultEnvFile. A missing file is not an
// error.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ConfigDir returns the configuration directory path, expanding ~ to the user's home directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "snsync"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "snsync"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# snsync configuration

# Device discovery. The serial is read from the environment variable named by
# serial_env (also loaded from env_file). {uid} and {serial} are substituted.
device:
  serial_env: %s
  mount_template: %s
  documents_dir: %s
  # root: /path/to/Supernote   # skip discovery

# Local trees pushed to the device. dest is relative to the documents
# directory; leave it empty to export straight into it.
export:
  enabled: true
  pairs: []
  #  - source: ~/Documents/Technical/Math
  #    dest: Math
  #  - source: ~/Documents/Technical/Class
  #    dest: ""
  # doublestar patterns relative to each source
  exclude: []
  # gitignore-style lines applied to every source
  ignore: []
  ignore_markers:
    - %s
  # read .snsyncignore from each source root
  ignore_file: true

backup:
  enabled: true
  dest: %s

import:
  enabled: true
  dest: %s
  tool: supernote-tool

convert:
  org:
    enabled: true
    emacs: emacs

sync:
  dry_run: false
  copy_retries: %d
  retry_delay: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/snsync/snsync.log)
  path: ""
  components:
    timestamp: info
  # Rotate the log file once it reaches max_size_mb; zero ages/backups keep all
  rotation:
    max_size_mb: %d
    max_age_days: %d
    max_backups: %d
    daily: false

journal:
  enabled: true
  # empty means $XDG_DATA_HOME/snsync/journal
  path: ""
  retention_days: %d

watch:
  debounce: %s

# dotenv file (empty means $XDG_CONFIG_HOME/snsync/.env)
env_file: ""
`, device.DefaultSerialEnv, device.DefaultMountTemplate, device.DefaultDocumentsDir,
		DefaultIgnoreMarker, DefaultBackupDest, DefaultImportDest,
		DefaultCopyRetries, DefaultRetryDelay,
		DefaultLogMaxSizeMB, DefaultLogMaxAgeDays, DefaultLogMaxBackups,
		DefaultRetentionDays, DefaultDebounce)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/snsync/ for the lock file and journal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "snsync")
}

// StateDir returns $XDG_STATE_HOME/snsync/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "snsync")
}

// DefaultJournalDir returns the default run journal directory.
func DefaultJournalDir() string {
	return filepath.Join(DataDir(), "journal")
}

// DefaultLockPath returns the default single-writer lock file path.
func DefaultLockPath() string {
	return filepath.Join(DataDir(), "snsync.lock")
}

// DefaultEnvFile returns the default dotenv file path.
func DefaultEnvFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return ".env"
	}
	return filepath.Join(dir, ".env")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}
