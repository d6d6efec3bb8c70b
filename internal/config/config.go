package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"photosync/internal/blobstore"
	"photosync/internal/filestore"
	"photosync/internal/pipeline"
	"photosync/internal/retry"
)

const (
	DefaultDBFileName       = ".photosync.db"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = LogFormatText
	DefaultBlobBackend      = blobstore.BackendLocal
	DefaultBlobPrefix       = blobstore.DefaultPrefix
	DefaultHashAlgorithm    = filestore.HashSHA256
	DefaultFilenameTemplate = pipeline.DefaultFilenameTemplate
	DefaultArchiveWorkers   = pipeline.DefaultArchiveWorkers

	DefaultRetryMaxAttempts       = retry.DefaultMaxAttempts
	DefaultRetryInitialIntervalMS = 200
	DefaultRetryMaxIntervalMS     = 5000

	configFileName           = ".photosync.toml"
	configDirEnvKey          = "PHOTOSYNC_CONFIG_DIR"
	trustProjectConfigEnvKey = "PHOTOSYNC_TRUST_PROJECT_CONFIG"

	dbPathEnvKey        = "PHOTOSYNC_DB"
	logLevelEnvKey      = "PHOTOSYNC_LOG_LEVEL"
	logFormatEnvKey     = "PHOTOSYNC_LOG_FORMAT"
	blobBackendEnvKey   = "PHOTOSYNC_BLOB_BACKEND"
	blobAccessKeyEnvKey = "PHOTOSYNC_BLOB_ACCESS_KEY"
	blobSecretKeyEnvKey = "PHOTOSYNC_BLOB_SECRET_KEY"

	defaultLocalBlobDir = ".photosync/blobs"
)

// Log formats accepted by log_format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ImportConfig configures the import pipeline.
type ImportConfig struct {
	Dir            string `toml:"dir"`
	ArchiveDir     string `toml:"archive_dir"`
	DuplicatesDir  string `toml:"duplicates_dir"`
	HashEnabled    bool   `toml:"hash_enabled"`
	DuplicateCheck bool   `toml:"duplicate_check"`
	HashAlgorithm  string `toml:"hash_algorithm"`
	ArchiveWorkers int    `toml:"archive_workers"`
}

// ExportConfig configures the export pipeline.
type ExportConfig struct {
	Dir              string `toml:"dir"`
	FilenameTemplate string `toml:"filename_template"`
}

// BlobConfig selects and configures the blob store backend.
type BlobConfig struct {
	Backend        string `toml:"backend"`
	Prefix         string `toml:"prefix"`
	LocalRoot      string `toml:"local_root"`
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RetryConfig bounds retries of transient ledger and blob store failures.
type RetryConfig struct {
	MaxAttempts       int `toml:"max_attempts"`
	InitialIntervalMS int `toml:"initial_interval_ms"`
	MaxIntervalMS     int `toml:"max_interval_ms"`
}

// Config defines runtime configuration for photosync.
type Config struct {
	DBPath                   string       `toml:"db_path"`
	LogLevel                 string       `toml:"log_level"`
	LogFormat                string       `toml:"log_format"`
	Import                   ImportConfig `toml:"import"`
	Export                   ExportConfig `toml:"export"`
	Blob                     BlobConfig   `toml:"blob"`
	Retry                    RetryConfig  `toml:"retry"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Import: ImportConfig{
			HashEnabled:    true,
			DuplicateCheck: true,
			HashAlgorithm:  DefaultHashAlgorithm,
			ArchiveWorkers: DefaultArchiveWorkers,
		},
		Export: ExportConfig{
			FilenameTemplate: DefaultFilenameTemplate,
		},
		Blob: BlobConfig{
			Backend: DefaultBlobBackend,
			Prefix:  DefaultBlobPrefix,
			UseSSL:  true,
		},
		Retry: RetryConfig{
			MaxAttempts:       DefaultRetryMaxAttempts,
			InitialIntervalMS: DefaultRetryInitialIntervalMS,
			MaxIntervalMS:     DefaultRetryMaxIntervalMS,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"db_path",
	"log_level",
	"log_format",
	"import.dir",
	"import.archive_dir",
	"import.duplicates_dir",
	"import.hash_enabled",
	"import.duplicate_check",
	"import.hash_algorithm",
	"import.archive_workers",
	"export.dir",
	"export.filename_template",
	"blob.backend",
	"blob.prefix",
	"blob.local_root",
	"blob.bucket",
	"blob.region",
	"blob.endpoint",
	"blob.access_key",
	"blob.secret_key",
	"blob.use_ssl",
	"blob.force_path_style",
	"retry.max_attempts",
	"retry.initial_interval_ms",
	"retry.max_interval_ms",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "import.dir":
		return c.Import.Dir, nil
	case "import.archive_dir":
		return c.Import.ArchiveDir, nil
	case "import.duplicates_dir":
		return c.Import.DuplicatesDir, nil
	case "import.hash_enabled":
		return strconv.FormatBool(c.Import.HashEnabled), nil
	case "import.duplicate_check":
		return strconv.FormatBool(c.Import.DuplicateCheck), nil
	case "import.hash_algorithm":
		return c.Import.HashAlgorithm, nil
	case "import.archive_workers":
		return strconv.Itoa(c.Import.ArchiveWorkers), nil
	case "export.dir":
		return c.Export.Dir, nil
	case "export.filename_template":
		return c.Export.FilenameTemplate, nil
	case "blob.backend":
		return c.Blob.Backend, nil
	case "blob.prefix":
		return c.Blob.Prefix, nil
	case "blob.local_root":
		return c.Blob.LocalRoot, nil
	case "blob.bucket":
		return c.Blob.Bucket, nil
	case "blob.region":
		return c.Blob.Region, nil
	case "blob.endpoint":
		return c.Blob.Endpoint, nil
	case "blob.access_key":
		return c.Blob.AccessKey, nil
	case "blob.secret_key":
		return mask(c.Blob.SecretKey), nil
	case "blob.use_ssl":
		return strconv.FormatBool(c.Blob.UseSSL), nil
	case "blob.force_path_style":
		return strconv.FormatBool(c.Blob.ForcePathStyle), nil
	case "retry.max_attempts":
		return strconv.Itoa(c.Retry.MaxAttempts), nil
	case "retry.initial_interval_ms":
		return strconv.Itoa(c.Retry.InitialIntervalMS), nil
	case "retry.max_interval_ms":
		return strconv.Itoa(c.Retry.MaxIntervalMS), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if level := strings.TrimSpace(os.Getenv(logLevelEnvKey)); level != "" {
		cfg.LogLevel = level
	}
	if logFormat := strings.TrimSpace(os.Getenv(logFormatEnvKey)); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if backend := strings.TrimSpace(os.Getenv(blobBackendEnvKey)); backend != "" {
		cfg.Blob.Backend = backend
	}
	if accessKey := os.Getenv(blobAccessKeyEnvKey); accessKey != "" {
		cfg.Blob.AccessKey = accessKey
	}
	if secretKey := os.Getenv(blobSecretKeyEnvKey); secretKey != "" {
		cfg.Blob.SecretKey = secretKey
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "import.archive_workers", "retry.max_attempts", "retry.initial_interval_ms", "retry.max_interval_ms":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "import.hash_enabled", "import.duplicate_check", "blob.use_ssl", "blob.force_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "log_format":
		logFormat := strings.ToLower(value)
		if logFormat != LogFormatText && logFormat != LogFormatJSON {
			return nil, fmt.Errorf("%s must be text or json", key)
		}
		return logFormat, nil
	case "import.hash_algorithm":
		return filestore.ParseHashAlgorithm(value)
	case "blob.backend":
		backend := strings.ToLower(value)
		switch backend {
		case blobstore.BackendLocal, blobstore.BackendS3, blobstore.BackendMinio:
			return backend, nil
		default:
			return nil, fmt.Errorf("%s must be one of local, s3, minio", key)
		}
	case "export.filename_template":
		if _, err := pipeline.ParseFilenameTemplate(value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = DefaultLogFormat
	}
	if strings.TrimSpace(c.Import.HashAlgorithm) == "" {
		c.Import.HashAlgorithm = DefaultHashAlgorithm
	}
	if c.Import.ArchiveWorkers <= 0 {
		c.Import.ArchiveWorkers = DefaultArchiveWorkers
	}
	if strings.TrimSpace(c.Export.FilenameTemplate) == "" {
		c.Export.FilenameTemplate = DefaultFilenameTemplate
	}
	if strings.TrimSpace(c.Blob.Backend) == "" {
		c.Blob.Backend = DefaultBlobBackend
	}
	c.Blob.Backend = strings.ToLower(strings.TrimSpace(c.Blob.Backend))
	if strings.TrimSpace(c.Blob.Prefix) == "" {
		c.Blob.Prefix = DefaultBlobPrefix
	}
	if c.Blob.LocalRoot == "" && c.DBPath != "" {
		c.Blob.LocalRoot = filepath.Join(filepath.Dir(c.DBPath), defaultLocalBlobDir)
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if c.Retry.InitialIntervalMS <= 0 {
		c.Retry.InitialIntervalMS = DefaultRetryInitialIntervalMS
	}
	if c.Retry.MaxIntervalMS <= 0 {
		c.Retry.MaxIntervalMS = DefaultRetryMaxIntervalMS
	}
}

// RetryPolicy returns the backoff policy for ledger and blob store calls.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: time.Duration(c.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxIntervalMS) * time.Millisecond,
	}
}

// BlobSettings returns the blob store factory settings.
func (c *Config) BlobSettings() blobstore.Settings {
	return blobstore.Settings{
		Backend:        c.Blob.Backend,
		Prefix:         c.Blob.Prefix,
		LocalRoot:      c.Blob.LocalRoot,
		Bucket:         c.Blob.Bucket,
		Region:         c.Blob.Region,
		Endpoint:       c.Blob.Endpoint,
		AccessKey:      c.Blob.AccessKey,
		SecretKey:      c.Blob.SecretKey,
		UseSSL:         c.Blob.UseSSL,
		ForcePathStyle: c.Blob.ForcePathStyle,
	}
}

// ImportOptions returns the import pipeline options. dir overrides the
// configured folder when non-empty.
func (c *Config) ImportOptions(dir string) pipeline.ImportOptions {
	if strings.TrimSpace(dir) == "" {
		dir = c.Import.Dir
	}
	return pipeline.ImportOptions{
		Dir:            dir,
		ArchiveDir:     c.Import.ArchiveDir,
		DuplicatesDir:  c.Import.DuplicatesDir,
		HashEnabled:    c.Import.HashEnabled,
		DuplicateCheck: c.Import.DuplicateCheck,
		ArchiveWorkers: c.Import.ArchiveWorkers,
	}
}

// ExportOptions returns the export pipeline options. dir overrides the
// configured folder when non-empty.
func (c *Config) ExportOptions(dir string, incremental, force bool) (pipeline.ExportOptions, error) {
	if strings.TrimSpace(dir) == "" {
		dir = c.Export.Dir
	}
	tmpl, err := pipeline.ParseFilenameTemplate(c.Export.FilenameTemplate)
	if err != nil {
		return pipeline.ExportOptions{}, err
	}
	return pipeline.ExportOptions{
		Dir:         dir,
		Incremental: incremental,
		Force:       force,
		Template:    tmpl,
	}, nil
}
