package config

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL   = "http://127.0.0.1:7333"
	DefaultLogLevel = "info"
	DefaultBackend  = BackendSQLite

	DefaultSQLiteFileName = ".filedrop.db"
	DefaultLocalDirName   = "filedrop-data"

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 32 * 1024 * 1024

	BackendSQLite = "sqlite"
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendS3     = "s3"

	configFileName = ".filedrop.toml"

	configDirEnvKey          = "FILEDROP_CONFIG_DIR"
	trustProjectConfigEnvKey = "FILEDROP_TRUST_PROJECT_CONFIG"
	envFileEnvKey            = "FILEDROP_ENV_FILE"
)

// S3Config points the s3 backend at a bucket.
type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	Prefix       string `toml:"prefix"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// StorageConfig selects and configures the object-store backend.
type StorageConfig struct {
	Backend string   `toml:"backend"`
	Path    string   `toml:"path"`
	S3      S3Config `toml:"s3"`
}

// UploadConfig bounds what the server accepts on POST /api/upload.
type UploadConfig struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
	MaxConcurrent      int      `toml:"max_concurrent"`
}

// Config defines runtime configuration for filedrop.
type Config struct {
	APIURL                   string        `toml:"api_url"`
	LogLevel                 string        `toml:"log_level"`
	Storage                  StorageConfig `toml:"storage"`
	Uploads                  UploadConfig  `toml:"uploads"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Storage: StorageConfig{
			Backend: DefaultBackend,
		},
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
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
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey)))
	return err == nil && value
}

var allowedKeys = []string{
	"api_url",
	"log_level",
	"storage.backend",
	"storage.path",
	"storage.s3.bucket",
	"storage.s3.region",
	"storage.s3.endpoint",
	"storage.s3.prefix",
	"storage.s3.use_path_style",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
	"uploads.allowed_media_types",
	"uploads.max_concurrent",
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

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.path":
		return c.Storage.Path, nil
	case "storage.s3.bucket":
		return c.Storage.S3.Bucket, nil
	case "storage.s3.region":
		return c.Storage.S3.Region, nil
	case "storage.s3.endpoint":
		return c.Storage.S3.Endpoint, nil
	case "storage.s3.prefix":
		return c.Storage.S3.Prefix, nil
	case "storage.s3.use_path_style":
		return strconv.FormatBool(c.Storage.S3.UsePathStyle), nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	case "uploads.max_concurrent":
		return strconv.Itoa(c.Uploads.MaxConcurrent), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
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

	f, err := os.Create(path)
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
				loaded, err := loadFileIfExists(projectPath, &cfg)
				if err != nil {
					return nil, err
				}
				if loaded {
					cfg.TrustedProjectConfigPath = projectPath
				}
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays FILEDROP_* variables. When FILEDROP_ENV_FILE names a
// dotenv file its values fill in for variables the process does not set.
func applyEnv(cfg *Config) error {
	fileEnv := map[string]string{}
	if path := strings.TrimSpace(os.Getenv(envFileEnvKey)); path != "" {
		values, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read env file %s: %w", path, err)
		}
		fileEnv = values
	}
	lookup := func(key string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		return strings.TrimSpace(fileEnv[key])
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"FILEDROP_API_URL", &cfg.APIURL},
		{"FILEDROP_LOG_LEVEL", &cfg.LogLevel},
		{"FILEDROP_STORAGE_BACKEND", &cfg.Storage.Backend},
		{"FILEDROP_STORAGE_PATH", &cfg.Storage.Path},
		{"FILEDROP_S3_BUCKET", &cfg.Storage.S3.Bucket},
		{"FILEDROP_S3_REGION", &cfg.Storage.S3.Region},
		{"FILEDROP_S3_ENDPOINT", &cfg.Storage.S3.Endpoint},
	}
	for _, o := range overrides {
		if value := lookup(o.key); value != "" {
			*o.target = value
		}
	}
	if raw := lookup("FILEDROP_ALLOWED_MEDIA_TYPES"); raw != "" {
		cfg.Uploads.AllowedMediaTypes = splitCSV(raw)
	}
	return nil
}

func (c *Config) normalize() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if !isKnownBackend(c.Storage.Backend) {
		return fmt.Errorf("unknown storage backend %q (want sqlite, local, memory or s3)", c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		if cwd, err := os.Getwd(); err == nil {
			switch c.Storage.Backend {
			case BackendSQLite:
				c.Storage.Path = filepath.Join(cwd, DefaultSQLiteFileName)
			case BackendLocal:
				c.Storage.Path = filepath.Join(cwd, DefaultLocalDirName)
			}
		}
	}

	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Uploads.MaxConcurrent < 0 {
		c.Uploads.MaxConcurrent = 0
	}
	c.Uploads.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Uploads.AllowedMediaTypes)
	return nil
}

func isKnownBackend(name string) bool {
	switch name {
	case BackendSQLite, BackendLocal, BackendMemory, BackendS3:
		return true
	default:
		return false
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.max_concurrent":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be zero or a positive integer", key)
		}
		return parsed, nil
	case "storage.s3.use_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "storage.backend":
		backend := strings.ToLower(value)
		if !isKnownBackend(backend) {
			return nil, fmt.Errorf("%s must be one of sqlite, local, memory, s3", key)
		}
		return backend, nil
	case "log_level":
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err != nil {
			return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
		}
		return strings.ToLower(value), nil
	case "uploads.allowed_media_types":
		return splitCSV(value), nil
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

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		parsed, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		normalized := strings.ToLower(parsed)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
