package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// maxUpwardSearchLevels limits how far up the directory tree to search
// for config files.
const maxUpwardSearchLevels = 10

// configFileNames in lookup order.
var configFileNames = []string{"sageworks.yaml", "sageworks.yml"}

var (
	configFileUsed string
	currentConfig  *Config
)

// GetConfigFileUsed returns the path of the config file the last load
// read, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// Current returns the configuration from the last LoadConfig call, or
// nil before any load.
func Current() *Config {
	return currentConfig
}

// findConfigFile looks for a config file in dir.
func findConfigFile(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRoot searches upward from startDir for a sageworks config
// file, returning startDir when none is found.
func findProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return startDir
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config file
// > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"catalog_path": DefaultCatalogPath,
		"local_root":   DefaultLocalRoot,
		"query_type":   DefaultQueryType,
		"query_path":   DefaultQueryPath,
		"log_group":    DefaultLogGroup,
		"output":       DefaultOutput,
		"verbose":      false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Resolve the project root: the explicit config file's directory,
	// else the nearest ancestor holding a sageworks.yaml.
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	projectRoot := cwd
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	} else {
		projectRoot = findProjectRoot(cwd)
		cfgFile = findConfigFile(projectRoot)
	}

	configFileUsed = ""
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// SAGEWORKS_BUCKET -> bucket, SAGEWORKS_CATALOG_PATH -> catalog_path, ...
	if err := k.Load(env.Provider("SAGEWORKS_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SAGEWORKS_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.CatalogPath = resolvePath(cfg.CatalogPath, projectRoot)
	cfg.LocalRoot = resolvePath(cfg.LocalRoot, projectRoot)
	if cfg.QueryPath != ":memory:" {
		cfg.QueryPath = resolvePath(cfg.QueryPath, projectRoot)
	}
	currentConfig = &cfg
	return &cfg, nil
}

// resolvePath resolves a relative path against baseDir.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// maxBucketNameLen is the S3 bucket name limit.
const maxBucketNameLen = 63

// BucketName derives a globally unique bucket name from a base by
// appending a random uuid suffix, truncated to the S3 limit.
func BucketName(base string) string {
	name := base + "-" + uuid.NewString()
	if len(name) > maxBucketNameLen {
		name = name[:maxBucketNameLen]
	}
	return strings.Trim(name, "-")
}

// WriteDefault writes a starter config file to path. It refuses to
// overwrite an existing file.
func WriteDefault(path, bucket string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	doc := map[string]interface{}{
		"bucket":       bucket,
		"catalog_path": DefaultCatalogPath,
		"local_root":   DefaultLocalRoot,
		"query_type":   DefaultQueryType,
		"query_path":   DefaultQueryPath,
		"log_group":    DefaultLogGroup,
		"output":       DefaultOutput,
	}
	data, err := yamlv3.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
