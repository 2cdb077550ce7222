package yellowstone

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

// Config represents the yellowstone configuration
type Config struct {
	SchemaPath  string            `yaml:"schema_path"`
	InputDir    string            `yaml:"input_dir"`
	Translation TranslationConfig `yaml:"translation"`
	Output      OutputConfig      `yaml:"output"`
	Batch       BatchConfig       `yaml:"batch"`
}

// TranslationConfig controls the translation pipeline ceilings and
// allowances.
type TranslationConfig struct {
	MaxNestingDepth         int     `yaml:"max_nesting_depth"`
	MaxTraversalDepth       int     `yaml:"max_traversal_depth"`
	AllowUnboundedTraversal bool    `yaml:"allow_unbounded_traversal"`
	AllowMultiTablePatterns bool    `yaml:"allow_multi_table_patterns"`
	PathEnumerationLimit    int     `yaml:"path_enumeration_limit"`
	MinConfidence           float64 `yaml:"min_confidence"`
}

// OutputConfig controls how results are rendered
type OutputConfig struct {
	Format string `yaml:"format"` // text or json
	Color  bool   `yaml:"color"`
}

// BatchConfig controls the batch translation command
type BatchConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Return default configuration if the file doesn't exist
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if config.Translation.MaxNestingDepth < 0 {
		return fmt.Errorf("%w: translation.max_nesting_depth must be non-negative, got %d",
			ErrConfigValidation, config.Translation.MaxNestingDepth)
	}

	if config.Translation.MaxTraversalDepth < 0 {
		return fmt.Errorf("%w: translation.max_traversal_depth must be non-negative, got %d",
			ErrConfigValidation, config.Translation.MaxTraversalDepth)
	}

	if config.Translation.PathEnumerationLimit < 0 {
		return fmt.Errorf("%w: translation.path_enumeration_limit must be non-negative, got %d",
			ErrConfigValidation, config.Translation.PathEnumerationLimit)
	}

	if config.Translation.MinConfidence < 0 || config.Translation.MinConfidence > 1 {
		return fmt.Errorf("%w: translation.min_confidence must be within [0, 1], got %g",
			ErrConfigValidation, config.Translation.MinConfidence)
	}

	if config.Output.Format != "" {
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if !validFormats[config.Output.Format] {
			return fmt.Errorf("%w: output.format '%s' is invalid: must be one of text, json",
				ErrConfigValidation, config.Output.Format)
		}
	}

	if config.Batch.Parallelism < 0 {
		return fmt.Errorf("%w: batch.parallelism must be non-negative, got %d",
			ErrConfigValidation, config.Batch.Parallelism)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		SchemaPath: "./schema.yaml",
		InputDir:   "./queries",
		Translation: TranslationConfig{
			MaxNestingDepth:      64,
			MaxTraversalDepth:    8,
			PathEnumerationLimit: 1000,
			MinConfidence:        0,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Batch: BatchConfig{
			Parallelism: 4,
		},
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.SchemaPath == "" {
		config.SchemaPath = "./schema.yaml"
	}

	if config.InputDir == "" {
		config.InputDir = "./queries"
	}

	if config.Translation.MaxNestingDepth == 0 {
		config.Translation.MaxNestingDepth = 64
	}

	if config.Translation.MaxTraversalDepth == 0 {
		config.Translation.MaxTraversalDepth = 8
	}

	if config.Translation.PathEnumerationLimit == 0 {
		config.Translation.PathEnumerationLimit = 1000
	}

	if config.Output.Format == "" {
		config.Output.Format = "text"
	}

	if config.Batch.Parallelism == 0 {
		config.Batch.Parallelism = 4
	}
}

// Options converts the translation section into library options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithMaxNestingDepth(c.Translation.MaxNestingDepth),
		WithMaxTraversalDepth(c.Translation.MaxTraversalDepth),
		WithPathEnumerationLimit(c.Translation.PathEnumerationLimit),
	}
	if c.Translation.AllowUnboundedTraversal {
		opts = append(opts, WithUnboundedTraversal())
	}
	if c.Translation.AllowMultiTablePatterns {
		opts = append(opts, WithMultiTablePatterns())
	}
	return opts
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars expands environment variable references in a string
func expandEnvVars(s string) string {
	// Pattern for ${VAR} format
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})

	// Pattern for $VAR format (word boundaries)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars expands environment variables in path fields
func expandConfigEnvVars(config *Config) {
	config.SchemaPath = expandEnvVars(config.SchemaPath)
	config.InputDir = expandEnvVars(config.InputDir)
}
