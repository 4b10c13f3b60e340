// Package config provides the run options and their layered loading.
// Priority: defaults < user < project < .env/env < flags
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
)

// Environment variables read by Load.
const (
	EnvType          = "MRTBATCH_TYPE"
	EnvOutput        = "MRTBATCH_OUTPUT"
	EnvBatch         = "MRTBATCH_BATCH"
	EnvSkipBad       = "MRTBATCH_SKIPBAD"
	EnvDebug         = "MRTBATCH_DEBUG"
	EnvLogFormat     = "MRTBATCH_LOG_FORMAT"
	EnvTraceEndpoint = "MRTBATCH_TRACE_ENDPOINT"
	EnvS3Region      = "MRTBATCH_S3_REGION"
	EnvS3Endpoint    = "MRTBATCH_S3_ENDPOINT"
)

// Options describes one generation run.
type Options struct {
	// Inputs come from the command line only.
	ListFile  string `yaml:"-"`
	Directory string `yaml:"-"`
	Template  string `yaml:"-"`
	Manifest  string `yaml:"-"`

	ScriptType    string        `yaml:"type" validate:"omitempty,scripttype"`
	OutputDir     string        `yaml:"output"`
	BatchName     string        `yaml:"batch" validate:"required,excludesall=/\\"`
	SkipBad       bool          `yaml:"skipbad"`
	Debug         bool          `yaml:"debug"`
	LogFormat     string        `yaml:"log_format" validate:"omitempty,oneof=text json"`
	TraceEndpoint string        `yaml:"trace_endpoint" validate:"omitempty,hostname_port"`
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"gte=0"`

	// S3 settings apply when the manifest destination is an s3:// URL.
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty" validate:"omitempty,url"`
}

// Default returns the default options.
func Default() *Options {
	return &Options{
		BatchName:     "mrtbatch",
		LogFormat:     "text",
		WatchDebounce: 500 * time.Millisecond,
	}
}

// Manager loads Options from files and the environment.
type Manager struct {
	mu      sync.RWMutex
	options *Options
	paths   []string
	loaded  []string
	envFile string
}

// NewManager creates a manager reading the given config files in order.
// With no paths the user and project files are used.
func NewManager(paths ...string) *Manager {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}
	return &Manager{
		options: Default(),
		paths:   paths,
		envFile: ".env",
	}
}

// SetEnvFile changes the dotenv file read by Load. An empty name disables it.
func (m *Manager) SetEnvFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envFile = path
}

// DefaultPaths returns ~/.mrtbatch/config.yaml and ./.mrtbatch.yaml.
func DefaultPaths() []string {
	var paths []string

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mrtbatch", "config.yaml"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".mrtbatch.yaml"))
	}

	return paths
}

// Load reads all sources in priority order. Missing files are ignored.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.options = Default()
	m.loaded = nil

	for _, path := range m.paths {
		if err := m.loadFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		m.loaded = append(m.loaded, path)
	}

	if m.envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(m.envFile); err != nil && !os.IsNotExist(err) {
			return mrterrors.Wrapf(err, mrterrors.CodeInvalidConfig, "invalid env file %s", m.envFile)
		}
	}

	return m.loadEnv()
}

func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Options
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return mrterrors.Wrapf(err, mrterrors.CodeInvalidConfig, "invalid config file %s", path)
	}

	m.merge(&partial)
	return nil
}

// merge copies the non-zero values of src.
func (m *Manager) merge(src *Options) {
	if src.ScriptType != "" {
		m.options.ScriptType = src.ScriptType
	}
	if src.OutputDir != "" {
		m.options.OutputDir = src.OutputDir
	}
	if src.BatchName != "" {
		m.options.BatchName = src.BatchName
	}
	if src.SkipBad {
		m.options.SkipBad = true
	}
	if src.Debug {
		m.options.Debug = true
	}
	if src.LogFormat != "" {
		m.options.LogFormat = src.LogFormat
	}
	if src.TraceEndpoint != "" {
		m.options.TraceEndpoint = src.TraceEndpoint
	}
	if src.WatchDebounce != 0 {
		m.options.WatchDebounce = src.WatchDebounce
	}
	if src.S3Region != "" {
		m.options.S3Region = src.S3Region
	}
	if src.S3Endpoint != "" {
		m.options.S3Endpoint = src.S3Endpoint
	}
}

func (m *Manager) loadEnv() error {
	if v := os.Getenv(EnvType); v != "" {
		m.options.ScriptType = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		m.options.OutputDir = v
	}
	if v := os.Getenv(EnvBatch); v != "" {
		m.options.BatchName = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		m.options.LogFormat = v
	}
	if v := os.Getenv(EnvTraceEndpoint); v != "" {
		m.options.TraceEndpoint = v
	}
	if v := os.Getenv(EnvS3Region); v != "" {
		m.options.S3Region = v
	}
	if v := os.Getenv(EnvS3Endpoint); v != "" {
		m.options.S3Endpoint = v
	}

	for name, dst := range map[string]*bool{
		EnvSkipBad: &m.options.SkipBad,
		EnvDebug:   &m.options.Debug,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return mrterrors.Newf(mrterrors.CodeInvalidConfig, "invalid boolean %q in %s", v, name)
		}
		*dst = b
	}
	return nil
}

// Get returns a copy of the loaded options.
func (m *Manager) Get() *Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o := *m.options
	return &o
}

// GetPaths returns the config files that were actually read.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Save writes the persistent settings of o to path.
func Save(path string, o *Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return mrterrors.Wrapf(err, mrterrors.CodeCreateDir, "could not create directory: %s", filepath.Dir(path))
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return mrterrors.Wrap(err, mrterrors.CodeInvalidConfig, "cannot encode options")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return mrterrors.WriteFailed(path, err)
	}
	return nil
}
