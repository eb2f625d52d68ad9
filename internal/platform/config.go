package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/audittrail/pkg/audit"
	"github.com/aretw0/audittrail/pkg/sink"
)

// ConfigFileName is the name of the settings file looked up by FindConfig.
const ConfigFileName = ".audittrail.yaml"

// ErrNoConfig is returned by FindConfig when no settings file exists.
var ErrNoConfig = errors.New("config file not found")

// Settings is the content of the settings file.
type Settings struct {
	Audit audit.Config  `yaml:"audit"`
	Store StoreSettings `yaml:"store"`
	Sink  SinkSettings  `yaml:"sink"`
}

// StoreSettings selects and configures the record store.
type StoreSettings struct {
	// Adapter is "memory" or "fs".
	Adapter   string `yaml:"adapter"`
	Path      string `yaml:"path,omitempty"`
	SystemDir string `yaml:"systemDir,omitempty"`
	Format    string `yaml:"format,omitempty"`
	ReadOnly  bool   `yaml:"readOnly,omitempty"`
	Strict    bool   `yaml:"strict,omitempty"`
	// Watch is the glob of files observed by `audittrail watch`.
	Watch string `yaml:"watch,omitempty"`
}

// SinkSettings selects the destinations of audit lines. Every configured
// destination receives every line.
type SinkSettings struct {
	Stdout   bool   `yaml:"stdout"`
	Log      bool   `yaml:"log,omitempty"`
	File     string `yaml:"file,omitempty"`
	RedisURL string `yaml:"redisURL,omitempty"`
	Stream   string `yaml:"stream,omitempty"`
	MaxLen   int64  `yaml:"maxLen,omitempty"`
}

// DefaultSettings returns the settings used when no file is found.
func DefaultSettings() Settings {
	return Settings{
		Audit: audit.DefaultConfig(),
		Store: StoreSettings{
			Adapter: "memory",
			Watch:   "**",
		},
		Sink: SinkSettings{
			Stdout: true,
			Stream: sink.DefaultStream,
		},
	}
}

// FindConfig looks upwards from startDir for ConfigFileName and returns its
// absolute path. It returns ErrNoConfig when the filesystem root is reached.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNoConfig
}

// LoadSettings reads a settings file. Keys missing from the file keep their
// default value; unknown keys are rejected. A relative store path is
// resolved against the directory of the file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config: %w", err)
	}
	settings, err := ParseSettings(bytes.NewReader(data))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	if settings.Store.Path != "" && !filepath.IsAbs(settings.Store.Path) {
		settings.Store.Path = filepath.Join(filepath.Dir(path), settings.Store.Path)
	}
	return settings, nil
}

// ParseSettings decodes settings on top of DefaultSettings.
func ParseSettings(r io.Reader) (Settings, error) {
	settings := DefaultSettings()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}

	switch settings.Store.Adapter {
	case "memory", "fs":
	default:
		return Settings{}, fmt.Errorf("unknown store adapter: %q", settings.Store.Adapter)
	}
	if settings.Audit.HeaderThreshold < 0 {
		return Settings{}, fmt.Errorf("HeaderThreshold cannot be negative")
	}
	return settings, nil
}

// Resolve loads the settings at path, or discovers them from startDir when
// path is empty. Without a file, DefaultSettings is returned.
func Resolve(path, startDir string) (Settings, string, error) {
	if path == "" {
		found, err := FindConfig(startDir)
		if errors.Is(err, ErrNoConfig) {
			return DefaultSettings(), "", nil
		}
		if err != nil {
			return Settings{}, "", err
		}
		path = found
	}
	settings, err := LoadSettings(path)
	return settings, path, err
}

// Encode writes settings as YAML.
func (s Settings) Encode(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(s); err != nil {
		return err
	}
	return encoder.Close()
}
