// Package config handles experiment configuration loading, validation, and
// conversion into block and session settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"avstress/internal/block"
	"avstress/internal/iti"
	"avstress/internal/trial"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete experiment configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Session holds timing and data location shared by every block.
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Keys assigns a response key to each color.
	Keys KeysConfig `toml:"keys" json:"keys" yaml:"keys"`

	// Stimuli locates the spoken color words.
	Stimuli StimuliConfig `toml:"stimuli" json:"stimuli" yaml:"stimuli"`

	// Display selects the presentation surface.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Practice is the unlogged warm-up block.
	Practice PracticeConfig `toml:"practice" json:"practice" yaml:"practice"`

	// Blocks run in order.
	Blocks []BlockConfig `toml:"blocks" json:"blocks" yaml:"blocks"`

	// Text is the participant-facing copy.
	Text TextConfig `toml:"text" json:"text" yaml:"text"`

	// Storage configures the optional mirrors of the trial log.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// SessionConfig holds per-session settings.
type SessionConfig struct {
	// DataDir receives experiment_results_<participant>.csv.
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	// Seed is a 64-character hex session seed. Empty draws a fresh one.
	Seed string `toml:"seed" json:"seed" yaml:"seed"`

	// Shape of the visual stimulus: "circle" or "square".
	Shape string `toml:"shape" json:"shape" yaml:"shape"`

	// FixationMs is the pre-stimulus fixation interval.
	FixationMs int `toml:"fixation_ms" json:"fixation_ms" yaml:"fixation_ms"`

	// ResponseWindowMs bounds the wait for a key press after onset.
	ResponseWindowMs int `toml:"response_window_ms" json:"response_window_ms" yaml:"response_window_ms"`

	// InstructionMs is the minimum time an instruction screen is shown
	// before the continue prompt appears.
	InstructionMs int `toml:"instruction_ms" json:"instruction_ms" yaml:"instruction_ms"`

	// BreakMs is the minimum length of the break screen between blocks.
	BreakMs int `toml:"break_ms" json:"break_ms" yaml:"break_ms"`

	// ContinueKey dismisses instruction and break screens.
	ContinueKey string `toml:"continue_key" json:"continue_key" yaml:"continue_key"`

	// AbortFile, created inside DataDir, ends the run at the next trial.
	AbortFile string `toml:"abort_file" json:"abort_file" yaml:"abort_file"`

	// InhibitScreensaver asks the desktop session not to blank the screen.
	InhibitScreensaver bool `toml:"inhibit_screensaver" json:"inhibit_screensaver" yaml:"inhibit_screensaver"`
}

// KeysConfig holds the response keys.
type KeysConfig struct {
	Red  string `toml:"red" json:"red" yaml:"red"`
	Blue string `toml:"blue" json:"blue" yaml:"blue"`
}

// StimuliConfig locates audio files and configures the output device.
type StimuliConfig struct {
	// Dir holds <color><Ext> for every color. Ext is .mp3 or .wav.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
	Ext string `toml:"ext" json:"ext" yaml:"ext"`

	// SampleRate is the device rate in Hz. Every file must match it.
	SampleRate int `toml:"sample_rate" json:"sample_rate" yaml:"sample_rate"`

	// BufferMs is the device buffer. Smaller values lower audio onset
	// latency at the risk of dropouts; zero uses the driver default.
	BufferMs int `toml:"buffer_ms" json:"buffer_ms" yaml:"buffer_ms"`
}

// Presentation surfaces.
const (
	SurfaceWindow   = "window"
	SurfaceTerminal = "terminal"
)

// DisplayConfig selects and sizes the presentation surface. The window is
// drawn on the GPU and flips with the display; the terminal has no vsync
// and suits only bench checks.
type DisplayConfig struct {
	Surface    string `toml:"surface" json:"surface" yaml:"surface"`
	Fullscreen bool   `toml:"fullscreen" json:"fullscreen" yaml:"fullscreen"`
	Width      int    `toml:"width" json:"width" yaml:"width"`
	Height     int    `toml:"height" json:"height" yaml:"height"`
}

// PracticeConfig configures the practice block.
type PracticeConfig struct {
	Enabled     bool     `toml:"enabled" json:"enabled" yaml:"enabled"`
	Types       []string `toml:"types" json:"types" yaml:"types"`
	TotalTrials int      `toml:"total_trials" json:"total_trials" yaml:"total_trials"`
	ITIMin      float64  `toml:"iti_min" json:"iti_min" yaml:"iti_min"`
	ITIMax      float64  `toml:"iti_max" json:"iti_max" yaml:"iti_max"`
}

// BlockConfig configures one logged block. Times are in seconds.
type BlockConfig struct {
	Number      int      `toml:"number" json:"number" yaml:"number"`
	Types       []string `toml:"types" json:"types" yaml:"types"`
	TotalTrials int      `toml:"total_trials" json:"total_trials" yaml:"total_trials"`
	ITIMin      float64  `toml:"iti_min" json:"iti_min" yaml:"iti_min"`
	ITIMax      float64  `toml:"iti_max" json:"iti_max" yaml:"iti_max"`

	// Adapting replaces the uniform draw with a linear ramp from
	// AdaptStart to AdaptEnd.
	Adapting   bool    `toml:"adapting" json:"adapting" yaml:"adapting"`
	AdaptStart float64 `toml:"adapt_start" json:"adapt_start" yaml:"adapt_start"`
	AdaptEnd   float64 `toml:"adapt_end" json:"adapt_end" yaml:"adapt_end"`
}

// TextConfig is the copy shown to participants.
type TextConfig struct {
	Intro        []string `toml:"intro" json:"intro" yaml:"intro"`
	PracticeDone string   `toml:"practice_done" json:"practice_done" yaml:"practice_done"`
	Break        string   `toml:"break" json:"break" yaml:"break"`
	Closing      string   `toml:"closing" json:"closing" yaml:"closing"`
	Continue     string   `toml:"continue" json:"continue" yaml:"continue"`
}

// StorageConfig holds optional outputs besides the CSV log.
type StorageConfig struct {
	// SQLitePath mirrors every row into a database. Empty disables it.
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`

	// MetricsPath receives a Prometheus text dump at the end of the run.
	MetricsPath string `toml:"metrics_path" json:"metrics_path" yaml:"metrics_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int64  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// Format is a configuration file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension. Unknown extensions are
// treated as TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads, schema-checks and decodes the configuration at path, then
// applies environment overrides. Keys absent from the file keep their
// defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := Decode(data, FormatFor(path), cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Decode validates data against the embedded schema and decodes it over cfg.
func Decode(data []byte, format Format, cfg *Config) error {
	doc, err := parseDocument(data, format)
	if err != nil {
		return err
	}
	if err := validateSchema(doc); err != nil {
		return err
	}
	resetLists(doc, cfg)

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// resetLists clears default lists the document replaces, so decoders do not
// merge file entries into default elements.
func resetLists(doc any, cfg *Config) {
	root, _ := doc.(map[string]any)
	has := func(section, key string) bool {
		m, ok := root[section].(map[string]any)
		if !ok {
			return false
		}
		_, ok = m[key]
		return ok
	}
	if _, ok := root["blocks"]; ok {
		cfg.Blocks = nil
	}
	if has("practice", "types") {
		cfg.Practice.Types = nil
	}
	if has("text", "intro") {
		cfg.Text.Intro = nil
	}
}

// parseDocument decodes data into generic JSON-compatible values.
func parseDocument(data []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		return raw, nil
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		m := make(map[string]any)
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
		raw = m
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// schema validator expects.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	return doc, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	var buf bytes.Buffer
	switch FormatFor(path) {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		enc.Close()
	default:
		buf.WriteString("# avstress experiment configuration\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables are prefixed with AVSTRESS_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("AVSTRESS_DATA_DIR"); v != "" {
		c.Session.DataDir = v
	}
	if v := os.Getenv("AVSTRESS_STIMULI_DIR"); v != "" {
		c.Stimuli.Dir = v
	}
	if v := os.Getenv("AVSTRESS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AVSTRESS_SEED"); v != "" {
		c.Session.Seed = v
	}
	if v := os.Getenv("AVSTRESS_SURFACE"); v != "" {
		c.Display.Surface = v
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Fixation returns the fixation interval.
func (c *Config) Fixation() time.Duration { return millis(c.Session.FixationMs) }

// ResponseWindow returns the response timeout.
func (c *Config) ResponseWindow() time.Duration { return millis(c.Session.ResponseWindowMs) }

// InstructionTime returns the minimum instruction display time.
func (c *Config) InstructionTime() time.Duration { return millis(c.Session.InstructionMs) }

// AudioBuffer returns the output device buffer.
func (c *Config) AudioBuffer() time.Duration { return millis(c.Stimuli.BufferMs) }

// BreakTime returns the minimum break length.
func (c *Config) BreakTime() time.Duration { return millis(c.Session.BreakMs) }

// Block converts b into a runnable block configuration.
func (b BlockConfig) Block() (block.Config, error) {
	types, err := trial.ParseTypes(b.Types)
	if err != nil {
		return block.Config{}, err
	}
	return block.Config{
		Num:         b.Number,
		Types:       types,
		TotalTrials: b.TotalTrials,
		ITI:         iti.Range{Lo: seconds(b.ITIMin), Hi: seconds(b.ITIMax)},
		Adapting:    b.Adapting,
		AdaptStart:  seconds(b.AdaptStart),
		AdaptEnd:    seconds(b.AdaptEnd),
	}, nil
}

// BlockConfigs converts every configured block.
func (c *Config) BlockConfigs() ([]block.Config, error) {
	out := make([]block.Config, 0, len(c.Blocks))
	for i, b := range c.Blocks {
		bc, err := b.Block()
		if err != nil {
			return nil, fmt.Errorf("blocks[%d]: %w", i, err)
		}
		out = append(out, bc)
	}
	return out, nil
}

// PracticeBlock converts the practice settings. Practice blocks are
// numbered 0.
func (c *Config) PracticeBlock() (block.Config, error) {
	types, err := trial.ParseTypes(c.Practice.Types)
	if err != nil {
		return block.Config{}, err
	}
	return block.Config{
		Num:         0,
		Types:       types,
		TotalTrials: c.Practice.TotalTrials,
		ITI:         iti.Range{Lo: seconds(c.Practice.ITIMin), Hi: seconds(c.Practice.ITIMax)},
	}, nil
}

// Block returns the configured block with the given number.
func (c *Config) Block(number int) (BlockConfig, bool) {
	for _, b := range c.Blocks {
		if b.Number == number {
			return b, true
		}
	}
	return BlockConfig{}, false
}

// AbortPath returns the full path of the abort file.
func (c *Config) AbortPath() string {
	if c.Session.AbortFile == "" {
		return ""
	}
	return filepath.Join(c.Session.DataDir, c.Session.AbortFile)
}
