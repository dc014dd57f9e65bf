package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/trial"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Blocks, 4)
	for i, b := range cfg.Blocks {
		assert.Equal(t, i+1, b.Number)
		assert.Equal(t, 120, b.TotalTrials)
		assert.Equal(t, []string{"V", "A", "AVC", "AVI"}, b.Types)

		bc, err := b.Block()
		require.NoError(t, err)
		assert.Equal(t, 30, trial.PerType(bc.Types, bc.TotalTrials))
	}
	assert.False(t, cfg.Blocks[2].Adapting)
	assert.True(t, cfg.Blocks[3].Adapting)

	assert.Equal(t, 500*time.Millisecond, cfg.Fixation())
	assert.Equal(t, 2*time.Second, cfg.ResponseWindow())
	assert.Equal(t, "r", cfg.Keys.Red)
	assert.Equal(t, "b", cfg.Keys.Blue)
}

func TestBlockConversion(t *testing.T) {
	cfg := DefaultConfig()
	blocks, err := cfg.BlockConfigs()
	require.NoError(t, err)

	b4 := blocks[3]
	assert.Equal(t, 4, b4.Num)
	assert.Equal(t, trial.AllTypes, b4.Types)
	assert.Equal(t, 1250*time.Millisecond, b4.AdaptStart)
	assert.Equal(t, 375*time.Millisecond, b4.AdaptEnd)
	assert.Equal(t, 1500*time.Millisecond, blocks[0].ITI.Hi)

	practice, err := cfg.PracticeBlock()
	require.NoError(t, err)
	assert.Equal(t, 0, practice.Num)
	assert.Equal(t, []trial.Type{trial.TypeA, trial.TypeV}, practice.Types)
	assert.Equal(t, 6, practice.TotalTrials)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Blocks, 4)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.toml")
	content := `
version = 1

[session]
data_dir = "/tmp/av"
response_window_ms = 1500

[[blocks]]
number = 1
types = ["V", "A"]
total_trials = 20
iti_min = 1.0
iti_max = 1.2

[[blocks]]
number = 2
types = ["AVC", "AVI"]
total_trials = 20
adapting = true
adapt_start = 1.0
adapt_end = 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/av", cfg.Session.DataDir)
	assert.Equal(t, 1500*time.Millisecond, cfg.ResponseWindow())
	// untouched keys keep defaults
	assert.Equal(t, 500*time.Millisecond, cfg.Fixation())

	require.Len(t, cfg.Blocks, 2)
	assert.False(t, cfg.Blocks[0].Adapting)
	assert.True(t, cfg.Blocks[1].Adapting)
	assert.Equal(t, 0.5, cfg.Blocks[1].AdaptEnd)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	content := `
version: 1
keys:
  red: f
  blue: j
blocks:
  - number: 1
    types: [V]
    total_trials: 10
    iti_min: 1
    iti_max: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "f", cfg.Keys.Red)
	assert.Equal(t, "j", cfg.Keys.Blue)
	require.Len(t, cfg.Blocks, 1)
	assert.Equal(t, 10, cfg.Blocks[0].TotalTrials)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.json")
	content := `{"version": 1, "practice": {"enabled": false}, "storage": {"sqlite_path": "trials.db"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Practice.Enabled)
	assert.Equal(t, "trials.db", cfg.Storage.SQLitePath)
	assert.Len(t, cfg.Blocks, 4)
}

func TestSchemaRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "[gui]\nfullscreen = true\n"},
		{"unknown type", "[[blocks]]\nnumber = 1\ntypes = [\"VA\"]\ntotal_trials = 4\n"},
		{"duplicate type", "[[blocks]]\nnumber = 1\ntypes = [\"V\", \"V\"]\ntotal_trials = 4\n"},
		{"missing total", "[[blocks]]\nnumber = 1\ntypes = [\"V\"]\n"},
		{"bad seed", "[session]\nseed = \"xyz\"\n"},
		{"wrong type", "[session]\nfixation_ms = \"long\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "experiment.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"same keys", func(c *Config) { c.Keys.Blue = "r" }, "keys"},
		{"no blocks", func(c *Config) { c.Blocks = nil }, "blocks"},
		{"duplicate block", func(c *Config) { c.Blocks[1].Number = 1 }, "blocks[1].number"},
		{"empty types", func(c *Config) { c.Blocks[0].Types = nil }, "blocks[0]"},
		{"zero trials", func(c *Config) { c.Blocks[2].TotalTrials = 0 }, "blocks[2]"},
		{"single trial adapting", func(c *Config) {
			c.Blocks[3].Types = []string{"V"}
			c.Blocks[3].TotalTrials = 1
		}, "blocks[3]"},
		{"inverted iti", func(c *Config) { c.Blocks[0].ITIMin = 2 }, "blocks[0]"},
		{"growing ramp", func(c *Config) {
			c.Blocks[3].AdaptStart = 0.375
			c.Blocks[3].AdaptEnd = 1.25
		}, "blocks[3]"},
		{"unset ramp", func(c *Config) {
			c.Blocks[3].AdaptStart = 0
			c.Blocks[3].AdaptEnd = 0
		}, "blocks[3]"},
		{"adapting not final", func(c *Config) {
			c.Blocks[3].Adapting = false
			c.Blocks[0].Adapting = true
			c.Blocks[0].AdaptStart = 1.25
			c.Blocks[0].AdaptEnd = 0.375
		}, "blocks[0].adapting"},
		{"two adapting blocks", func(c *Config) {
			c.Blocks[0].Adapting = true
			c.Blocks[0].AdaptStart = 1.25
			c.Blocks[0].AdaptEnd = 0.375
		}, "blocks[0].adapting"},
		{"zero window", func(c *Config) { c.Session.ResponseWindowMs = 0 }, "session.response_window_ms"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"file without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"abort file path", func(c *Config) { c.Session.AbortFile = "../ABORT" }, "session.abort_file"},
		{"bad practice", func(c *Config) { c.Practice.Types = []string{"X"} }, "practice.types"},
		{"unknown surface", func(c *Config) { c.Display.Surface = "projector" }, "display.surface"},
		{"windowed without size", func(c *Config) {
			c.Display.Fullscreen = false
			c.Display.Width = 0
		}, "display"},
		{"ogg stimuli", func(c *Config) { c.Stimuli.Ext = ".ogg" }, "stimuli.ext"},
		{"no sample rate", func(c *Config) { c.Stimuli.SampleRate = 0 }, "stimuli.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AVSTRESS_DATA_DIR", "/data/av")
	t.Setenv("AVSTRESS_STIMULI_DIR", "/data/sounds")
	t.Setenv("AVSTRESS_LOG_LEVEL", "debug")
	t.Setenv("AVSTRESS_SEED", strings.Repeat("ab", 32))
	t.Setenv("AVSTRESS_SURFACE", "terminal")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/av", cfg.Session.DataDir)
	assert.Equal(t, "/data/sounds", cfg.Stimuli.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, strings.Repeat("ab", 32), cfg.Session.Seed)
	assert.Equal(t, SurfaceTerminal, cfg.Display.Surface)
	assert.Equal(t, filepath.Join("/data/av", "ABORT"), cfg.AbortPath())
}

func TestSaveRoundTrip(t *testing.T) {
	for _, ext := range []string{".toml", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "experiment"+ext)
			orig := DefaultConfig()
			orig.Session.Seed = strings.Repeat("0f", 32)
			orig.Blocks[0].TotalTrials = 40

			require.NoError(t, Save(orig, path))
			loaded, err := Load(path)
			require.NoError(t, err)
			require.NoError(t, loaded.Validate())

			assert.Equal(t, orig.Session, loaded.Session)
			assert.Equal(t, orig.Blocks, loaded.Blocks)
			assert.Equal(t, orig.Text.Intro, loaded.Text.Intro)
		})
	}
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatFor("a.toml"))
	assert.Equal(t, FormatJSON, FormatFor("a.JSON"))
	assert.Equal(t, FormatYAML, FormatFor("a.yml"))
	assert.Equal(t, FormatTOML, FormatFor("a.conf"))
}
