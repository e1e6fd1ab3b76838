package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "eventfold", cmd.Use, "Root command should be 'eventfold'")
	assert.Equal(t, "1.0.0", cmd.Version, "Version should be 1.0.0")

	commands := cmd.Commands()
	assert.Len(t, commands, 6, "Should have 6 subcommands")

	commandNames := make(map[string]bool)
	for _, c := range commands {
		commandNames[c.Name()] = true
	}

	for _, want := range []string{"append", "view", "rotate", "tail", "stats", "serve"} {
		assert.True(t, commandNames[want], "Should have %q command", want)
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag, "Should have --config flag")
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue, "Default config path should be configs/default.yaml")
}

func TestBuildAppendCommand(t *testing.T) {
	cmd := buildAppendCommand()

	assert.Equal(t, "append", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("type"))
	assert.NotNil(t, cmd.Flags().Lookup("data"))
}

func TestBuildViewCommand(t *testing.T) {
	cmd := buildViewCommand()

	assert.Equal(t, "view", cmd.Use)
	nameFlag := cmd.Flags().Lookup("name")
	require.NotNil(t, nameFlag)
	assert.Equal(t, "counter", nameFlag.DefValue)
}

func TestBuildRotateCommand(t *testing.T) {
	cmd := buildRotateCommand()
	assert.Equal(t, "rotate", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildTailCommand(t *testing.T) {
	cmd := buildTailCommand()
	assert.Equal(t, "tail", cmd.Use)
	timeoutFlag := cmd.Flags().Lookup("timeout")
	require.NotNil(t, timeoutFlag)
	assert.Equal(t, "30", timeoutFlag.DefValue)
}

func TestBuildStatsCommand(t *testing.T) {
	cmd := buildStatsCommand()
	assert.Equal(t, "stats", cmd.Use)
	assert.Contains(t, cmd.Short, "log size")
}

func TestBuildServeCommand(t *testing.T) {
	cmd := buildServeCommand()
	assert.Equal(t, "serve", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("addr"))
}

func TestLoadConfigValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	configContent := `
dir: ./mydata
max_log_size: 1048576
metrics:
  enabled: true
  addr: ":9191"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "./mydata", cfg.Dir)
	assert.Equal(t, uint64(1048576), cfg.MaxLogSize)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.Dir)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadConfigMalformedYAMLErrors(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dir: [unterminated"), 0644))

	_, err := loadConfig(configPath)
	assert.Error(t, err)
}

func TestResolveDirPrefersFlagOverConfig(t *testing.T) {
	cfg := &Config{Dir: "./from-config"}
	assert.Equal(t, "./from-flag", resolveDir(cfg, "./from-flag"))
	assert.Equal(t, "./from-config", resolveDir(cfg, ""))
}

func TestAppendAndViewRoundTrip(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(t.TempDir(), "missing.yaml")

	require.NoError(t, appendEvent(dir, "counter.incremented", "{}"))
	require.NoError(t, appendEvent(dir, "counter.incremented", "{}"))
	require.NoError(t, printView(dir, "counter"))
}

func TestPrintViewUnknownNameErrors(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(t.TempDir(), "missing.yaml")

	err := printView(dir, "nonexistent")
	assert.Error(t, err)
}

func TestRotateLogSucceedsOnEmptyLog(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(t.TempDir(), "missing.yaml")

	require.NoError(t, rotateLog(dir))
}

func TestShowStatsReportsViews(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(t.TempDir(), "missing.yaml")

	require.NoError(t, showStats(dir))
}
