package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every MOTIONVDL_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SINK", "OUT_DIR", "DB", "S3_BUCKET", "S3_PREFIX",
		"FFMPEG_BINARY", "FFMPEG_FPS", "TEMP_DIR", "SKELETON", "LOG_LEVEL",
	} {
		key := "MOTIONVDL_" + k
		if v, ok := os.LookupEnv(key); ok {
			t.Setenv(key, v)
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "motionvdl", cmd.Use)
	assert.Contains(t, cmd.Long, "MOTIONVDL_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"label", "run", "inspect", "list", "skeleton"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestArchiveFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"label", "inspect", "list"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"sink", "out", "db", "bucket", "prefix"} {
				f := sub.Flags().Lookup(flag)
				require.NotNil(t, f, "--%s on %s", flag, name)
				assert.Equal(t, "", f.DefValue)
			}
		})
	}
}

func TestLabelCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	labelCmd, _, err := cmd.Find([]string{"label"})
	require.NoError(t, err)

	for _, flag := range []string{"debug", "events", "skeleton", "fps"} {
		assert.NotNil(t, labelCmd.Flags().Lookup(flag), "--%s", flag)
	}
	assert.Equal(t, "false", labelCmd.Flags().Lookup("debug").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	clearEnv(t)
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"skeleton", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOTIONVDL_SINK", "tape")

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E002]")
}

func TestFlagOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOTIONVDL_SINK", "tape")

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--sink", "dir", "--out", t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No bundles found.")
}
