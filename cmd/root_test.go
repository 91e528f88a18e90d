package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwhctl/internal/config"
	"dwhctl/internal/testutil"
	"dwhctl/internal/ui"
	"dwhctl/pkg/errors"
)

func resetFlags() {
	cfgFile, logLevel, logFormat = "", "", ""
	verbose, quiet, noColor = false, false, false
	runPolicy, runReportPath, runYAMLPath = "", "", ""
	runNoProvision, runResetOnly, runYes = false, false, false
	statusNoCounts, teardownYes = false, false
	encryptPassphrase, encryptKeyring = "", ""
	errLog = discardLogger()

	// cobra keeps flag values between executions
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		if f := c.Flags().Lookup("help"); f != nil {
			_ = f.Value.Set("false")
			f.Changed = false
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetFlags)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "dwhctl")
	for _, name := range []string{"run", "provision", "status", "teardown", "encrypt", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRunHelpListsFlags(t *testing.T) {
	out, err := execute(t, "run", "--help")
	require.NoError(t, err)

	for _, flag := range []string{"--policy", "--no-provision", "--report", "--reset-only"} {
		assert.Contains(t, out, flag)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dwhctl version dev")
}

func TestInvalidCommand(t *testing.T) {
	_, err := execute(t, "deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRunMissingConfigFile(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.cfg"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestStatusMissingKeys(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", "[AWS]\nKEY=AKIAEXAMPLE\n")

	_, err := execute(t, "status", "--config", path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigMissing))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestRunRejectsUnknownPolicy(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)

	_, err := execute(t, "run", "--config", path, "--policy", "majority")
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestInvalidLogFormat(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)

	_, err := execute(t, "provision", "--config", path, "--log-format", "xml")
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestEncrypt(t *testing.T) {
	out, err := execute(t, "encrypt", "Passw0rd", "--passphrase", "correct horse")
	require.NoError(t, err)

	sealed := strings.TrimSpace(out)
	assert.True(t, config.IsEncrypted(sealed))

	plain, err := config.Decrypt(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Passw0rd", plain)
}

func TestEncryptWithoutPassphrase(t *testing.T) {
	t.Setenv(config.PassphraseEnv, "")

	_, err := execute(t, "encrypt", "Passw0rd")
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestUnderscoreFlagsNormalized(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.cfg"), "--no_provision")
	require.Error(t, err)
	assert.True(t, runNoProvision)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestRunDeclinedResetTouchesNothing(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)

	var asked string
	stdinInteractive = func() bool { return true }
	confirmReset = func(message string, defaultValue bool) (bool, error) {
		asked = message
		assert.False(t, defaultValue)
		return false, nil
	}
	t.Cleanup(func() {
		stdinInteractive = func() bool { return ui.IsTerminal(os.Stdin) }
		confirmReset = ui.Confirm
	})

	out, err := execute(t, "run", "--config", path, "--reset-only")
	require.NoError(t, err)
	assert.Contains(t, asked, "dwhcluster")
	assert.Contains(t, out, "Run aborted")
}
