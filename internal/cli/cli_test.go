package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into v and
// returns the error part, if any.
func decodeData(t *testing.T, out string, v any) *CLIError {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.Error
}

func generateKey(t *testing.T) KeyResult {
	t.Helper()
	out, err := execute(t, "identity", "generate", "--format", "json")
	require.NoError(t, err)
	var key KeyResult
	require.Nil(t, decodeData(t, out, &key))
	require.True(t, strings.HasPrefix(key.DID, "did:key:z"), key.DID)
	return key
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "poe", cmd.Use)

	for _, name := range []string{"identity", "create", "revoke", "transfer", "show", "trace", "serve", "test"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"verbose", "format", "config", "data-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "identity", "generate", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIdentityToken(t *testing.T) {
	key := generateKey(t)

	out, err := execute(t, "identity", "token", "--key", key.PrivateKey, "--ttl", "2m", "--format", "json")
	require.NoError(t, err)

	var tok TokenResult
	require.Nil(t, decodeData(t, out, &tok))
	assert.Equal(t, key.DID, tok.DID)
	assert.Equal(t, 2, strings.Count(tok.Token, "."), "compact JWS has three segments")
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), tok.ExpiresAt, 5*time.Second)
}

func TestMutation_NoKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")

	_, err := execute(t, "create", "0x6869", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), EnvPrivateKey)
}

func TestMutation_InvalidKey(t *testing.T) {
	_, err := execute(t, "create", "0x6869", "--key", "not-a-key", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestClaimLifecycle(t *testing.T) {
	dir := t.TempDir()
	alice := generateKey(t)
	bob := generateKey(t)

	// height 1
	out, err := execute(t, "create", "0x6869", "--key", alice.PrivateKey, "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	var rec RecordResult
	require.Nil(t, decodeData(t, out, &rec))
	assert.Equal(t, ir.AccountID(alice.DID), rec.Owner)
	assert.Equal(t, ir.Height(1), rec.RegisteredAt)
	assert.Equal(t, ir.Claim("hi"), rec.Claim)

	// height 2: duplicate
	out, err = execute(t, "create", "0x6869", "--key", bob.PrivateKey, "--data-dir", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	cliErr := decodeData(t, out, nil)
	require.NotNil(t, cliErr)
	assert.Equal(t, "PROOF_ALREADY_EXIST", cliErr.Code)

	// height 3: transfer to bob
	out, err = execute(t, "transfer", "0x6869", bob.DID, "--key", alice.PrivateKey, "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	rec = RecordResult{}
	require.Nil(t, decodeData(t, out, &rec))
	assert.Equal(t, ir.AccountID(bob.DID), rec.Owner)
	assert.Equal(t, ir.Height(3), rec.RegisteredAt)

	// height 4: stale owner
	out, err = execute(t, "revoke", "0x6869", "--key", alice.PrivateKey, "--data-dir", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	cliErr = decodeData(t, out, nil)
	require.NotNil(t, cliErr)
	assert.Equal(t, "NOT_CLAIM_OWNER", cliErr.Code)

	// height 5: key from the environment
	t.Setenv(EnvPrivateKey, bob.PrivateKey)
	out, err = execute(t, "revoke", "0x6869", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "claim 0x6869 revoked at 5\n", out)

	out, err = execute(t, "show", "0x6869", "--data-dir", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	cliErr = decodeData(t, out, nil)
	require.NotNil(t, cliErr)
	assert.Equal(t, CodeNotFound, cliErr.Code)

	out, err = execute(t, "trace", "0x6869", "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	var trace TraceResult
	require.Nil(t, decodeData(t, out, &trace))
	require.Len(t, trace.Timeline, 3)

	assert.Equal(t, ir.EventClaimCreated, trace.Timeline[0].Kind)
	assert.Equal(t, ir.Height(1), trace.Timeline[0].Height)
	assert.Equal(t, ir.EventClaimTransfered, trace.Timeline[1].Kind)
	assert.Equal(t, ir.AccountID(bob.DID), trace.Timeline[1].Receiver)
	assert.Equal(t, ir.Height(3), trace.Timeline[1].Height)
	assert.Equal(t, ir.EventClaimRevoked, trace.Timeline[2].Kind)
	assert.Equal(t, ir.AccountID(bob.DID), trace.Timeline[2].Caller)
	assert.Equal(t, ir.Height(5), trace.Timeline[2].Height)
	assert.Equal(t, TraceStats{TotalEvents: 3, Created: 1, Revoked: 1, Transferred: 1}, trace.Stats)
}

func TestShow_Text(t *testing.T) {
	dir := t.TempDir()
	key := generateKey(t)

	_, err := execute(t, "create", "doc-1", "--key", key.PrivateKey, "--data-dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "show", "doc-1", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "claim 0x646f632d31 owner "+key.DID+" registered_at 1\n", out)
}

func TestTrace_All(t *testing.T) {
	dir := t.TempDir()
	key := generateKey(t)

	for _, c := range []string{"0x01", "0x02"} {
		_, err := execute(t, "create", c, "--key", key.PrivateKey, "--data-dir", dir)
		require.NoError(t, err)
	}

	out, err := execute(t, "trace", "--all", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for all claims")
	assert.Contains(t, out, "2 events: 2 created, 0 revoked, 0 transferred")
}

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poe.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestTrace_RequiresSQLite(t *testing.T) {
	cfg := writeConfig(t, `backend: "memory"`)

	_, err := execute(t, "trace", "0x01", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "sqlite")
}

func TestLevelDBBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, `backend: "leveldb"`)
	key := generateKey(t)

	_, err := execute(t, "create", "0x6869", "--key", key.PrivateKey, "--config", cfg, "--data-dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "show", "0x6869", "--config", cfg, "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	var rec RecordResult
	require.Nil(t, decodeData(t, out, &rec))
	assert.Equal(t, ir.AccountID(key.DID), rec.Owner)
}

func TestConfigMaxClaimLength(t *testing.T) {
	cfg := writeConfig(t, `max_claim_length: 2`)
	key := generateKey(t)

	out, err := execute(t, "create", "0x010203", "--key", key.PrivateKey, "--config", cfg,
		"--data-dir", t.TempDir(), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	cliErr := decodeData(t, out, nil)
	require.NotNil(t, cliErr)
	assert.Equal(t, "CLAIM_TOO_LONG", cliErr.Code)
}

func TestServe(t *testing.T) {
	opts := &RootOptions{Format: "text", ConfigPath: writeConfig(t, `backend: "memory"`)}
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := opts.openEnv(ctx, cmd)
	require.NoError(t, err)
	defer e.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- serve(ctx, e, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func setupScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join("..", "harness", "testdata")

	scenario, err := os.ReadFile(filepath.Join(src, "scenarios", "concrete_example.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "concrete_example.yaml"), scenario, 0o644))

	golden, err := os.ReadFile(filepath.Join(src, "golden", "concrete_example.golden"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "concrete_example.golden"), golden, 0o644))

	return dir
}

func TestTestCommand(t *testing.T) {
	t.Run("missing args", func(t *testing.T) {
		_, err := execute(t, "test")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg")
	})

	t.Run("missing dir", func(t *testing.T) {
		_, err := execute(t, "test", "/nonexistent/scenarios")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "scenarios directory not found")
	})

	t.Run("empty dir", func(t *testing.T) {
		out, err := execute(t, "test", t.TempDir())
		require.NoError(t, err)
		assert.Contains(t, out, "No scenarios found")
	})

	t.Run("golden match", func(t *testing.T) {
		dir := setupScenarios(t)
		out, err := execute(t, "test", dir)
		require.NoError(t, err, out)
		assert.Contains(t, out, "✓ concrete_example")
		assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	})

	t.Run("golden mismatch then update", func(t *testing.T) {
		dir := setupScenarios(t)
		goldenPath := filepath.Join(dir, "golden", "concrete_example.golden")
		original, err := os.ReadFile(goldenPath)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0o644))

		out, err := execute(t, "test", dir, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		var result TestResult
		cliErr := decodeData(t, out, &result)
		require.NotNil(t, cliErr)
		assert.Equal(t, CodeTestFailed, cliErr.Code)
		assert.Equal(t, 1, result.Failed)

		_, err = execute(t, "test", dir, "--update")
		require.NoError(t, err)
		updated, err := os.ReadFile(goldenPath)
		require.NoError(t, err)
		assert.Equal(t, string(original), string(updated))
	})

	t.Run("filter", func(t *testing.T) {
		dir := setupScenarios(t)
		out, err := execute(t, "test", dir, "--filter", "nothing-*")
		require.NoError(t, err)
		assert.Contains(t, out, "No scenarios found")
	})

	t.Run("failing expectation", func(t *testing.T) {
		dir := t.TempDir()
		src := `name: wrong
description: revoke of a missing claim expected to succeed
steps:
  - op: revoke
    caller: A
    claim: x
    expect: ok
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(src), 0o644))

		out, err := execute(t, "test", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ wrong")
	})
}
