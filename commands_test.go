package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"luacrypt/obfuscator"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestObfuscateCommandRoundTrip(t *testing.T) {
	source := "local t = {1, 2, 3}\nprint(#t)\n"

	wrapped, err := execute(t, source, "obfuscate")
	if err != nil {
		t.Fatalf("obfuscate: %v", err)
	}
	if strings.TrimSuffix(wrapped, "\n") != obfuscator.New(obfuscator.DefaultKey).Obfuscate(source) {
		t.Fatalf("command output differs from the obfuscator")
	}

	path := filepath.Join(t.TempDir(), "wrapped.lua")
	if err = os.WriteFile(path, []byte(wrapped), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := execute(t, "", "deobfuscate", path)
	if err != nil {
		t.Fatalf("deobfuscate: %v", err)
	}
	if got != source {
		t.Fatalf("round trip = %q, want %q", got, source)
	}
}

func TestObfuscateCommandKeyFromEnv(t *testing.T) {
	t.Setenv("XOR_KEY", "7")

	wrapped, err := execute(t, "a", "obfuscate")
	if err != nil {
		t.Fatalf("obfuscate: %v", err)
	}
	if !strings.Contains(wrapped, "), 7)") {
		t.Fatalf("expected key 7 in wrapper:\n%s", wrapped)
	}

	t.Setenv("XOR_KEY", "300")
	if _, err = execute(t, "a", "obfuscate"); err == nil {
		t.Fatalf("expected out-of-range key to fail")
	}
}

func TestObfuscateCommandErrors(t *testing.T) {
	if _, err := execute(t, "", "obfuscate"); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := execute(t, "print(1)", "deobfuscate"); err == nil {
		t.Fatalf("expected error for plain source")
	}
	if _, err := execute(t, "", "obfuscate", filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "supersecret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://app:hunter2@db:5432/luacrypt")

	out, err := execute(t, "", "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	if strings.Contains(out, "supersecret") || strings.Contains(out, "hunter2") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "postgres://app:****@db:5432/luacrypt") {
		t.Fatalf("dsn not masked as expected:\n%s", out)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":          "not configured",
		"abc":       "****",
		"abcdefgh":  "ab****gh",
		"topsecret": "to*****et",
	}

	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
