package configuration

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvironmentMergesFileAndOSEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "env")
	if err := os.WriteFile(envFile, []byte("FOO=from-file\nBAR=also-from-file\n"), 0644); err != nil {
		t.Fatalf("unable to write env file: %v", err)
	}

	t.Setenv("FOO", "from-os")

	environment, err := LoadEnvironment(dir)
	if err != nil {
		t.Fatalf("LoadEnvironment failed: %v", err)
	}

	if environment["FOO"] != "from-os" {
		t.Fatalf("expected OS environment to take precedence, got %q", environment["FOO"])
	}
	if environment["BAR"] != "also-from-file" {
		t.Fatalf("expected file-only variable to be present, got %q", environment["BAR"])
	}
}

func TestLoadEnvironmentToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	environment, err := LoadEnvironment(dir)
	if err != nil {
		t.Fatalf("LoadEnvironment failed: %v", err)
	}
	if len(environment) == 0 {
		t.Fatal("expected at least the OS environment to be present")
	}
}

func TestDefaultDirectory(t *testing.T) {
	dir, err := DefaultDirectory()
	if err != nil {
		t.Fatalf("DefaultDirectory failed: %v", err)
	}
	if filepath.Base(dir) != ".lognotify" {
		t.Fatalf("got %q, want a path ending in .lognotify", dir)
	}
}
