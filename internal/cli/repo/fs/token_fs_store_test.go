package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setTempCfg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("APPDATA", dir)
	} else {
		t.Setenv("XDG_CONFIG_HOME", dir)
	}
	return dir
}

func TestTokenFSStore_SaveLoadClear(t *testing.T) {
	dir := setTempCfg(t)
	s := TokenFSStore{}

	if _, err := s.Load(); err == nil {
		t.Fatalf("expected error when no token saved")
	}
	if err := s.Save("tok-123\n"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load()
	if err != nil || got != "tok-123" {
		t.Fatalf("load: %q %v", got, err)
	}

	p := filepath.Join(dir, "SensorHub", "observer_token")
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", fi.Mode().Perm())
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second clear must be a no-op: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("expected error after clear")
	}
}

func TestTokenFSStore_EmptyRejected(t *testing.T) {
	setTempCfg(t)
	s := TokenFSStore{}
	if err := s.Save("  "); err == nil {
		t.Fatalf("expected error for blank token")
	}
	p, _ := s.Path()
	if err := os.WriteFile(p, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("expected error for empty token file")
	}
}
