package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func tempKeyring(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "keys", "signing.json")
}

func TestOpenKeyring_GeneratesInitialKey(t *testing.T) {
	path := tempKeyring(t)

	kr, err := OpenKeyring(path)
	if err != nil {
		t.Fatalf("OpenKeyring: %v", err)
	}

	active, err := kr.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != "k1" {
		t.Errorf("active key id = %q, want k1", active.ID)
	}
	if len(active.Secret) != 32 {
		t.Errorf("secret length = %d, want 32", len(active.Secret))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("keyring file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("keyring permissions = %o, want 0600", perm)
	}
}

func TestKeyring_RotateKeepsOldKeyResolvable(t *testing.T) {
	kr, err := OpenKeyring(tempKeyring(t))
	if err != nil {
		t.Fatalf("OpenKeyring: %v", err)
	}

	before, _ := kr.Active()

	newID, err := kr.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newID != "k2" {
		t.Errorf("rotated key id = %q, want k2", newID)
	}

	after, _ := kr.Active()
	if after.ID != "k2" {
		t.Errorf("active key id = %q, want k2", after.ID)
	}
	if bytes.Equal(before.Secret, after.Secret) {
		t.Error("rotation did not change the secret")
	}

	// The retired key must still verify old signatures.
	old, err := kr.Lookup("k1")
	if err != nil {
		t.Fatalf("Lookup k1: %v", err)
	}
	if !bytes.Equal(old.Secret, before.Secret) {
		t.Error("retired key secret changed")
	}
}

func TestKeyring_SurvivesReopen(t *testing.T) {
	path := tempKeyring(t)

	kr, err := OpenKeyring(path)
	if err != nil {
		t.Fatalf("OpenKeyring: %v", err)
	}
	if _, err := kr.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	active, _ := kr.Active()

	reopened, err := OpenKeyring(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ := reopened.Active()
	if got.ID != active.ID {
		t.Errorf("active after reopen = %q, want %q", got.ID, active.ID)
	}
	if !bytes.Equal(got.Secret, active.Secret) {
		t.Error("secret changed across reopen")
	}
}

func TestStaticProvider_LookupUnknown(t *testing.T) {
	p, err := NewStaticProvider("k1", []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewStaticProvider: %v", err)
	}
	if _, err := p.Lookup("missing"); err == nil {
		t.Error("expected error for unknown key id")
	}
}

func TestStaticProvider_RejectsShortSecret(t *testing.T) {
	if _, err := NewStaticProvider("k1", []byte("short")); err == nil {
		t.Error("expected error for short secret")
	}
}
