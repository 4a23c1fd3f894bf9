package storage

import (
	"errors"
	"testing"

	"github.com/tphan267/huddle/pkg/storage/repositories"
	"golang.org/x/crypto/bcrypt"
)

func openTestStorage(t *testing.T) Storage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCredentialAuthenticate(t *testing.T) {
	repo := openTestStorage(t).CredentialRepo().WithCost(bcrypt.MinCost)

	if _, err := repo.Upsert("Ahmet", "1234"); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if _, err := repo.Upsert("Ayşe", "5678"); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}

	cred, err := repo.Authenticate("5678")
	if err != nil {
		t.Fatalf("Expected a match, got %v", err)
	}
	if cred.Name != "Ayşe" {
		t.Errorf("Expected Ayşe, got %s", cred.Name)
	}

	if _, err := repo.Authenticate("0000"); !errors.Is(err, repositories.ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got %v", err)
	}
	if _, err := repo.Authenticate(""); !errors.Is(err, repositories.ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch for empty secret, got %v", err)
	}
}

func TestCredentialUpsertReplacesSecret(t *testing.T) {
	repo := openTestStorage(t).CredentialRepo().WithCost(bcrypt.MinCost)

	first, err := repo.Upsert("Mehmet", "9999")
	if err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	second, err := repo.Upsert("Mehmet", "1111")
	if err != nil {
		t.Fatalf("Failed to replace credential: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected the same row to be updated")
	}

	if _, err := repo.Authenticate("9999"); err == nil {
		t.Error("Old secret still accepted")
	}
	if _, err := repo.Authenticate("1111"); err != nil {
		t.Errorf("New secret rejected: %v", err)
	}

	count, _ := repo.Count()
	if count != 1 {
		t.Errorf("Expected 1 credential, got %d", count)
	}
}

func TestCredentialValidationAndClear(t *testing.T) {
	repo := openTestStorage(t).CredentialRepo().WithCost(bcrypt.MinCost)

	if _, err := repo.Upsert("  ", "1234"); err == nil {
		t.Error("Expected an error for a blank name")
	}
	if _, err := repo.Upsert("Ahmet", ""); err == nil {
		t.Error("Expected an error for an empty secret")
	}

	repo.Upsert("Ahmet", "1234")
	repo.Upsert("Ayşe", "5678")
	if err := repo.Delete("Ahmet"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	creds, _ := repo.List()
	if len(creds) != 1 || creds[0].Name != "Ayşe" {
		t.Errorf("Unexpected credentials after delete: %+v", creds)
	}

	if err := repo.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count, _ := repo.Count(); count != 0 {
		t.Errorf("Expected empty table, got %d", count)
	}
}
