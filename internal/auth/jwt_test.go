package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "test-secret-at-least-32-chars-long-for-security"

func TestTokenManager_IssueAndValidate_Success(t *testing.T) {
	manager := NewTokenManager(testSecret, "proofdesk-test", 15*time.Minute)
	projectID := uuid.New()

	token, err := manager.Issue("sess-1", projectID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	sessionID, gotProject, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if sessionID != "sess-1" {
		t.Errorf("expected session %q, got %q", "sess-1", sessionID)
	}
	if gotProject != projectID {
		t.Errorf("expected project %s, got %s", projectID, gotProject)
	}
}

func TestTokenManager_Validate_Expired(t *testing.T) {
	manager := NewTokenManager(testSecret, "proofdesk-test", time.Hour)
	issuedAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issuedAt }

	token, err := manager.Issue("sess-1", uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	manager.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, _, err = manager.Validate(token)
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry-related error, got: %v", err)
	}
}

func TestTokenManager_Validate_InvalidSignature(t *testing.T) {
	manager1 := NewTokenManager(testSecret, "proofdesk-test", 15*time.Minute)
	manager2 := NewTokenManager("different-secret-32-chars-long-for-security!!", "proofdesk-test", 15*time.Minute)

	token, err := manager1.Issue("sess-1", uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, _, err := manager2.Validate(token); err == nil {
		t.Fatal("expected error for invalid signature, got nil")
	}
}

func TestTokenManager_Validate_Malformed(t *testing.T) {
	manager := NewTokenManager(testSecret, "proofdesk-test", 15*time.Minute)

	for _, token := range []string{"not.a.jwt", "invalid-token", "header.payload"} {
		if _, _, err := manager.Validate(token); err == nil {
			t.Errorf("expected error for malformed token %q, got nil", token)
		}
	}
}

func TestTokenManager_Validate_WrongIssuer(t *testing.T) {
	manager1 := NewTokenManager(testSecret, "proofdesk-test", 15*time.Minute)
	manager2 := NewTokenManager(testSecret, "wrong-issuer", 15*time.Minute)

	token, err := manager1.Issue("sess-1", uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, _, err = manager2.Validate(token)
	if err == nil {
		t.Fatal("expected error for wrong issuer, got nil")
	}
	if !strings.Contains(err.Error(), "invalid issuer") {
		t.Errorf("expected 'invalid issuer' error, got: %v", err)
	}
}

func TestTokenManager_Validate_EmptyString(t *testing.T) {
	manager := NewTokenManager(testSecret, "proofdesk-test", 15*time.Minute)

	_, _, err := manager.Validate("")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected 'empty' error, got: %v", err)
	}
}
