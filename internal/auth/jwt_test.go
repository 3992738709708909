package auth

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, pwd); err != nil {
		t.Fatalf("CheckPassword failed when password should match: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword succeeded when it should have failed")
	}
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	id := bson.NewObjectID()
	token, expiresAt, err := m.GenerateToken(id, "test@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if time.Until(expiresAt) > 5*time.Minute {
		t.Fatalf("expiry beyond configured duration: %s", expiresAt)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "test@example.com" {
		t.Fatalf("claims.Email mismatch: got %s", claims.Email)
	}
	got, err := claims.ObjectID()
	if err != nil || got != id {
		t.Fatalf("claims user id mismatch: %v %v", got, err)
	}
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, _, err := m.GenerateToken(bson.NewObjectID(), "User.Case@Example.COM")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "user.case@example.com" {
		t.Fatalf("expected normalized email in claims, got %s", claims.Email)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, _, err := m.GenerateToken(bson.NewObjectID(), "late@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := m.VerifyToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", time.Minute).GenerateToken(bson.NewObjectID(), "a@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := NewJWTManager("two", time.Minute).VerifyToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := NewJWTManager("two", time.Minute).VerifyToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	// create a manager with two keys and active kid "k2"
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	id := bson.NewObjectID()

	tkn2, _, err := m.GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active must still verify
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// once k1 is retired, its tokens are rejected
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyToken(tkn1); err == nil {
		t.Fatalf("expected token signed by retired key to be rejected")
	}
}
