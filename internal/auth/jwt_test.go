package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Minute)

	subject := uuid.NewString()
	tenantID := uuid.NewString()

	token, jti, err := mgr.GenerateAccessToken(subject, "admin", tenantID, []string{"ADMIN"})
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}
	if jti == "" {
		t.Fatal("jti vazio")
	}

	claims, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validar token: %v", err)
	}
	if claims.Subject != subject {
		t.Fatalf("subject = %q, esperado %q", claims.Subject, subject)
	}
	if claims.TenantID != tenantID {
		t.Fatalf("tenant_id = %q, esperado %q", claims.TenantID, tenantID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "ADMIN" {
		t.Fatalf("roles = %v", claims.Roles)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "admin" {
		t.Fatalf("audience = %v", claims.Audience)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Minute)
	other := NewJWTManager(strings.Repeat("x", 32), time.Minute)

	token, _, err := mgr.GenerateAccessToken(uuid.NewString(), "admin", uuid.NewString(), nil)
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	if _, err := other.ParseAndValidate(token); err == nil {
		t.Fatal("token assinado com outro segredo foi aceito")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	mgr := NewJWTManager(testSecret, -time.Minute)

	token, _, err := mgr.GenerateAccessToken(uuid.NewString(), "admin", uuid.NewString(), nil)
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	if _, err := mgr.ParseAndValidate(token); err == nil {
		t.Fatal("token expirado foi aceito")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := Hash("s3gr3do-forte")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := Verify("s3gr3do-forte", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("senha correta rejeitada")
	}

	ok, err = Verify("outra-senha", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("senha incorreta aceita")
	}
}
