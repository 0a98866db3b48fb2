package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

func testService(t *testing.T) *Service {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return NewService(dbh, "test-secret", 30*time.Minute)
}

func validInput() RegisterInput {
	return RegisterInput{
		Username: "ana",
		Password: "Sup3rSecret",
		Email:    "ana@example.com",
		FullName: "Ana Souza",
		Phone:    "+5511999990000",
		Role:     RoleProfessor,
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing username", func(in *RegisterInput) { in.Username = "" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"bad phone", func(in *RegisterInput) { in.Phone = "call me" }},
		{"missing phone", func(in *RegisterInput) { in.Phone = "" }},
		{"short password", func(in *RegisterInput) { in.Password = "Ab1" }},
		{"no upper", func(in *RegisterInput) { in.Password = "lowercase1" }},
		{"no lower", func(in *RegisterInput) { in.Password = "UPPERCASE1" }},
		{"no digit", func(in *RegisterInput) { in.Password = "NoDigitsHere" }},
		{"bad role", func(in *RegisterInput) { in.Role = "admin" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := svc.Register(ctx, in); !errors.Is(err, lmserr.ErrValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	in := validInput()
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("register: %v", err)
	}
	var hash string
	if err := svc.db.QueryRow(`SELECT password_hash FROM users WHERE username=$1`, in.Username).Scan(&hash); err != nil {
		t.Fatalf("read hash: %v", err)
	}
	if hash == in.Password || hash == "" {
		t.Fatalf("plaintext or empty password stored")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	in := validInput()
	in.Email = "other@example.com"
	if _, err := svc.Register(ctx, in); !errors.Is(err, lmserr.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestAuthenticateGenericFailure(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, errUnknown := svc.Authenticate(ctx, "nobody", "Sup3rSecret")
	_, errBadPass := svc.Authenticate(ctx, "ana", "Wr0ngPassword")
	if !errors.Is(errUnknown, lmserr.ErrUnauthorized) || !errors.Is(errBadPass, lmserr.ErrUnauthorized) {
		t.Fatalf("want unauthorized for both, got %v / %v", errUnknown, errBadPass)
	}
	// Same message in both cases, so usernames cannot be probed.
	if errUnknown.Error() != errBadPass.Error() {
		t.Fatalf("messages differ: %q vs %q", errUnknown, errBadPass)
	}
}

func TestAuthenticateAndVerify(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	tok, err := svc.Authenticate(ctx, "ana", "Sup3rSecret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	ident, err := svc.Verify(ctx, tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.Username != "ana" || ident.Role != RoleProfessor {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if until := time.Until(ident.ExpiresAt); until <= 0 || until > 30*time.Minute {
		t.Fatalf("unexpected expiry: %v", ident.ExpiresAt)
	}
}

func TestTokenLifecycle(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Issued 29 minutes ago: one minute of the 30-minute TTL left.
	tok, err := svc.issueAt(time.Now().Add(-29*time.Minute), "ana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, tok); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	// Issued 31 minutes ago: expired.
	tok, err = svc.issueAt(time.Now().Add(-31*time.Minute), "ana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, tok); !errors.Is(err, lmserr.ErrUnauthorized) {
		t.Fatalf("want unauthorized for expired token, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	other := NewService(svc.db, "different-secret", 30*time.Minute)
	tok, err := other.issueAt(time.Now(), "ana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, tok); !errors.Is(err, lmserr.ErrUnauthorized) {
		t.Fatalf("want unauthorized for bad signature, got %v", err)
	}
}

func TestVerifyRejectsVanishedSubject(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	tok, err := svc.Authenticate(ctx, "ana", "Sup3rSecret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.db.Exec(`DELETE FROM users WHERE username=$1`, "ana"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := svc.Verify(ctx, tok); !errors.Is(err, lmserr.ErrUnauthorized) {
		t.Fatalf("want unauthorized for vanished subject, got %v", err)
	}
}
