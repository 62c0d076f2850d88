package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/storage/userstore"
)

const testSecret = "test-secret-0123456789-0123456789-xyz"

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	users, err := userstore.New(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("Ошибка создания хранилища пользователей: %v", err)
	}
	return NewAuthService(users, testSecret, time.Hour, testLogger())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)

	user, authErr := svc.Register("Ivan@Example.com", "secret123")
	if authErr != nil {
		t.Fatalf("Ошибка Register: %v", authErr)
	}
	if user.Email != "ivan@example.com" {
		t.Errorf("email не нормализован: %q", user.Email)
	}
	if user.PasswordHash == "secret123" {
		t.Error("пароль сохранён открытым текстом")
	}

	token, authErr := svc.Login("ivan@example.com", "secret123")
	if authErr != nil {
		t.Fatalf("Ошибка Login: %v", authErr)
	}

	// Токен валиден и несёт id пользователя в sub
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(_ *jwt.Token) (any, error) { return []byte(testSecret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !parsed.Valid {
		t.Fatalf("токен не прошёл валидацию: %v", err)
	}
	if claims.Subject != user.ID {
		t.Errorf("sub: хотели %q, получили %q", user.ID, claims.Subject)
	}
	if claims.ExpiresAt == nil {
		t.Error("токен без срока жизни")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(t)

	if _, authErr := svc.Register("dup@example.com", "secret123"); authErr != nil {
		t.Fatalf("Ошибка Register: %v", authErr)
	}

	_, authErr := svc.Register("DUP@example.com", "another456")
	if authErr == nil {
		t.Fatal("повторная регистрация прошла без ошибки")
	}
	if authErr.StatusCode != 409 {
		t.Errorf("StatusCode: хотели 409, получили %d", authErr.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"пустой email", "", "secret123"},
		{"email без @", "ivan.example.com", "secret123"},
		{"email без домена", "ivan@", "secret123"},
		{"короткий пароль", "ivan@example.com", "12345"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, authErr := svc.Register(tc.email, tc.password)
			if authErr == nil {
				t.Fatal("хотели ошибку, получили nil")
			}
			if authErr.Code != apierrors.CodeValidationError {
				t.Errorf("Code: хотели %s, получили %s", apierrors.CodeValidationError, authErr.Code)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newAuthService(t)

	if _, authErr := svc.Register("ivan@example.com", "secret123"); authErr != nil {
		t.Fatalf("Ошибка Register: %v", authErr)
	}

	_, authErr := svc.Login("ivan@example.com", "wrong-password")
	if authErr == nil {
		t.Fatal("вход с неверным паролем прошёл без ошибки")
	}
	if authErr.StatusCode != 401 {
		t.Errorf("StatusCode: хотели 401, получили %d", authErr.StatusCode)
	}
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc := newAuthService(t)

	if _, authErr := svc.Register("ivan@example.com", "secret123"); authErr != nil {
		t.Fatalf("Ошибка Register: %v", authErr)
	}

	_, wrongPass := svc.Login("ivan@example.com", "wrong")
	_, unknownEmail := svc.Login("nobody@example.com", "secret123")

	// Неверный пароль и несуществующий email неразличимы
	if wrongPass == nil || unknownEmail == nil {
		t.Fatal("хотели ошибки в обоих случаях")
	}
	if wrongPass.Message != unknownEmail.Message || wrongPass.StatusCode != unknownEmail.StatusCode {
		t.Errorf("ответы различаются: %v / %v", wrongPass, unknownEmail)
	}
}
