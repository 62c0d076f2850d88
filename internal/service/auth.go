// auth.go — регистрация и аутентификация пользователей.
// Пароли хэшируются bcrypt, токены — JWT HS256 с одним общим секретом.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/domain/model"
	"github.com/arturkryukov/pdfmill/internal/storage/userstore"
)

// minPasswordLength — минимальная длина пароля при регистрации.
const minPasswordLength = 6

// AuthError — ошибка операции аутентификации с HTTP-кодом.
type AuthError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AuthService — сервис регистрации и входа.
type AuthService struct {
	users     *userstore.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users *userstore.Store, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт нового пользователя.
// Email нормализуется к нижнему регистру; повторная регистрация — 409.
func (s *AuthService) Register(email, password string) (*model.User, *AuthError) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateEmail(email); err != nil {
		return nil, &AuthError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    err.Error(),
		}
	}
	if len(password) < minPasswordLength {
		return nil, &AuthError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Пароль должен быть не короче %d символов", minPasswordLength),
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Ошибка хэширования пароля",
			slog.String("error", err.Error()),
		)
		return nil, &AuthError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка регистрации",
		}
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(user); err != nil {
		if errors.Is(err, userstore.ErrEmailExists) {
			return nil, &AuthError{
				StatusCode: 409,
				Code:       apierrors.CodeValidationError,
				Message:    "Пользователь с таким email уже существует",
			}
		}
		s.logger.Error("Ошибка сохранения пользователя",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, &AuthError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка регистрации",
		}
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return user, nil
}

// Login проверяет учётные данные и выдаёт JWT.
// Несуществующий email и неверный пароль неразличимы для клиента.
func (s *AuthService) Login(email, password string) (string, *AuthError) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := s.users.GetByEmail(email)
	if user == nil {
		return "", invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Неверный пароль",
			slog.String("email", email),
		)
		return "", invalidCredentials()
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.logger.Error("Ошибка выпуска токена",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return "", &AuthError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка входа",
		}
	}

	s.logger.Info("Пользователь вошёл",
		slog.String("user_id", user.ID),
	)
	return token, nil
}

// issueToken выпускает подписанный JWT: sub — id пользователя.
func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// invalidCredentials — единый ответ на неверный email или пароль.
func invalidCredentials() *AuthError {
	return &AuthError{
		StatusCode: 401,
		Code:       apierrors.CodeUnauthorized,
		Message:    "Неверный email или пароль",
	}
}

// validateEmail — минимальная проверка формы email.
func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("некорректный email")
	}
	if !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("некорректный email")
	}
	return nil
}
