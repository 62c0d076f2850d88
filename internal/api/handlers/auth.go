// auth.go — HTTP handlers регистрации и входа.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/service"
)

// maxAuthBodySize — лимит тела запроса авторизации.
const maxAuthBodySize = 64 << 10 // 64 KB

// AuthHandler — обработчик endpoints регистрации и входа.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler создаёт обработчик auth endpoints.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// credentialsRequest — тело запросов register и login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает POST /api/auth/register.
// Ответ 201: {id, email}.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, authErr := h.authSvc.Register(req.Email, req.Password)
	if authErr != nil {
		errors.WriteError(w, authErr.StatusCode, authErr.Code, authErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
	})
}

// Login обрабатывает POST /api/auth/login.
// Ответ 200: {token}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, authErr := h.authSvc.Login(req.Email, req.Password)
	if authErr != nil {
		errors.WriteError(w, authErr.StatusCode, authErr.Code, authErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
	})
}

// decodeCredentials читает и разбирает тело запроса авторизации.
// При ошибке пишет ответ и возвращает ok=false.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return credentialsRequest{}, false
	}
	return req, true
}

// writeJSON — вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
