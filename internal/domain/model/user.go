// user.go — модель пользователя для подсистемы аутентификации.
package model

import (
	"time"
)

// User — зарегистрированный пользователь. Соответствует записи в users.json.
// Ядро сервиса пользователя не видит: оно оперирует только OwnerID.
type User struct {
	// ID — уникальный идентификатор пользователя (UUID v4)
	ID string `json:"id"`

	// Email — адрес электронной почты, используется как логин
	Email string `json:"email"`

	// PasswordHash — bcrypt-хэш пароля. Наружу не отдаётся.
	PasswordHash string `json:"password_hash"`

	// CreatedAt — дата и время регистрации (UTC)
	CreatedAt time.Time `json:"created_at"`
}
