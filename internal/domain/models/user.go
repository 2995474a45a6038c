package models

import (
	"errors"
	"strings"
	"time"
)

// Role - закрытое перечисление ролей пользователя
type Role int

const (
	RoleBuyer Role = iota + 1
	RoleFarmer
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole разбирает строковое представление роли без учёта регистра
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer":
		return RoleBuyer, nil
	case "farmer":
		return RoleFarmer, nil
	}
	return 0, ErrUnknownRole
}

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleFarmer:
		return "farmer"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleFarmer:
		return true
	}
	return false
}

// MarshalText позволяет хранить роль в JSON и в БД в виде строки
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User представляет пользователя маркетплейса (покупатель или фермер)
type User struct {
	ID        int64
	Name      string
	Email     string
	PassHash  []byte
	Role      Role
	Phone     string
	Address   string
	Avatar    string
	CreatedAt time.Time
}

// Requester - идентичность автора запроса, извлечённая из токена.
// Передаётся явно в каждый вызов сервисного слоя.
type Requester struct {
	ID    int64
	Email string
	Name  string
	Role  Role
}
