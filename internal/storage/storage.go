package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrStockConflict - при списании остатка строка не прошла условие stock >= qty
	ErrStockConflict = errors.New("stock conflict")
	// ErrResourceLocked - строка заблокирована другой транзакцией дольше lock_timeout
	ErrResourceLocked = errors.New("resource is locked, please try again")
)

// коды ошибок postgres
const (
	pqUniqueViolation  = "23505"
	pqLockNotAvailable = "55P03"
	pqDeadlockDetected = "40P01"
)

// translateErr приводит ошибки драйвера к ошибкам слоя хранения
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqLockNotAvailable, pqDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrResourceLocked, err)
		}
	}
	return err
}

// rowScanner - общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// queryer - общий интерфейс *sql.DB и *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
