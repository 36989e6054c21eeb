package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserStore is the credential store consulted on login and written by the seed operation.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects to the credential store named by databaseURL. mongodb:// and
// mongodb+srv:// URLs select MongoDB; postgres:// and postgresql:// select PostgreSQL.
func Open(ctx context.Context, databaseURL, mongoDatabase string) (UserStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return NewMongoStore(ctx, databaseURL, mongoDatabase)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		db, err := New(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Pool.Close()
			return nil, err
		}
		return NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unsupported database URL scheme: %q", schemeOf(databaseURL))
}

func schemeOf(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i]
	}
	return ""
}
