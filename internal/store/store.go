package store

import (
	"context"
	"errors"

	"donateabook/internal/domain"
)

// ErrEmailTaken reports a signup that lost the race on the users email
// unique index. The index, not the application-level existence check, is the
// authoritative duplicate guard.
var ErrEmailTaken = errors.New("email already registered")

// Store defines persistence operations for users, profiles, and books.
type Store interface {
	// users
	CreateUser(ctx context.Context, user domain.User, profile domain.Profile) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, bool, error)

	// books
	CreateBook(ctx context.Context, book domain.Book) error
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	ListBooks(ctx context.Context, limit, offset int) ([]domain.Book, error)
	SearchBooksByZipcode(ctx context.Context, zipcode string) ([]domain.SearchResult, error)
	SearchBooksByGrade(ctx context.Context, grade string) ([]domain.Book, error)
	ListDonationsByDonor(ctx context.Context, donorID string) ([]domain.Donation, error)
}

// SessionStore binds and resolves authenticated identities by opaque token.
type SessionStore interface {
	Establish(session domain.Session) (string, error)
	Get(token string) (domain.Session, bool, error)
	Delete(token string) error
}
