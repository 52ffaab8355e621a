package store

import (
	"context"
	"sync"

	"donateabook/internal/domain"
)

// MemoryStore keeps records in-process. It mirrors the Postgres store's
// semantics (email uniqueness, insertion order, donor join) for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User   // key: user ID
	email     map[string]string        // normalized email -> user ID
	profiles  map[string]domain.Profile
	books     map[string]domain.Book
	bookOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		profiles: make(map[string]domain.Profile),
		books:    make(map[string]domain.Book),
	}
}

// CreateUser inserts user and profile atomically under one lock, enforcing
// email uniqueness the way the DB unique index does.
func (m *MemoryStore) CreateUser(_ context.Context, user domain.User, profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[user.Email]; exists {
		return ErrEmailTaken
	}
	m.users[user.ID] = user
	m.email[user.Email] = user.ID
	profile.UserID = user.ID
	m.profiles[user.ID] = profile
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	return profile, ok, nil
}

func (m *MemoryStore) CreateBook(_ context.Context, book domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[book.ID]; !exists {
		m.bookOrder = append(m.bookOrder, book.ID)
	}
	m.books[book.ID] = book
	return nil
}

func (m *MemoryStore) GetBook(_ context.Context, id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[id]
	return book, ok, nil
}

func (m *MemoryStore) ListBooks(_ context.Context, limit, offset int) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, limit)
	for i := offset; i < len(m.bookOrder) && len(res) < limit; i++ {
		res = append(res, m.books[m.bookOrder[i]])
	}
	return res, nil
}

func (m *MemoryStore) SearchBooksByZipcode(_ context.Context, zipcode string) ([]domain.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SearchResult, 0)
	for _, id := range m.bookOrder {
		book := m.books[id]
		donor, ok := m.users[book.DonorID]
		if !ok || donor.Zipcode != zipcode {
			continue
		}
		res = append(res, domain.SearchResult{Book: book, Zipcode: donor.Zipcode})
	}
	return res, nil
}

func (m *MemoryStore) SearchBooksByGrade(_ context.Context, grade string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0)
	for _, id := range m.bookOrder {
		if book := m.books[id]; book.Grade == grade {
			res = append(res, book)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListDonationsByDonor(_ context.Context, donorID string) ([]domain.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Donation, 0)
	for _, id := range m.bookOrder {
		book := m.books[id]
		if book.DonorID != donorID {
			continue
		}
		res = append(res, domain.Donation{
			Title:     book.Title,
			Author:    book.Author,
			Genre:     book.Genre,
			Condition: book.Condition,
			ImagePath: book.ImagePath,
		})
	}
	return res, nil
}
