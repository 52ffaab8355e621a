package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"donateabook/internal/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &ProfileModel{}, &BookModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts the user and its profile row as one transaction, so a
// failed profile insert never leaves an orphan user behind.
func (s *GormStore) CreateUser(ctx context.Context, user domain.User, profile domain.Profile) error {
	userModel := userToModel(user)
	profileModel := ProfileModel{
		UserID:         user.ID,
		ProfilePicture: profile.ProfilePicture,
		Biography:      profile.Biography,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userModel).Error; err != nil {
			return err
		}
		return tx.Create(&profileModel).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// GetUserByEmail looks up a user by normalized email. Not-found is an
// ordinary result, not an error.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetProfile returns the profile row for a user.
func (s *GormStore) GetProfile(ctx context.Context, userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return domain.Profile{
		UserID:         model.UserID,
		ProfilePicture: model.ProfilePicture,
		Biography:      model.Biography,
	}, true, nil
}

// CreateBook stores a new book record.
func (s *GormStore) CreateBook(ctx context.Context, book domain.Book) error {
	model := bookToModel(book)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetBook retrieves a book by ID.
func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns a page of books in stable insertion order.
func (s *GormStore) ListBooks(ctx context.Context, limit, offset int) ([]domain.Book, error) {
	var models []BookModel
	err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

type searchRow struct {
	BookModel
	DonorZipcode string
}

// SearchBooksByZipcode joins each book to its donor and filters on the
// donor's zipcode; the zipcode describes where the donor is, not the book.
func (s *GormStore) SearchBooksByZipcode(ctx context.Context, zipcode string) ([]domain.SearchResult, error) {
	var rows []searchRow
	err := s.db.WithContext(ctx).
		Model(&BookModel{}).
		Select("books.*, users.zipcode AS donor_zipcode").
		Joins("JOIN users ON users.id = books.donor_id").
		Where("users.zipcode = ?", zipcode).
		Order("books.created_at ASC, books.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.SearchResult, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.SearchResult{
			Book:    bookFromModel(row.BookModel),
			Zipcode: row.DonorZipcode,
		})
	}
	return res, nil
}

// SearchBooksByGrade filters directly on the book's grade tag.
func (s *GormStore) SearchBooksByGrade(ctx context.Context, grade string) ([]domain.Book, error) {
	var models []BookModel
	err := s.db.WithContext(ctx).
		Where("grade = ?", grade).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// ListDonationsByDonor returns the donor's own donation history subset.
func (s *GormStore) ListDonationsByDonor(ctx context.Context, donorID string) ([]domain.Donation, error) {
	var models []BookModel
	err := s.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Donation, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Donation{
			Title:     m.Title,
			Author:    m.Author,
			Genre:     m.Genre,
			Condition: m.Condition,
			ImagePath: m.ImagePath,
		})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Address:      u.Address,
		State:        u.State,
		Zipcode:      u.Zipcode,
		Country:      u.Country,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Address:      m.Address,
		State:        m.State,
		Zipcode:      m.Zipcode,
		Country:      m.Country,
		CreatedAt:    m.CreatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Genre:     b.Genre,
		Condition: b.Condition,
		Grade:     b.Grade,
		DonorID:   b.DonorID,
		ImagePath: b.ImagePath,
		CreatedAt: b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		Genre:     m.Genre,
		Condition: m.Condition,
		Grade:     m.Grade,
		DonorID:   m.DonorID,
		ImagePath: m.ImagePath,
		CreatedAt: m.CreatedAt,
	}
}
