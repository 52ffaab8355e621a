package store

import "time"

// GORM models used for persistence. Table names match the original schema.

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Address      string
	State        string
	Zipcode      string `gorm:"index"`
	Country      string
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type ProfileModel struct {
	UserID         string `gorm:"primaryKey"`
	ProfilePicture string
	Biography      string
}

func (ProfileModel) TableName() string { return "user_profiles" }

type BookModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Author    string
	Genre     string
	Condition string
	Grade     string `gorm:"index"`
	DonorID   string `gorm:"not null;index"`
	ImagePath string
	CreatedAt time.Time `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }
