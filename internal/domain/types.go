package domain

import "time"

// SearchMode selects how the catalog is filtered. It is a closed enum:
// anything other than the two constants below is rejected.
type SearchMode string

const (
	SearchByZipcode SearchMode = "zipcode"
	SearchByGrade   SearchMode = "grade"
)

type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address"`
	State        string    `json:"state"`
	Zipcode      string    `json:"zipcode"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile holds the optional user profile row created alongside the user.
type Profile struct {
	UserID         string `json:"userId"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Biography      string `json:"biography,omitempty"`
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Condition string    `json:"condition"`
	Grade     string    `json:"grade"`
	DonorID   string    `json:"donorId"`
	ImagePath string    `json:"picturePath"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchResult is a Book plus the donor's zipcode, populated only for
// zipcode-mode searches where the donor join is part of the query.
type SearchResult struct {
	Book
	Zipcode string `json:"zipcode,omitempty"`
}

// Donation is the subset of book fields shown in a donor's own history.
type Donation struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Genre     string `json:"genre"`
	Condition string `json:"condition"`
	ImagePath string `json:"picturePath"`
}

// Session is the server-held identity bound to a client cookie.
type Session struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
}
