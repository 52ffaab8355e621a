// Package app implements the core operations of the book-donation service:
// identity checks, signup, the catalog, image ingestion, and the
// donation-request workflow. It is HTTP-agnostic; the server layer owns
// session transport and status codes.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"donateabook/internal/auth"
	"donateabook/internal/domain"
	"donateabook/internal/notify"
	"donateabook/internal/storage"
	"donateabook/internal/store"
	"donateabook/internal/util"
)

const (
	// DefaultPageSize caps an unspecified catalog page.
	DefaultPageSize = 30
	// MaxImageBytes bounds a single uploaded image when no limit is configured.
	MaxImageBytes = 10 << 20

	queryTimeout    = 5 * time.Second
	dispatchTimeout = 15 * time.Second
)

// Config wires the application's collaborators.
type Config struct {
	Store    store.Store
	Blobs    storage.BlobStore
	Notifier notify.Notifier

	// MaxUploadBytes bounds a single uploaded image; zero means MaxImageBytes.
	MaxUploadBytes int64
}

// App is the application core.
type App struct {
	store     store.Store
	blobs     storage.BlobStore
	notifier  notify.Notifier
	maxUpload int64
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = MaxImageBytes
	}
	return &App{
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		notifier:  cfg.Notifier,
		maxUpload: maxUpload,
	}, nil
}

// MaxUpload returns the effective image size limit in bytes.
func (a *App) MaxUpload() int64 {
	return a.maxUpload
}

// SignupRequest carries the signup form fields.
type SignupRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Address        string `json:"address"`
	State          string `json:"state"`
	Zipcode        string `json:"zipcode"`
	Country        string `json:"country"`
	ProfilePicture string `json:"profile_picture"`
	Biography      string `json:"biography"`
}

// CheckEmail reports whether a user exists for the normalized email.
// Not-found is an ordinary result. On a match the caller is expected to
// bind a session to the returned user: a positive existence check is a
// session-establishing event, deliberately so.
func (a *App) CheckEmail(ctx context.Context, email string) (domain.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	user, ok, err := a.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return domain.User{}, false, fmt.Errorf("check email: %w", err)
	}
	return user, ok, nil
}

// CheckPassword validates the password for the email. It fails closed:
// an unknown email reports matched=false, never an error.
func (a *App) CheckPassword(ctx context.Context, email, password string) (domain.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	user, ok, err := a.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, false, nil
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, false, nil
	}
	return user, true, nil
}

// SignUp validates required fields, hashes the password, and creates the
// user and its profile row in one transaction. The unique index on email is
// the authoritative duplicate guard; a lost race surfaces as ErrEmailTaken.
func (a *App) SignUp(ctx context.Context, req SignupRequest) (domain.User, error) {
	if strings.TrimSpace(req.FirstName) == "" ||
		strings.TrimSpace(req.LastName) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		req.Password == "" {
		return domain.User{}, ErrMissingFields
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        normalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Address:      req.Address,
		State:        req.State,
		Zipcode:      req.Zipcode,
		Country:      req.Country,
		CreatedAt:    time.Now().UTC(),
	}
	profile := domain.Profile{
		UserID:         user.ID,
		ProfilePicture: req.ProfilePicture,
		Biography:      req.Biography,
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := a.store.CreateUser(ctx, user, profile); err != nil {
		if err == store.ErrEmailTaken {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Profile returns the user's account fields and profile row.
func (a *App) Profile(ctx context.Context, userID string) (domain.User, domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, domain.Profile{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, domain.Profile{}, ErrUserNotFound
	}
	profile, _, err := a.store.GetProfile(ctx, userID)
	if err != nil {
		return domain.User{}, domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return user, profile, nil
}

// ListBooks returns one catalog page in stable storage order.
// page starts at 1; limit defaults to DefaultPageSize when unset.
func (a *App) ListBooks(ctx context.Context, page, limit int) ([]domain.Book, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	books, err := a.store.ListBooks(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// SearchBooks filters the catalog by one of exactly two modes. Zipcode mode
// matches on the donor's zipcode and includes it in the results; grade mode
// matches the book's own grade tag. Anything else is rejected.
func (a *App) SearchBooks(ctx context.Context, mode, value string) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	switch domain.SearchMode(mode) {
	case domain.SearchByZipcode:
		results, err := a.store.SearchBooksByZipcode(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("search by zipcode: %w", err)
		}
		return results, nil
	case domain.SearchByGrade:
		books, err := a.store.SearchBooksByGrade(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("search by grade: %w", err)
		}
		results := make([]domain.SearchResult, 0, len(books))
		for _, book := range books {
			results = append(results, domain.SearchResult{Book: book})
		}
		return results, nil
	default:
		return nil, ErrInvalidSearchParam
	}
}

// BookFields carries the book-submission form fields.
type BookFields struct {
	Title     string
	Author    string
	Genre     string
	Condition string
	Grade     string
}

// ImageUpload describes the single image attached to a book submission.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AddBook ingests the image and creates the book record. donorID must come
// from the caller's session, never from client input. The image is written
// first so the book row never references a blob that does not exist.
func (a *App) AddBook(ctx context.Context, donorID string, fields BookFields, image ImageUpload) (domain.Book, error) {
	if image.Content == nil {
		return domain.Book{}, ErrNoImage
	}
	if !strings.HasPrefix(image.ContentType, "image/") {
		return domain.Book{}, ErrUnsupportedImageType
	}
	if image.Size > a.maxUpload {
		return domain.Book{}, ErrImageTooLarge
	}

	// Random name plus original extension: collision-free and immune to
	// path traversal in client-supplied filenames.
	name := uuid.NewString() + strings.ToLower(filepath.Ext(image.Filename))
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ref, err := a.blobs.Put(ctx, name, io.LimitReader(image.Content, a.maxUpload), image.Size, image.ContentType)
	if err != nil {
		return domain.Book{}, fmt.Errorf("store image: %w", err)
	}

	book := domain.Book{
		ID:        util.NewID(),
		Title:     fields.Title,
		Author:    fields.Author,
		Genre:     fields.Genre,
		Condition: fields.Condition,
		Grade:     fields.Grade,
		DonorID:   donorID,
		ImagePath: ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateBook(ctx, book); err != nil {
		_ = a.blobs.Delete(ctx, name)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// Donations returns the caller's own donation history.
func (a *App) Donations(ctx context.Context, userID string) ([]domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	donations, err := a.store.ListDonationsByDonor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return donations, nil
}

// RequestBook resolves the book, its donor, and the requester's current
// contact details, then initiates the donor notification and returns.
// Delivery is best-effort: failures are logged, never surfaced, and nothing
// is persisted, so repeat requests just send repeat emails.
func (a *App) RequestBook(ctx context.Context, requesterID, bookID string) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	book, ok, err := a.store.GetBook(qctx, bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	donor, ok, err := a.store.GetUserByID(qctx, book.DonorID)
	if err != nil {
		return fmt.Errorf("fetch donor: %w", err)
	}
	if !ok {
		return ErrDonorNotFound
	}
	// Re-read the requester so the email carries current contact details,
	// not whatever the session was bound with.
	requester, ok, err := a.store.GetUserByID(qctx, requesterID)
	if err != nil {
		return fmt.Errorf("fetch requester: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}

	notice := notify.DonationNotice{
		DonorEmail:     donor.Email,
		DonorName:      donor.FirstName,
		RequesterEmail: requester.Email,
		RequesterName:  requester.FirstName,
		BookTitle:      book.Title,
	}
	go func() {
		dctx, dcancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer dcancel()
		if err := a.notifier.SendDonationRequest(dctx, notice); err != nil {
			util.LoggerFromContext(ctx).Error("donation notification failed",
				"book_id", bookID,
				"donor_email", donor.Email,
				"err", err,
			)
		}
	}()
	return nil
}

// OpenImage streams a stored image by filename. The caller's context governs
// the whole read, so no extra timeout is layered on here.
func (a *App) OpenImage(ctx context.Context, name string) (io.ReadCloser, error) {
	return a.blobs.Open(ctx, name)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
