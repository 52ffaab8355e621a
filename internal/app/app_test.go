package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"donateabook/internal/notify"
	"donateabook/internal/storage"
	"donateabook/internal/store"
)

// recordingNotifier captures dispatched notices and signals each send so
// tests can wait for the async dispatch without sleeping.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.DonationNotice
	sent    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan struct{}, 16)}
}

func (n *recordingNotifier) SendDonationRequest(_ context.Context, notice notify.DonationNotice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func (n *recordingNotifier) waitForSend(t *testing.T) notify.DonationNotice {
	t.Helper()
	select {
	case <-n.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification dispatch")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notices[len(n.notices)-1]
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	memStore := store.NewMemoryStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	notifier := newRecordingNotifier()
	core, err := New(Config{Store: memStore, Blobs: blobs, Notifier: notifier})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return core, memStore, notifier
}

func signupReq(email string) SignupRequest {
	return SignupRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "s3cret",
		Address:   "12 Analytical Way",
		State:     "CA",
		Zipcode:   "94016",
		Country:   "US",
		Biography: "Reader.",
	}
}

func imageUpload(name, contentType, content string) ImageUpload {
	return ImageUpload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	}
}

func TestSignUpAndCheckEmailRoundTrip(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()

	user, err := core.SignUp(ctx, signupReq("ADA@Example.COM"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("stored email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "s3cret" || user.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}

	// Any casing of the email must find the same account.
	found, ok, err := core.CheckEmail(ctx, "  Ada@example.com ")
	if err != nil {
		t.Fatalf("check email: %v", err)
	}
	if !ok || found.ID != user.ID {
		t.Fatalf("email lookup failed: ok=%v id=%q want %q", ok, found.ID, user.ID)
	}
}

func TestSignUpRejectsMissingFields(t *testing.T) {
	core, _, _ := newTestApp(t)
	req := signupReq("ada@example.com")
	req.LastName = "   "
	if _, err := core.SignUp(context.Background(), req); err != ErrMissingFields {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	if _, err := core.SignUp(ctx, signupReq("ada@example.com")); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	// Different casing still collides with the normalized stored email.
	if _, err := core.SignUp(ctx, signupReq("Ada@Example.com")); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCheckPassword(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	user, err := core.SignUp(ctx, signupReq("ada@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	got, matched, err := core.CheckPassword(ctx, "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("check password: %v", err)
	}
	if !matched || got.ID != user.ID {
		t.Fatalf("expected match for correct password, matched=%v", matched)
	}

	if _, matched, err = core.CheckPassword(ctx, "ada@example.com", "wrong"); err != nil || matched {
		t.Fatalf("wrong password must not match, matched=%v err=%v", matched, err)
	}
	// Unknown email reads as a mismatch, not an error.
	if _, matched, err = core.CheckPassword(ctx, "nobody@example.com", "s3cret"); err != nil || matched {
		t.Fatalf("unknown email must not match, matched=%v err=%v", matched, err)
	}
}

func TestAddBookValidation(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	donor, err := core.SignUp(ctx, signupReq("donor@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	fields := BookFields{Title: "SICP", Author: "Abelson", Genre: "CS", Condition: "good", Grade: "9"}

	if _, err := core.AddBook(ctx, donor.ID, fields, ImageUpload{}); err != ErrNoImage {
		t.Fatalf("missing image: expected ErrNoImage, got %v", err)
	}
	if _, err := core.AddBook(ctx, donor.ID, fields, imageUpload("cv.pdf", "application/pdf", "x")); err != ErrUnsupportedImageType {
		t.Fatalf("non-image upload: expected ErrUnsupportedImageType, got %v", err)
	}
	huge := imageUpload("big.png", "image/png", "x")
	huge.Size = MaxImageBytes + 1
	if _, err := core.AddBook(ctx, donor.ID, fields, huge); err != ErrImageTooLarge {
		t.Fatalf("oversized upload: expected ErrImageTooLarge, got %v", err)
	}
}

func TestAddBookHonorsConfiguredUploadLimit(t *testing.T) {
	memStore := store.NewMemoryStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	core, err := New(Config{
		Store:          memStore,
		Blobs:          blobs,
		Notifier:       newRecordingNotifier(),
		MaxUploadBytes: 8,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if core.MaxUpload() != 8 {
		t.Fatalf("MaxUpload() = %d, want 8", core.MaxUpload())
	}
	ctx := context.Background()
	donor, err := core.SignUp(ctx, signupReq("donor@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	fields := BookFields{Title: "SICP", Author: "Abelson", Genre: "CS", Condition: "good", Grade: "9"}

	// Nine bytes exceeds the configured limit even though the built-in
	// default would allow it.
	if _, err := core.AddBook(ctx, donor.ID, fields, imageUpload("c.png", "image/png", "ninebytes")); err != ErrImageTooLarge {
		t.Fatalf("over configured limit: expected ErrImageTooLarge, got %v", err)
	}
	if _, err := core.AddBook(ctx, donor.ID, fields, imageUpload("c.png", "image/png", "8bytes!!")); err != nil {
		t.Fatalf("within configured limit: %v", err)
	}

	// Zero falls back to the built-in default.
	fallback, err := New(Config{Store: memStore, Blobs: blobs, Notifier: newRecordingNotifier()})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if fallback.MaxUpload() != MaxImageBytes {
		t.Fatalf("default MaxUpload() = %d, want %d", fallback.MaxUpload(), int64(MaxImageBytes))
	}
}

func TestAddBookStoresImageUnderRandomName(t *testing.T) {
	core, memStore, _ := newTestApp(t)
	ctx := context.Background()
	donor, err := core.SignUp(ctx, signupReq("donor@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	fields := BookFields{Title: "SICP", Author: "Abelson", Genre: "CS", Condition: "good", Grade: "9"}

	book, err := core.AddBook(ctx, donor.ID, fields, imageUpload("../../etc/Cover.PNG", "image/png", "fakepng"))
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	if book.DonorID != donor.ID {
		t.Fatalf("book bound to wrong donor: %q", book.DonorID)
	}
	if strings.Contains(book.ImagePath, "..") || strings.Contains(book.ImagePath, "Cover") {
		t.Fatalf("image path leaks client filename: %q", book.ImagePath)
	}
	if !strings.HasSuffix(book.ImagePath, ".png") {
		t.Fatalf("image path lost lowercased extension: %q", book.ImagePath)
	}
	if stored, ok, _ := memStore.GetBook(ctx, book.ID); !ok || stored.ImagePath != book.ImagePath {
		t.Fatalf("book not persisted with image reference")
	}
}

func TestListBooksPagination(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	donor, err := core.SignUp(ctx, signupReq("donor@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	for i := 0; i < 35; i++ {
		fields := BookFields{Title: "Book " + strings.Repeat("i", i+1), Author: "A", Genre: "G", Condition: "good", Grade: "5"}
		if _, err := core.AddBook(ctx, donor.ID, fields, imageUpload("c.png", "image/png", "img")); err != nil {
			t.Fatalf("add book %d: %v", i, err)
		}
	}

	// An unset limit caps the page at the default size even with more rows.
	defaultPage, err := core.ListBooks(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list default page: %v", err)
	}
	if len(defaultPage) != DefaultPageSize {
		t.Fatalf("default page size = %d, want %d", len(defaultPage), DefaultPageSize)
	}

	page2, err := core.ListBooks(ctx, 2, 10)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 10 {
		t.Fatalf("page 2 size = %d, want 10", len(page2))
	}
	// Page 2 with limit 10 is items 11..20 in insertion order.
	if page2[0].Title != "Book "+strings.Repeat("i", 11) {
		t.Fatalf("page 2 starts at %q", page2[0].Title)
	}

	page4, err := core.ListBooks(ctx, 4, 10)
	if err != nil {
		t.Fatalf("list page 4: %v", err)
	}
	if len(page4) != 5 {
		t.Fatalf("final partial page size = %d, want 5", len(page4))
	}

	// Out-of-range pages are empty, not an error.
	page9, err := core.ListBooks(ctx, 9, 10)
	if err != nil || len(page9) != 0 {
		t.Fatalf("out-of-range page: len=%d err=%v", len(page9), err)
	}
}

func TestSearchBooks(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()

	near := signupReq("near@example.com")
	near.Zipcode = "94016"
	donorNear, err := core.SignUp(ctx, near)
	if err != nil {
		t.Fatalf("signup near: %v", err)
	}
	far := signupReq("far@example.com")
	far.Zipcode = "10001"
	donorFar, err := core.SignUp(ctx, far)
	if err != nil {
		t.Fatalf("signup far: %v", err)
	}

	add := func(donorID, title, grade string) {
		t.Helper()
		fields := BookFields{Title: title, Author: "A", Genre: "G", Condition: "good", Grade: grade}
		if _, err := core.AddBook(ctx, donorID, fields, imageUpload("c.png", "image/png", "img")); err != nil {
			t.Fatalf("add %s: %v", title, err)
		}
	}
	add(donorNear.ID, "Near Algebra", "7")
	add(donorFar.ID, "Far Algebra", "7")
	add(donorNear.ID, "Near History", "9")

	byZip, err := core.SearchBooks(ctx, "zipcode", "94016")
	if err != nil {
		t.Fatalf("search by zipcode: %v", err)
	}
	if len(byZip) != 2 {
		t.Fatalf("zipcode search returned %d results, want 2", len(byZip))
	}
	for _, r := range byZip {
		if r.Zipcode != "94016" {
			t.Fatalf("zipcode search result missing donor zipcode: %+v", r)
		}
	}

	byGrade, err := core.SearchBooks(ctx, "grade", "7")
	if err != nil {
		t.Fatalf("search by grade: %v", err)
	}
	if len(byGrade) != 2 {
		t.Fatalf("grade search returned %d results, want 2", len(byGrade))
	}
	for _, r := range byGrade {
		if r.Grade != "7" {
			t.Fatalf("grade search returned grade %q", r.Grade)
		}
		if r.Zipcode != "" {
			t.Fatalf("grade search must not expose donor zipcode: %+v", r)
		}
	}

	// The mode set is closed.
	if _, err := core.SearchBooks(ctx, "title", "Algebra"); err != ErrInvalidSearchParam {
		t.Fatalf("unknown mode: expected ErrInvalidSearchParam, got %v", err)
	}
}

func TestRequestBookNotifiesDonor(t *testing.T) {
	core, _, notifier := newTestApp(t)
	ctx := context.Background()

	donorReq := signupReq("donor@example.com")
	donorReq.FirstName = "Dana"
	donor, err := core.SignUp(ctx, donorReq)
	if err != nil {
		t.Fatalf("signup donor: %v", err)
	}
	requesterReq := signupReq("reader@example.com")
	requesterReq.FirstName = "Rory"
	requester, err := core.SignUp(ctx, requesterReq)
	if err != nil {
		t.Fatalf("signup requester: %v", err)
	}
	fields := BookFields{Title: "The Pragmatic Programmer", Author: "Hunt", Genre: "CS", Condition: "good", Grade: "12"}
	book, err := core.AddBook(ctx, donor.ID, fields, imageUpload("c.png", "image/png", "img"))
	if err != nil {
		t.Fatalf("add book: %v", err)
	}

	if err := core.RequestBook(ctx, requester.ID, book.ID); err != nil {
		t.Fatalf("request book: %v", err)
	}
	notice := notifier.waitForSend(t)
	if notice.DonorEmail != donor.Email || notice.DonorName != "Dana" {
		t.Fatalf("notice addressed wrong: %+v", notice)
	}
	if notice.RequesterEmail != requester.Email || notice.RequesterName != "Rory" {
		t.Fatalf("notice misidentifies requester: %+v", notice)
	}
	if notice.BookTitle != book.Title {
		t.Fatalf("notice names wrong book: %q", notice.BookTitle)
	}

	// Requests are stateless: a repeat request simply notifies again.
	if err := core.RequestBook(ctx, requester.ID, book.ID); err != nil {
		t.Fatalf("repeat request: %v", err)
	}
	notifier.waitForSend(t)
}

func TestRequestBookUnknownBook(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	requester, err := core.SignUp(ctx, signupReq("reader@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := core.RequestBook(ctx, requester.ID, "missing-book"); err != ErrBookNotFound {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestDonationsOnlyListOwnBooks(t *testing.T) {
	core, _, _ := newTestApp(t)
	ctx := context.Background()
	donorA, err := core.SignUp(ctx, signupReq("a@example.com"))
	if err != nil {
		t.Fatalf("signup a: %v", err)
	}
	donorB, err := core.SignUp(ctx, signupReq("b@example.com"))
	if err != nil {
		t.Fatalf("signup b: %v", err)
	}
	fields := BookFields{Title: "Mine", Author: "A", Genre: "G", Condition: "good", Grade: "3"}
	if _, err := core.AddBook(ctx, donorA.ID, fields, imageUpload("c.png", "image/png", "img")); err != nil {
		t.Fatalf("add book: %v", err)
	}

	mine, err := core.Donations(ctx, donorA.ID)
	if err != nil {
		t.Fatalf("donations a: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "Mine" {
		t.Fatalf("donor A donations = %+v", mine)
	}
	theirs, err := core.Donations(ctx, donorB.ID)
	if err != nil {
		t.Fatalf("donations b: %v", err)
	}
	if len(theirs) != 0 {
		t.Fatalf("donor B sees %d foreign donations", len(theirs))
	}
}

func TestProfileUnknownUser(t *testing.T) {
	core, _, _ := newTestApp(t)
	if _, _, err := core.Profile(context.Background(), "ghost"); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
