package app

import "errors"

// Sentinel errors the HTTP layer maps onto status codes.
var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrDonorNotFound        = errors.New("book owner not found")
	ErrInvalidSearchParam   = errors.New(`invalid search parameter, use either "zipcode" or "grade"`)
	ErrNoImage              = errors.New("no file uploaded")
	ErrUnsupportedImageType = errors.New("unsupported file type, only images are allowed")
	ErrImageTooLarge        = errors.New("uploaded file exceeds the size limit")
)
