// Package notify dispatches donation-request emails to donors. Dispatch is
// fire-and-forget: nothing is persisted and failures never reach the
// requester, so duplicate requests simply produce duplicate emails.
package notify

import (
	"context"
	"fmt"
)

// DonationNotice carries everything needed to tell a donor that someone
// wants their book.
type DonationNotice struct {
	DonorEmail     string `json:"donorEmail"`
	DonorName      string `json:"donorName"`
	RequesterEmail string `json:"requesterEmail"`
	RequesterName  string `json:"requesterName"`
	BookTitle      string `json:"bookTitle"`
}

// Notifier initiates delivery of a donation notice.
type Notifier interface {
	SendDonationRequest(ctx context.Context, notice DonationNotice) error
}

// Subject renders the notification subject line.
func Subject(notice DonationNotice) string {
	return fmt.Sprintf("DonateABook - Approve Donation Request for: %s", notice.BookTitle)
}

// Body renders the plain-text notification body. It must name the requester,
// include their email, and point the donor at the dashboard for approval.
func Body(notice DonationNotice) string {
	return fmt.Sprintf(`Dear DonateABook User,

We hope you're doing well! One of our users, %s, is interested in picking up the book '%s' you've generously offered to donate through DonateABook. Here is %s's contact information:

User's Email: %s

If you approve the request, your email will be shared with %s to coordinate the pickup.

To approve this request, simply log in to your DonateABook account and navigate to your donation dashboard.

Thank you so much for contributing to our community! Your continued generosity makes a huge difference in helping others access the books they need.

Warm Regards,
The DonateABook Team`,
		notice.RequesterName, notice.BookTitle, notice.RequesterName,
		notice.RequesterEmail, notice.RequesterName)
}
