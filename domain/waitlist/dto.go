package waitlist

import (
	"github.com/akeren/go-waitlist/internal/models"
	"github.com/akeren/go-waitlist/pkg/constants"
)

// Client-facing messages. Backend detail never reaches the client.
const (
	messageInvalidEmail = "invalid email"
	messageServerError  = "server error"

	pageMessageInvalidToken = "Link konfirmasi tidak valid atau sudah kedaluwarsa."
	pageMessageServerError  = "Terjadi kesalahan pada server. Silakan coba lagi nanti."
)

type PreRegisterRequest struct {
	Email string `json:"email"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type WaitlistEntryResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	Confirmed bool   `json:"confirmed"`
}

// ThankYouPage is the data of the confirmation success page.
type ThankYouPage struct {
	Email string
}

// ErrorPage is the data of the confirmation failure page.
type ErrorPage struct {
	Message string
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryResponse(entry *models.WaitlistEntry) WaitlistEntryResponse {
	if entry == nil {
		return WaitlistEntryResponse{}
	}
	return WaitlistEntryResponse{
		ID:        entry.ID,
		Email:     entry.Email,
		CreatedAt: entry.CreatedAt.UTC().Format(constants.RFC3339DateTimeFormat),
		Confirmed: entry.Confirmed,
	}
}
