package httpserver

import (
	"time"

	"github.com/and161185/findit/internal/model"
)

type userDTO struct {
	ID           int64              `json:"id"`
	Email        string             `json:"email"`
	FullName     string             `json:"full_name"`
	AvatarURL    string             `json:"avatar_url,omitempty"`
	Role         model.Role         `json:"role"`
	AuthProvider model.AuthProvider `json:"auth_provider"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toUser(u model.User) userDTO {
	return userDTO{
		ID: u.ID, Email: u.Email, FullName: u.FullName, AvatarURL: u.AvatarURL,
		Role: u.Role, AuthProvider: u.AuthProvider, CreatedAt: u.CreatedAt,
	}
}

type tokenDTO struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        userDTO   `json:"user"`
}

func toToken(t model.Tokens, u model.User) tokenDTO {
	return tokenDTO{AccessToken: t.AccessToken, TokenType: "bearer", ExpiresAt: t.ExpiresAt, User: toUser(u)}
}

type itemDTO struct {
	ID                int64            `json:"id"`
	UserID            int64            `json:"user_id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Category          string           `json:"category"`
	Location          string           `json:"location"`
	Keywords          string           `json:"keywords"`
	DateFound         string           `json:"date_found,omitempty"`
	ContactPreference string           `json:"contact_preference"`
	ImageURL          string           `json:"image_url,omitempty"`
	Status            model.ItemStatus `json:"status"`
	VerificationPIN   string           `json:"verification_pin,omitempty"`
	ReporterName      string           `json:"reporter_name,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

func toItem(it model.Item) itemDTO {
	return itemDTO{
		ID: it.ID, UserID: it.UserID, Title: it.Title, Description: it.Description,
		Category: it.Category, Location: it.Location, Keywords: it.Keywords, DateFound: it.DateFound,
		ContactPreference: it.ContactPreference, ImageURL: it.ImageURL, Status: it.Status,
		VerificationPIN: it.VerificationPIN, ReporterName: it.ReporterName, CreatedAt: it.CreatedAt,
	}
}

func toItems(in []model.Item) []itemDTO {
	out := make([]itemDTO, 0, len(in))
	for _, it := range in {
		out = append(out, toItem(it))
	}
	return out
}

type claimSummaryDTO struct {
	ClaimID        int64             `json:"claim_id"`
	ItemTitle      string            `json:"item_title"`
	ItemPhoto      string            `json:"item_photo,omitempty"`
	OtherPartyName string            `json:"other_party_name"`
	Status         model.ClaimStatus `json:"status"`
	LastMessage    string            `json:"last_message"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ClaimerID      int64             `json:"claimer_id"`
	FinderID       int64             `json:"finder_id"`
}

func toClaimSummaries(in []model.ClaimSummary) []claimSummaryDTO {
	out := make([]claimSummaryDTO, 0, len(in))
	for _, c := range in {
		out = append(out, claimSummaryDTO{
			ClaimID: c.ClaimID, ItemTitle: c.ItemTitle, ItemPhoto: c.ItemPhoto,
			OtherPartyName: c.OtherPartyName, Status: c.Status, LastMessage: c.LastMessage,
			UpdatedAt: c.UpdatedAt, ClaimerID: c.ClaimerID, FinderID: c.FinderID,
		})
	}
	return out
}

type messageDTO struct {
	ID             int64                  `json:"id"`
	ClaimID        int64                  `json:"claim_id,omitempty"`
	ConversationID int64                  `json:"conversation_id,omitempty"`
	SenderID       int64                  `json:"sender_id"`
	SenderName     string                 `json:"sender_name,omitempty"`
	ReceiverID     int64                  `json:"receiver_id,omitempty"`
	Type           model.MessageType      `json:"message_type"`
	Content        string                 `json:"content"`
	Identity       *model.IdentityAnswers `json:"identity,omitempty"`
	IsRead         bool                   `json:"is_read"`
	CreatedAt      time.Time              `json:"created_at"`
}

func toMessages(in []model.Message) []messageDTO {
	out := make([]messageDTO, 0, len(in))
	for _, m := range in {
		d := messageDTO{
			ID: m.ID, ClaimID: m.ClaimID, ConversationID: m.ConversationID, SenderID: m.SenderID,
			SenderName: m.SenderName, ReceiverID: m.ReceiverID, Type: m.Type, Content: m.Content,
			IsRead: m.IsRead, CreatedAt: m.CreatedAt,
		}
		if a, ok := m.Identity(); ok {
			d.Identity = a
		}
		out = append(out, d)
	}
	return out
}

type conversationSummaryDTO struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"item_id"`
	ItemTitle     string    `json:"item_title"`
	ItemPhoto     string    `json:"item_photo,omitempty"`
	OtherUserID   int64     `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
	IsFinder      bool      `json:"is_finder"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        bool      `json:"unread"`
}

func toConversationSummaries(in []model.ConversationSummary) []conversationSummaryDTO {
	out := make([]conversationSummaryDTO, 0, len(in))
	for _, c := range in {
		out = append(out, conversationSummaryDTO(c))
	}
	return out
}

type userRefDTO struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type conversationDetailDTO struct {
	ID        int64      `json:"id"`
	ItemID    int64      `json:"item_id"`
	ItemTitle string     `json:"item_title"`
	ItemPhoto string     `json:"item_photo,omitempty"`
	OtherUser userRefDTO `json:"other_user"`
	IsFinder  bool       `json:"is_finder"`
	CreatedAt time.Time  `json:"created_at"`
}

func toConversationDetail(d model.ConversationDetail, viewerID int64) conversationDetailDTO {
	return conversationDetailDTO{
		ID: d.ID, ItemID: d.ItemID, ItemTitle: d.ItemTitle, ItemPhoto: d.ItemPhoto,
		OtherUser: userRefDTO(d.Other(viewerID)),
		IsFinder:  d.FinderID == viewerID,
		CreatedAt: d.CreatedAt,
	}
}
