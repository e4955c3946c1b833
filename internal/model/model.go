// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"
)

// SystemEmail identifies the seeded account that authors onboarding prompts.
const SystemEmail = "system@findit.internal"

// Role is a user's authorization role.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// AuthProvider records how an account signs in.
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	ID       int64
	Email    string
	Role     Role
	FullName string
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// User represents an account stored on the server.
type User struct {
	ID               int64        // PK
	Email            string       // unique
	PasswordHash     string       // encoded Argon2id; empty for Google-only accounts
	FullName         string
	AvatarURL        string
	Role             Role
	AuthProvider     AuthProvider
	ResetCode        string       // pending password reset code, empty when none
	ResetCodeExpires time.Time    // zero when no code is pending
	CreatedAt        time.Time
}

// Principal projects the user into token claims.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Role: u.Role, FullName: u.FullName}
}

// UserStats summarizes a user's activity.
type UserStats struct {
	Reported int // items reported by the user
	Claims   int // claims the user started
	Reunited int // own items that reached Recovered
}

// UserRef is the public projection of another user.
type UserRef struct {
	ID        int64
	FullName  string
	AvatarURL string
}

// ItemStatus is the lifecycle status of an item report.
type ItemStatus string

const (
	ItemLost      ItemStatus = "Lost"
	ItemFound     ItemStatus = "Found"
	ItemRecovered ItemStatus = "Recovered"
)

// Item is a lost/found report.
type Item struct {
	ID                int64
	UserID            int64 // FK -> users.id (finder / reporter)
	Title             string
	Description       string
	Category          string
	Location          string
	Keywords          string
	DateFound         string // YYYY-MM-DD or empty
	ContactPreference string
	ImageURL          string
	Status            ItemStatus
	VerificationPIN   string // 4 digits, empty when none is issued
	ReporterName      string // read-only join of users.full_name
	CreatedAt         time.Time
}

// ItemFilter narrows item listings; zero fields are ignored.
type ItemFilter struct {
	Query    string
	Status   ItemStatus
	Category string
}

// ItemLocation is the (id, location) pair used by location normalization.
type ItemLocation struct {
	ID       int64
	Location string
}

// Claim is a claimer's assertion of ownership over an item.
type Claim struct {
	ID               int64
	ItemID           int64
	ClaimerID        int64
	FinderID         int64 // item owner at claim time
	ProofDescription string
	ProofImageURL    string
	Status           ClaimStatus
	HandoverCode     string // empty until a handover is initiated
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ClaimSummary is a claim row as listed for one of its parties.
type ClaimSummary struct {
	ClaimID        int64
	ItemTitle      string
	ItemPhoto      string
	OtherPartyName string
	Status         ClaimStatus
	LastMessage    string
	UpdatedAt      time.Time
	ClaimerID      int64
	FinderID       int64
}

// IdentityAnswers are the claimer's answers to an identity request.
type IdentityAnswers struct {
	FullName          string `json:"full_name"`
	PlaceFound        string `json:"place_found,omitempty"`
	DateOfLoss        string `json:"date_of_loss,omitempty"`
	LocationOfLoss    string `json:"location_of_loss,omitempty"`
	UnlockDescription string `json:"unlock_description,omitempty"`
}

// IdentityVerification is the stored identity submission for a claim.
type IdentityVerification struct {
	ClaimID int64
	IdentityAnswers
	SubmittedAt time.Time
}

// MessageType drives how a message's content is interpreted.
type MessageType string

const (
	MessageText             MessageType = "text"
	MessageSystem           MessageType = "system"
	MessageIdentityForm     MessageType = "identity_form"
	MessageIdentityResponse MessageType = "identity_response"
	MessageHandoverInit     MessageType = "handover_init"
	MessageHandoverConfirm  MessageType = "handover_confirm"
)

// Message is an append-only log entry in a claim thread or conversation.
type Message struct {
	ID             int64
	ClaimID        int64 // 0 for conversation messages
	ConversationID int64 // 0 for claim messages
	ItemID         int64
	SenderID       int64
	ReceiverID     int64 // 0 when unset
	Type           MessageType
	Content        string
	IsRead         bool
	CreatedAt      time.Time
	SenderName     string // read-only join of users.full_name
}

// VisibleTo reports whether viewer may read the message in a thread whose finder is finderID.
// Handover codes are readable by the finder only.
func (m Message) VisibleTo(finderID, viewerID int64) bool {
	return m.Type != MessageHandoverInit || viewerID == finderID
}

// Identity decodes the structured answers carried by an identity_response message.
func (m Message) Identity() (*IdentityAnswers, bool) {
	if m.Type != MessageIdentityResponse {
		return nil, false
	}
	var a IdentityAnswers
	if err := json.Unmarshal([]byte(m.Content), &a); err != nil {
		return nil, false
	}
	return &a, true
}

// Conversation is the per-(item, claimer) chat thread.
type Conversation struct {
	ID        int64
	ItemID    int64
	FinderID  int64
	ClaimerID int64
	CreatedAt time.Time
}

// ConversationDetail is a conversation joined with its item and both parties.
type ConversationDetail struct {
	Conversation
	ItemTitle string
	ItemPhoto string
	Finder    UserRef
	Claimer   UserRef
}

// Other returns the party that is not userID.
func (d ConversationDetail) Other(userID int64) UserRef {
	if d.FinderID == userID {
		return d.Claimer
	}
	return d.Finder
}

// ConversationSummary is a conversation as listed for one participant.
type ConversationSummary struct {
	ID            int64
	ItemID        int64
	ItemTitle     string
	ItemPhoto     string
	OtherUserID   int64
	OtherUserName string
	IsFinder      bool
	LastMessage   string
	LastMessageAt time.Time
	Unread        bool // last message is from the other party and unread
}
