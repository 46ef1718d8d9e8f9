package models

import (
	"sync"
	"time"
)

// Profile is a public, customizable profile page record, keyed by its
// unique username. Nullable text fields are pointers so that JSON null
// survives round-trips: a nil pointer marshals to null, and an update
// request can distinguish "clear this field" from "leave it alone".
type Profile struct {
	ID                   string  `json:"id"`       // Unique ID (UUID, dashless)
	Username             string  `json:"username"` // Unique, immutable after creation
	DisplayName          *string `json:"displayName"`
	Bio                  *string `json:"bio"` // Max 500 characters
	ProfilePicture       *string `json:"profilePicture"` // Inline data URI or /uploads/ path
	BackgroundVideo      *string `json:"backgroundVideo"`
	BackgroundVideoMuted int     `json:"backgroundVideoMuted"` // 0 or 1, defaults to 1
	BackgroundAudio      *string `json:"backgroundAudio"`
	ViewCount            int     `json:"viewCount"` // Server-owned, never client-settable
	Snapchat             *string `json:"snapchat"`
	Discord              *string `json:"discord"`
	Twitter              *string `json:"twitter"`
	Instagram            *string `json:"instagram"`
	TikTok               *string `json:"tiktok"`
	YouTube              *string `json:"youtube"`
	GitHub               *string `json:"github"`
	Twitch               *string `json:"twitch"`
	UserID               string  `json:"userId,omitempty"` // Owning account; empty for anonymous profiles
}

// User is an account in the authenticated variant. One user owns
// zero-or-more profiles via Profile.UserID.
type User struct {
	ID           string    `json:"id"`           // Unique ID (UUID, dashless)
	Username     string    `json:"username"`     // Unique, used for login
	PasswordHash string    `json:"passwordHash"` // Bcrypt hash; stripped from API responses by handlers
	CreationDate time.Time `json:"creationDate"` // UTC
}

// CredentialLog is an immutable record of a single login-modal submission.
// The submitted password is stored verbatim; there is no update or delete
// path for these records.
type CredentialLog struct {
	ID              string `json:"id"`              // Unique ID (UUID, dashless)
	ProfileUsername string `json:"profileUsername"` // No FK enforcement; may not match any profile
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
	Timestamp       string `json:"timestamp"` // RFC3339, server-generated
}

// Database holds all application data and manages concurrent access.
type Database struct {
	Profiles       map[string]Profile `json:"profiles"`        // Keyed by Profile ID (dashless)
	Users          map[string]User    `json:"users"`           // Keyed by User ID (dashless)
	CredentialLogs []CredentialLog    `json:"credential_logs"` // Append-only, in submission order

	// Mutex for thread-safe access to the collections
	Mu sync.RWMutex `json:"-"` // Exclude mutex from serialization
}
