package core

import "time"

type (
	// User identifies an authenticated editor user. Subject is the stable
	// identity issued by the auth provider and is the scoping key for all
	// per-user storage.
	User struct {
		Subject   string    `json:"subject"`
		Login     string    `json:"login"`
		Email     string    `json:"email,omitempty"`
		AvatarURL string    `json:"avatarUrl,omitempty"`
		Name      string    `json:"name,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}
)
