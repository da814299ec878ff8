package domain

import "time"

// Route record shared through the remote sync backend.
type SyncedRoute struct {
	ID          string       `json:"id" firestore:"id"`
	UserID      string       `json:"user_id" firestore:"user_id"`
	Name        string       `json:"name" firestore:"name"`
	Description string       `json:"description,omitempty" firestore:"description"`
	ZoneID      int          `json:"zone_id" firestore:"zone_id"`
	Plan        Plan         `json:"plan" firestore:"plan"`
	Path        []Coordinate `json:"path" firestore:"path"`
	Stops       []SyncedStop `json:"stops" firestore:"stops"`
	IsPublic    bool         `json:"is_public" firestore:"is_public"`
	CreatedAt   time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" firestore:"updated_at"`
}

type SyncedStop struct {
	ID        string  `json:"id" firestore:"id"`
	Name      string  `json:"name" firestore:"name"`
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
}

// Remote sync account. PasswordHash is a bcrypt hash and never leaves the server.
type Account struct {
	ID           string    `json:"id" firestore:"id"`
	Email        string    `json:"email" firestore:"email"`
	PasswordHash []byte    `json:"-" firestore:"password_hash"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
}

type Session struct {
	Token     string    `json:"token" firestore:"token"`
	UserID    string    `json:"user_id" firestore:"user_id"`
	Email     string    `json:"email" firestore:"email"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
}
