package chat

import "time"

// Message is a direct chat message between two users.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Presence is the set of usernames currently online.
type Presence struct {
	Users []string `json:"users"`
}
