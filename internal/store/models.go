package store

import "time"

// Account is a registered session file
type Account struct {
	Label     string    `json:"label"`
	Filename  string    `json:"filename"`
	Source    string    `json:"source"` // "login" or "import"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post is content created through a compose action
type Post struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"`
	Kind      string     `json:"kind"`
	URL       string     `json:"url,omitempty"`
	Text      string     `json:"text"`
	Target    string     `json:"target,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
