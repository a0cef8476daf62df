package domain

import "time"

// Settings holds user preferences synced at low priority after documents.
type Settings struct {
	Theme      string    `json:"theme"`
	EditorFont string    `json:"editor_font"`
	UpdatedAt  time.Time `json:"updated_at"`
}
