package model

import "time"

// Post is a single bulletin-board entry. Mutations are guarded by a per-post
// password; there are no user accounts.
type Post struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Title          string    `json:"title" gorm:"size:100;not null"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	Username       string    `json:"username" gorm:"size:10;not null;index"`
	PasswordHash   string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	AttachmentID   string    `json:"-" gorm:"size:64"`           // opaque storage token, decoupled from the uploaded name
	AttachmentName string    `json:"attachment_name,omitempty" gorm:"size:255"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName keeps the table name used by the original schema.
func (Post) TableName() string { return "posts" }

// HasAttachment reports whether a stored file is recorded for the post.
func (p *Post) HasAttachment() bool {
	return p.AttachmentID != "" && p.AttachmentName != ""
}
