package models

import "time"

// User is a person who authors rubric submissions. Email is the identity key.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName  string    `gorm:"size:255;not null" json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStats summarises a user with submission counts for exports.
type UserStats struct {
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	SubmissionCount int64     `json:"submissionCount"`
	FirstSeen       time.Time `json:"firstSeen"`
	LastSubmission  time.Time `json:"lastSubmission"`
}
