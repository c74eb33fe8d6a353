package model

import "time"

// ClassroomLock is an advisory lock serializing read-validate-write
// cycles per classroom. The unique _id insert is the lock acquisition;
// ExpiresAt bounds how long a crashed holder can block a classroom.
type ClassroomLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
