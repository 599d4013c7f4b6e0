// Package domain contains core concepts of the presence and messaging system.
// This file defines the user summary exposed by the directory collaborator.
package domain

// User is the directory view of a member: just enough identity to address
// and announce messages. Profile data lives outside this core.
type User struct {
	Username string `json:"username"`
	KnownAs  string `json:"knownAs"`
}
