package domain

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Profile is the display projection of a user.
type Profile struct {
	ID              string
	DisplayName     string
	Role            Role
	Specialty       *string // doctors only
	ProfileImageURL *string
}

type ConversationSummary struct {
	Participant Profile
	LastMessage Message
	UnreadCount int
}
