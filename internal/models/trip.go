package models

// Trip represents a shared trip that tripmates log expenses against.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string

	// Name is the display name of the trip (e.g., "Lisbon 2026").
	Name string

	// HomeCurrency is the reporting currency every expense is normalized to.
	// Lowercase ISO-like code (e.g., "usd").
	HomeCurrency string

	// CreatedBy is the user ID of the trip's creator.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the trip was created.
	CreatedAt int64
}

// Participant is a tripmate as resolved by the membership directory.
type Participant struct {
	UserID      string
	Email       string
	DisplayName string
}

// Key returns the identifier balances and debts are keyed by.
// It falls back to the email when the participant has no user ID.
func (p Participant) Key() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.Email
}
