package session

// Session is the server-side record behind the session cookie.
//
// SecondFactorVerified is scoped to this session only. Other sessions of the
// same account stay unverified until they complete the factor themselves.
type Session struct {
	ID        string
	AccountID string

	// Pending marks a login that passed the password check and is waiting
	// for the second factor. A pending session authenticates nothing else.
	Pending              bool
	SecondFactorVerified bool
	Remember             bool

	IP        string
	UserAgent string

	SchemaVersion uint8
	CreatedAt     int64
	ExpiresAt     int64
}

// Established reports whether the session represents a completed login.
func (s *Session) Established() bool {
	return s != nil && !s.Pending
}
