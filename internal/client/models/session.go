// Package models holds the session, profile and diagnostic types shared by
// the credential store, the transport and the session controller.
package models

// Session is the root aggregate owned by the session controller.
//
// Invariants: IsAuthenticated implies AccessToken != ""; !IsAuthenticated
// implies User == nil. Diagnostics is ordered newest first.
type Session struct {
	IsAuthenticated bool
	AccessToken     string
	RefreshToken    string
	User            *Profile
	LastError       string
	IsLoading       bool
	Diagnostics     []AttemptRecord
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	if s.Diagnostics != nil {
		d := make([]AttemptRecord, len(s.Diagnostics))
		for i, r := range s.Diagnostics {
			d[i] = r.Clone()
		}
		s.Diagnostics = d
	}
	return s
}

// PushDiagnostic prepends r and evicts the oldest records beyond capacity.
func (s *Session) PushDiagnostic(r AttemptRecord, capacity int) {
	if capacity <= 0 {
		return
	}
	d := make([]AttemptRecord, 0, min(len(s.Diagnostics)+1, capacity))
	d = append(d, r)
	for _, old := range s.Diagnostics {
		if len(d) == capacity {
			break
		}
		d = append(d, old)
	}
	s.Diagnostics = d
}

// Snapshot is the persisted projection of a Session used to rehydrate it
// on the next start before any network call completes.
type Snapshot struct {
	AccessToken     string   `json:"access_token,omitempty"`
	RefreshToken    string   `json:"refresh_token,omitempty"`
	User            *Profile `json:"user,omitempty"`
	IsAuthenticated bool     `json:"is_authenticated"`
}

// Snapshot projects s.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		User:            s.User.Clone(),
		IsAuthenticated: s.IsAuthenticated,
	}
}
