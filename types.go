package softoken

import (
	"time"

	"github.com/MrEthical07/softoken/session"
)

// CreateRequest describes a new session.
type CreateRequest struct {
	// UID is the owning user id. Required.
	UID string
	// TTL is the session window. Zero selects Config.Session.DefaultTTL;
	// negative values are rejected.
	TTL time.Duration
	// Props are extra string fields stored with the session. The reserved
	// names "uid" and "exp" are ignored.
	Props map[string]string
}

// SessionInfo is the engine's view of a live session.
type SessionInfo struct {
	// Token is set on values returned by [Engine.GetByUserID] so callers can
	// revoke individual sessions. It is empty on values returned for a token
	// the caller already holds.
	Token     string
	UID       string
	ExpiresAt time.Time
	Props     map[string]string
}

// Prop returns the stored field k. The reserved fields "uid" and "exp" are
// available too, as strings.
func (s *SessionInfo) Prop(k string) string {
	if s == nil {
		return ""
	}
	return s.Props[k]
}

func sessionInfoFromRecord(rec *session.Record, withToken bool) *SessionInfo {
	if rec == nil {
		return nil
	}
	info := &SessionInfo{
		UID:       rec.UID,
		ExpiresAt: rec.Expiry(),
		Props:     rec.Props,
	}
	if withToken {
		info.Token = rec.Token
	}
	return info
}
