package session

import (
	"strconv"
	"time"
)

// Reserved record fields. Caller properties with these names are replaced.
const (
	FieldUID = "uid"
	FieldExp = "exp"
)

// Record is the server-side state of one token.
type Record struct {
	Token string
	UID   string
	// ExpiresAt is the absolute expiration instant in milliseconds since the epoch.
	ExpiresAt int64
	// Props holds every stored field, including uid and exp.
	Props map[string]string
}

// Expiry returns ExpiresAt as a time.Time.
func (r *Record) Expiry() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

func recordFromHash(token string, fields map[string]string) (*Record, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	exp, err := strconv.ParseInt(fields[FieldExp], 10, 64)
	if err != nil {
		return nil, false
	}
	return &Record{
		Token:     token,
		UID:       fields[FieldUID],
		ExpiresAt: exp,
		Props:     fields,
	}, true
}
