package sessions

import (
	"encoding/json"
	"strings"
)

// Record is the persisted proof of identity and store context attached to every
// authenticated request. MemberID, StoreID, StoreName and SessionID are
// mandatory; the profile fields may be empty.
type Record struct {
	MemberID  string `json:"member_id"`            // Backend member identifier
	StoreID   string `json:"store_id"`             // Store the member is checked in to
	StoreName string `json:"store_name"`           // Display name of the store
	SessionID string `json:"session_id"`           // Backend session token (PHPSESSID)

	// Optional profile fields
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	CardNum   string `json:"card_number,omitempty"` // Loyalty card number
}

var (
	mandatoryFields = []string{"member_id", "store_id", "store_name", "session_id"}
	optionalFields  = []string{"username", "first_name", "last_name", "email", "card_number"}
)

// Usable reports whether every mandatory field is non-empty.
func (r *Record) Usable() bool {
	return r != nil &&
		r.MemberID != "" &&
		r.StoreID != "" &&
		r.StoreName != "" &&
		r.SessionID != ""
}

// Validate is the single authority on whether a session can be used. It returns
// the record unchanged, or nil.
func Validate(r *Record) *Record {
	if !r.Usable() {
		return nil
	}
	return r
}

// ValidateJSON checks the encoded shape (an object whose known fields are
// strings) before applying Validate. Anything else yields nil.
func ValidateJSON(data []byte) *Record {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	for _, field := range mandatoryFields {
		if _, ok := raw[field].(string); !ok {
			return nil
		}
	}
	for _, field := range optionalFields {
		v, present := raw[field]
		if !present || v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			return nil
		}
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return Validate(&r)
}

// DisplayName prefers the member's full name, then the username.
func (r *Record) DisplayName() string {
	if r == nil {
		return ""
	}
	if full := strings.TrimSpace(r.FirstName + " " + r.LastName); full != "" {
		return full
	}
	if r.Username != "" {
		return r.Username
	}
	return r.MemberID
}
