package twin

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/taproom-client/sessions"
)

// Member is a loyalty account at the twin's store.
type Member struct {
	ID           string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Email        string
	CardNum      string
	Points       int
	LastLogin    time.Time
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func (m *Member) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) == nil
}

// session is the member block the login endpoint returns.
func (m *Member) session(storeID, storeName, token string) *sessions.Record {
	return &sessions.Record{
		MemberID:  m.ID,
		StoreID:   storeID,
		StoreName: storeName,
		SessionID: token,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		CardNum:   m.CardNum,
	}
}
