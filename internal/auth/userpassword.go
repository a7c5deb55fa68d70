package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"sync"

	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

// UserPasswordID keys userpassword attachments in handshake properties.
const UserPasswordID = "usrpwd"

const nonceSize = 8

// UserPasswordAuthenticator authenticates peers with a username and an
// HMAC over a server nonce. The server side holds a mutable lookup of
// credentials; AddUser and RemoveUser take effect for subsequent
// handshakes. The client side holds a single credential pair.
type UserPasswordAuthenticator struct {
	mu     sync.RWMutex
	lookup map[string]string

	user     string
	password string
}

// NewUserPasswordAuthenticator builds an authenticator. lookup may be nil
// on a pure client; credential user may be empty on a pure router.
func NewUserPasswordAuthenticator(lookup map[string]string, user, password string) *UserPasswordAuthenticator {
	l := make(map[string]string, len(lookup))
	for u, p := range lookup {
		l[u] = p
	}
	return &UserPasswordAuthenticator{lookup: l, user: user, password: password}
}

// ID implements Authenticator.
func (a *UserPasswordAuthenticator) ID() string { return UserPasswordID }

// AddUser inserts or replaces a credential in the server lookup.
func (a *UserPasswordAuthenticator) AddUser(user, password string) {
	a.mu.Lock()
	a.lookup[user] = password
	a.mu.Unlock()
}

// RemoveUser deletes a credential from the server lookup.
func (a *UserPasswordAuthenticator) RemoveUser(user string) {
	a.mu.Lock()
	delete(a.lookup, user)
	a.mu.Unlock()
}

func (a *UserPasswordAuthenticator) passwordOf(user string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.lookup[user]
	return p, ok
}

// StartOpen implements Authenticator.
func (a *UserPasswordAuthenticator) StartOpen() OpenSession {
	return &usrPwdOpen{auth: a}
}

// StartAccept implements Authenticator.
func (a *UserPasswordAuthenticator) StartAccept() AcceptSession {
	return &usrPwdAccept{auth: a}
}

type usrPwdOpen struct {
	auth *UserPasswordAuthenticator
}

func (s *usrPwdOpen) InitAttachment() ([]byte, error) { return nil, nil }

func (s *usrPwdOpen) Respond(challenge []byte, present bool) ([]byte, *Attributes, error) {
	if !present {
		return nil, nil, nil
	}
	if len(challenge) != nonceSize {
		return nil, nil, zerror.Authentication(UserPasswordID, "malformed challenge")
	}
	mac := hmac.New(sha256.New, []byte(s.auth.password))
	mac.Write(challenge)

	buf := make([]byte, 4+len(s.auth.user)+4+sha256.Size)
	w := proto.NewWriteBuffer(buf)
	if err := w.WriteString(s.auth.user); err != nil {
		return nil, nil, err
	}
	if err := w.WriteBytes(mac.Sum(nil)); err != nil {
		return nil, nil, err
	}
	return w.Bytes(), nil, nil
}

type usrPwdAccept struct {
	auth  *UserPasswordAuthenticator
	nonce []byte
}

func (s *usrPwdAccept) Challenge(initAttachment []byte, present bool) ([]byte, error) {
	s.nonce = make([]byte, nonceSize)
	if _, err := rand.Read(s.nonce); err != nil {
		return nil, zerror.Wrap(zerror.KindOther, "unable to generate nonce", err)
	}
	return s.nonce, nil
}

func (s *usrPwdAccept) Verify(response []byte, present bool) (*Attributes, error) {
	if !present {
		return nil, zerror.Authentication(UserPasswordID, "no credentials presented")
	}
	r := proto.NewReadBuffer(response)
	user, err := r.ReadString()
	if err != nil {
		return nil, zerror.Authentication(UserPasswordID, "malformed response")
	}
	presented, err := r.ReadBytes()
	if err != nil {
		return nil, zerror.Authentication(UserPasswordID, "malformed response")
	}
	password, ok := s.auth.passwordOf(user)
	if !ok {
		return nil, zerror.Authentication(UserPasswordID, "unknown user "+user)
	}
	mac := hmac.New(sha256.New, []byte(password))
	mac.Write(s.nonce)
	if !hmac.Equal(mac.Sum(nil), presented) {
		return nil, zerror.Authentication(UserPasswordID, "invalid credentials for user "+user)
	}
	return &Attributes{}, nil
}
