package auth

import (
	"testing"

	"github.com/fossabot/zenoh/internal/zerror"
)

// exchange runs one full userpassword handshake between a client and a
// router authenticator.
func exchange(router, client *UserPasswordAuthenticator) (*Attributes, error) {
	open := client.StartOpen()
	accept := router.StartAccept()

	att, err := open.InitAttachment()
	if err != nil {
		return nil, err
	}
	challenge, err := accept.Challenge(att, att != nil)
	if err != nil {
		return nil, err
	}
	resp, _, err := open.Respond(challenge, challenge != nil)
	if err != nil {
		return nil, err
	}
	return accept.Verify(resp, resp != nil)
}

func TestUserPasswordAccepts(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	client := NewUserPasswordAuthenticator(nil, "user01", "password01")
	if _, err := exchange(router, client); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
}

func TestUserPasswordRejectsUnknownUser(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	client := NewUserPasswordAuthenticator(nil, "invalid", "invalid")
	_, err := exchange(router, client)
	if err == nil {
		t.Fatal("unknown user accepted")
	}
	if !zerror.IsKind(err, zerror.KindAuthentication) {
		t.Errorf("expected an authentication error, got %v", err)
	}
}

func TestUserPasswordRejectsWrongPassword(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	client := NewUserPasswordAuthenticator(nil, "user01", "wrong")
	if _, err := exchange(router, client); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestUserPasswordRejectsSilentClient(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	accept := router.StartAccept()
	if _, err := accept.Challenge(nil, false); err != nil {
		t.Fatalf("challenge failed: %v", err)
	}
	if _, err := accept.Verify(nil, false); err == nil {
		t.Fatal("client without credentials accepted")
	}
}

func TestUserPasswordDynamicUpdate(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	client := NewUserPasswordAuthenticator(nil, "user02", "password02")

	if _, err := exchange(router, client); err == nil {
		t.Fatal("user accepted before AddUser")
	}
	router.AddUser("user02", "password02")
	if _, err := exchange(router, client); err != nil {
		t.Fatalf("user rejected after AddUser: %v", err)
	}
	router.RemoveUser("user02")
	if _, err := exchange(router, client); err == nil {
		t.Fatal("user accepted after RemoveUser")
	}
}

func TestUserPasswordFreshNonces(t *testing.T) {
	router := NewUserPasswordAuthenticator(map[string]string{"user01": "password01"}, "", "")
	client := NewUserPasswordAuthenticator(nil, "user01", "password01")

	// A response computed against one handshake's nonce must not satisfy
	// another handshake.
	open := client.StartOpen()
	acceptA := router.StartAccept()
	acceptB := router.StartAccept()
	chA, _ := acceptA.Challenge(nil, false)
	respA, _, err := open.Respond(chA, true)
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if _, err := acceptB.Challenge(nil, false); err != nil {
		t.Fatalf("challenge failed: %v", err)
	}
	if _, err := acceptB.Verify(respA, true); err == nil {
		t.Fatal("replayed response accepted across handshakes")
	}
}
