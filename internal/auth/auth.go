// Package auth implements the pluggable challenge/response layer gating
// new unicast links.
//
// Each transport manager carries a set of authenticators. On an inbound
// connection every authenticator may challenge the opener and must accept
// its response; a single rejection aborts the pending link. On an
// outbound connection the authenticators answer the challenges received
// from the listener.
package auth

// Attributes are attached to an admitted transport by an accepting
// authenticator.
type Attributes struct {
	// SHM is set when both ends proved shared-memory connectivity.
	SHM bool
}

// Merge folds another attribute set into this one.
func (a *Attributes) Merge(o *Attributes) {
	if o != nil && o.SHM {
		a.SHM = true
	}
}

// Authenticator is one pluggable handshake participant. Sessions carry
// the per-pending-link state; the authenticator itself is shared across
// all handshakes of a manager.
type Authenticator interface {
	// ID names the authenticator in attachments and errors.
	ID() string
	// StartOpen begins the opener-side exchange for one pending link.
	StartOpen() OpenSession
	// StartAccept begins the listener-side exchange for one pending link.
	StartAccept() AcceptSession
}

// OpenSession is the opener side of one handshake.
type OpenSession interface {
	// InitAttachment produces the attachment carried by the Init message,
	// or nil.
	InitAttachment() ([]byte, error)
	// Respond answers the listener's challenge. present is false when the
	// listener issued no challenge for this authenticator.
	Respond(challenge []byte, present bool) ([]byte, *Attributes, error)
}

// AcceptSession is the listener side of one handshake.
type AcceptSession interface {
	// Challenge produces the challenge for the opener, or nil to
	// pass through. present is false when the opener attached nothing.
	Challenge(initAttachment []byte, present bool) ([]byte, error)
	// Verify checks the opener's response and either accepts with
	// attributes or rejects with an error.
	Verify(response []byte, present bool) (*Attributes, error)
}
