package model

type IdentityKind string

const (
	IdentityKindAccount   IdentityKind = "account"
	IdentityKindTemp      IdentityKind = "temp"      // short-lived, pre-registration
	IdentityKindAnonymous IdentityKind = "anonymous" // session-only visitor
)

// Identity is the caller resolved once per request and threaded explicitly
// into every core call. Temp identities own payments and subscriptions the
// same way full accounts do.
type Identity struct {
	Kind      IdentityKind
	AccountID string // set for account and temp kinds
	SessionID string // set for anonymous kind
}

// OwnerID returns the id used for ownership checks, or "" for anonymous.
func (i Identity) OwnerID() string {
	switch i.Kind {
	case IdentityKindAccount, IdentityKindTemp:
		return i.AccountID
	}
	return ""
}

// CanOwn reports whether this identity may own payments and subscriptions.
func (i Identity) CanOwn() bool { return i.OwnerID() != "" }
