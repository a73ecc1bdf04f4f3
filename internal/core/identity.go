package core

import "strings"

// Identity is the caller on whose behalf an operation runs.
// The zero value is the signed-out caller.
type Identity struct {
	UserID string
}

func NewIdentity(userID string) Identity {
	return Identity{UserID: strings.TrimSpace(userID)}
}

func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

// Require returns ErrUnauthorized for the signed-out caller.
func (id Identity) Require() error {
	if !id.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

// Ownership selects which owned rows a listing returns.
type Ownership struct {
	UserID string
	// IncludeShared adds the rows that have no owner.
	IncludeShared bool
}

// OwnedOrShared is the visibility rule for accounts and categories:
// the user's own rows plus the ownerless defaults.
func OwnedOrShared(userID string) Ownership {
	return Ownership{UserID: userID, IncludeShared: true}
}

// Visible reports whether a row owned by ownerID passes the rule.
func (o Ownership) Visible(ownerID string) bool {
	if ownerID == "" {
		return o.IncludeShared
	}
	return ownerID == o.UserID
}
