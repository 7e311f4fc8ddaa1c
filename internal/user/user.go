// Package user defines the opaque user identity shared by every notify-push
// component. A UserId is produced only by the credential verifier or the
// pre-auth cache, and is compared by plain string equality elsewhere.
package user

// ID is an opaque, comparable identity string.
type ID string

// String returns the raw identity value, satisfying fmt.Stringer so IDs
// log and format cleanly.
func (u ID) String() string {
	return string(u)
}

// Empty reports whether the ID carries no identity.
func (u ID) Empty() bool {
	return u == ""
}
