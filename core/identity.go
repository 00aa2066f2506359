package core

import "fmt"

// Identity identifies the author of transactions (commit author).
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// DefaultIdentity is used when a collection is opened without an explicit
// identity.
var DefaultIdentity = Identity{Name: "tansu", Email: "tansu@localhost"}
