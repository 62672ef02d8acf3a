package domain

// UserEntityType tags user records in the keyed store's secondary index.
const UserEntityType = "USER"

// User is the public representation of a stored user.
type User struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	CreatedAt  string `json:"createdAt"`
	ModifiedAt string `json:"modifiedAt"`
}

// NewUser holds the fields accepted when creating a user.
type NewUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UserPatch holds the fields accepted by a partial update. Nil fields are left untouched.
type UserPatch struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// Apply copies the set fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
}
