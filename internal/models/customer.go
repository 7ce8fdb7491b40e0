package models

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type Customer struct {
	ID        int64  `yaml:"id" json:"id"`
	Email     string `yaml:"email" json:"email"`
	FirstName string `yaml:"first_name" json:"first_name"`
	LastName  string `yaml:"last_name" json:"last_name"`
	Role      Role   `yaml:"role" json:"role"`
}

// Actor is the identity performing a lifecycle operation.
type Actor struct {
	CustomerID int64
	Email      string
	Role       Role
}

func (c *Customer) Actor() Actor {
	return Actor{CustomerID: c.ID, Email: c.Email, Role: c.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
