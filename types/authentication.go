package types

// Authentication holds the credentials a client presents to a file-transfer
// server.
type Authentication struct {
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

func (t Authentication) GetUsername() string {
	return t.Username
}

func (t Authentication) GetPassword() string {
	return t.Password
}

func (t Authentication) IsEmpty() bool {
	return t.Username == "" && t.Password == ""
}
