package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Users    []userSchema    `toml:"users"`
	Contacts []contactSchema `toml:"contacts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported records schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type userSchema struct {
	UID          string `toml:"uid"`
	Email        string `toml:"email"`
	DisplayName  string `toml:"display_name,omitempty"`
	PasswordHash string `toml:"password_hash"`
	CreatedAt    string `toml:"created_at"`
}

type contactSchema struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Email     string `toml:"email"`
	Message   string `toml:"message"`
	UserID    string `toml:"user_id"`
	CreatedAt string `toml:"created_at"`
}
