package auth

import (
	"fmt"
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using numbered environment
// variable pairs (LINKEDIN_EMAIL_1/LINKEDIN_PASSWORD_1, _2, ...). Discovery
// stops at the first missing index, so pools must be numbered without gaps.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// LoadEnvironmentSequence reads numbered credential pairs from the
// environment in index order. A pair is only included when both the email
// and password are set; the first index with either missing ends the scan.
func LoadEnvironmentSequence() []Credential {
	var creds []Credential
	for i := 1; ; i++ {
		email := os.Getenv(fmt.Sprintf("LINKEDIN_EMAIL_%d", i))
		password := os.Getenv(fmt.Sprintf("LINKEDIN_PASSWORD_%d", i))
		if email == "" || password == "" {
			break
		}
		creds = append(creds, Credential{
			Email:        email,
			Password:     password,
			LastModified: time.Now(),
		})
	}
	return creds
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the credential for a specific email from the environment
func (e *EnvironmentStore) Retrieve(email string) (*Credential, error) {
	for _, cred := range LoadEnvironmentSequence() {
		if cred.Email == email {
			c := cred
			return &c, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns all credentials configured in the environment
func (e *EnvironmentStore) List() ([]*Credential, error) {
	seq := LoadEnvironmentSequence()
	result := make([]*Credential, 0, len(seq))
	for i := range seq {
		result = append(result, &seq[i])
	}
	return result, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential exists for the email
func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}
