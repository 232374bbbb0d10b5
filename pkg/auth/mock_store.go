package auth

import (
	"fmt"
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	creds map[string]*Credential
	mu       sync.RWMutex
	
	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

// Store saves credentials to the mock store
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	
	m.mu.Lock()
	defer m.mu.Unlock()
	
	if cred == nil || cred.Email == "" {
		return ErrInvalidCredentials
	}
	
	// Create a copy to avoid external modifications
	credCopy := *cred
	m.creds[cred.Email] = &credCopy
	
	return nil
}

// Retrieve gets credentials from the mock store
func (m *MockStore) Retrieve(email string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	
	m.mu.RLock()
	defer m.mu.RUnlock()
	
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	
	cred, exists := m.creds[email]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	
	// Return a copy to avoid external modifications
	credCopy := *cred
	return &credCopy, nil
}

// List returns all stored credentials from the mock store
func (m *MockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	
	m.mu.RLock()
	defer m.mu.RUnlock()
	
	var creds []*Credential
	for _, cred := range m.creds {
		// Create a copy for each credential
		credCopy := *cred
		creds = append(creds, &credCopy)
	}
	
	return creds, nil
}

// Delete removes credentials from the mock store
func (m *MockStore) Delete(email string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	
	m.mu.Lock()
	defer m.mu.Unlock()
	
	if email == "" {
		return ErrInvalidCredentials
	}
	
	if _, exists := m.creds[email]; !exists {
		return ErrCredentialsNotFound
	}
	
	delete(m.creds, email)
	return nil
}

// Exists checks if credentials exist in the mock store
func (m *MockStore) Exists(email string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	
	_, exists := m.creds[email]
	return exists
}

// Clear removes all credentials from the mock store (useful for test cleanup)
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	
	m.creds = make(map[string]*Credential)
}

// Count returns the number of credentials in the mock store (useful for testing)
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	
	return len(m.creds)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	manager := &Manager{
		stores: []CredentialStore{mockStore},
	}
	return manager, mockStore
}

// NewMockManagerWithStores creates a Manager with multiple stores for testing
func NewMockManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{
		stores: stores,
	}
}

// GetCredential returns a copy of the credential for inspection (useful for testing)
func (m *MockStore) GetCredential(email string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	
	cred, exists := m.creds[email]
	if !exists {
		return nil, fmt.Errorf("credential not found: %s", email)
	}
	
	credCopy := *cred
	return &credCopy, nil
}