package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
)

// MockTokenRepository is an in-memory TokenRepository for testing
type MockTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.PaymentToken
	nextID int

	// Error injection
	UpsertErr error
	GetErr    error
	ListErr   error
	DeleteErr error

	UpsertCalls int
	DeleteCalls int
}

// NewMockTokenRepository creates an empty in-memory token repository
func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: map[string]*domain.PaymentToken{}}
}

// Seed inserts a token directly, bypassing upsert semantics
func (m *MockTokenRepository) Seed(token *domain.PaymentToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
}

// Upsert stores the token, overwriting any existing token with the same
// (user, environment, vault customer id) identity
func (m *MockTokenRepository) Upsert(ctx context.Context, token *domain.PaymentToken) (*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	for id, existing := range m.tokens {
		if existing.UserID == token.UserID &&
			existing.Environment == token.Environment &&
			existing.VaultCustomerID == token.VaultCustomerID {
			stored := *token
			stored.ID = id
			m.tokens[id] = &stored
			return &stored, nil
		}
	}
	m.nextID++
	stored := *token
	stored.ID = fmt.Sprintf("token-%d", m.nextID)
	m.tokens[stored.ID] = &stored
	return &stored, nil
}

// GetByID fetches a token regardless of owner
func (m *MockTokenRepository) GetByID(ctx context.Context, id string) (*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	token, ok := m.tokens[id]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

// ListByUser returns the user's tokens in the given environment
func (m *MockTokenRepository) ListByUser(ctx context.Context, userID int64, env domain.Environment) ([]*domain.PaymentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.PaymentToken
	for _, token := range m.tokens {
		if token.UserID == userID && token.Environment == env {
			copied := *token
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Delete removes a token by id
func (m *MockTokenRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.tokens[id]; !ok {
		return domain.ErrTokenNotFound
	}
	delete(m.tokens, id)
	return nil
}

// MockRetryRepository is an in-memory RetryRepository for testing
type MockRetryRepository struct {
	mu     sync.Mutex
	counts map[string]int

	CountErr     error
	IncrementErr error

	IncrementCalls int
}

// NewMockRetryRepository creates an empty in-memory retry repository
func NewMockRetryRepository() *MockRetryRepository {
	return &MockRetryRepository{counts: map[string]int{}}
}

func retryKey(scope ports.RetryScope, subjectID, weekKey string) string {
	return string(scope) + "|" + subjectID + "|" + weekKey
}

// SetCount seeds a bucket directly
func (m *MockRetryRepository) SetCount(scope ports.RetryScope, subjectID, weekKey string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[retryKey(scope, subjectID, weekKey)] = count
}

// Count returns the bucket's current value, 0 when absent
func (m *MockRetryRepository) Count(ctx context.Context, scope ports.RetryScope, subjectID, weekKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return m.counts[retryKey(scope, subjectID, weekKey)], nil
}

// Increment adds one to the bucket and returns the new value
func (m *MockRetryRepository) Increment(ctx context.Context, scope ports.RetryScope, subjectID, weekKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementCalls++
	if m.IncrementErr != nil {
		return 0, m.IncrementErr
	}
	key := retryKey(scope, subjectID, weekKey)
	m.counts[key]++
	return m.counts[key], nil
}

// MockOrderRepository is an in-memory OrderRepository for testing
type MockOrderRepository struct {
	mu     sync.Mutex
	meta   map[string]map[string]string
	notes  map[string][]string
	failed map[string]bool

	SetMetaErr    error
	GetMetaErr    error
	AddNoteErr    error
	MarkFailedErr error
}

// NewMockOrderRepository creates an empty in-memory order repository
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		meta:   map[string]map[string]string{},
		notes:  map[string][]string{},
		failed: map[string]bool{},
	}
}

// SetMeta stores a key/value pair on the order
func (m *MockOrderRepository) SetMeta(ctx context.Context, orderID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetMetaErr != nil {
		return m.SetMetaErr
	}
	if m.meta[orderID] == nil {
		m.meta[orderID] = map[string]string{}
	}
	m.meta[orderID][key] = value
	return nil
}

// GetMeta reads a previously stored value, "" when absent
func (m *MockOrderRepository) GetMeta(ctx context.Context, orderID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMetaErr != nil {
		return "", m.GetMetaErr
	}
	return m.meta[orderID][key], nil
}

// AddNote appends a note to the order's history
func (m *MockOrderRepository) AddNote(ctx context.Context, orderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddNoteErr != nil {
		return m.AddNoteErr
	}
	m.notes[orderID] = append(m.notes[orderID], note)
	return nil
}

// MarkFailed flips the order to failed and reports whether it already was
func (m *MockOrderRepository) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkFailedErr != nil {
		return false, m.MarkFailedErr
	}
	already := m.failed[orderID]
	m.failed[orderID] = true
	return already, nil
}

// Meta returns a stored meta value for assertions
func (m *MockOrderRepository) Meta(orderID, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[orderID][key]
}

// Notes returns the order's recorded notes for assertions
func (m *MockOrderRepository) Notes(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[orderID]...)
}

// Failed reports whether the order was marked failed
func (m *MockOrderRepository) Failed(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[orderID]
}
