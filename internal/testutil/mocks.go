package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dgellow/minidp/internal/tokenstore"
)

// MockShadow records mirror writes
type MockShadow struct {
	mock.Mock
}

func (m *MockShadow) Mirror(ctx context.Context, tokens *tokenstore.TokenSet) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

func (m *MockShadow) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockStore is a storage.Store whose behaviour is scripted per call
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSession is a provider-native session checker
type MockSession struct {
	mock.Mock
}

func (m *MockSession) HasSession(ctx context.Context, accessToken string) (bool, error) {
	args := m.Called(ctx, accessToken)
	return args.Bool(0), args.Error(1)
}

func (m *MockSession) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// FakeNavigator is an in-memory browser location
type FakeNavigator struct {
	mu        sync.Mutex
	location  string
	Navigated []string
	Replaced  []string
	NavErr    error
}

// NewFakeNavigator starts at location
func NewFakeNavigator(location string) *FakeNavigator {
	return &FakeNavigator{location: location}
}

func (n *FakeNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *FakeNavigator) SetLocation(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = location
}

func (n *FakeNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.NavErr != nil {
		return n.NavErr
	}
	n.Navigated = append(n.Navigated, target)
	return nil
}

func (n *FakeNavigator) Replace(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = target
	n.Replaced = append(n.Replaced, target)
}

// LastNavigation returns the most recent Navigate target, or ""
func (n *FakeNavigator) LastNavigation() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Navigated) == 0 {
		return ""
	}
	return n.Navigated[len(n.Navigated)-1]
}
