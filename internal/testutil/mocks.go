package testutil

import (
	"context"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/dashboard"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/mutation"
	"github.com/dimitrije/teamtasks-api/internal/oauth"
	"github.com/dimitrije/teamtasks-api/internal/sse"
	"github.com/dimitrije/teamtasks-api/internal/view"
	"github.com/stretchr/testify/mock"
)

// MockBoard mocks a single user's dashboard
type MockBoard struct {
	mock.Mock
}

func (m *MockBoard) View(ctx context.Context, search *string) (view.View, error) {
	args := m.Called(ctx, search)
	return args.Get(0).(view.View), args.Error(1)
}

func (m *MockBoard) SetSearch(ctx context.Context, q string) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockBoard) Users(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockBoard) CreateTeam(ctx context.Context, name string, memberIDs []string) (string, error) {
	args := m.Called(ctx, name, memberIDs)
	return args.String(0), args.Error(1)
}

func (m *MockBoard) CreateTask(ctx context.Context, in mutation.NewTask) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockBoard) ToggleAssignment(ctx context.Context, taskID, userID string) ([]string, error) {
	args := m.Called(ctx, taskID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBoard) ToggleStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(models.TaskStatus), args.Error(1)
}

func (m *MockBoard) RepairReferences(ctx context.Context, teamID string, userIDs []string) error {
	args := m.Called(ctx, teamID, userIDs)
	return args.Error(0)
}

var _ dashboard.Board = (*MockBoard)(nil)

// MockBoards mocks the per-user dashboard registry
type MockBoards struct {
	mock.Mock
}

func (m *MockBoards) Board(ctx context.Context, p auth.Principal) (dashboard.Board, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(dashboard.Board), args.Error(1)
}

func (m *MockBoards) SignOut(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockAccounts mocks oauth.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Register(ctx context.Context, info *oauth.UserInfo) (auth.Principal, error) {
	args := m.Called(ctx, info)
	return args.Get(0).(auth.Principal), args.Error(1)
}

// MockTokenService mocks auth.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) GenerateAccessToken(p auth.Principal) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) AccessExpiry() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockTokenService) Revoke(claims *auth.Claims) {
	m.Called(claims)
}

// MockOAuthProvider mocks an OAuth provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth.UserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.UserInfo), args.Error(1)
}

func (m *MockOAuthProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// MockSSEHub mocks the SSE hub
type MockSSEHub struct {
	mock.Mock
}

func (m *MockSSEHub) Register(client *sse.Client) {
	m.Called(client)
}

func (m *MockSSEHub) Unregister(client *sse.Client) {
	m.Called(client)
}
