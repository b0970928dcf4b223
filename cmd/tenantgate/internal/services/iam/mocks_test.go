package iam

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/config"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

const (
	testSecret = "test-signing-secret"
	testHeader = "X-Impersonate-User-Id"

	tenantA = "tenant-a"
	tenantB = "tenant-b"

	idAdmin      = "01920000-0000-7000-8000-000000000001"
	idAdmin2     = "01920000-0000-7000-8000-000000000002"
	idSupport    = "01920000-0000-7000-8000-000000000003"
	idMemberA    = "01920000-0000-7000-8000-000000000004"
	idMemberB    = "01920000-0000-7000-8000-000000000005"
	idSuspended  = "01920000-0000-7000-8000-000000000006"
	idDeleted    = "01920000-0000-7000-8000-000000000007"
	idOwnerA     = "01920000-0000-7000-8000-000000000008"
	idNoRole     = "01920000-0000-7000-8000-000000000009"
	idMissing    = "01920000-0000-7000-8000-0000000000ff"
	idFakeAdmin  = "01920000-0000-7000-8000-00000000000a"
	subjectAdmin = "sub-admin"
)

var (
	roleAdmin   = &models.Role{ID: "role-sa", Name: auth.RoleSystemAdministrator, IsSystemRole: true}
	roleSupport = &models.Role{ID: "role-cs", Name: auth.RoleCustomerSuccess, IsSystemRole: true}
	roleMember  = &models.Role{ID: "role-member", Name: "Member"}
	// A tenant-defined role that borrows a system role's name.
	roleImpostor = &models.Role{ID: "role-impostor", Name: auth.RoleSystemAdministrator}

	testUserManagement = []string{"Users:view", "Users:create", "Users:update", "Users:delete", "Users:invite"}
)

func strPtr(s string) *string { return &s }

func newIdentity(id, subject, tenant string, role *models.Role) *models.Identity {
	identity := &models.Identity{
		ID:                id,
		ExternalSubjectID: subject,
		Email:             subject + "@example.com",
		Status:            models.StatusActive,
		Role:              role,
	}
	if tenant != "" {
		identity.TenantID = strPtr(tenant)
	}
	if role != nil {
		identity.RoleID = strPtr(role.ID)
	}
	return identity
}

// fixtureIdentities returns a fresh directory for each test.
func fixtureIdentities() *mockIdentityRepository {
	deletedAt := time.Now().Add(-time.Hour)

	suspended := newIdentity(idSuspended, "sub-suspended", tenantA, roleMember)
	suspended.Status = models.StatusSuspended
	deleted := newIdentity(idDeleted, "sub-deleted", tenantA, roleMember)
	deleted.DeletedAt = &deletedAt

	return newMockIdentityRepository(
		newIdentity(idAdmin, subjectAdmin, "", roleAdmin),
		newIdentity(idAdmin2, "sub-admin-2", tenantB, roleAdmin),
		newIdentity(idSupport, "sub-support", tenantA, roleSupport),
		newIdentity(idMemberA, "sub-member-a", tenantA, roleMember),
		newIdentity(idMemberB, "sub-member-b", tenantB, roleMember),
		newIdentity(idOwnerA, "sub-owner-a", tenantA, nil),
		newIdentity(idNoRole, "sub-no-role", tenantB, nil),
		newIdentity(idFakeAdmin, "sub-fake-admin", tenantA, roleImpostor),
		suspended,
		deleted,
	)
}

func fixtureRoles() *mockRoleRepository {
	return &mockRoleRepository{
		roles: map[string]*models.Role{
			roleAdmin.ID: roleAdmin, roleSupport.ID: roleSupport,
			roleMember.ID: roleMember, roleImpostor.ID: roleImpostor,
		},
		permissions: map[string][]string{
			roleMember.ID: {"Documents:viewArticles", "Taxonomies:view", "Subscriptions:view"},
		},
		catalog: []string{
			"Documents:viewArticles", "Documents:create", "Taxonomies:view",
			"Subscriptions:view", "Subscriptions:manage", "Users:view", "Users:create",
		},
	}
}

func fixtureTenants() *mockTenantRepository {
	return &mockTenantRepository{
		tenants: map[string]*models.Tenant{
			tenantA: {ID: tenantA, Name: "Tenant A", OwnerIdentityID: strPtr(idOwnerA)},
			tenantB: {ID: tenantB, Name: "Tenant B"},
		},
		assignments: map[string][]string{
			idSupport: {tenantB},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SigningSecret:       testSecret,
			ClockSkew:           5 * time.Second,
			ImpersonationHeader: testHeader,
			IdentifierFormat:    "uuid",
		},
		Authz: config.AuthzConfig{
			UserManagementPermissions: testUserManagement,
			DocumentsPrefix:           "Documents:",
		},
	}
}

func mintSessionToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// mockIdentityRepository is an in-memory UserDirectory.
type mockIdentityRepository struct {
	mu         sync.Mutex
	byID       map[string]*models.Identity
	getErr     error
	createErr  error
	raceWinner *models.Identity // inserted by Create, which then reports a conflict
	created    []*models.Identity
}

func newMockIdentityRepository(identities ...*models.Identity) *mockIdentityRepository {
	m := &mockIdentityRepository{byID: map[string]*models.Identity{}}
	for _, i := range identities {
		m.byID[i.ID] = i
	}
	return m
}

func (m *mockIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.raceWinner != nil {
		m.byID[m.raceWinner.ID] = m.raceWinner
		return repository.ErrConflict
	}
	if identity.ID == "" {
		identity.ID = fmt.Sprintf("01920000-0000-7000-8000-%012d", 100+len(m.created))
	}
	m.byID[identity.ID] = identity
	m.created = append(m.created, identity)
	return nil
}

func (m *mockIdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if identity, ok := m.byID[id]; ok {
		return identity, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockIdentityRepository) GetByExternalSubjectID(ctx context.Context, subject string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, identity := range m.byID {
		if identity.ExternalSubjectID == subject {
			return identity, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if identity.Email == email {
			return identity, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockIdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[identity.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[identity.ID] = identity
	return nil
}

// mockRoleRepository is an in-memory RoleDirectory.
type mockRoleRepository struct {
	roles       map[string]*models.Role
	permissions map[string][]string
	catalog     []string
	permErr     error
}

func (m *mockRoleRepository) Create(ctx context.Context, role *models.Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *mockRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	if role, ok := m.roles[id]; ok {
		return role, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	out := make([]models.Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (m *mockRoleRepository) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	if m.permErr != nil {
		return nil, m.permErr
	}
	return m.permissions[roleID], nil
}

func (m *mockRoleRepository) CreatePermission(ctx context.Context, permission *models.Permission) error {
	m.catalog = append(m.catalog, permission.Name)
	return nil
}

func (m *mockRoleRepository) ListPermissionNames(ctx context.Context) ([]string, error) {
	return m.catalog, nil
}

func (m *mockRoleRepository) GrantPermission(ctx context.Context, roleID, permissionName string) error {
	m.permissions[roleID] = append(m.permissions[roleID], permissionName)
	return nil
}

// mockTenantRepository is an in-memory tenant directory.
type mockTenantRepository struct {
	tenants     map[string]*models.Tenant
	assignments map[string][]string // identity id -> tenant ids
	getErr      error
}

func (m *mockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	m.tenants[tenant.ID] = tenant
	return nil
}

func (m *mockTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if tenant, ok := m.tenants[id]; ok {
		return tenant, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockTenantRepository) Assign(ctx context.Context, identityID, tenantID string) error {
	m.assignments[identityID] = append(m.assignments[identityID], tenantID)
	return nil
}

func (m *mockTenantRepository) IsAssigned(ctx context.Context, identityID, tenantID string) (bool, error) {
	for _, id := range m.assignments[identityID] {
		if id == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTenantRepository) ListAssignedTenantIDs(ctx context.Context, identityID string) ([]string, error) {
	return append([]string(nil), m.assignments[identityID]...), nil
}

// mockClaimsStore is an in-memory ClaimsStore.
type mockClaimsStore struct {
	mu         sync.Mutex
	claims     map[string]*models.IdentityClaims
	replaceErr error
	replaces   int
}

func newMockClaimsStore() *mockClaimsStore {
	return &mockClaimsStore{claims: map[string]*models.IdentityClaims{}}
}

func (m *mockClaimsStore) Get(ctx context.Context, identityID string) (*models.IdentityClaims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[identityID]; ok {
		copied := *c
		return &copied, nil
	}
	return models.EmptyClaims(identityID), nil
}

func (m *mockClaimsStore) Replace(ctx context.Context, claims *models.IdentityClaims) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	copied := *claims
	m.claims[claims.IdentityID] = &copied
	m.replaces++
	return nil
}

// recordingPublisher captures audit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeVerifier returns a fixed result.
type fakeVerifier struct {
	token *VerifiedToken
	err   error
	calls int
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*VerifiedToken, error) {
	f.calls++
	return f.token, f.err
}
