package store

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/apperr"
	"github.com/tulia-commerce/convoapi/internal/domain"
)

// UserStore persists User, Role, TenantUser, and UserPermission rows and
// satisfies tenantctx.UserResolver.
type UserStore struct {
	DB *pgxpool.Pool
}

// NewUserStore creates a UserStore.
func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{DB: db}
}

// UserBySubject looks up a user by the JWT subject claim, which is stored
// as the user's id.
func (s *UserStore) UserBySubject(r *http.Request, subject string) (*domain.User, error) {
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidToken, "subject claim is not a user id")
	}

	var u domain.User
	err = s.DB.QueryRow(r.Context(), `
		SELECT id, email, password_hash, email_verified, is_platform_operator
		FROM app_user WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.IsPlatformOperator)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeInvalidToken, "unknown subject")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ResolveUserScopes computes effective scopes: union of the
// user's role scopes within the tenant, then per-user permission overrides
// with deny winning (domain.ResolveScopes).
func (s *UserStore) ResolveUserScopes(r *http.Request, tenantID, userID uuid.UUID) (domain.ScopeSet, error) {
	ctx := r.Context()

	var roleIDs []uuid.UUID
	err := s.DB.QueryRow(ctx, `
		SELECT role_ids FROM tenant_user
		WHERE tenant_id = $1 AND user_id = $2 AND invitation_status = 'accepted'
	`, tenantID, userID).Scan(&roleIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeTenantAccessDenied, "user is not a member of this tenant")
	}
	if err != nil {
		return nil, err
	}

	roleScopes := domain.NewScopeSet()
	if len(roleIDs) > 0 {
		rows, err := s.DB.Query(ctx, `SELECT scopes FROM role WHERE id = ANY($1) AND tenant_id = $2`, roleIDs, tenantID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var scopes []domain.Scope
			if err := rows.Scan(&scopes); err != nil {
				return nil, err
			}
			roleScopes = roleScopes.Union(domain.NewScopeSet(scopes...))
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	overrideRows, err := s.DB.Query(ctx, `
		SELECT tenant_id, user_id, permission_code, granted
		FROM user_permission WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer overrideRows.Close()

	var overrides []domain.UserPermission
	for overrideRows.Next() {
		var p domain.UserPermission
		if err := overrideRows.Scan(&p.TenantID, &p.UserID, &p.PermissionCode, &p.Granted); err != nil {
			return nil, err
		}
		overrides = append(overrides, p)
	}
	if err := overrideRows.Err(); err != nil {
		return nil, err
	}

	return domain.ResolveScopes(roleScopes, overrides), nil
}

// InviteMember adds a pending tenant_user membership edge for a user
// within a tenant.
func (s *UserStore) InviteMember(ctx context.Context, tenantID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO tenant_user (tenant_id, user_id, invitation_status, role_ids)
		VALUES ($1, $2, 'pending', $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role_ids = EXCLUDED.role_ids
	`, tenantID, userID, roleIDs)
	return err
}

// SetPermissionOverride records or updates a per-user allow/deny override,
// which always wins over role grants.
func (s *UserStore) SetPermissionOverride(ctx context.Context, tenantID, userID uuid.UUID, code domain.Scope, granted bool) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO user_permission (tenant_id, user_id, permission_code, granted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id, permission_code) DO UPDATE SET granted = EXCLUDED.granted
	`, tenantID, userID, code, granted)
	return err
}

// RolesForTenant lists the tenant's roles, used by the settings/users admin
// surface to populate an invite form.
func (s *UserStore) RolesForTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Role, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, tenant_id, name, scopes FROM role WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var r domain.Role
		var scopes []domain.Scope
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &scopes); err != nil {
			return nil, err
		}
		r.Scopes = domain.NewScopeSet(scopes...)
		roles = append(roles, r)
	}
	return roles, rows.Err()
}
