package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/domain/auth"
	"kpitrack/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureRolePermissions(ctx, pool); err != nil {
		return err
	}

	if cfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return err
		}
	}

	return nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for role, perms := range auth.RolePermissions {
		for _, perm := range perms {
			_, err := pool.Exec(ctx, `
        INSERT INTO role_permissions (role, permission)
        VALUES ($1, $2)
        ON CONFLICT (role, permission) DO NOTHING
      `, role, perm)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}
	if password == "" {
		return errors.New("seed admin password required when SEED_ADMIN_EMAIL is set")
	}

	var existing string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	var userID string
	if err := pool.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, full_name, role)
    VALUES ($1, $2, 'Administrator', $3)
    RETURNING id
  `, email, hash, auth.RoleSuperAdmin).Scan(&userID); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, company, department)
    VALUES ($1, 'Admin', 'User', '', 'Administration')
  `, userID)
	return err
}
