// Package seed loads groups, permissions, users and their bindings from a
// YAML file into the store. Applying the same file twice changes nothing.
//
//	permissions: [users:read, users:write]
//	groups:
//	  - name: ROLE_AUTH_ADMIN
//	    permissions: [users:read, users:write]
//	users:
//	  - username: admin
//	    password: change-me-now
//	    groups: [ROLE_AUTH_ADMIN]
package seed

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/upb/authd/repositories"
	"github.com/upb/authd/services"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the decoded seed document
type File struct {
	Permissions []string `yaml:"permissions" validate:"dive,rbacname,max=128"`
	Groups      []Group  `yaml:"groups" validate:"dive"`
	Users       []User   `yaml:"users" validate:"dive"`
}

// Group declares a group and the permissions it grants
type Group struct {
	Name        string   `yaml:"name" validate:"required,rbacname,max=128"`
	Permissions []string `yaml:"permissions" validate:"dive,rbacname,max=128"`
}

// User declares a user and its group memberships. The password is only used
// when the user does not exist yet.
type User struct {
	Username string   `yaml:"username" validate:"required,username,max=64"`
	Password string   `yaml:"password" validate:"required,max=256"`
	Groups   []string `yaml:"groups" validate:"dive,rbacname,max=128"`
}

// Summary counts what Apply created
type Summary struct {
	Permissions int
	Groups      int
	Users       int
	Bindings    int
}

// PasswordHasher produces stored password hashes
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Load decodes and checks a seed document
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// validate applies the same name rules as the HTTP API, so every seeded
// user can sign in and every seeded name could have been created over HTTP.
func (f *File) validate() error {
	err := utils.ValidateStruct(f)
	if err == nil {
		return nil
	}
	fields := utils.GetValidationFields(err)
	if len(fields) == 0 {
		return fmt.Errorf("invalid seed file: %w", err)
	}
	msgs := make([]string, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		msgs = append(msgs, fields[k])
	}
	return fmt.Errorf("invalid seed file: %s: %w", strings.Join(msgs, "; "), err)
}

// Seeder applies seed files
type Seeder struct {
	repos  *repositories.Repositories
	txMgr  repositories.TransactionManager
	hasher PasswordHasher
	logger *zap.Logger
}

// NewSeeder creates a Seeder
func NewSeeder(repos *repositories.Repositories, txMgr repositories.TransactionManager, hasher PasswordHasher, logger *zap.Logger) *Seeder {
	return &Seeder{
		repos:  repos,
		txMgr:  txMgr,
		hasher: hasher,
		logger: logger,
	}
}

// Apply writes f in a single transaction. Existing entities are reused and
// bindings are upserted, so nothing is duplicated.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Summary, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*Summary, error) {
		run := &seedRun{Seeder: s, summary: &Summary{}, groups: map[string]int64{}, perms: map[string]int64{}}

		for _, name := range f.Permissions {
			if _, err := run.permission(ctx, name); err != nil {
				return nil, err
			}
		}
		for _, g := range f.Groups {
			groupID, err := run.group(ctx, g.Name)
			if err != nil {
				return nil, err
			}
			for _, p := range g.Permissions {
				permID, err := run.permission(ctx, p)
				if err != nil {
					return nil, err
				}
				if _, err := s.repos.GroupPermissions.Bind(ctx, groupID, permID); err != nil {
					return nil, fmt.Errorf("bind %s to %s: %w", p, g.Name, err)
				}
				run.summary.Bindings++
			}
		}
		for _, u := range f.Users {
			userID, err := run.user(ctx, u)
			if err != nil {
				return nil, err
			}
			for _, g := range u.Groups {
				groupID, err := run.group(ctx, g)
				if err != nil {
					return nil, err
				}
				if _, err := s.repos.GroupMembers.Bind(ctx, groupID, userID); err != nil {
					return nil, fmt.Errorf("add %s to %s: %w", u.Username, g, err)
				}
				run.summary.Bindings++
			}
		}

		s.logger.Info("seed applied",
			zap.Int("permissions_created", run.summary.Permissions),
			zap.Int("groups_created", run.summary.Groups),
			zap.Int("users_created", run.summary.Users),
			zap.Int("bindings", run.summary.Bindings))
		return run.summary, nil
	})
}

// seedRun caches ids resolved during one Apply
type seedRun struct {
	*Seeder
	summary *Summary
	groups  map[string]int64
	perms   map[string]int64
}

func (r *seedRun) permission(ctx context.Context, name string) (int64, error) {
	if id, ok := r.perms[name]; ok {
		return id, nil
	}
	p, err := r.repos.Permissions.GetByName(ctx, name)
	if repositories.IsNotFound(err) {
		p, err = r.repos.Permissions.Create(ctx, name)
		if err == nil {
			r.summary.Permissions++
		}
	}
	if err != nil {
		return 0, fmt.Errorf("permission %s: %w", name, err)
	}
	r.perms[name] = p.ID
	return p.ID, nil
}

func (r *seedRun) group(ctx context.Context, name string) (int64, error) {
	if id, ok := r.groups[name]; ok {
		return id, nil
	}
	g, err := r.repos.Groups.GetByName(ctx, name)
	if repositories.IsNotFound(err) {
		g, err = r.repos.Groups.Create(ctx, name)
		if err == nil {
			r.summary.Groups++
		}
	}
	if err != nil {
		return 0, fmt.Errorf("group %s: %w", name, err)
	}
	r.groups[name] = g.ID
	return g.ID, nil
}

func (r *seedRun) user(ctx context.Context, u User) (int64, error) {
	existing, err := r.repos.Users.GetByUsername(ctx, u.Username)
	if err == nil {
		return existing.ID, nil
	}
	if !repositories.IsNotFound(err) {
		return 0, fmt.Errorf("user %s: %w", u.Username, err)
	}

	hash, err := r.hasher.Hash(u.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password for %s: %w", u.Username, err)
	}
	created, err := r.repos.Users.Create(ctx, u.Username, hash)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", u.Username, err)
	}
	r.summary.Users++
	return created.ID, nil
}
