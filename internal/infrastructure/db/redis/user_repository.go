package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// Key layout:
//
//	auth:user:<id>           hash with the user record
//	auth:user:email:<email>  string holding the user id
//	auth:users               set of all user ids
const keyPrefix = "auth:"

// createScript claims the email key and writes the record in one step.
// KEYS: email key, user key, id set. ARGV: id, email, name, password hash, role, unix ts.
var createScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2],
	'id', ARGV[1], 'email', ARGV[2], 'name', ARGV[3],
	'password_hash', ARGV[4], 'role', ARGV[5], 'refresh_token_hash', '',
	'created_at', ARGV[6], 'updated_at', ARGV[6])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// setFieldScript writes one field of an existing record.
// KEYS: user key. ARGV: field, value, unix ts.
var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// swapScript compares and replaces refresh_token_hash.
// KEYS: user key. ARGV: expected, next, unix ts.
var swapScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local current = redis.call('HGET', KEYS[1], 'refresh_token_hash')
if current == false then
	current = ''
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'refresh_token_hash', ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// UserRepository stores users as Redis hashes. Every multi-key or
// read-then-write operation runs as a Lua script so it is atomic.
type UserRepository struct {
	client *redis.Client
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(client *redis.Client) *UserRepository {
	return &UserRepository{client: client}
}

type redisUser struct {
	ID               string `redis:"id"`
	Email            string `redis:"email"`
	Name             string `redis:"name"`
	PasswordHash     string `redis:"password_hash"`
	Role             string `redis:"role"`
	RefreshTokenHash string `redis:"refresh_token_hash"`
	CreatedAt        int64  `redis:"created_at"`
	UpdatedAt        int64  `redis:"updated_at"`
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	created := user.CreatedAt.UTC().Unix()
	ok, err := createScript.Run(ctx, r.client,
		[]string{r.emailKey(user.Email), r.userKey(user.ID), r.setKey()},
		user.ID, user.Email, user.Name, user.PasswordHash, string(user.Role), created,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if ok == 0 {
		return nil, domain.ErrUserExists
	}

	out := *user
	out.RefreshTokenHash = ""
	out.CreatedAt = time.Unix(created, 0).UTC()
	out.UpdatedAt = out.CreatedAt
	return &out, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := r.client.Get(ctx, r.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	res := r.client.HGetAll(ctx, r.userKey(id))
	fields, err := res.Result()
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrUserNotFound
	}

	var ru redisUser
	if err := res.Scan(&ru); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return ru.toDomain(), nil
}

func (r *UserRepository) UpdateRefreshHash(ctx context.Context, id, hash string) error {
	return r.setField(ctx, id, "refresh_token_hash", hash)
}

func (r *UserRepository) SwapRefreshHash(ctx context.Context, id, expected, next string) (bool, error) {
	ok, err := swapScript.Run(ctx, r.client, []string{r.userKey(id)},
		expected, next, time.Now().UTC().Unix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("swap refresh hash: %w", err)
	}
	return ok == 1, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.setField(ctx, id, "role", string(role))
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, r.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Ping backs the readiness probe.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *UserRepository) setField(ctx context.Context, id, field, value string) error {
	ok, err := setFieldScript.Run(ctx, r.client, []string{r.userKey(id)},
		field, value, time.Now().UTC().Unix(),
	).Int()
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	if ok == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) userKey(id string) string {
	return fmt.Sprintf("%suser:%s", keyPrefix, id)
}

func (r *UserRepository) emailKey(email string) string {
	return fmt.Sprintf("%suser:email:%s", keyPrefix, email)
}

func (r *UserRepository) setKey() string {
	return keyPrefix + "users"
}

func (ru redisUser) toDomain() *domain.User {
	return &domain.User{
		ID:               ru.ID,
		Email:            ru.Email,
		Name:             ru.Name,
		PasswordHash:     ru.PasswordHash,
		Role:             domain.Role(ru.Role),
		RefreshTokenHash: ru.RefreshTokenHash,
		CreatedAt:        time.Unix(ru.CreatedAt, 0).UTC(),
		UpdatedAt:        time.Unix(ru.UpdatedAt, 0).UTC(),
	}
}
