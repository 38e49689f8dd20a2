package directory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fusione/authcore"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces every key written by Redis.
const DefaultRedisPrefix = "auth:user:"

// Save claims the email index and writes the user hash in one step so two
// registrations for the same email cannot both succeed.
//
// KEYS[1] user hash, KEYS[2] email index
// ARGV[1] id, ARGV[2] email, ARGV[3] email index prefix, ARGV[4..] fields
const saveUserScript = `
local owner = redis.call("GET", KEYS[2])
if owner and owner ~= ARGV[1] then
  return 0
end
local prev = redis.call("HGET", KEYS[1], "email")
if prev and prev ~= ARGV[2] then
  redis.call("DEL", ARGV[3] .. prev)
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 4))
return 1
`

const updateHashScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "password_hash", ARGV[1], "updated_at", ARGV[2])
return 1
`

var (
	saveUserLua   = redis.NewScript(saveUserScript)
	updateHashLua = redis.NewScript(updateHashScript)
)

// Redis stores each user as a hash at <prefix><id> with an email index at
// <prefix>email:<email>.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis returns a Redis directory. An empty prefix means
// DefaultRedisPrefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) userKey(id string) string {
	return r.prefix + id
}

func (r *Redis) emailPrefix() string {
	return r.prefix + "email:"
}

func (r *Redis) emailKey(email string) string {
	return r.emailPrefix() + email
}

func (r *Redis) FindByEmail(ctx context.Context, email string) (*authcore.UserRecord, error) {
	id, err := r.client.Get(ctx, r.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "lookup email index").
			Wrap(err)
	}
	return r.FindByID(ctx, id)
}

func (r *Redis) FindByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "load user").
			With("id", id).
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	rec, err := decodeUser(fields)
	if err != nil {
		return nil, oops.Code("DIRECTORY_CORRUPT").
			With("id", id).
			Wrap(err)
	}
	return rec, nil
}

func (r *Redis) Save(ctx context.Context, user authcore.UserRecord) error {
	args := []any{user.ID, user.Email, r.emailPrefix()}
	args = append(args, encodeUser(user)...)

	ok, err := saveUserLua.Run(ctx, r.client,
		[]string{r.userKey(user.ID), r.emailKey(user.Email)},
		args...).Int()
	if err != nil {
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "save user").
			With("id", user.ID).
			Wrap(err)
	}
	if ok == 0 {
		return oops.Code("USER_DUPLICATE").With("email", user.Email).Wrap(authcore.ErrDuplicateUser)
	}
	return nil
}

func (r *Redis) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	ok, err := updateHashLua.Run(ctx, r.client,
		[]string{r.userKey(id)},
		hash, r.now().UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if ok == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	return nil
}

// Delete removes the user hash and its email index.
func (r *Redis) Delete(ctx context.Context, id string) error {
	rec, err := r.FindByID(ctx, id)
	if errors.Is(err, authcore.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.userKey(id))
	pipe.Del(ctx, r.emailKey(rec.Email))
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	return nil
}

func encodeUser(u authcore.UserRecord) []any {
	return []any{
		"id", u.ID,
		"email", u.Email,
		"name", u.Name,
		"role", u.Role,
		"password_hash", u.PasswordHash,
		"active", strconv.FormatBool(u.Active),
		"email_verified", strconv.FormatBool(u.EmailVerified),
		"created_at", u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at", u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeUser(f map[string]string) (*authcore.UserRecord, error) {
	rec := &authcore.UserRecord{
		ID:           f["id"],
		Email:        f["email"],
		Name:         f["name"],
		Role:         f["role"],
		PasswordHash: f["password_hash"],
	}
	if rec.ID == "" || rec.Email == "" {
		return nil, errors.New("user hash missing id or email")
	}

	var err error
	if rec.Active, err = strconv.ParseBool(f["active"]); err != nil {
		return nil, err
	}
	if v := f["email_verified"]; v != "" {
		if rec.EmailVerified, err = strconv.ParseBool(v); err != nil {
			return nil, err
		}
	}
	if rec.CreatedAt, err = parseTime(f["created_at"]); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(f["updated_at"]); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
