package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	balancesKey = "ledger:v1:balances"
	appliedKey  = "ledger:v1:applied"

	codeInsufficient = -1
	codeOverflow     = -2
	codeAlready      = 0
	codeApplied      = 1
)

// postScript claims the key and moves the balance in one server-side step.
// KEYS[1] balances hash, KEYS[2] applied-keys hash.
// ARGV[1] field, ARGV[2] idempotency key, ARGV[3] amount, ARGV[4] ceiling, ARGV[5] signed delta.
// The ceiling check compares against ceiling-amount so both operands stay below 2^53.
var postScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if redis.call('HEXISTS', KEYS[2], ARGV[2]) == 1 then
  return {0, current}
end
local amount = tonumber(ARGV[3])
if tonumber(ARGV[5]) < 0 then
  if current < amount then
    return {-1, current}
  end
elseif current > tonumber(ARGV[4]) - amount then
  return {-2, current}
end
local balance = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[5])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[5])
return {1, balance}
`)

// RedisLedger keeps balances in a Redis hash and mutates them with a Lua script, the
// store-level atomic increment primitive. Run Redis with AOF persistence when used in
// production. Applied keys never expire: a key stays claimed as long as its effect exists.
type RedisLedger struct {
	client  *redis.Client
	ceiling int64
}

// NewRedisLedger builds a Redis-backed ledger with the given balance ceiling.
func NewRedisLedger(client *redis.Client, ceiling int64) *RedisLedger {
	return &RedisLedger{client: client, ceiling: normalizeCeiling(ceiling)}
}

// Credit increases the balance by p.Amount unless p.Key was already applied.
func (l *RedisLedger) Credit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}
	return l.post(ctx, p, p.Amount)
}

// Debit decreases the balance by p.Amount when funds suffice.
func (l *RedisLedger) Debit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}
	return l.post(ctx, p, -p.Amount)
}

func (l *RedisLedger) post(ctx context.Context, p Posting, delta int64) (Outcome, error) {
	reply, err := postScript.Run(ctx, l.client,
		[]string{balancesKey, appliedKey},
		p.Account.field(), p.Key, p.Amount, l.ceiling, delta,
	).Int64Slice()
	if err != nil {
		return Outcome{}, fmt.Errorf("post %s: %w", p.Key, err)
	}
	if len(reply) != 2 {
		return Outcome{}, fmt.Errorf("post %s: unexpected script reply %v", p.Key, reply)
	}

	code, balance := reply[0], reply[1]
	switch code {
	case codeApplied:
		return Outcome{Status: StatusApplied, Balance: balance}, nil
	case codeAlready:
		return Outcome{Status: StatusAlreadyApplied, Balance: balance}, nil
	case codeInsufficient:
		return Outcome{Balance: balance}, ErrInsufficientFunds
	case codeOverflow:
		return Outcome{Balance: balance}, fmt.Errorf("credit %s: %w", p.Account, ErrBalanceOverflow)
	default:
		return Outcome{}, fmt.Errorf("post %s: unknown script code %d", p.Key, code)
	}
}

// Balance returns the stored balance, zero when the account has never been posted to.
func (l *RedisLedger) Balance(ctx context.Context, account Account) (int64, error) {
	balance, err := l.client.HGet(ctx, balancesKey, account.field()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return balance, err
}

// Balances returns every stored balance.
func (l *RedisLedger) Balances(ctx context.Context) (map[Account]int64, error) {
	raw, err := l.client.HGetAll(ctx, balancesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[Account]int64, len(raw))
	for field, value := range raw {
		account, err := parseField(field)
		if err != nil {
			return nil, err
		}
		balance, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("balance for %s: %w", account, err)
		}
		out[account] = balance
	}
	return out, nil
}
