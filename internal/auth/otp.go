package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

const otpDigits = 6

// OTPStore keeps one-time login codes in Redis. Codes are stored as bcrypt
// hashes so a Redis dump never exposes a usable code.
type OTPStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxAttempts int
}

type otpRecord struct {
	Hash     string `json:"hash"`
	Attempts int    `json:"attempts"`
}

// NewOTPStore constructs the store.
func NewOTPStore(client *redis.Client, ttl time.Duration, maxAttempts int) *OTPStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPStore{client: client, ttl: ttl, maxAttempts: maxAttempts}
}

// Issue generates a fresh code for the email, replacing any outstanding one.
// The plain code is returned exactly once for delivery.
func (s *OTPStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(otpRecord{Hash: string(hash)})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(email), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks a submitted code. A wrong code consumes one attempt; the
// record is deleted on success or once the attempt budget is spent.
func (s *OTPStore) Verify(ctx context.Context, email, code string) error {
	key := s.key(email)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.AuthError("code expired or not requested")
		}
		return err
	}
	var rec otpRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}
	if rec.Attempts >= s.maxAttempts {
		_ = s.client.Del(ctx, key).Err()
		return shared.AuthError("too many attempts, request a new code")
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(code)) != nil {
		rec.Attempts++
		if rec.Attempts >= s.maxAttempts {
			_ = s.client.Del(ctx, key).Err()
			return shared.AuthError("too many attempts, request a new code")
		}
		if data, err := json.Marshal(rec); err == nil {
			ttl, ttlErr := s.client.TTL(ctx, key).Result()
			if ttlErr != nil || ttl <= 0 {
				ttl = s.ttl
			}
			_ = s.client.Set(ctx, key, data, ttl).Err()
		}
		return shared.AuthError("invalid code")
	}
	return s.client.Del(ctx, key).Err()
}

func (s *OTPStore) key(email string) string {
	return "otp:" + email
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
