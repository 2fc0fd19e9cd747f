// Package redis provides a Redis-backed delivered-identity store.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config controls the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// DeliveredStore keeps per-user delivered identity sets in Redis sets.
type DeliveredStore struct {
	client *redis.Client
}

// NewDeliveredStore connects a client and verifies it with a ping.
func NewDeliveredStore(ctx context.Context, cfg Config) (*DeliveredStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &DeliveredStore{client: client}, nil
}

// Close releases the client.
func (s *DeliveredStore) Close() error {
	return s.client.Close()
}

func deliveredKey(userID string) string {
	return "jobsight:delivered:" + userID
}

// Delivered returns the identity set previously delivered to the user.
func (s *DeliveredStore) Delivered(ctx context.Context, userID string) (map[string]bool, error) {
	members, err := s.client.SMembers(ctx, deliveredKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load delivered set for %s: %w", userID, err)
	}
	out := make(map[string]bool, len(members))
	for _, id := range members {
		out[id] = true
	}
	return out, nil
}

// MarkDelivered records identities as delivered to the user.
func (s *DeliveredStore) MarkDelivered(ctx context.Context, userID string, identities []string) error {
	if len(identities) == 0 {
		return nil
	}
	members := make([]any, len(identities))
	for i, id := range identities {
		members[i] = id
	}
	if err := s.client.SAdd(ctx, deliveredKey(userID), members...).Err(); err != nil {
		return fmt.Errorf("mark delivered for %s: %w", userID, err)
	}
	return nil
}
