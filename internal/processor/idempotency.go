package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/chatdeck/webhook-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("payload already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig tunes the webhook delivery dedup guard.
type IdempotencyConfig struct {
	LockTTL            time.Duration
	ProcessedTTL       time.Duration
	MaxRetries         int
	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "retry:",
		LockKeyPrefix:      "lock:",
		ProcessedKeyPrefix: "processed:",
	}
}

// IdempotencyService prevents the same webhook delivery from being
// reconciled concurrently or counted again after it succeeded. The store
// writes themselves are idempotent, so this is an optimization, not a
// correctness requirement: a skipped guard costs a redundant but harmless
// replay.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	DeliveryID   string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, deliveryID string) (*ProcessingContext, error) {
	processedKey := s.config.ProcessedKeyPrefix + deliveryID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		// A failed check is not fatal: risking a duplicate beats blocking
		// the queue.
		logger.Warn("failed to check processed marker", "delivery_id", deliveryID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyProcessed
	}

	retryCount := 0
	if b, err := s.redis.Get(s.config.RetryKeyPrefix + deliveryID); err == nil && len(b) > 0 {
		fmt.Sscanf(string(b), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: delivery_id=%s, retries=%d", ErrMaxRetriesExceeded, deliveryID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + deliveryID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	return &ProcessingContext{
		DeliveryID:   deliveryID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	processedKey := s.config.ProcessedKeyPrefix + pc.DeliveryID
	if err := s.redis.Set(processedKey, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(pc)
	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	newRetryCount := pc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// Retry counter outlives the lock so attempts are tracked across
	// consumers.
	if err := s.redis.Set(s.config.RetryKeyPrefix+pc.DeliveryID, retryValue, s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "delivery_id", pc.DeliveryID, "error", err)
	}

	if err := s.redis.Del(s.config.LockKeyPrefix + pc.DeliveryID); err != nil {
		logger.Warn("failed to remove lock", "delivery_id", pc.DeliveryID, "error", err)
	}

	logger.Warn("payload processing failed, will retry",
		"delivery_id", pc.DeliveryID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.redis.Del(s.config.LockKeyPrefix + pc.DeliveryID); err != nil {
		logger.Warn("failed to release lock", "delivery_id", pc.DeliveryID, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	exists, err := s.redis.Exist(s.config.ProcessedKeyPrefix + deliveryID)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *IdempotencyService) cleanup(pc *ProcessingContext) {
	if err := s.redis.Del(s.config.LockKeyPrefix + pc.DeliveryID); err != nil {
		logger.Warn("failed to cleanup lock", "delivery_id", pc.DeliveryID, "error", err)
	}
	if err := s.redis.Del(s.config.RetryKeyPrefix + pc.DeliveryID); err != nil {
		logger.Warn("failed to cleanup retry counter", "delivery_id", pc.DeliveryID, "error", err)
	}
	pc.lockAcquired = false
}
