package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const holdRetryAttempts = 5

// RedisLedger stores balances, holds and the append-only entry list in
// Redis. Balance math runs under optimistic WATCH transactions so
// concurrent holds against one account serialize; finalization uses
// HSETNX so replays after a crash cannot double-charge.
type RedisLedger struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisLedger(rdb *redis.Client, log *zap.Logger) *RedisLedger {
	return &RedisLedger{rdb: rdb, log: log}
}

func balanceKey(accountID string) string { return "credits:" + accountID }
func entriesKey(accountID string) string { return "ledger:" + accountID }
func holdKey(holdID string) string       { return "hold:" + holdID }
func finalKey(holdID string) string      { return "hold:" + holdID + ":final" }
func grantKey(key string) string         { return "grant:" + key }

func (l *RedisLedger) Hold(ctx context.Context, accountID, jobID string, perLanguage int64, languages []string) (string, error) {
	if perLanguage <= 0 || len(languages) == 0 {
		return "", fmt.Errorf("invalid hold request")
	}

	hold := holdRecord{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		JobID:       jobID,
		PerLanguage: perLanguage,
		Languages:   append([]string(nil), languages...),
		CreatedAt:   time.Now(),
	}
	amount := hold.total()

	txn := func(tx *redis.Tx) error {
		balance, err := tx.Get(ctx, balanceKey(accountID)).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientCredits
		}

		holdData, err := json.Marshal(&hold)
		if err != nil {
			return err
		}
		entryData, err := json.Marshal(l.newEntry(accountID, jobID, hold.ID, EntryHold, "", amount, ""))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.DecrBy(ctx, balanceKey(accountID), amount)
			pipe.Set(ctx, holdKey(hold.ID), holdData, 0)
			pipe.RPush(ctx, entriesKey(accountID), entryData)
			return nil
		})
		return err
	}

	for i := 0; i < holdRetryAttempts; i++ {
		err := l.rdb.Watch(ctx, txn, balanceKey(accountID))
		if err == nil {
			l.log.Info("credits held",
				zap.String("accountId", accountID),
				zap.String("jobId", jobID),
				zap.String("holdId", hold.ID),
				zap.Int64("amount", amount))
			return hold.ID, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("hold transaction contention on account %s", accountID)
}

func (l *RedisLedger) Debit(ctx context.Context, holdID, language string) error {
	return l.finalize(ctx, holdID, language, EntryDebit)
}

func (l *RedisLedger) Release(ctx context.Context, holdID, language string) error {
	return l.finalize(ctx, holdID, language, EntryRelease)
}

// finalize marks (holdID, language) settled exactly once and appends the
// matching entry. A Release also returns the per-language amount to the
// account balance. The marker, the balance move and the entry commit in
// one transaction: a replay either sees none of them and runs, or all of
// them and gets ErrAlreadyFinalized.
func (l *RedisLedger) finalize(ctx context.Context, holdID, language string, kind EntryKind) error {
	hold, err := l.loadHold(ctx, holdID)
	if err != nil {
		return err
	}
	if !hold.covers(language) {
		return ErrUnknownLanguage
	}

	entryData, err := json.Marshal(l.newEntry(hold.AccountID, hold.JobID, holdID, kind, language, hold.PerLanguage, ""))
	if err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		done, err := tx.HExists(ctx, finalKey(holdID), language).Result()
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyFinalized
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, finalKey(holdID), language, string(kind))
			if kind == EntryRelease {
				pipe.IncrBy(ctx, balanceKey(hold.AccountID), hold.PerLanguage)
			}
			pipe.RPush(ctx, entriesKey(hold.AccountID), entryData)
			return nil
		})
		return err
	}

	for i := 0; i < holdRetryAttempts; i++ {
		err := l.rdb.Watch(ctx, txn, finalKey(holdID))
		if err == nil {
			l.log.Info("hold finalized",
				zap.String("holdId", holdID),
				zap.String("language", language),
				zap.String("kind", string(kind)))
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("finalize contention on hold %s", holdID)
}

func (l *RedisLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	balance, err := l.rdb.Get(ctx, balanceKey(accountID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return balance, err
}

func (l *RedisLedger) Grant(ctx context.Context, accountID string, amount int64, key, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive")
	}
	if key == "" {
		return fmt.Errorf("grant key is required")
	}
	entryData, err := json.Marshal(l.newEntry(accountID, "", "", EntryGrant, "", amount, reason))
	if err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, grantKey(key)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateGrant
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, grantKey(key), accountID, 0)
			pipe.IncrBy(ctx, balanceKey(accountID), amount)
			pipe.RPush(ctx, entriesKey(accountID), entryData)
			return nil
		})
		return err
	}

	for i := 0; i < holdRetryAttempts; i++ {
		err := l.rdb.Watch(ctx, txn, grantKey(key))
		if err == nil {
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("grant contention on key %s", key)
}

func (l *RedisLedger) Entries(ctx context.Context, accountID string) ([]Entry, error) {
	raw, err := l.rdb.LRange(ctx, entriesKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("corrupt ledger entry for %s: %w", accountID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *RedisLedger) loadHold(ctx context.Context, holdID string) (*holdRecord, error) {
	data, err := l.rdb.Get(ctx, holdKey(holdID)).Bytes()
	if err == redis.Nil {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	var hold holdRecord
	if err := json.Unmarshal(data, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (l *RedisLedger) newEntry(accountID, jobID, holdID string, kind EntryKind, language string, amount int64, reason string) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		AccountID: accountID,
		JobID:     jobID,
		HoldID:    holdID,
		Kind:      kind,
		Language:  language,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}
