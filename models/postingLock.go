package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/ledger_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPostingBusy = errors.New("another posting for this company is in progress, try again")

const postingLockTTL = 30 * time.Second

func lockForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func postingLockName(companyId string) string {
	return fmt.Sprintf("posting:%s", companyId)
}

// acquireMySQLPostingLock serializes posting per company across instances using MySQL advisory locks.
// GET_LOCK is connection-scoped, so conn must be the connection the posting transaction runs on.
func acquireMySQLPostingLock(conn *gorm.DB, companyId string) error {
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", postingLockName(companyId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: company_id=%s", ErrPostingBusy, companyId)
	}
	return nil
}

func releaseMySQLPostingLock(conn *gorm.DB, companyId string) {
	var released int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", postingLockName(companyId)).Scan(&released).Error
}

// obtainRedisPostingLock is best effort: it keeps instances from queueing on GET_LOCK,
// but a redis outage never blocks posting.
func obtainRedisPostingLock(ctx context.Context, companyId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, postingLockName(companyId), postingLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrPostingBusy
		}
		config.LogError(config.GetLogger(), "PostingLock", "obtainRedisPostingLock", "redis lock unavailable", companyId, err)
		return nil, nil
	}
	return lock, nil
}

// WithPostingLock runs fn in one transaction while holding the company's posting lock.
// Every write that moves account balances goes through here.
func WithPostingLock(ctx context.Context, companyId string, fn func(tx *gorm.DB) error) error {
	lock, err := obtainRedisPostingLock(ctx, companyId)
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogError(config.GetLogger(), "PostingLock", "WithPostingLock", "release redis lock", companyId, err)
			}
		}()
	}

	db := config.GetDB()
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := acquireMySQLPostingLock(conn, companyId); err != nil {
			return err
		}
		defer releaseMySQLPostingLock(conn, companyId)
		return conn.Transaction(fn)
	})
}
