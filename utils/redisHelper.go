package utils

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
)

var mutex sync.Mutex

func GetCacheLifespan() time.Duration {
	return time.Duration(config.IntFromEnv("CACHE_LIFESPAN", 1)) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

func RemoveRedis[T any](id int) error {
	return config.RemoveRedisKey(GetTypeName[T]() + ":" + fmt.Sprint(id))
}

// GetSequence returns the next sequence_no of model T for the company.
// The redis counter is seeded from max(sequence_no) whenever it is (re)created;
// without redis the database max is used directly.
func GetSequence[T any](ctx context.Context, companyId string) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()

	cacheKey := companyId + "-" + strings.ToLower(GetTypeName[T]()) + "_seq"
	db := config.GetDB()

	dbMax := func() (int64, error) {
		var dbSeq *int64
		if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
			Where("company_id = ?", companyId).
			Scan(&dbSeq).Error; err != nil {
			return 0, err
		}
		if dbSeq == nil {
			return 0, nil
		}
		return *dbSeq, nil
	}

	for {
		seqNo, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		if seqNo <= 1 {
			current, err := dbMax()
			if err != nil {
				return 0, err
			}
			seqNo = current + 1
			if err := config.SetRedisValue(cacheKey, fmt.Sprint(seqNo), 0); err != nil {
				return 0, err
			}
		}
		// redis may lag behind the table after a restore; skip numbers already taken
		if err := ValidateUnique[T](ctx, companyId, "sequence_no", seqNo, 0); err == nil {
			return seqNo, nil
		} else if _, dup := err.(*DuplicateError); !dup {
			return 0, err
		}
		if config.GetRedisDB() == nil {
			return 0, fmt.Errorf("sequence %d already taken for %s", seqNo, GetTypeName[T]())
		}
	}
}
