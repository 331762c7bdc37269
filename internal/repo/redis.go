package repo

import (
	"context"
	"time"

	"triad-service/internal/config"
	"triad-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// OpenRedis connects and pings; tickets and listings are useless without it.
func OpenRedis(ctx context.Context, conf config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func InitRedis() {
	var err error
	RDB, err = OpenRedis(context.Background(), config.GlobalConfig.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis",
			zap.String("addr", config.GlobalConfig.Redis.Addr),
			zap.Error(err),
		)
	}
}
