package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/world"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	Window    time.Duration // Окно счётчика
	Timeout   time.Duration // Таймаут одной операции, тик не должен ждать дольше
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "world:counter:",
		Window:    time.Minute,
		Timeout:   50 * time.Millisecond,
	}
}

// RedisCounter скользящий счётчик на sorted set, общий для нескольких
// серверов мира. Score - время события в наносекундах.
type RedisCounter struct {
	client *redis.Client
	config RedisConfig
	log    *logging.Logger
}

// NewRedisCounter подключается к Redis и проверяет соединение
func NewRedisCounter(config *RedisConfig) (*RedisCounter, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCounter{
		client: client,
		config: *config,
		log:    logging.GetComponentLogger("counter"),
	}, nil
}

// Add отмечает событие. При ошибке Redis событие теряется, а результат
// пустой: античит не должен ронять тик.
func (c *RedisCounter) Add(key, item string) world.CounterResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	now := time.Now()
	redisKey := c.config.KeyPrefix + key
	cutoff := now.Add(-c.config.Window).UnixNano()

	var entries *redis.ZSliceCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, redisKey, &redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d|%s", now.UnixNano(), item),
		})
		pipe.Expire(ctx, redisKey, c.config.Window)
		entries = pipe.ZRangeWithScores(ctx, redisKey, 0, -1)
		return nil
	})
	if err != nil {
		c.log.Warn("Счётчик %s недоступен: %v", key, err)
		return world.CounterResult{}
	}

	result := world.CounterResult{Date: now}
	for i, z := range entries.Val() {
		member, _ := z.Member.(string)
		if _, item, ok := strings.Cut(member, "|"); ok {
			member = item
		}
		result.Items = append(result.Items, member)
		if i == 0 {
			result.Date = time.Unix(0, int64(z.Score))
		}
	}
	result.Count = len(result.Items)
	return result
}

// Remove удаляет ключ
func (c *RedisCounter) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	if err := c.client.Del(ctx, c.config.KeyPrefix+key).Err(); err != nil {
		c.log.Warn("Не удалось сбросить счётчик %s: %v", key, err)
	}
}

// Close закрывает соединение
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
