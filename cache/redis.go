package cache

import (
	"github.com/go-redis/redis/v8"
)

// RedisClient 缓存层使用的Redis客户端，由服务启动时注入
var RedisClient *redis.Client

// Init 注入Redis客户端
func Init(client *redis.Client) {
	RedisClient = client
}
