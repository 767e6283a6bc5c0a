// Package redis connects to the Redis server backing the tenant-scoped cache.
//
// Connect retries until the server answers PING; Healthcheck adapts the
// client to a readiness check. Config is populated from environment
// variables via github.com/caarlos0/env.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := tenantcache.NewRedisStore(client)
package redis
