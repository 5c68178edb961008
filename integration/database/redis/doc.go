// Package redis connects to the Redis instance that carries session audit
// events to the login history consumer.
//
// Connect validates the redis:// or rediss:// URL, creates a go-redis client
// and retries PING with exponential backoff until the server answers or
// ConnectTimeout elapses. Healthcheck returns a check for readiness endpoints.
//
//	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
