package transport

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/logging"
)

// redisAdapter subscribes to a request channel and publishes each
// response on a reply channel, for deployments that front watchmen with
// a message broker instead of a direct socket connection. Unlike the
// stream adapters, there is no per-connection concept: one subscription
// serves every publisher on the request channel.
type redisAdapter struct {
	client   *redis.Client
	sub      *redis.PubSub
	reqChan  string
	respChan string
	disp     *dispatch.Dispatcher
	log      *logging.Logger
}

// RedisConfig carries the connection parameters from the daemon config's
// redis.* section.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	RequestChan  string
	ResponseChan string
}

// NewRedis opens a connection to cfg.Addr and subscribes to
// cfg.RequestChan. Responses are published on cfg.ResponseChan.
func NewRedis(cfg RedisConfig, disp *dispatch.Dispatcher, log *logging.Logger) (Adapter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	sub := client.Subscribe(context.Background(), cfg.RequestChan)
	return &redisAdapter{
		client:   client,
		sub:      sub,
		reqChan:  cfg.RequestChan,
		respChan: cfg.ResponseChan,
		disp:     disp,
		log:      log,
	}, nil
}

func (r *redisAdapter) Serve(ctx context.Context) error {
	ch := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			resp := r.disp.HandleRaw([]byte(msg.Payload))
			if err := r.client.Publish(ctx, r.respChan, resp).Err(); err != nil {
				r.log.Warnf("redis: failed to publish response: %v", err)
			}
		}
	}
}

func (r *redisAdapter) Close() error {
	r.sub.Close()
	return r.client.Close()
}
