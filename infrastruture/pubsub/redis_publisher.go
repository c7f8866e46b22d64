package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix    = "swarm"
	defaultQueueSize = 1024
	defaultTimeout   = time.Second
	roomChannelFmt   = "%s:room:%s"
)

var (
	ErrNilClient = errors.New("redis client is required")
	ErrNilLogger = errors.New("logger is required")
)

type message struct {
	code string
	body []byte
}

// Options configures a RedisPublisher.
type Options struct {
	Prefix    string        // channel prefix, "swarm" when empty
	QueueSize int           // events buffered before drops
	Timeout   time.Duration // bound on one PUBLISH
}

// RedisPublisher mirrors room events to Redis channels. Publish only queues
// the event; a single worker sends them in order.
type RedisPublisher struct {
	client  *redis.Client
	logger  i.Logger
	prefix  string
	timeout time.Duration
	queue   chan message
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewRedisPublisher creates a RedisPublisher and starts its worker.
func NewRedisPublisher(client *redis.Client, logger i.Logger, opts *Options) (*RedisPublisher, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	p := &RedisPublisher{
		client:  client,
		logger:  logger,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		queue:   make(chan message, opts.QueueSize),
		done:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Channel returns the Redis channel carrying the events of a room.
func Channel(prefix, code string) string {
	return fmt.Sprintf(roomChannelFmt, prefix, code)
}

// Publish queues msg for the room's channel. A full queue drops the event.
func (p *RedisPublisher) Publish(code string, msg []byte) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- message{code: code, body: msg}:
	default:
		p.logger.Warning(fmt.Sprintf("publish queue full, dropping event for room %s", code))
	}
}

// Close sends what is still queued and stops the worker.
func (p *RedisPublisher) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case m := <-p.queue:
			p.send(m)
		case <-p.done:
			for {
				select {
				case m := <-p.queue:
					p.send(m)
				default:
					return
				}
			}
		}
	}
}

func (p *RedisPublisher) send(m message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, Channel(p.prefix, m.code), m.body).Err(); err != nil {
		p.logger.Error(fmt.Sprintf("publishing event for room %s: %s", m.code, err))
	}
}
