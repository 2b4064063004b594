package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/plantspeak/internal/config"
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueAudioExpire schedules deletion of a stored audio file after ttl.
func (c *Client) EnqueueAudioExpire(name string, ttl time.Duration) error {
	return c.enqueue(TypeAudioExpire, AudioExpirePayload{Name: name},
		asynq.ProcessIn(ttl),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue("low"),
	)
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	task, err := newTask(taskType, payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// NewAudioSweepTask builds the periodic sweep task for the scheduler.
func NewAudioSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	return newTask(TypeAudioSweep, AudioSweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}
