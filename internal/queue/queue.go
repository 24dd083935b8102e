// Package queue wraps the asynq client and mux used by both binaries. Task
// type names and payloads live here so the API (producer) and the worker
// (consumer) share one definition.
package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Task types handled by the worker
const (
	TypeProcessCallback = "mpesa:callback"
	TypeReceiptEmail    = "receipt:email"
	TypeReconcileSweep  = "mpesa:reconcile"
)

// ReceiptEmailPayload is the payload of a receipt:email task
type ReceiptEmailPayload struct {
	ReceiptNumber string `json:"receipt_number"`
}

// Queue wraps the asynq client and server mux
type Queue struct {
	Client *asynq.Client
	Mux    *asynq.ServeMux
}

// NewQueue creates the queue client and handler mux
func NewQueue(redisURL string) (*Queue, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		Client: asynq.NewClient(redisOpt),
		Mux:    asynq.NewServeMux(),
	}

	log.Println("Queue client initialized")
	return q, nil
}

// ServerConfig builds the asynq server options for the worker binary
func ServerConfig(redisURL string, concurrency int) (asynq.RedisConnOpt, asynq.Config, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, asynq.Config{}, err
	}

	return redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}, nil
}

// EnqueueCallback queues a raw provider callback for background processing.
// Callbacks are critical: they carry payment outcomes.
func (q *Queue) EnqueueCallback(ctx context.Context, payload []byte) error {
	task := asynq.NewTask(TypeProcessCallback, payload)
	info, err := q.Client.EnqueueContext(ctx, task, asynq.Queue("critical"), asynq.MaxRetry(3))
	if err != nil {
		return err
	}
	log.Printf("Callback queued: task_id=%s", info.ID)
	return nil
}

// EnqueueReceiptEmail queues delivery of a receipt notification
func (q *Queue) EnqueueReceiptEmail(ctx context.Context, receiptNumber string) error {
	payload, err := json.Marshal(ReceiptEmailPayload{ReceiptNumber: receiptNumber})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeReceiptEmail, payload)
	_, err = q.Client.EnqueueContext(ctx, task, asynq.Queue("default"), asynq.MaxRetry(5))
	return err
}

// EnqueueReconcileSweep queues one reconciliation sweep batch
func (q *Queue) EnqueueReconcileSweep(ctx context.Context) error {
	task := asynq.NewTask(TypeReconcileSweep, nil)
	_, err := q.Client.EnqueueContext(ctx, task, asynq.Queue("low"), asynq.MaxRetry(0))
	return err
}

// Close gracefully closes the queue client
func (q *Queue) Close() error {
	if q.Client != nil {
		log.Println("Closing queue client...")
		return q.Client.Close()
	}
	return nil
}
