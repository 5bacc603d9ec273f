package worker

import (
	"MediaVault/config"
	"MediaVault/internal/jobs"
	"MediaVault/internal/mq"
	"context"
	"encoding/json"
	"errors"
	"log"
)

// RunJobWorker consumes kick messages and feeds them into the in-process
// kicker. One batch pass is scheduled at startup so rows left queued by a
// crash or a lost kick still get drained.
func RunJobWorker(ctx context.Context, kicker *jobs.Kicker) error {
	client, err := mq.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := config.AppConfig.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(
		mq.QueueKicks,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	kicker.KickBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			kicker.Wait()
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("job worker: delivery channel closed")
			}
			var msg mq.KickMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				log.Printf("job worker: invalid kick message: %v", err)
				_ = delivery.Ack(false)
				continue
			}
			if msg.JobID != nil {
				kicker.Kick(ctx, *msg.JobID)
			}
			if msg.Batch {
				kicker.KickBatch(ctx)
			}
			_ = delivery.Ack(false)
		}
	}
}
