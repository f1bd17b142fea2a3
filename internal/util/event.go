package util

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/nats-io/nats.go"
)

func PublishEvent(ctx context.Context, js nats.JetStreamContext, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = js.Publish(subject, payload, nats.Context(ctx))
	if err != nil {
		return err
	}

	return nil
}
