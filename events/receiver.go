package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pitabwire/util"
	"gocloud.dev/pubsub"
)

// Receive pulls messages named name from sub, decodes them as T and hands them to
// handle until ctx is done. Messages with a different name are acknowledged and
// skipped; messages that fail to decode or handle are nacked when the driver allows it.
func Receive[T any](
	ctx context.Context,
	sub *pubsub.Subscription,
	name string,
	handle func(context.Context, T) error,
) error {
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		err = dispatch(ctx, msg, name, handle)
		if err != nil {
			util.Log(ctx).WithError(err).WithField("event", name).Error("could not handle event")
			if msg.Nackable() {
				msg.Nack()
				continue
			}
		}
		msg.Ack()
	}
}

func dispatch[T any](ctx context.Context, msg *pubsub.Message, name string, handle func(context.Context, T) error) error {
	got := msg.Metadata[HeaderName]
	if got == "" {
		return errors.New("missing event header")
	}
	if got != name {
		return nil
	}

	var payload T
	err := json.Unmarshal(msg.Body, &payload)
	if err != nil {
		return err
	}

	return handle(ctx, payload)
}
