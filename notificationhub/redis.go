package notificationhub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisChannel is the single pub/sub channel every process-local Hub
// publishes events onto and subscribes from, fanning a Publish/Broadcast call
// on one process out to every other process sharing the same Redis instance
// -- a multi-process NotificationHub fan-out demo, not a separate
// persistence tier, per SPEC_FULL.md §6.4.
const redisChannel = "coreconvo:notifications"

type wireEvent struct {
	ParticipantId string `json:"participantId,omitempty"`
	Broadcast     bool   `json:"broadcast,omitempty"`
	Event         Event  `json:"event"`
}

// RedisBridge relays Publish/Broadcast calls on a local Hub to every other
// process subscribed to the same Redis channel, following the teacher's
// srv/redis client setup (a single *redis.Client built from REDIS_ADDRESS,
// srv/redis/client.go) generalized from a key/value store client to a
// pub/sub client.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
}

// NewRedisBridge connects addr and starts relaying this process's Hub events
// onto redisChannel, and relaying events received from other processes back
// into hub's local delivery queues.
func NewRedisBridge(ctx context.Context, addr string, hub *Hub) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	b := &RedisBridge{hub: hub, client: client}
	go b.listen(ctx)
	return b, nil
}

func (b *RedisBridge) listen(ctx context.Context) {
	sub := b.client.Subscribe(ctx, redisChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				log.Warn().Err(err).Msg("notificationhub: dropping malformed redis event")
				continue
			}
			if we.Broadcast {
				b.hub.localBroadcast(we.Event)
			} else {
				b.hub.localPublish(we.ParticipantId, we.Event)
			}
		}
	}
}

// PublishRemote relays ev to participantId across every process subscribed
// to redisChannel, including this one via the Redis round-trip.
func (b *RedisBridge) PublishRemote(ctx context.Context, participantId string, ev Event) error {
	return b.publish(ctx, wireEvent{ParticipantId: participantId, Event: ev})
}

// BroadcastRemote relays ev to every connected participant across every
// process subscribed to redisChannel.
func (b *RedisBridge) BroadcastRemote(ctx context.Context, ev Event) error {
	return b.publish(ctx, wireEvent{Broadcast: true, Event: ev})
}

func (b *RedisBridge) publish(ctx context.Context, we wireEvent) error {
	payload, err := json.Marshal(we)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

func (b *RedisBridge) Close() error { return b.client.Close() }
