package websocket

import (
	"CollabChatAPI/internal/adapter"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

const backplaneChannel = "collabchat:events"

type envelopeScope string

const (
	scopeRoom  envelopeScope = "room"
	scopeUser  envelopeScope = "user"
	scopeAdmit envelopeScope = "admit"
)

// envelope carries an already encoded event between nodes. Presence and typing
// never travel here; each node reports the connections it holds.
type envelope struct {
	Origin  string          `json:"origin"`
	Scope   envelopeScope   `json:"scope"`
	Target  uuid.UUID       `json:"target"`
	UserIDs []uuid.UUID     `json:"user_ids,omitempty"`
	Type    EventType       `json:"type,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Backplane fans room and user events out to the other API nodes over Redis
// pub/sub.
type Backplane struct {
	redis  *adapter.RedisAdapter
	nodeID string
}

func NewBackplane(redisAdapter *adapter.RedisAdapter) *Backplane {
	return &Backplane{
		redis:  redisAdapter,
		nodeID: uuid.NewString(),
	}
}

func (b *Backplane) publish(ctx context.Context, env envelope) error {
	env.Origin = b.nodeID
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, backplaneChannel, data)
}

// run delivers envelopes from other nodes until ctx is done.
func (b *Backplane) run(ctx context.Context, deliver func(envelope)) {
	sub := b.redis.Subscribe(ctx, backplaneChannel)
	defer sub.Close()

	ch := sub.Channel()
	slog.Info("Backplane subscribed", "channel", backplaneChannel, "node", b.nodeID)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("Dropping malformed backplane message", "error", err)
				continue
			}
			if env.Origin == b.nodeID {
				continue
			}
			deliver(env)
		}
	}
}
