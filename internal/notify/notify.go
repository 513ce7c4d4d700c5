// FilePath: internal/notify/notify.go
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/models"
)

// Notifier pushes accepted ledger mutations to interested listeners.
// The accounting core publishes through this interface and never talks
// to a broker directly.
type Notifier interface {
	LedgerUpdated(ctx context.Context, ledger *models.DailyLedger) error
}

// RedisNotifier publishes ledger updates as JSON to a Redis channel.
// The websocket hub subscribes to the same channel and fans the payload
// out to connected dashboards.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) LedgerUpdated(ctx context.Context, ledger *models.DailyLedger) error {
	payload, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		nuts.L.Warnf("[Notify] Failed to publish ledger update for %s: %v", ledger.MachineID, err)
		return err
	}
	return nil
}

// NopNotifier discards updates. Used in tests and when Redis is not
// configured.
type NopNotifier struct{}

func (NopNotifier) LedgerUpdated(ctx context.Context, ledger *models.DailyLedger) error {
	return nil
}
