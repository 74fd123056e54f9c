package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

var rdbClient *redis.Client

func SetRedisClient(r *redis.Client) {
	rdbClient = r
}

// StartEventSubscriber subscribes to the game and tournament event channels
// and routes incoming events to connected clients. Session and tournament
// services publish to these channels regardless of which process handles the
// originating request, so events reach clients on any instance.
func StartEventSubscriber(ctx context.Context) {
	if rdbClient == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdbClient.Subscribe(ctx, "game_events", "tournament_events")
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] game_events/tournament_events subscriber started")
		for msg := range ch {
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid event payload: %v", err)
				continue
			}

			typeStr, _ := payload["type"].(string)
			log.Printf("[WS] event received: channel=%s type=%s", msg.Channel, typeStr)

			switch typeStr {
			case "match_found", "match_ready":
				// Targeted delivery to the two paired players
				if p1, ok := payload["player1_id"].(float64); ok {
					EventHub.SendToPlayer(int(p1), payload)
				}
				if p2, ok := payload["player2_id"].(float64); ok {
					EventHub.SendToPlayer(int(p2), payload)
				}

			case "checkin_open", "tournament_started", "tournament_completed", "tournament_cancelled":
				// Lifecycle events go to everyone; clients filter by tournament id
				EventHub.Broadcast(payload)

			default:
				log.Printf("[WS] unhandled event type %q on %s", typeStr, msg.Channel)
			}
		}
	}()
}
