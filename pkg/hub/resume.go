package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
)

// Replay streams every event with server_seq > cursor to sub, in ascending
// order, as the original envelope type with its stored payload and a
// normalized UTC timestamp (C8). No ack is emitted. If a send fails
// mid-replay, Replay aborts without retrying; the client is expected to
// reissue client.resume on reconnection.
func Replay(ctx context.Context, events EventAppender, sub *Subscriber, sessionID string, cursor int64) error {
	stored, err := events.QueryAfter(ctx, sessionID, cursor)
	if err != nil {
		return fmt.Errorf("query events after cursor %d: %w", cursor, err)
	}

	for _, evt := range stored {
		env := evt.ToEnvelope()
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal replayed envelope: %w", err)
		}
		if err := sub.Conn.Write(ctx, websocket.MessageText, data); err != nil {
			return fmt.Errorf("send replayed envelope: %w", err)
		}
	}
	return nil
}
