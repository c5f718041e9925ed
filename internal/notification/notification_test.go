package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(client, "")
	sent := Message{Kind: KindRegistered, AccountID: "abc", Body: "welcome", At: time.Now().UTC()}
	if err := n.Send(ctx, sent); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got Message
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Kind != KindRegistered || got.AccountID != "abc" {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}
}

type failing struct{}

func (failing) Send(context.Context, Message) error { return errors.New("down") }

type recording struct{ got []Message }

func (r *recording) Send(_ context.Context, m Message) error {
	r.got = append(r.got, m)
	return nil
}

func TestFanoutDeliversToAll(t *testing.T) {
	rec := &recording{}
	f := Fanout{failing{}, rec, NewLoggerNotifier(nil)}
	err := f.Send(context.Background(), Message{Kind: KindDeleted, AccountID: "abc"})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected delivery despite earlier failure, got %d", len(rec.got))
	}
}
