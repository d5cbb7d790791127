package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestBrokerList(t *testing.T) {
	got := brokerList(" a:9092, b:9092 ,,")
	if !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("got %v", got)
	}
}

func TestPublishMarshalsWithKey(t *testing.T) {
	w := &captureWriter{}
	if err := Publish(context.Background(), w, "opp-1", map[string]float64{"profit": 2.5}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "opp-1" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	var body map[string]float64
	if err := json.Unmarshal(w.msgs[0].Value, &body); err != nil || body["profit"] != 2.5 {
		t.Fatalf("bad payload %s", w.msgs[0].Value)
	}
}

func TestPublishDLQKeepsPayloadAndAddsReason(t *testing.T) {
	w := &captureWriter{}
	orig := kafka.Message{Topic: "arb_bet_placed", Key: []byte("bet-1"), Value: []byte(`{"x":1}`)}

	if err := PublishDLQ(context.Background(), w, orig, errors.New("scores unavailable")); err != nil {
		t.Fatal(err)
	}
	m := w.msgs[0]
	if string(m.Value) != `{"x":1}` || string(m.Key) != "bet-1" {
		t.Fatalf("payload changed: %+v", m)
	}
	hdr := map[string]string{}
	for _, h := range m.Headers {
		hdr[h.Key] = string(h.Value)
	}
	if hdr["x-dlq-reason"] != "scores unavailable" || hdr["x-dlq-source-topic"] != "arb_bet_placed" {
		t.Fatalf("headers = %v", hdr)
	}
}
