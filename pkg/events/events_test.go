package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeCommunityShared(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	body, err := Encode(Event{
		ID:         "ev-1",
		Type:       RoutingCommunityShared,
		OccurredAt: at,
		Data:       CommunityShared{PostID: "p1", ShareType: "prayer", HasPrayer: true},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		OccurredAt time.Time       `json:"occurredAt"`
		Data       CommunityShared `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "community.shared" || decoded.Data.PostID != "p1" || !decoded.OccurredAt.Equal(at) {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestEncodeDefaultsAndValidation(t *testing.T) {
	if _, err := Encode(Event{}); err == nil {
		t.Fatal("expected error without type")
	}
	body, err := Encode(Event{Type: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded Event
	_ = json.Unmarshal(body, &decoded)
	if decoded.OccurredAt.IsZero() {
		t.Fatal("occurredAt should default to now")
	}
}

func TestNewAMQPPublisherRequiresURL(t *testing.T) {
	if _, err := NewAMQPPublisher("", "selah"); err == nil {
		t.Fatal("expected error for empty url")
	}
}
