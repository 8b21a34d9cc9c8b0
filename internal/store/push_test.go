package store

import "testing"

func setupPushTestDB(t *testing.T) (*PushStore, int64) {
	t.Helper()
	db := setupTestDB(t)
	m, err := NewMemberStore(db).Create(1, "Ali", "ali@example.com", "", "")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return NewPushStore(db), m.ID
}

func TestCreateSubscription(t *testing.T) {
	ps, mid := setupPushTestDB(t)

	sub, err := ps.CreateSubscription(mid, 1, "https://push.example.com/sub1", "p256dh_key1", "auth_key1", "Chrome Desktop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q, want %q", sub.Endpoint, "https://push.example.com/sub1")
	}
	if sub.DeviceName != "Chrome Desktop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Chrome Desktop")
	}
}

func TestCreateSubscriptionUpsert(t *testing.T) {
	ps, mid := setupPushTestDB(t)

	sub1, _ := ps.CreateSubscription(mid, 1, "https://push.example.com/sub1", "key1", "auth1", "Device A")
	ps.CreateSubscription(mid, 1, "https://push.example.com/sub2", "key3", "auth3", "Device C")
	sub2, err := ps.CreateSubscription(mid, 1, "https://push.example.com/sub1", "key2", "auth2", "Device B")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if sub2.ID != sub1.ID {
		t.Errorf("expected same ID on upsert, got %d != %d", sub2.ID, sub1.ID)
	}
	if sub2.P256dhKey != "key2" {
		t.Errorf("p256dh = %q, want %q", sub2.P256dhKey, "key2")
	}

	subs, _ := ps.ListByMember(mid)
	if len(subs) != 2 {
		t.Errorf("len = %d, want 2", len(subs))
	}
}

func TestDeleteSubscription(t *testing.T) {
	ps, mid := setupPushTestDB(t)

	sub, _ := ps.CreateSubscription(mid, 1, "https://push.example.com/sub1", "key1", "auth1", "")

	ok, err := ps.DeleteSubscription(sub.ID, mid+1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("deleted another member's subscription")
	}

	ok, _ = ps.DeleteSubscription(sub.ID, mid)
	if !ok {
		t.Error("expected delete to succeed for owner")
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, mid := setupPushTestDB(t)

	ps.CreateSubscription(mid, 1, "https://push.example.com/sub1", "key1", "auth1", "")
	if err := ps.DeleteByEndpoint("https://push.example.com/sub1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, _ := ps.ListByMember(mid)
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}
