package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/ecohearing/EcoHearing/internal/models"
)

func sampleSession() Session {
	now := time.Now().UTC().Truncate(time.Second)
	return Session{
		ID:            "sess-1",
		Phase:         "AWAITING_RESPONSE",
		CurrentStepID: 3,
		Answers: map[int]models.Answer{
			1: {Text: "20,000円以上"},
			5: {File: &models.FileHandle{Name: "bill.pdf"}},
		},
		Log: []models.ExchangeEntry{
			{ID: 1, Role: models.RoleSystem, Text: "毎月の電気代はおいくらですか?"},
			{ID: 2, Role: models.RoleUser, Text: "20,000円以上"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func checkRoundTrip(t *testing.T, s Store) {
	t.Helper()
	sess := sampleSession()
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("saved session not found")
	}
	if got.Phase != sess.Phase || got.CurrentStepID != sess.CurrentStepID {
		t.Errorf("session fields mismatch: %+v", got)
	}
	if len(got.Answers) != 2 || got.Answers[1].Text != "20,000円以上" {
		t.Errorf("answers mismatch: %+v", got.Answers)
	}
	if got.Answers[5].File == nil || got.Answers[5].File.Name != "bill.pdf" {
		t.Errorf("file answer mismatch: %+v", got.Answers[5])
	}
	if len(got.Log) != 2 || got.Log[1].Role != models.RoleUser {
		t.Errorf("log mismatch: %+v", got.Log)
	}

	// overwrite with a completed snapshot
	sess.Phase = "COMPLETED"
	sess.Payload = &models.Payload{Name: "山田太郎"}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get after overwrite failed: %v", err)
	}
	if got.Phase != "COMPLETED" || got.Payload == nil || got.Payload.Name != "山田太郎" {
		t.Errorf("overwrite not applied: %+v", got)
	}

	if err := s.DeleteSession(sess.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("deleted session still present: %+v", got)
	}
}

func TestInMemoryStore(t *testing.T) {
	checkRoundTrip(t, NewInMemoryStore())
}

func TestInMemoryStoreUnknownID(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.GetSession("missing")
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil) for unknown id, got (%v, %v)", got, err)
	}
	if err := s.DeleteSession("missing"); err != nil {
		t.Errorf("delete of unknown id errored: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ecohearing.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()
	checkRoundTrip(t, s)
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	s, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()
	s.db.Exec("DELETE FROM sessions")
	checkRoundTrip(t, s)
}

func TestRedisStore(t *testing.T) {
	// Requires a running Redis instance; set REDIS_ADDR to enable.
	addr := getenvOrSkip(t, "REDIS_ADDR")
	s, err := NewRedisStore(WithRedisAddr(addr), WithSessionTTL(time.Minute))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer s.Close()
	checkRoundTrip(t, s)
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
