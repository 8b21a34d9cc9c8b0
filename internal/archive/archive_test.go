package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/dutyroster/internal/database"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

type testEnv struct {
	exporter *Exporter
	mock     *mockS3Client
	tasks    *store.TaskStore
	members  *store.MemberStore
}

func setupExporter(t *testing.T, cfg S3Config) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock := newMockS3()
	e := NewExporter(cfg, store.NewWeeklyLogStore(db), store.NewArchiveStore(db), store.NewCompanyStore(db),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.client = mock
	e.now = func() time.Time { return time.Date(2026, 3, 18, 3, 0, 0, 0, time.UTC) }
	return &testEnv{exporter: e, mock: mock, tasks: store.NewTaskStore(db), members: store.NewMemberStore(db)}
}

// approveOne records one weekly log entry in the week starting 2026-03-09.
func (env *testEnv) approveOne(t *testing.T) {
	t.Helper()
	m, err := env.members.Create(1, "Ali", "ali@example.com", model.RoleMember, "")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	created, err := env.tasks.CreatePending([]model.Task{{
		CompanyID: 1, Kind: model.KindCleaning, MemberID: m.ID, Assignee: m.Name,
		AssigneeEmail: m.Email, Place: "Kitchen", Status: model.TaskPending, AssignedAt: at,
	}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.Approve(created[0].ID, at, "2026-03-09"); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestExportPreviousWeek(t *testing.T) {
	env := setupExporter(t, S3Config{Bucket: "logs", Prefix: "weekly/"})
	env.approveOne(t)

	n, err := env.exporter.ExportPreviousWeek(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported = %d, want 1", n)
	}
	if len(env.mock.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(env.mock.objects))
	}
	for key, data := range env.mock.objects {
		if !strings.HasPrefix(key, "weekly/1/2026-03-09/cleaning-") || !strings.HasSuffix(key, ".json") {
			t.Errorf("key = %q", key)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if doc.WeekStart != "2026-03-09" || len(doc.Entries) != 1 || doc.Entries[0].Place != "Kitchen" {
			t.Errorf("document = %+v", doc)
		}
	}

	// A second run finds the week archived.
	n, err = env.exporter.ExportPreviousWeek(context.Background())
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if n != 0 || len(env.mock.objects) != 1 {
		t.Errorf("second run exported %d, objects %d", n, len(env.mock.objects))
	}
}

func TestExportWeekSealed(t *testing.T) {
	env := setupExporter(t, S3Config{Bucket: "logs", Passphrase: "secret"})
	env.approveOne(t)

	rec, err := env.exporter.ExportWeek(context.Background(), 1, "2026-03-09", model.KindCleaning)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(rec.S3Key, ".json.enc") {
		t.Errorf("key = %q, want .json.enc suffix", rec.S3Key)
	}

	plain, err := Open(env.mock.objects[rec.S3Key], "secret")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(plain, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Entries[0].Assignee != "Ali" {
		t.Errorf("assignee = %q", doc.Entries[0].Assignee)
	}
}

func TestExportWeekEmptySkipped(t *testing.T) {
	env := setupExporter(t, S3Config{Bucket: "logs"})

	rec, err := env.exporter.ExportWeek(context.Background(), 1, "2026-03-09", model.KindMeal)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if rec != nil || len(env.mock.objects) != 0 {
		t.Error("expected empty week to be skipped")
	}
}

func TestExportUploadFailureNotRecorded(t *testing.T) {
	env := setupExporter(t, S3Config{Bucket: "logs"})
	env.approveOne(t)
	env.mock.putErr = errors.New("connection reset")

	if _, err := env.exporter.ExportWeek(context.Background(), 1, "2026-03-09", model.KindCleaning); err == nil {
		t.Fatal("expected upload error")
	}

	env.mock.putErr = nil
	rec, err := env.exporter.ExportWeek(context.Background(), 1, "2026-03-09", model.KindCleaning)
	if err != nil {
		t.Fatalf("retry export: %v", err)
	}
	if rec == nil {
		t.Error("expected retry to upload the week")
	}
}

func TestExporterDisabled(t *testing.T) {
	e := NewExporter(S3Config{}, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if e.Enabled() {
		t.Error("expected exporter to be disabled")
	}
	if _, err := e.ExportPreviousWeek(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}
