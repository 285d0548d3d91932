package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
)

var testStart = time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)

func TestNewReport(t *testing.T) {
	r := New(TriggerCLI, 3, testStart)

	if r.ID == "" || len(r.ID) != 36 {
		t.Errorf("Expected a uuid run id, got '%s'", r.ID)
	}
	if r.Trigger != TriggerCLI || r.BackfillDays != 3 {
		t.Errorf("Unexpected report %+v", r)
	}
	if r.NewURLs == nil {
		t.Error("Expected non-nil NewURLs")
	}
	if r.Duration() != 0 {
		t.Errorf("Expected zero duration before finish, got %s", r.Duration())
	}

	r.FinishedAt = testStart.Add(42 * time.Second)
	if r.Duration() != 42*time.Second {
		t.Errorf("Expected 42s, got %s", r.Duration())
	}

	if New(TriggerCLI, 1, testStart).ID == r.ID {
		t.Error("Expected unique run ids")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(3)
	defer store.Close()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		r := New(TriggerSchedule, 1, testStart.Add(time.Duration(i)*time.Hour))
		r.New = i
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, r.ID)
	}

	reports, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("Expected capacity to cap at 3, got %d", len(reports))
	}
	if reports[0].ID != ids[3] || reports[2].ID != ids[1] {
		t.Errorf("Expected newest first, got %s..%s", reports[0].ID, reports[2].ID)
	}

	limited, _ := store.List(ctx, 1)
	if len(limited) != 1 || limited[0].ID != ids[3] {
		t.Errorf("Expected only the newest report, got %+v", limited)
	}

	if _, err := store.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected evicted report to be gone, got %v", err)
	}

	got, err := store.Get(ctx, ids[2])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.New != 2 {
		t.Errorf("Expected New=2, got %d", got.New)
	}
}

func TestMemoryStoreSaveReplacesSameRun(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	r := New(TriggerHTTP, 1, testStart)
	store.Save(ctx, r)
	r.Status = StatusSuccess
	store.Save(ctx, r)

	reports, _ := store.List(ctx, 10)
	if len(reports) != 1 {
		t.Fatalf("Expected one report, got %d", len(reports))
	}
	if reports[0].Status != StatusSuccess {
		t.Errorf("Expected updated status, got '%s'", reports[0].Status)
	}
}

func TestObjectNameSortsChronologically(t *testing.T) {
	s := &CloudStorageStore{prefix: DefaultPrefix}

	earlier := &Report{ID: "b", StartedAt: testStart}
	later := &Report{ID: "a", StartedAt: testStart.Add(time.Second)}

	if s.objectName(earlier) >= s.objectName(later) {
		t.Errorf("Expected %s < %s", s.objectName(earlier), s.objectName(later))
	}
	if !strings.HasPrefix(s.objectName(earlier), DefaultPrefix) || !strings.HasSuffix(s.objectName(earlier), "_b.json") {
		t.Errorf("Unexpected object name %s", s.objectName(earlier))
	}
}

func TestNewCloudStorageStoreRequiresBucket(t *testing.T) {
	if _, err := NewCloudStorageStore(context.Background(), ""); err == nil {
		t.Error("Expected error for empty bucket name")
	}
}

// Runs against fake-gcs-server or the official emulator when STORAGE_EMULATOR_HOST is set.
func TestCloudStorageStore(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("Skipping Cloud Storage test: STORAGE_EMULATOR_HOST not set")
	}
	bucket := os.Getenv("REPORT_TEST_BUCKET")
	if bucket == "" {
		t.Skip("Skipping Cloud Storage test: REPORT_TEST_BUCKET not set")
	}

	ctx := context.Background()
	store, err := NewCloudStorageStore(ctx, bucket, option.WithoutAuthentication())
	if err != nil {
		t.Skipf("Skipping Cloud Storage test: %v", err)
	}
	defer store.Close()
	store.prefix = fmt.Sprintf("test-runs/%d/", time.Now().UnixNano())

	first := New(TriggerCLI, 1, testStart)
	second := New(TriggerCLI, 2, testStart.Add(time.Minute))
	for _, r := range []*Report{first, second} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	reports, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != second.ID {
		t.Errorf("Expected newest first, got %+v", reports)
	}

	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BackfillDays != 1 {
		t.Errorf("Expected backfill 1, got %d", got.BackfillDays)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
