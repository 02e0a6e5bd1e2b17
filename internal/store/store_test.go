package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/gainview/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "gainview.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestStateRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.GetState(ctx, "auth-storage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.PutState(ctx, "auth-storage", "one"); err != nil {
		t.Fatalf("put state: %v", err)
	}
	if err := st.PutState(ctx, "auth-storage", "two"); err != nil {
		t.Fatalf("overwrite state: %v", err)
	}
	got, err := st.GetState(ctx, "auth-storage")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got != "two" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
	if err := st.DeleteState(ctx, "auth-storage"); err != nil {
		t.Fatalf("delete state: %v", err)
	}
	if err := st.DeleteState(ctx, "auth-storage"); err != nil {
		t.Fatalf("delete missing key should not fail: %v", err)
	}
	if _, err := st.GetState(ctx, "auth-storage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListUploadsNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()
	for i, name := range []string{"a.csv", "b.json", "c.csv"} {
		rec := model.UploadRecord{
			ID:         name,
			Filename:   name,
			Size:       10 * (i + 1),
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
			Status:     model.UploadSucceeded,
		}
		if err := st.InsertUpload(ctx, rec); err != nil {
			t.Fatalf("insert upload: %v", err)
		}
	}

	all, err := st.ListUploads(ctx, 0)
	if err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(all))
	}
	if all[0].Filename != "c.csv" || all[2].Filename != "a.csv" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if !all[0].UploadedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp: %v", all[0].UploadedAt)
	}

	last, err := st.ListUploads(ctx, 2)
	if err != nil {
		t.Fatalf("list uploads with limit: %v", err)
	}
	if len(last) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(last))
	}
}

func TestListUploadsOrdersWithinSecond(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()
	for _, rec := range []model.UploadRecord{
		{ID: "early", Filename: "early.csv", UploadedAt: base.Add(100 * time.Millisecond), Status: model.UploadSucceeded},
		{ID: "late", Filename: "late.csv", UploadedAt: base.Add(150 * time.Millisecond), Status: model.UploadSucceeded},
		{ID: "whole", Filename: "whole.csv", UploadedAt: base, Status: model.UploadSucceeded},
	} {
		if err := st.InsertUpload(ctx, rec); err != nil {
			t.Fatalf("insert upload: %v", err)
		}
	}

	got, err := st.ListUploads(ctx, 0)
	if err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(got) != 3 || got[0].ID != "late" || got[1].ID != "early" || got[2].ID != "whole" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[0].UploadedAt.Equal(base.Add(150 * time.Millisecond)) {
		t.Fatalf("unexpected timestamp: %v", got[0].UploadedAt)
	}
}
