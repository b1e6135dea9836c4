package store

import (
	"errors"
	"testing"
	"time"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{ID: "s1", CameraID: 2, Dropout: "hold"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("Create() should set StartedAt")
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.CameraID != 2 || got.Dropout != "hold" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.Running() {
		t.Error("new session should be running")
	}
	if got.Letters != 0 {
		t.Errorf("Letters = %d, want 0", got.Letters)
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Sessions().GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_End(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	if err := repo.Create(&Session{ID: "s1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.End("s1", "stopped"); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	// A second End keeps the first reason.
	if err := repo.End("s1", "detector error"); err != nil {
		t.Fatalf("second End() error = %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Running() {
		t.Error("ended session should not be running")
	}
	if got.EndReason != "stopped" {
		t.Errorf("EndReason = %q, want %q", got.EndReason, "stopped")
	}

	if err := repo.End("missing", "stopped"); !errors.Is(err, ErrNotFound) {
		t.Errorf("End(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		sess := &Session{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := s.Transcript().Add(&Entry{SessionID: "mid", Letter: "A"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d sessions, want 3", len(all))
	}
	if all[0].ID != "new" || all[2].ID != "old" {
		t.Errorf("List() order = %s,%s,%s, want newest first", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[1].Letters != 1 {
		t.Errorf("mid Letters = %d, want 1", all[1].Letters)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions, want 2", len(limited))
	}
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{ID: "s1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Transcript().Add(&Entry{SessionID: "s1", Letter: "B"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Sessions().Delete("s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	entries, err := s.Transcript().ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("transcript should be deleted with its session, got %d entries", len(entries))
	}

	if err := s.Sessions().Delete("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
