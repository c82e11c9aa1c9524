package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"fieldops.lk/internal/rbac"
)

func adminContext() context.Context {
	return rbac.ContextWithPrincipal(context.Background(), rbac.Principal{
		UserID: "USER-ADMIN-001",
		Name:   "System Administrator",
		Role:   rbac.RoleSuperAdmin,
	})
}

func TestRecordCapturesActorSnapshot(t *testing.T) {
	log := NewLog(NewMemoryStore())
	log.Record(adminContext(), TypeLogin, map[string]any{"user_id": "USER-ADMIN-001"})

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Type != TypeLogin {
		t.Fatalf("unexpected type %s", e.Type)
	}
	if e.Actor == nil || e.Actor.ID != "USER-ADMIN-001" || e.Actor.Role != rbac.RoleSuperAdmin {
		t.Fatalf("actor snapshot missing or wrong: %+v", e.Actor)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatal("entry must carry id and timestamp")
	}
}

func TestRecordWithoutPrincipal(t *testing.T) {
	log := NewLog(NewMemoryStore())
	log.Record(context.Background(), TypeAccessDenied, map[string]any{"resource": "audit_logs"})

	entries, _ := log.Recent(1)
	if len(entries) != 1 || entries[0].Actor != nil {
		t.Fatalf("anonymous entry must have nil actor: %+v", entries)
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	log := NewLog(NewMemoryStore())
	ctx := adminContext()
	for i := 0; i <= MaxEntries; i++ {
		log.Record(ctx, TypeJobUpdate, map[string]any{"seq": i})
	}
	entries, err := log.Recent(MaxEntries + 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != MaxEntries {
		t.Fatalf("expected %d entries after overflow, got %d", MaxEntries, len(entries))
	}
	if entries[0].Details["seq"] != MaxEntries {
		t.Fatalf("newest entry missing, head seq=%v", entries[0].Details["seq"])
	}
	last := entries[len(entries)-1]
	if last.Details["seq"] != 1 {
		t.Fatalf("oldest entry (seq 0) must be evicted, tail seq=%v", last.Details["seq"])
	}
}

func TestExportRoundTrip(t *testing.T) {
	log := NewLog(NewMemoryStore())
	ctx := adminContext()
	for i := 0; i < 5; i++ {
		log.Record(ctx, TypeJobCreate, map[string]any{"job_id": fmt.Sprintf("JOB-2024-%03d", i)})
	}
	data, err := log.Export()
	if err != nil {
		t.Fatal(err)
	}
	var parsed []Entry
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("export not valid JSON: %v", err)
	}
	current, _ := log.Recent(10)
	if len(parsed) != len(current) {
		t.Fatalf("round trip length mismatch: %d vs %d", len(parsed), len(current))
	}
	for i := range parsed {
		if parsed[i].ID != current[i].ID || parsed[i].Type != current[i].Type {
			t.Fatalf("round trip mismatch at %d: %+v vs %+v", i, parsed[i], current[i])
		}
	}
}

func TestClearRequiresPermissionAndLogsItself(t *testing.T) {
	log := NewLog(NewMemoryStore())
	ctx := adminContext()
	log.Record(ctx, TypeLogin, nil)
	log.Record(ctx, TypeJobCreate, nil)

	partnerCtx := rbac.ContextWithPrincipal(context.Background(), rbac.Principal{
		UserID: "u9", Name: "Partner", Role: rbac.RoleTechLeadPartner,
	})
	if err := log.Clear(partnerCtx); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if err := log.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	entries, _ := log.Recent(10)
	if len(entries) != 1 {
		t.Fatalf("clear must leave exactly the clear entry, got %d", len(entries))
	}
	if entries[0].Type != TypeSystemSettings || entries[0].Details["action"] != "clear_audit_logs" {
		t.Fatalf("surviving entry must record the clear action: %+v", entries[0])
	}
}

func TestByTypeByUserByDateRange(t *testing.T) {
	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	log := NewLog(NewMemoryStore(), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	ctx := adminContext()
	otherCtx := rbac.ContextWithPrincipal(context.Background(), rbac.Principal{
		UserID: "u2", Name: "Dev", Role: rbac.RoleDeveloper,
	})
	log.Record(ctx, TypeLogin, nil)      // t+1m
	log.Record(otherCtx, TypeLogin, nil) // t+2m
	log.Record(ctx, TypeJobApprove, nil) // t+3m

	byType, _ := log.ByType(TypeLogin)
	if len(byType) != 2 {
		t.Fatalf("expected 2 login entries, got %d", len(byType))
	}
	byUser, _ := log.ByUser("u2")
	if len(byUser) != 1 || byUser[0].Actor.Name != "Dev" {
		t.Fatalf("expected 1 entry for u2, got %+v", byUser)
	}
	ranged, _ := log.ByDateRange(base.Add(90*time.Second), base.Add(10*time.Minute))
	if len(ranged) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(ranged))
	}
}

func TestMessageRendering(t *testing.T) {
	e := Entry{
		Timestamp: time.Date(2024, 12, 20, 9, 30, 0, 0, time.UTC),
		Type:      TypeJobReject,
		Actor:     &Actor{ID: "u1", Name: "Ops Lead", Role: rbac.RoleBusinessSupport},
		Details:   map[string]any{"job_id": "JOB-2024-007"},
	}
	msg := e.Message()
	if msg != "2024-12-20T09:30:00Z - Ops Lead rejected job JOB-2024-007" {
		t.Fatalf("unexpected message: %s", msg)
	}
	anon := Entry{Timestamp: e.Timestamp, Type: TypeLogout}
	if anon.Message() != "2024-12-20T09:30:00Z - Unknown logged out" {
		t.Fatalf("unexpected anonymous message: %s", anon.Message())
	}
}
