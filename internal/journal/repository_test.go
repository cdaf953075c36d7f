package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return NewRepository(db)
}

func contextAt(ts time.Time, appClass, title string) *ContextEvent {
	return &ContextEvent{
		Timestamp: ts,
		Adapter:   "cosmic",
		AppID:     appClass,
		AppClass:  appClass,
		Title:     title,
	}
}

func TestRecordAndQueryContexts(t *testing.T) {
	repo := testRepo(t)
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	for i, app := range []string{"firefox", "kitty", "firefox"} {
		event := contextAt(base.Add(time.Duration(i)*time.Minute), app, "window "+app)
		if err := repo.RecordContext(event); err != nil {
			t.Fatalf("RecordContext() error: %v", err)
		}
	}

	since, err := repo.ContextsSince(base.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("ContextsSince() error: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("ContextsSince() returned %d events, want 2", len(since))
	}
	if since[0].AppClass != "kitty" || since[1].AppClass != "firefox" {
		t.Errorf("ContextsSince() order = %s, %s; want kitty, firefox",
			since[0].AppClass, since[1].AppClass)
	}

	recent, err := repo.RecentContexts(2)
	if err != nil {
		t.Fatalf("RecentContexts() error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentContexts(2) returned %d events, want 2", len(recent))
	}
	if recent[0].AppClass != "firefox" || recent[1].AppClass != "kitty" {
		t.Errorf("RecentContexts() order = %s, %s; want newest first",
			recent[0].AppClass, recent[1].AppClass)
	}
}

func TestLatestContext(t *testing.T) {
	repo := testRepo(t)

	latest, err := repo.LatestContext()
	if err != nil {
		t.Fatalf("LatestContext() on empty journal: %v", err)
	}
	if latest != nil {
		t.Fatalf("LatestContext() on empty journal = %+v, want nil", latest)
	}

	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	repo.RecordContext(contextAt(base, "kitty", "~"))
	repo.RecordContext(contextAt(base.Add(time.Minute), "firefox", "Home"))

	latest, err = repo.LatestContext()
	if err != nil {
		t.Fatalf("LatestContext() error: %v", err)
	}
	if latest == nil || latest.AppClass != "firefox" {
		t.Errorf("LatestContext() = %+v, want the firefox event", latest)
	}
}

func TestRecordAndQueryLifecycle(t *testing.T) {
	repo := testRepo(t)
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	transitions := []struct {
		from, to string
	}{
		{"starting", "active"},
		{"active", "failed"},
	}
	for i, tr := range transitions {
		event := &LifecycleEvent{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Adapter:   "wlroots",
			FromState: tr.from,
			ToState:   tr.to,
			Detail:    "test transition",
		}
		if err := repo.RecordLifecycle(event); err != nil {
			t.Fatalf("RecordLifecycle() error: %v", err)
		}
	}

	events, err := repo.LifecycleSince(base)
	if err != nil {
		t.Fatalf("LifecycleSince() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("LifecycleSince() returned %d events, want 2", len(events))
	}
	if events[0].ToState != "active" || events[1].ToState != "failed" {
		t.Errorf("LifecycleSince() order = %s, %s; want active, failed",
			events[0].ToState, events[1].ToState)
	}
}

func TestSummaryByAppSince(t *testing.T) {
	repo := testRepo(t)
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		repo.RecordContext(contextAt(base.Add(time.Duration(i)*time.Minute), "firefox", "tab"))
	}
	repo.RecordContext(contextAt(base.Add(5*time.Minute), "kitty", "~"))

	summaries, err := repo.SummaryByAppSince(base)
	if err != nil {
		t.Fatalf("SummaryByAppSince() error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("SummaryByAppSince() returned %d apps, want 2", len(summaries))
	}
	if summaries[0].AppClass != "firefox" || summaries[0].EventCount != 3 {
		t.Errorf("top app = %s (%d events), want firefox (3 events)",
			summaries[0].AppClass, summaries[0].EventCount)
	}
	if !summaries[0].FirstSeen.Equal(base) {
		t.Errorf("firefox FirstSeen = %v, want %v", summaries[0].FirstSeen, base)
	}
	if !summaries[0].LastSeen.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("firefox LastSeen = %v, want %v", summaries[0].LastSeen, base.Add(2*time.Minute))
	}
}

func TestPrune(t *testing.T) {
	repo := testRepo(t)
	old := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	repo.RecordContext(contextAt(old, "stale-app", "old window"))
	repo.RecordContext(contextAt(recent, "firefox", "Home"))
	repo.RecordLifecycle(&LifecycleEvent{
		Timestamp: old, Adapter: "gnome", FromState: "starting", ToState: "self_terminated",
	})

	deleted, err := repo.Prune(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted %d rows, want 2", deleted)
	}

	remaining, err := repo.ContextsSince(time.Time{})
	if err != nil {
		t.Fatalf("ContextsSince() error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].AppClass != "firefox" {
		t.Errorf("after prune ContextsSince() = %d events, want only the firefox event", len(remaining))
	}
}

func TestGenerateReportFromJournal(t *testing.T) {
	repo := testRepo(t)

	// All events share one timestamp so the day window always holds
	// them, even right after midnight.
	now := time.Now()
	for i := 0; i < 3; i++ {
		repo.RecordContext(contextAt(now, "firefox", "tab"))
	}
	repo.RecordContext(contextAt(now, "kitty", "~"))

	report, err := NewReporter(repo).Generate("day")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if report.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", report.TotalEvents)
	}
	if len(report.Apps) != 2 {
		t.Fatalf("report lists %d apps, want 2", len(report.Apps))
	}
	if report.Apps[0].AppClass != "firefox" {
		t.Errorf("top app = %s, want firefox", report.Apps[0].AppClass)
	}
	if got := report.Apps[0].Percentage; got != 75.0 {
		t.Errorf("firefox share = %.1f%%, want 75.0%%", got)
	}
}
