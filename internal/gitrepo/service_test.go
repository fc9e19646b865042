package gitrepo

import (
	"encoding/json"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(t.TempDir())
}

func baseContent() Content {
	return Content{
		Title:      "First Snow",
		Subtitle:   "Winter of 1988",
		OccurredOn: "1988-12",
		Tags:       []string{"tag_winter", "tag_home"},
		Doc:        json.RawMessage(`{"type":"doc","content":[{"type":"paragraph"}]}`),
	}
}

func TestEnsureEntryRepoCreatesBaseline(t *testing.T) {
	svc := newTestService(t)

	if err := svc.EnsureEntryRepo("entry_1", baseContent(), "June"); err != nil {
		t.Fatalf("EnsureEntryRepo: %v", err)
	}

	content, commit, err := svc.HeadContent("entry_1")
	if err != nil {
		t.Fatalf("HeadContent: %v", err)
	}
	if content.Title != "First Snow" {
		t.Errorf("head title = %q", content.Title)
	}
	if commit.Author != "June" {
		t.Errorf("baseline author = %q", commit.Author)
	}
	if len(commit.Hash) != 7 {
		t.Errorf("commit hash should be abbreviated to 7 chars, got %q", commit.Hash)
	}
}

func TestEnsureEntryRepoIdempotent(t *testing.T) {
	svc := newTestService(t)

	if err := svc.EnsureEntryRepo("entry_1", baseContent(), "June"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	changed := baseContent()
	changed.Title = "Changed"
	if err := svc.EnsureEntryRepo("entry_1", changed, "June"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	content, _, err := svc.HeadContent("entry_1")
	if err != nil {
		t.Fatalf("HeadContent: %v", err)
	}
	if content.Title != "First Snow" {
		t.Errorf("second ensure must not overwrite baseline, got title %q", content.Title)
	}
}

func TestCommitRevisionAndHistory(t *testing.T) {
	svc := newTestService(t)

	if err := svc.EnsureEntryRepo("entry_1", baseContent(), "June"); err != nil {
		t.Fatalf("EnsureEntryRepo: %v", err)
	}

	revised := baseContent()
	revised.Title = "First Snow, Revised"
	commit, err := svc.CommitRevision("entry_1", revised, "June", "Rework the opening")
	if err != nil {
		t.Fatalf("CommitRevision: %v", err)
	}
	if commit.Message != "Rework the opening" {
		t.Errorf("commit message = %q", commit.Message)
	}

	history, err := svc.History("entry_1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].Message != "Rework the opening" || history[1].Message != "Create entry" {
		t.Errorf("history out of order: %q then %q", history[0].Message, history[1].Message)
	}

	limited, err := svc.History("entry_1", 1)
	if err != nil {
		t.Fatalf("History limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d commits", len(limited))
	}
}

func TestGetRevisionByHash(t *testing.T) {
	svc := newTestService(t)

	if err := svc.EnsureEntryRepo("entry_1", baseContent(), "June"); err != nil {
		t.Fatalf("EnsureEntryRepo: %v", err)
	}
	revised := baseContent()
	revised.Subtitle = "Winter of 1989, actually"
	if _, err := svc.CommitRevision("entry_1", revised, "June", "Fix the year"); err != nil {
		t.Fatalf("CommitRevision: %v", err)
	}

	history, err := svc.History("entry_1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	baseline := history[len(history)-1]

	content, err := svc.GetRevision("entry_1", baseline.Hash)
	if err != nil {
		t.Fatalf("GetRevision: %v", err)
	}
	if content.Subtitle != "Winter of 1988" {
		t.Errorf("old revision subtitle = %q", content.Subtitle)
	}
}

func TestDeleteEntryRepo(t *testing.T) {
	svc := newTestService(t)

	if err := svc.EnsureEntryRepo("entry_1", baseContent(), "June"); err != nil {
		t.Fatalf("EnsureEntryRepo: %v", err)
	}
	if err := svc.DeleteEntryRepo("entry_1"); err != nil {
		t.Fatalf("DeleteEntryRepo: %v", err)
	}
	if _, _, err := svc.HeadContent("entry_1"); err == nil {
		t.Fatal("expected error reading a deleted repo")
	}
}

func TestHasChanges(t *testing.T) {
	from := baseContent()

	same := baseContent()
	if HasChanges(from, same) {
		t.Error("identical content reported as changed")
	}

	retitled := baseContent()
	retitled.Title = "New Title"
	if !HasChanges(from, retitled) {
		t.Error("title change not detected")
	}

	retagged := baseContent()
	retagged.Tags = []string{"tag_winter"}
	if !HasChanges(from, retagged) {
		t.Error("tag change not detected")
	}

	// Doc equality is structural, not byte-level.
	reformatted := baseContent()
	reformatted.Doc = json.RawMessage(`{"content":[{"type":"paragraph"}],"type":"doc"}`)
	if HasChanges(from, reformatted) {
		t.Error("reformatted doc reported as changed")
	}

	redoced := baseContent()
	redoced.Doc = json.RawMessage(`{"type":"doc","content":[]}`)
	if !HasChanges(from, redoced) {
		t.Error("doc change not detected")
	}
}
