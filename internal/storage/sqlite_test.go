package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func ptr[T any](v T) *T { return &v }

func TestStoreOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestProfileMerge(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p, err := store.GetProfile(ctx, "alice")
	if err != nil || p != nil {
		t.Fatalf("GetProfile on empty store = %v, %v", p, err)
	}

	if err := store.SetProfile(ctx, "alice", ProfileUpdate{DisplayName: ptr("Alice"), Wins: ptr(3)}, true); err != nil {
		t.Fatalf("SetProfile() failed: %v", err)
	}
	if err := store.SetProfile(ctx, "alice", ProfileUpdate{Losses: ptr(2)}, true); err != nil {
		t.Fatalf("SetProfile() failed: %v", err)
	}
	p, err = store.GetProfile(ctx, "alice")
	if err != nil || p == nil {
		t.Fatalf("GetProfile() = %v, %v", p, err)
	}
	if p.DisplayName != "Alice" || p.Wins != 3 || p.Losses != 2 || p.Rating != 1000 {
		t.Errorf("merged profile = %+v", p)
	}

	if err := store.SetProfile(ctx, "alice", ProfileUpdate{Losses: ptr(1)}, false); err != nil {
		t.Fatalf("SetProfile(replace) failed: %v", err)
	}
	p, _ = store.GetProfile(ctx, "alice")
	if p.DisplayName != "" || p.Wins != 0 || p.Losses != 1 {
		t.Errorf("replaced profile = %+v", p)
	}
}

func TestEnsureProfile(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p, err := store.EnsureProfile(ctx, "bob", "")
	if err != nil {
		t.Fatalf("EnsureProfile() failed: %v", err)
	}
	if p.Rating != 1000 || p.Wins != 0 || p.Losses != 0 {
		t.Errorf("default profile = %+v", p)
	}
	p, _ = store.EnsureProfile(ctx, "bob", "Bob")
	if p.DisplayName != "Bob" {
		t.Errorf("display name not filled in: %q", p.DisplayName)
	}
	p, _ = store.EnsureProfile(ctx, "bob", "Robert")
	if p.DisplayName != "Bob" {
		t.Errorf("existing display name overwritten: %q", p.DisplayName)
	}
}

func TestSaveGameScore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	xp, err := store.SaveGameScore(ctx, GameScore{PlayerID: "alice", DisplayName: "Alice", Score: 5230, Lines: 12, Level: 2, Pieces: 60, Duration: 90 * time.Second})
	if err != nil {
		t.Fatalf("SaveGameScore() failed: %v", err)
	}
	if want := 523 + 60 + 20; xp != want {
		t.Errorf("xp = %d, want %d", xp, want)
	}
	if _, err := store.SaveGameScore(ctx, GameScore{PlayerID: "alice", Score: 800, Lines: 1, Level: 1}); err != nil {
		t.Fatalf("SaveGameScore() failed: %v", err)
	}

	p, _ := store.GetProfile(ctx, "alice")
	if p == nil {
		t.Fatal("profile not created")
	}
	if p.BestScore != 5230 || p.TotalGames != 2 || p.TotalLines != 13 || p.TotalScore != 6030 {
		t.Errorf("profile totals = %+v", p)
	}
	if p.TotalXP != xp+80+5+10 {
		t.Errorf("total xp = %d", p.TotalXP)
	}
	if p.Rating != 1000 || p.DisplayName != "Alice" {
		t.Errorf("defaults not applied: %+v", p)
	}

	recent, err := store.RecentScores(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentScores() failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Score != 800 || recent[1].Duration != 90*time.Second {
		t.Errorf("recent scores = %+v", recent)
	}

	if _, err := store.SaveGameScore(ctx, GameScore{Score: 1}); err == nil {
		t.Error("empty player id accepted")
	}
}

func sampleBattle(id multiplayer.MatchID) multiplayer.BattleResult {
	return multiplayer.BattleResult{
		MatchID:     id,
		WinnerID:    "alice",
		LoserID:     "bob",
		WinnerScore: 5000,
		LoserScore:  3000,
		WinnerTime:  100 * time.Second,
		LoserTime:   80 * time.Second,
		Reason:      multiplayer.ReasonScore,
	}
}

func TestRecordBattle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	store.EnsureProfile(ctx, "alice", "Alice")
	store.EnsureProfile(ctx, "bob", "Bob")

	rec, err := store.RecordBattle(ctx, sampleBattle("m1"))
	if err != nil {
		t.Fatalf("RecordBattle() failed: %v", err)
	}
	if !rec.Applied || rec.WinnerDelta != 18 || rec.LoserDelta != -14 {
		t.Errorf("record = %+v", rec)
	}
	if rec.WinnerRating != 1018 || rec.LoserRating != 986 {
		t.Errorf("ratings = %d %d", rec.WinnerRating, rec.LoserRating)
	}

	alice, _ := store.GetProfile(ctx, "alice")
	bob, _ := store.GetProfile(ctx, "bob")
	if alice.Rating != 1018 || alice.Wins != 1 || bob.Rating != 986 || bob.Losses != 1 {
		t.Errorf("profiles: alice %+v bob %+v", alice, bob)
	}

	again, err := store.RecordBattle(ctx, sampleBattle("m1"))
	if err != nil {
		t.Fatalf("duplicate RecordBattle() failed: %v", err)
	}
	if again.Applied || again.WinnerDelta != 18 || again.Result.LoserTime != 80*time.Second {
		t.Errorf("duplicate record = %+v", again)
	}
	alice, _ = store.GetProfile(ctx, "alice")
	if alice.Rating != 1018 || alice.Wins != 1 {
		t.Errorf("duplicate submission changed profile: %+v", alice)
	}

	history, err := store.RecentBattles(ctx, "bob", 5)
	if err != nil || len(history) != 1 || history[0].Result.Reason != multiplayer.ReasonScore {
		t.Errorf("RecentBattles() = %+v, %v", history, err)
	}
	stored, err := store.Battle(ctx, "m1")
	if err != nil || stored == nil || stored.Result.WinnerID != "alice" {
		t.Errorf("Battle() = %+v, %v", stored, err)
	}
	missing, err := store.Battle(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Battle(nope) = %+v, %v", missing, err)
	}
}

func TestRecordBattleNeedsProfiles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	store.EnsureProfile(ctx, "alice", "")

	_, err := store.RecordBattle(ctx, sampleBattle("m2"))
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
	if b, _ := store.Battle(ctx, "m2"); b != nil {
		t.Error("failed submission left a battle row")
	}
	alice, _ := store.GetProfile(ctx, "alice")
	if alice.Wins != 0 || alice.Rating != 1000 {
		t.Errorf("failed submission changed alice: %+v", alice)
	}
}

func TestRecordBattleConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	store.EnsureProfile(ctx, "alice", "")
	store.EnsureProfile(ctx, "bob", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := store.RecordBattle(ctx, sampleBattle("race"))
			if err != nil {
				t.Errorf("RecordBattle() failed: %v", err)
				return
			}
			if rec.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Errorf("applied %d times, want 1", applied)
	}
	alice, _ := store.GetProfile(ctx, "alice")
	if alice.Wins != 1 {
		t.Errorf("alice wins = %d, want 1", alice.Wins)
	}
}

func TestLeaderboards(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	store.SetProfile(ctx, "a", ProfileUpdate{BestScore: ptr(100), Rating: ptr(1200)}, true)
	store.SetProfile(ctx, "b", ProfileUpdate{BestScore: ptr(900), Rating: ptr(900)}, true)
	store.SetProfile(ctx, "c", ProfileUpdate{BestScore: ptr(500), Rating: ptr(1100)}, true)

	byScore, err := store.TopScores(ctx, 2)
	if err != nil {
		t.Fatalf("TopScores() failed: %v", err)
	}
	if len(byScore) != 2 || byScore[0].PlayerID != "b" || byScore[1].PlayerID != "c" {
		t.Errorf("TopScores = %+v", byScore)
	}

	byRating, err := store.TopRated(ctx, 0)
	if err != nil {
		t.Fatalf("TopRated() failed: %v", err)
	}
	if len(byRating) != 3 || byRating[0].PlayerID != "a" || byRating[2].PlayerID != "b" {
		t.Errorf("TopRated = %+v", byRating)
	}
	if byRating[0].Rank().Name != "Novice Blocker" || byRating[0].Level() != 1 {
		t.Errorf("derived fields: %s level %d", byRating[0].Rank().Name, byRating[0].Level())
	}
}
