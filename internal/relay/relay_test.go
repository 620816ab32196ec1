package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/blockduel/internal/identity"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/storage"
)

var quiet = log.New(io.Discard)

type fixture struct {
	server *Server
	http   *httptest.Server
	issuer *identity.Issuer
	store  *storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := identity.NewIssuer("relay-secret", "blockduel", time.Hour)
	require.NoError(t, err)
	store, err := storage.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewServer(issuer, store, quiet)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: srv, http: ts, issuer: issuer, store: store}
}

func (f *fixture) token(t *testing.T, player string) string {
	t.Helper()
	tok, err := f.issuer.Issue(identity.Identity{PlayerID: player, Name: player})
	require.NoError(t, err)
	return tok
}

func (f *fixture) dial(t *testing.T, player string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), f.http.URL, f.token(t, player), quiet)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

type inbox struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (in *inbox) handle(data []byte) {
	in.mu.Lock()
	in.msgs = append(in.msgs, data)
	in.mu.Unlock()
}

func (in *inbox) last() ([]byte, int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.msgs) == 0 {
		return nil, 0
	}
	return in.msgs[len(in.msgs)-1], len(in.msgs)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDialRequiresToken(t *testing.T) {
	f := newFixture(t)
	_, err := Dial(context.Background(), f.http.URL, "bogus", quiet)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestRelayPublishSubscribeAndDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	key := replication.Key{MatchID: "m1", PlayerID: "alice"}

	var got inbox
	unsub, err := bob.Subscribe(ctx, key, got.handle)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, alice.Publish(ctx, key, []byte(`{"score":100}`)))
	require.Eventually(t, func() bool {
		data, _ := got.last()
		return string(data) == `{"score":100}`
	}, 2*time.Second, 10*time.Millisecond)

	// Late subscribers get the current record immediately.
	carol := f.dial(t, "carol")
	var late inbox
	unsubLate, err := carol.Subscribe(ctx, key, late.handle)
	require.NoError(t, err)
	defer unsubLate()
	require.Eventually(t, func() bool {
		data, _ := late.last()
		return string(data) == `{"score":100}`
	}, 2*time.Second, 10*time.Millisecond)

	alice.Close()
	require.Eventually(t, func() bool {
		data, n := got.last()
		return n >= 2 && data == nil
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := f.server.Records().Get(key)
	assert.False(t, ok)
}

func TestRelayRejectsForeignWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.dial(t, "alice")
	own := replication.Key{MatchID: "m1", PlayerID: "alice"}
	foreign := replication.Key{MatchID: "m1", PlayerID: "bob"}

	require.NoError(t, alice.Publish(ctx, foreign, []byte(`{"score":1}`)))
	require.NoError(t, alice.Publish(ctx, own, []byte(`{"score":2}`)))

	require.Eventually(t, func() bool {
		_, ok := f.server.Records().Get(own)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := f.server.Records().Get(foreign)
	assert.False(t, ok, "foreign record was accepted")

	require.NoError(t, alice.Remove(ctx, own))
	require.Eventually(t, func() bool {
		_, ok := f.server.Records().Get(own)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPeerHandleForbidden(t *testing.T) {
	f := newFixture(t)
	p := &peer{
		server: f.server,
		id:     identity.Identity{PlayerID: "alice"},
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		subs:   make(map[replication.Key]func()),
		owned:  make(map[replication.Key]struct{}),
	}

	err := p.handle(Envelope{Type: MsgPublish, Key: "m1/bob", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrForbidden)
	err = p.handle(Envelope{Type: MsgRemove, Key: "m1/bob"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Error(t, p.handle(Envelope{Type: MsgPublish, Key: "nokey"}))
	assert.Error(t, p.handle(Envelope{Type: "bogus", Key: "m1/alice"}))

	require.NoError(t, p.handle(Envelope{Type: MsgPublish, Key: "m1/alice", Payload: []byte(`{}`)}))
	p.cleanup()
	_, ok := f.server.Records().Get(replication.Key{MatchID: "m1", PlayerID: "alice"})
	assert.False(t, ok, "owned record survived disconnect")
}

func TestResultsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.EnsureProfile(ctx, "alice", "Alice")
	require.NoError(t, err)
	_, err = f.store.EnsureProfile(ctx, "bob", "Bob")
	require.NoError(t, err)

	res := multiplayer.BattleResult{
		MatchID:     "m1",
		WinnerID:    "alice",
		LoserID:     "bob",
		WinnerScore: 5000,
		LoserScore:  3000,
		WinnerTime:  100 * time.Second,
		LoserTime:   80 * time.Second,
		Reason:      multiplayer.ReasonScore,
	}

	aliceAPI := NewClient(f.http.URL, f.token(t, "alice"), quiet)
	bobAPI := NewClient(f.http.URL, f.token(t, "bob"), quiet)

	first, err := aliceAPI.RecordBattle(ctx, res)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, 18, first.WinnerDelta)
	assert.Equal(t, -14, first.LoserDelta)

	second, err := bobAPI.RecordBattle(ctx, res)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, 1018, second.WinnerRating)

	alice, err := bobAPI.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1018, alice.Rating)
	assert.Equal(t, 1, alice.Wins)

	outsider := NewClient(f.http.URL, f.token(t, "mallory"), quiet)
	_, err = outsider.RecordBattle(ctx, res)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))

	anon := NewClient(f.http.URL, "", quiet)
	_, err = anon.RecordBattle(ctx, res)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	res.MatchID = "m2"
	res.LoserID = "ghost"
	_, err = aliceAPI.RecordBattle(ctx, res)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestScoresAndLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := NewClient(f.http.URL, f.token(t, "alice"), quiet)
	bob := NewClient(f.http.URL, f.token(t, "bob"), quiet)

	xp, err := alice.SubmitScore(ctx, ScoreRequest{Score: 1200, Lines: 4, Level: 1})
	require.NoError(t, err)
	assert.Equal(t, 120+20+10, xp)
	_, err = bob.SubmitScore(ctx, ScoreRequest{Score: 3400, Lines: 10, Level: 2})
	require.NoError(t, err)

	top, err := alice.Leaderboard(ctx, ByScore, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].PlayerID)
	assert.Equal(t, "alice", top[1].DisplayName)

	_, err = alice.Leaderboard(ctx, "speed", 10)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))

	_, err = alice.Profile(ctx, "nobody")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestDuelOverRelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	key := replication.Key{MatchID: "m1", PlayerID: "alice"}

	mirror, err := replication.Follow(ctx, bob, key, quiet)
	require.NoError(t, err)
	defer mirror.Close()

	snap := replication.EmptySnapshot()
	snap.Score = 4200
	snap.StartTime = time.Now().UnixMilli()
	data, err := snap.Encode()
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, key, data))

	require.Eventually(t, func() bool {
		st := mirror.State()
		return st.Received && st.Snapshot.Score == 4200
	}, 2*time.Second, 10*time.Millisecond)
}
