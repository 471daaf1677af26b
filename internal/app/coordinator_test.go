package app

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sync"
	"testing"
	"time"

	"unostake/internal/domain"
	"unostake/internal/ports"
	"unostake/internal/token"
)

const testMatchID = "6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b"

func newTestCoordinator(g *fakeGateway, pub *recordingPublisher) *Coordinator {
	opts := Options{
		Rng:         rand.New(rand.NewSource(42)),
		StakeTiers:  map[string]string{"low": "0.1", "high": "5"},
		DefaultTier: "low",
	}
	if pub != nil {
		opts.Publisher = pub
	}
	return NewCoordinator(g, opts)
}

func tenth() *big.Int {
	v, _ := token.ParseUnits("0.1", token.RewardDecimals)
	return v
}

func mustCreate(t *testing.T, c *Coordinator, autoStake bool) MatchHandle {
	t.Helper()
	h, err := c.CreateMatch(context.Background(), CreateMatchRequest{
		MatchID:   testMatchID,
		Player1:   alice,
		Player2:   bob,
		Stake:     tenth(),
		AutoStake: autoStake,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	return h
}

func mustStakeBoth(t *testing.T, c *Coordinator) {
	t.Helper()
	for _, p := range []ports.Address{alice, bob} {
		if _, err := c.RequestStake(context.Background(), testMatchID, p); err != nil {
			t.Fatalf("stake %s: %v", p, err)
		}
	}
}

// mustBegin draws a card for the player on turn so the game is in progress.
func mustBegin(t *testing.T, c *Coordinator) {
	t.Helper()
	v, err := c.Match(testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.DrawCard(context.Background(), testMatchID, v.Game.CurrentPlayer); err != nil {
		t.Fatalf("draw: %v", err)
	}
	mustStatus(t, c, StatusInProgress)
}

// rig replaces the dealt hands so a test controls the game.
func rig(t *testing.T, c *Coordinator, hands [2][]domain.Card, top domain.Card) {
	t.Helper()
	e, err := c.lookup(testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.match.Session
	s.Hands = hands
	s.Discard = []domain.Card{top}
	s.ActiveColor = top.Color
	s.CurrentPlayerIndex = 0
}

func num(color domain.Color, v string) domain.Card {
	return domain.Card{Color: color, Value: v, Kind: domain.KindNumber}
}

func mustStatus(t *testing.T, c *Coordinator, want Status) MatchView {
	t.Helper()
	v, err := c.Match(testMatchID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if v.Status != want {
		t.Fatalf("status = %s, want %s", v.Status, want)
	}
	return v
}

func TestCreateMatchValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateMatchRequest
		want error
	}{
		{"bad player1", CreateMatchRequest{Player1: "0x123", Player2: bob, Stake: tenth()}, ErrInvalidAddress},
		{"bad player2", CreateMatchRequest{Player1: alice, Player2: "alice", Stake: tenth()}, ErrInvalidAddress},
		{"same player", CreateMatchRequest{Player1: carol, Player2: "0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC", Stake: tenth()}, ErrInvalidAddress},
		{"zero stake", CreateMatchRequest{Player1: alice, Player2: bob, Stake: big.NewInt(0)}, ErrInvalidStake},
		{"negative stake", CreateMatchRequest{Player1: alice, Player2: bob, Stake: big.NewInt(-1)}, ErrInvalidStake},
		{"nil stake", CreateMatchRequest{Player1: alice, Player2: bob}, ErrInvalidStake},
		{"bad id", CreateMatchRequest{MatchID: "0xnothex", Player1: alice, Player2: bob, Stake: tenth()}, ErrInvalidMatchID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			c := newTestCoordinator(g, nil)
			_, err := c.CreateMatch(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("kind = %s, want validation", KindOf(err))
			}
			if g.creates != 0 {
				t.Fatal("ledger must not be called for invalid input")
			}
		})
	}
}

func TestCreateMatchDealsAndRegisters(t *testing.T) {
	g := newFakeGateway()
	pub := &recordingPublisher{}
	c := newTestCoordinator(g, pub)

	h := mustCreate(t, c, false)
	if h.Match.Status != StatusCreated {
		t.Fatalf("status = %s", h.Match.Status)
	}
	if h.Match.MatchID != testMatchID {
		t.Fatalf("match id = %s", h.Match.MatchID)
	}
	if h.Match.LedgerKey != "0x6f1c2a9e3b4d4e5f8a7b9c0d1e2f3a4b00000000000000000000000000000000" {
		t.Fatalf("ledger key = %s", h.Match.LedgerKey)
	}
	if h.Match.Stake != "0.1" || h.Match.StakeWei != "100000000000000000" {
		t.Fatalf("stake = %s (%s wei)", h.Match.Stake, h.Match.StakeWei)
	}
	if h.Match.Game == nil || h.Match.Game.HandSizes != [2]int{7, 7} {
		t.Fatalf("game = %+v", h.Match.Game)
	}
	if h.Receipt.TxHash == "" || h.AutoStake != nil || h.AutoStakeErr != nil {
		t.Fatalf("handle = %+v", h)
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != string(EventMatchCreated) {
		t.Fatalf("events = %v", kinds)
	}
}

func TestCreateMatchGeneratesID(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	h1, err := c.CreateMatch(context.Background(), CreateMatchRequest{Player1: alice, Player2: bob, Stake: tenth()})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c.CreateMatch(context.Background(), CreateMatchRequest{Player1: alice, Player2: bob, Stake: tenth()})
	if err != nil {
		t.Fatal(err)
	}
	if h1.Match.MatchID == h2.Match.MatchID {
		t.Fatal("generated ids must differ")
	}
	if _, err := ParseMatchID(h1.Match.MatchID); err != nil {
		t.Fatalf("generated id does not parse: %v", err)
	}
}

func TestCreateMatchDuplicate(t *testing.T) {
	g := newFakeGateway()
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)

	_, err := c.CreateMatch(context.Background(), CreateMatchRequest{
		MatchID: "0x6f1c2a9e3b4d4e5f8a7b9c0d1e2f3a4b",
		Player1: alice,
		Player2: bob,
		Stake:   tenth(),
	})
	if !errors.Is(err, ErrDuplicateMatch) {
		t.Fatalf("err = %v, want ErrDuplicateMatch", err)
	}
	if KindOf(err) != KindStateConflict {
		t.Fatalf("kind = %s", KindOf(err))
	}
	if g.creates != 1 {
		t.Fatalf("ledger creates = %d, want 1", g.creates)
	}
}

func TestCreateMatchLedgerFailureIsNotRegistered(t *testing.T) {
	g := newFakeGateway()
	g.createErr = errRPC
	c := newTestCoordinator(g, nil)

	_, err := c.CreateMatch(context.Background(), CreateMatchRequest{MatchID: testMatchID, Player1: alice, Player2: bob, Stake: tenth()})
	if KindOf(err) != KindLedger || !errors.Is(err, errRPC) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.Match(testMatchID); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("match lookup err = %v, want ErrUnknownMatch", err)
	}

	g.createErr = nil
	mustCreate(t, c, false)
}

func TestRequestStakeIsIdempotent(t *testing.T) {
	g := newFakeGateway()
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)

	res, err := c.RequestStake(context.Background(), testMatchID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if res.AlreadyStaked || res.Status != StatusPartiallyStaked {
		t.Fatalf("first stake = %+v", res)
	}

	// Same player, different hex case.
	res, err = c.RequestStake(context.Background(), testMatchID, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadyStaked {
		t.Fatal("repeat stake must be a no-op")
	}
	if g.stakeCount() != 1 {
		t.Fatalf("ledger stakes = %d, want 1", g.stakeCount())
	}
	mustStatus(t, c, StatusPartiallyStaked)

	if _, err := c.RequestStake(context.Background(), testMatchID, bob); err != nil {
		t.Fatal(err)
	}
	v := mustStatus(t, c, StatusFullyStaked)
	if len(v.StakedBy) != 2 {
		t.Fatalf("staked by = %v", v.StakedBy)
	}
}

func TestRequestStakeUnauthorized(t *testing.T) {
	g := newFakeGateway()
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)

	_, err := c.RequestStake(context.Background(), testMatchID, carol)
	if !errors.Is(err, ErrUnauthorizedPlayer) {
		t.Fatalf("err = %v, want ErrUnauthorizedPlayer", err)
	}
	if g.stakeCount() != 0 {
		t.Fatal("ledger must not be called")
	}

	_, err = c.RequestStake(context.Background(), "0f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b", alice)
	if !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("err = %v, want ErrUnknownMatch", err)
	}
}

func TestRequestStakeLedgerFailureFailsMatch(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *fakeGateway)
		code  error
	}{
		{"call error", func(g *fakeGateway) { g.stakeErr[bob] = errRPC }, ErrLedgerCall},
		{"reverted", func(g *fakeGateway) { g.stakeRevert[bob] = "insufficient balance" }, ErrLedgerReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			pub := &recordingPublisher{}
			c := newTestCoordinator(g, pub)
			mustCreate(t, c, true)
			tt.setup(g)

			_, err := c.RequestStake(context.Background(), testMatchID, bob)
			if !errors.Is(err, tt.code) || KindOf(err) != KindLedger {
				t.Fatalf("err = %v", err)
			}
			v := mustStatus(t, c, StatusFailed)
			if v.Failure == "" || v.Game != nil {
				t.Fatalf("failed match view = %+v", v)
			}

			if _, err := c.RequestStake(context.Background(), testMatchID, bob); !errors.Is(err, ErrMatchClosed) {
				t.Fatalf("stake after failure err = %v, want ErrMatchClosed", err)
			}
			kinds := pub.kinds()
			if kinds[len(kinds)-1] != string(EventMatchFailed) {
				t.Fatalf("events = %v", kinds)
			}
		})
	}
}

func TestAutoStakeFailureIsNonFatal(t *testing.T) {
	g := newFakeGateway()
	g.stakeErr[alice] = errRPC
	pub := &recordingPublisher{}
	c := newTestCoordinator(g, pub)

	h := mustCreate(t, c, true)
	if h.AutoStakeErr == nil || !errors.Is(h.AutoStakeErr, errRPC) {
		t.Fatalf("auto-stake err = %v", h.AutoStakeErr)
	}
	if h.AutoStake != nil {
		t.Fatal("no receipt expected for a failed auto-stake")
	}
	if h.Match.Status != StatusCreated {
		t.Fatalf("status = %s, want created", h.Match.Status)
	}
	mustStatus(t, c, StatusCreated)

	delete(g.stakeErr, alice)
	res, err := c.RequestStake(context.Background(), testMatchID, alice)
	if err != nil || res.Status != StatusPartiallyStaked {
		t.Fatalf("manual stake = %+v %v", res, err)
	}
	kinds := pub.kinds()
	if kinds[1] != string(EventAutoStakeFailed) {
		t.Fatalf("events = %v", kinds)
	}
}

func TestRevertedAutoStakeLeavesMatchUntouched(t *testing.T) {
	g := newFakeGateway()
	g.stakeRevert[alice] = "insufficient balance"
	c := newTestCoordinator(g, nil)

	h := mustCreate(t, c, true)
	if !errors.Is(h.AutoStakeErr, ErrLedgerReverted) {
		t.Fatalf("auto-stake err = %v", h.AutoStakeErr)
	}
	v := mustStatus(t, c, StatusCreated)
	if len(v.Receipts) != 1 || v.Receipts[0].Op != "createMatch" {
		t.Fatalf("receipts = %+v", v.Receipts)
	}

	// An explicit stake request keeps the reverted receipt.
	if _, err := c.RequestStake(context.Background(), testMatchID, alice); !errors.Is(err, ErrLedgerReverted) {
		t.Fatalf("err = %v", err)
	}
	v = mustStatus(t, c, StatusFailed)
	if len(v.Receipts) != 2 || v.Receipts[1].Success {
		t.Fatalf("receipts = %+v", v.Receipts)
	}
}

func TestPartiallyStakedVisibleWhileStakeHangs(t *testing.T) {
	g := newFakeGateway()
	block := make(chan struct{})
	g.stakeBlock[bob] = block
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, true)
	mustStatus(t, c, StatusPartiallyStaked)

	done := make(chan error, 1)
	go func() {
		_, err := c.RequestStake(context.Background(), testMatchID, bob)
		done <- err
	}()

	// Wait until bob's stake has reached the ledger.
	deadline := time.Now().Add(2 * time.Second)
	for g.stakeCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("stake never reached the ledger")
		}
		time.Sleep(5 * time.Millisecond)
	}

	read := make(chan MatchView, 1)
	go func() {
		v, _ := c.Match(testMatchID)
		read <- v
	}()
	select {
	case v := <-read:
		if v.Status != StatusPartiallyStaked || len(v.StakedBy) != 1 || !v.StakedBy[0].Equal(alice) {
			t.Fatalf("view = %s staked by %v", v.Status, v.StakedBy)
		}
	case <-time.After(time.Second):
		t.Fatal("Match blocked while a stake was in flight")
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	mustStatus(t, c, StatusFullyStaked)
}

func TestConverterOption(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	if got := c.Converter(); got != token.DefaultConverter {
		t.Fatalf("default converter = %+v", got)
	}

	whole := token.Converter{}
	c = NewCoordinator(newFakeGateway(), Options{Converter: &whole})
	if got := c.Converter(); got != whole {
		t.Fatalf("converter = %+v, want zero decimals kept", got)
	}
}

func TestMovesRequireBothStakes(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, true)

	before, _ := c.Match(testMatchID)
	_, err := c.PlayMove(context.Background(), MoveRequest{MatchID: testMatchID, Player: alice, CardIndex: 0})
	if !errors.Is(err, ErrStakesPending) {
		t.Fatalf("play err = %v, want ErrStakesPending", err)
	}
	if _, err := c.DrawCard(context.Background(), testMatchID, alice); !errors.Is(err, ErrStakesPending) {
		t.Fatalf("draw err = %v, want ErrStakesPending", err)
	}
	after, _ := c.Match(testMatchID)
	if *after.Game != *before.Game {
		t.Fatal("rejected moves must not change the game")
	}
}

func TestEndToEndStakedMatch(t *testing.T) {
	g := newFakeGateway()
	pub := &recordingPublisher{}
	c := newTestCoordinator(g, pub)
	auto := true

	h, err := c.StartMatch(context.Background(), StartMatchRequest{
		MatchID:   testMatchID,
		Player1:   alice,
		Player2:   bob,
		Stake:     "0.1",
		AutoStake: &auto,
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.AutoStakeErr != nil || h.AutoStake == nil {
		t.Fatalf("auto-stake = %+v %v", h.AutoStake, h.AutoStakeErr)
	}
	if h.Match.Status != StatusPartiallyStaked {
		t.Fatalf("status = %s", h.Match.Status)
	}
	if _, err := c.RequestStake(context.Background(), testMatchID, bob); err != nil {
		t.Fatal(err)
	}
	mustStatus(t, c, StatusFullyStaked)

	rig(t, c, [2][]domain.Card{
		{num(domain.ColorRed, "5"), num(domain.ColorBlue, "9")},
		{num(domain.ColorRed, "7")},
	}, num(domain.ColorRed, "3"))

	res, err := c.PlayMove(context.Background(), MoveRequest{MatchID: testMatchID, Player: alice, CardIndex: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.NextPlayer != bob || res.Status != StatusInProgress || res.Winner != "" {
		t.Fatalf("first move = %+v", res)
	}

	res, err = c.PlayMove(context.Background(), MoveRequest{MatchID: testMatchID, Player: bob, CardIndex: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != bob || res.Status != StatusCompleted || res.Commit == nil {
		t.Fatalf("winning move = %+v", res)
	}

	v := mustStatus(t, c, StatusCompleted)
	if v.Winner != bob {
		t.Fatalf("winner = %s", v.Winner)
	}
	if v.LoserScore != 9 {
		t.Fatalf("loser score = %d, want 9", v.LoserScore)
	}
	if v.Game != nil {
		t.Fatal("session must be dropped once terminal")
	}
	if len(v.Receipts) != 4 {
		t.Fatalf("receipts = %d, want 4", len(v.Receipts))
	}
	if g.commitCount() != 1 || g.commits[0] != bob {
		t.Fatalf("commits = %v", g.commits)
	}

	want := []string{"created", "stake_confirmed", "stake_confirmed", "move_played", "move_played", "result_pending", "completed"}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestIllegalMovesLeaveMatchUnchanged(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)
	rig(t, c, [2][]domain.Card{
		{num(domain.ColorBlue, "5")},
		{num(domain.ColorRed, "7")},
	}, num(domain.ColorRed, "3"))

	tests := []struct {
		name string
		req  MoveRequest
		want error
	}{
		{"not matching", MoveRequest{Player: alice, CardIndex: 0}, domain.ErrIllegalMove},
		{"off turn", MoveRequest{Player: bob, CardIndex: 0}, domain.ErrIllegalMove},
		{"out of range", MoveRequest{Player: alice, CardIndex: 3}, domain.ErrIllegalMove},
		{"stranger", MoveRequest{Player: carol, CardIndex: 0}, ErrUnauthorizedPlayer},
		{"bad color", MoveRequest{Player: alice, CardIndex: 0, Color: "purple"}, ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.MatchID = testMatchID
			_, err := c.PlayMove(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	v := mustStatus(t, c, StatusFullyStaked)
	if v.Game.HandSizes != [2]int{1, 1} || v.Game.CurrentPlayer != alice {
		t.Fatalf("game = %+v", v.Game)
	}
}

func TestDrawCardKeepsTurn(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)

	res, err := c.DrawCard(context.Background(), testMatchID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if res.HandSize != 8 || res.Status != StatusInProgress {
		t.Fatalf("draw = %+v", res)
	}
	v, _ := c.Match(testMatchID)
	if v.Game.CurrentPlayer != alice {
		t.Fatalf("turn moved to %s", v.Game.CurrentPlayer)
	}
	if _, err := c.DrawCard(context.Background(), testMatchID, bob); !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("off-turn draw err = %v", err)
	}
}

func TestDrawFromEmptyDeck(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)

	e, _ := c.lookup(testMatchID)
	e.mu.Lock()
	e.match.Session.Deck = nil
	e.mu.Unlock()

	_, err := c.DrawCard(context.Background(), testMatchID, alice)
	if !errors.Is(err, domain.ErrEmptyDeck) || KindOf(err) != KindResourceExhausted {
		t.Fatalf("err = %v (kind %s)", err, KindOf(err))
	}
	mustStatus(t, c, StatusFullyStaked)
}

func TestRecordWinCommitsOnce(t *testing.T) {
	g := newFakeGateway()
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)
	mustBegin(t, c)

	var wg sync.WaitGroup
	var mu sync.Mutex
	duplicates := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.RecordWin(context.Background(), testMatchID, alice)
			if err != nil {
				t.Errorf("record win: %v", err)
				return
			}
			if out.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if g.commitCount() != 1 {
		t.Fatalf("ledger commits = %d, want 1", g.commitCount())
	}
	if duplicates != 9 {
		t.Fatalf("duplicates = %d, want 9", duplicates)
	}
	v := mustStatus(t, c, StatusCompleted)
	if v.Winner != alice {
		t.Fatalf("winner = %s", v.Winner)
	}
}

func TestRecordWinPreconditions(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, false)

	if _, err := c.RecordWin(context.Background(), testMatchID, alice); !errors.Is(err, ErrStakesPending) {
		t.Fatalf("err = %v, want ErrStakesPending", err)
	}
	mustStakeBoth(t, c)
	if _, err := c.RecordWin(context.Background(), testMatchID, carol); !errors.Is(err, ErrUnauthorizedPlayer) {
		t.Fatalf("err = %v, want ErrUnauthorizedPlayer", err)
	}
	mustBegin(t, c)

	e, _ := c.lookup(testMatchID)
	e.mu.Lock()
	e.match.Session.WinnerIndex = 1
	e.mu.Unlock()
	if _, err := c.RecordWin(context.Background(), testMatchID, alice); !errors.Is(err, ErrWinnerMismatch) {
		t.Fatalf("err = %v, want ErrWinnerMismatch", err)
	}
	mustStatus(t, c, StatusInProgress)
}

func TestRecordWinBeforeFirstMove(t *testing.T) {
	g := newFakeGateway()
	pub := &recordingPublisher{}
	c := newTestCoordinator(g, pub)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)

	_, err := c.RecordWin(context.Background(), testMatchID, alice)
	if !errors.Is(err, ErrGameNotStarted) || KindOf(err) != KindStateConflict {
		t.Fatalf("err = %v, want ErrGameNotStarted", err)
	}
	if g.commitCount() != 0 {
		t.Fatalf("ledger commits = %d, want 0", g.commitCount())
	}
	mustStatus(t, c, StatusFullyStaked)
	for _, kind := range pub.kinds() {
		if kind == string(EventResultPending) {
			t.Fatalf("events = %v", pub.kinds())
		}
	}

	mustBegin(t, c)
	out, err := c.RecordWin(context.Background(), testMatchID, alice)
	if err != nil || out.Status != StatusCompleted {
		t.Fatalf("forfeit after first move = %+v %v", out, err)
	}
}

func TestCommitFailureFailsMatch(t *testing.T) {
	g := newFakeGateway()
	g.commitErr = errRPC
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)
	rig(t, c, [2][]domain.Card{
		{num(domain.ColorRed, "5")},
		{num(domain.ColorRed, "7")},
	}, num(domain.ColorRed, "3"))

	res, err := c.PlayMove(context.Background(), MoveRequest{MatchID: testMatchID, Player: alice, CardIndex: 0})
	if KindOf(err) != KindLedger {
		t.Fatalf("err = %v, want ledger error", err)
	}
	if res.Winner != alice || res.Status != StatusFailed || res.Commit != nil {
		t.Fatalf("result = %+v", res)
	}
	mustStatus(t, c, StatusFailed)

	out, err := c.RecordWin(context.Background(), testMatchID, alice)
	if err != nil || !out.Duplicate {
		t.Fatalf("second signal = %+v %v", out, err)
	}
	if g.commitCount() != 1 {
		t.Fatalf("ledger commits = %d, want 1", g.commitCount())
	}
}

func TestResultPendingVisibleWhileCommitHangs(t *testing.T) {
	g := newFakeGateway()
	g.commitBlock = make(chan struct{})
	c := newTestCoordinator(g, nil)
	mustCreate(t, c, false)
	mustStakeBoth(t, c)
	mustBegin(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.RecordWin(context.Background(), testMatchID, bob)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := c.Match(testMatchID)
		if err != nil {
			t.Fatal(err)
		}
		if v.Status == StatusResultPending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, want result_pending", v.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(g.commitBlock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	mustStatus(t, c, StatusCompleted)
}

func TestPurchase(t *testing.T) {
	g := newFakeGateway()
	pub := &recordingPublisher{}
	c := newTestCoordinator(g, pub)

	res, err := c.Purchase(context.Background(), PurchaseRequest{Amount: "10", Buyer: carol})
	if err != nil {
		t.Fatal(err)
	}
	wantReward, _ := token.ParseUnits("100", token.RewardDecimals)
	if res.Reward.Cmp(wantReward) != 0 {
		t.Fatalf("reward = %s, want %s", res.Reward, wantReward)
	}
	if res.Amount.Int64() != 10_000_000 || res.Rate.Int64() != 10 {
		t.Fatalf("result = %+v", res)
	}
	if g.buyers[0] != carol || g.buys[0].Int64() != 10_000_000 {
		t.Fatalf("buy call = %v %v", g.buyers, g.buys)
	}
	if kinds := pub.kinds(); kinds[0] != string(EventPurchaseCompleted) {
		t.Fatalf("events = %v", kinds)
	}
}

func TestPurchaseErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   PurchaseRequest
		setup func(g *fakeGateway)
		want  error
		kind  Kind
	}{
		{"bad buyer", PurchaseRequest{Amount: "1", Buyer: "bob"}, nil, ErrInvalidAddress, KindValidation},
		{"zero amount", PurchaseRequest{Amount: "0", Buyer: carol}, nil, ErrInvalidAmount, KindValidation},
		{"garbage amount", PurchaseRequest{Amount: "ten", Buyer: carol}, nil, ErrInvalidAmount, KindValidation},
		{"too precise", PurchaseRequest{Amount: "0.0000001", Buyer: carol}, nil, ErrInvalidAmount, KindValidation},
		{"rate unavailable", PurchaseRequest{Amount: "1", Buyer: carol}, func(g *fakeGateway) { g.rateErr = errRPC }, ErrLedgerCall, KindLedger},
		{"buy fails", PurchaseRequest{Amount: "1", Buyer: carol}, func(g *fakeGateway) { g.buyErr = errRPC }, ErrLedgerCall, KindLedger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			if tt.setup != nil {
				tt.setup(g)
			}
			c := newTestCoordinator(g, nil)
			_, err := c.Purchase(context.Background(), tt.req)
			if !errors.Is(err, tt.want) || KindOf(err) != tt.kind {
				t.Fatalf("err = %v (kind %s), want %v (%s)", err, KindOf(err), tt.want, tt.kind)
			}
		})
	}
}

func TestStartMatchStakeTiers(t *testing.T) {
	tests := []struct {
		name  string
		stake string
		tier  string
		want  string
		err   error
	}{
		{"default tier", "", "", "0.1", nil},
		{"named tier", "", "high", "5", nil},
		{"explicit stake wins", "2.5", "high", "2.5", nil},
		{"unknown tier", "", "gold", "", ErrInvalidStake},
		{"zero stake", "0", "", "", ErrInvalidStake},
		{"malformed stake", "1.2.3", "", "", ErrInvalidStake},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(newFakeGateway(), nil)
			h, err := c.StartMatch(context.Background(), StartMatchRequest{Player1: alice, Player2: bob, Stake: tt.stake, Tier: tt.tier})
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if h.Match.Stake != tt.want {
				t.Fatalf("stake = %s, want %s", h.Match.Stake, tt.want)
			}
		})
	}
}

func TestStartMatchAutoStakeDefault(t *testing.T) {
	g := newFakeGateway()
	c := NewCoordinator(g, Options{Rng: rand.New(rand.NewSource(1)), AutoStake: true})

	h, err := c.StartMatch(context.Background(), StartMatchRequest{Player1: alice, Player2: bob, Stake: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if h.Match.Status != StatusPartiallyStaked {
		t.Fatalf("status = %s, want partially_staked", h.Match.Status)
	}

	off := false
	h, err = c.StartMatch(context.Background(), StartMatchRequest{Player1: alice, Player2: bob, Stake: "1", AutoStake: &off})
	if err != nil {
		t.Fatal(err)
	}
	if h.Match.Status != StatusCreated {
		t.Fatalf("status = %s, want created", h.Match.Status)
	}
}

func TestMatchesAreIndependent(t *testing.T) {
	g := newFakeGateway()
	c := newTestCoordinator(g, nil)

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		h, err := c.CreateMatch(context.Background(), CreateMatchRequest{Player1: alice, Player2: bob, Stake: tenth()})
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = h.Match.MatchID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for _, p := range []ports.Address{alice, bob, alice} {
			wg.Add(1)
			go func(id string, p ports.Address) {
				defer wg.Done()
				if _, err := c.RequestStake(context.Background(), id, p); err != nil {
					t.Errorf("stake %s %s: %v", id, p, err)
				}
			}(id, p)
		}
	}
	wg.Wait()

	if g.stakeCount() != 2*n {
		t.Fatalf("ledger stakes = %d, want %d", g.stakeCount(), 2*n)
	}
	for _, id := range ids {
		v, _ := c.Match(id)
		if v.Status != StatusFullyStaked {
			t.Fatalf("%s status = %s", id, v.Status)
		}
	}
}

func TestPublishFailureDoesNotAffectMatch(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := newTestCoordinator(newFakeGateway(), pub)
	mustCreate(t, c, true)
	mustStatus(t, c, StatusPartiallyStaked)
}

func TestHandIsPrivateCopy(t *testing.T) {
	c := newTestCoordinator(newFakeGateway(), nil)
	mustCreate(t, c, false)

	hand, err := c.Hand(testMatchID, bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(hand) != 7 {
		t.Fatalf("hand size = %d", len(hand))
	}
	hand[0] = domain.Card{}
	again, _ := c.Hand(testMatchID, bob)
	if again[0] == (domain.Card{}) {
		t.Fatal("Hand must return a copy")
	}
	if _, err := c.Hand(testMatchID, carol); !errors.Is(err, ErrUnauthorizedPlayer) {
		t.Fatalf("err = %v", err)
	}
}
