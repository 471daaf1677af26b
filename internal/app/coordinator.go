package app

import (
	"context"
	"log/slog"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"unostake/internal/domain"
	"unostake/internal/ports"
	"unostake/internal/token"
)

// DefaultHandSize is the number of cards dealt to each player.
const DefaultHandSize = 7

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Publisher ports.EventPublisher
	// Converter defaults to token.DefaultConverter when nil.
	Converter    *token.Converter
	Logger       *slog.Logger
	Rng          *rand.Rand
	Now          func() time.Time
	HandSize     int
	DefaultColor domain.Color
	// StakeTiers maps a tier id to a decimal reward-token stake such as "0.1".
	StakeTiers  map[string]string
	DefaultTier string
	// AutoStake is the StartMatch default when the request does not say.
	AutoStake bool
}

// Coordinator runs the stake, play and commit protocol of every match it
// created. Operations on one match are serialised; different matches proceed
// in parallel.
type Coordinator struct {
	gateway      ports.LedgerGateway
	publisher    ports.EventPublisher
	converter    token.Converter
	logger       *slog.Logger
	now          func() time.Time
	handSize     int
	defaultColor domain.Color
	tiers        map[string]string
	defaultTier  string
	autoStake    bool

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	matches  map[MatchID]*entry
	reserved map[MatchID]struct{}
}

// entry owns one match. op is held for a whole operation, including ledger
// calls; mu guards the Match itself so snapshots stay available while a
// ledger call is in flight.
type entry struct {
	op    sync.Mutex
	mu    sync.RWMutex
	match *Match
}

// NewCoordinator constructs a Coordinator over gateway.
func NewCoordinator(gateway ports.LedgerGateway, opts Options) *Coordinator {
	c := &Coordinator{
		gateway:      gateway,
		publisher:    opts.Publisher,
		converter:    token.DefaultConverter,
		logger:       opts.Logger,
		now:          opts.Now,
		handSize:     opts.HandSize,
		defaultColor: opts.DefaultColor,
		tiers:        opts.StakeTiers,
		defaultTier:  opts.DefaultTier,
		autoStake:    opts.AutoStake,
		rng:          opts.Rng,
		matches:      make(map[MatchID]*entry),
		reserved:     make(map[MatchID]struct{}),
	}
	if c.publisher == nil {
		c.publisher = ports.NopPublisher{}
	}
	if opts.Converter != nil {
		c.converter = *opts.Converter
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.handSize <= 0 {
		c.handSize = DefaultHandSize
	}
	if c.defaultColor == domain.ColorNone {
		c.defaultColor = domain.ColorRed
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// CreateMatchRequest describes a new match. An empty MatchID is generated.
type CreateMatchRequest struct {
	MatchID   string
	Player1   ports.Address
	Player2   ports.Address
	Stake     *big.Int
	AutoStake bool
}

// MatchHandle is the result of creating a match. AutoStakeErr reports a failed
// auto-stake; the match is still created and left unchanged by the failure.
type MatchHandle struct {
	Match        MatchView
	Receipt      ports.TxReceipt
	AutoStake    *ports.TxReceipt
	AutoStakeErr error
}

// CreateMatch registers the match on the ledger and deals its game.
func (c *Coordinator) CreateMatch(ctx context.Context, req CreateMatchRequest) (MatchHandle, error) {
	if err := validatePlayers(req.Player1, req.Player2); err != nil {
		return MatchHandle{}, err
	}
	if req.Stake == nil || req.Stake.Sign() <= 0 {
		return MatchHandle{}, ErrInvalidStake
	}
	id, err := c.resolveID(req.MatchID)
	if err != nil {
		return MatchHandle{}, err
	}
	if err := c.reserve(id); err != nil {
		return MatchHandle{}, err
	}
	registered := false
	defer func() {
		if !registered {
			c.release(id)
		}
	}()

	session, err := c.deal()
	if err != nil {
		return MatchHandle{}, engineError("cannot deal match", err)
	}

	log := c.logger.With("match_id", id.String())
	rc, err := c.gateway.CreateMatch(ctx, LedgerKey(id), req.Player1, req.Player2, req.Stake)
	if err != nil {
		log.Warn("ledger create match failed", "error", err)
		return MatchHandle{}, ledgerCallError("createMatch", err)
	}
	if !rc.Success {
		log.Warn("ledger create match reverted", "tx_hash", rc.TxHash, "reason", rc.Reason)
		return MatchHandle{}, ledgerRevertError("createMatch", rc.Reason)
	}

	m := newMatch(id, req.Player1, req.Player2, req.Stake, session, c.now())
	m.Receipts = append(m.Receipts, Receipt{Op: "createMatch", TxReceipt: rc})
	e := &entry{match: m}
	e.op.Lock()
	defer e.op.Unlock()

	c.mu.Lock()
	delete(c.reserved, id)
	c.matches[id] = e
	c.mu.Unlock()
	registered = true

	log.Info("match created",
		"player1", req.Player1,
		"player2", req.Player2,
		"stake", token.FormatUnits(req.Stake, c.converter.RewardDecimals),
		"tx_hash", rc.TxHash)
	c.publish(ctx, Event{
		Kind:    EventMatchCreated,
		MatchID: id.String(),
		Status:  StatusCreated,
		Payload: MatchCreatedPayload{Player1: req.Player1, Player2: req.Player2, StakeWei: req.Stake.String(), TxHash: rc.TxHash},
	})

	handle := MatchHandle{Receipt: rc}
	if req.AutoStake {
		res, err := c.stake(ctx, e, req.Player1, false)
		if err != nil {
			handle.AutoStakeErr = err
			log.Warn("auto-stake failed", "player", req.Player1, "error", err)
			c.publish(ctx, Event{
				Kind:    EventAutoStakeFailed,
				MatchID: id.String(),
				Status:  c.status(e),
				Payload: AutoStakeFailedPayload{Player: req.Player1, Error: err.Error()},
			})
		} else {
			handle.AutoStake = &res.Receipt
		}
	}
	handle.Match = c.snapshot(e)
	return handle, nil
}

// StartMatchRequest is the transport-facing form of CreateMatchRequest.
// Stake is a decimal reward-token amount; when empty the stake comes from Tier
// or the default tier. A nil AutoStake uses the coordinator default.
type StartMatchRequest struct {
	MatchID   string
	Player1   ports.Address
	Player2   ports.Address
	Stake     string
	Tier      string
	AutoStake *bool
}

// StartMatch resolves the stake and creates the match.
func (c *Coordinator) StartMatch(ctx context.Context, req StartMatchRequest) (MatchHandle, error) {
	stake, err := c.resolveStake(req.Stake, req.Tier)
	if err != nil {
		return MatchHandle{}, err
	}
	auto := c.autoStake
	if req.AutoStake != nil {
		auto = *req.AutoStake
	}
	return c.CreateMatch(ctx, CreateMatchRequest{
		MatchID:   req.MatchID,
		Player1:   req.Player1,
		Player2:   req.Player2,
		Stake:     stake,
		AutoStake: auto,
	})
}

// StakeResult reports a stake request. AlreadyStaked is set when the request
// was a no-op because the player's stake was confirmed earlier.
type StakeResult struct {
	MatchID       string
	Player        ports.Address
	Receipt       ports.TxReceipt
	AlreadyStaked bool
	Status        Status
}

// RequestStake escrows player's stake. Repeating a confirmed stake is a no-op.
// A ledger failure fails the match.
func (c *Coordinator) RequestStake(ctx context.Context, matchID string, player ports.Address) (StakeResult, error) {
	e, err := c.lookup(matchID)
	if err != nil {
		return StakeResult{}, err
	}
	e.op.Lock()
	defer e.op.Unlock()
	return c.stake(ctx, e, player, true)
}

func (c *Coordinator) stake(ctx context.Context, e *entry, player ports.Address, mandatory bool) (StakeResult, error) {
	e.mu.RLock()
	m := e.match
	res := StakeResult{MatchID: m.ID.String(), Player: player, Status: m.Status}
	seat := m.Seat(player)
	staked := m.HasStaked(player)
	key := m.Key
	e.mu.RUnlock()

	switch {
	case seat < 0:
		return StakeResult{}, ErrUnauthorizedPlayer.withf("%s is not part of match %s", player, res.MatchID)
	case staked:
		res.AlreadyStaked = true
		return res, nil
	case res.Status.Terminal():
		return StakeResult{}, ErrMatchClosed.withf("match %s is %s", res.MatchID, res.Status)
	}

	log := c.logger.With("match_id", res.MatchID, "player", player)
	rc, err := c.gateway.Stake(ports.WithCaller(ctx, player), key)
	if err == nil && !rc.Success {
		// A failed auto-stake leaves no trace on the match.
		if mandatory {
			c.record(e, Receipt{Op: "stake", Player: player, TxReceipt: rc})
		}
		err = ledgerRevertError("stake", rc.Reason)
	} else if err != nil {
		err = ledgerCallError("stake", err)
	}
	if err != nil {
		log.Warn("ledger stake failed", "error", err)
		if mandatory {
			c.fail(ctx, e, err)
		}
		return StakeResult{}, err
	}

	e.mu.Lock()
	m.markStaked(player)
	m.Receipts = append(m.Receipts, Receipt{Op: "stake", Player: player, TxReceipt: rc})
	m.UpdatedAt = c.now()
	res.Status = m.Status
	e.mu.Unlock()
	res.Receipt = rc

	log.Info("stake confirmed", "status", res.Status, "tx_hash", rc.TxHash)
	c.publish(ctx, Event{
		Kind:    EventStakeConfirmed,
		MatchID: res.MatchID,
		Status:  res.Status,
		Payload: StakeConfirmedPayload{Player: player, TxHash: rc.TxHash},
	})
	return res, nil
}

// MoveRequest plays the card at CardIndex of Player's hand. Color nominates
// the next colour when the card is wild; empty keeps the current colour.
type MoveRequest struct {
	MatchID   string
	Player    ports.Address
	CardIndex int
	Color     domain.Color
}

// MoveResult describes an accepted move. Commit is set when the move won the
// game and the result was submitted to the ledger.
type MoveResult struct {
	MatchID     string
	Player      ports.Address
	Card        domain.Card
	ActiveColor domain.Color
	NextPlayer  ports.Address
	CardsLeft   int
	Winner      ports.Address
	Status      Status
	Commit      *ports.TxReceipt
}

// PlayMove applies a move. Rejected moves leave the match untouched. A winning
// move commits the result; if that commit fails the result is returned
// together with the ledger error and the match is failed.
func (c *Coordinator) PlayMove(ctx context.Context, req MoveRequest) (MoveResult, error) {
	if req.Color != domain.ColorNone {
		if _, err := domain.ParseColor(string(req.Color)); err != nil {
			return MoveResult{}, ErrInvalidColor.withf("invalid color %q", req.Color)
		}
	}
	e, err := c.lookup(req.MatchID)
	if err != nil {
		return MoveResult{}, err
	}
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	m := e.match
	seat, err := checkPlayable(m, req.Player)
	if err != nil {
		e.mu.Unlock()
		return MoveResult{}, err
	}
	s := m.Session
	card, err := s.PlayCard(seat, req.CardIndex, req.Color)
	if err != nil {
		e.mu.Unlock()
		return MoveResult{}, engineError("move rejected", err)
	}
	if m.Status == StatusFullyStaked {
		m.Status = StatusInProgress
	}
	m.UpdatedAt = c.now()
	res := MoveResult{
		MatchID:     m.ID.String(),
		Player:      req.Player,
		Card:        card,
		ActiveColor: s.ActiveColor,
		CardsLeft:   len(s.Hands[seat]),
		Status:      m.Status,
	}
	finished := s.Finished()
	if !finished {
		res.NextPlayer = m.PlayerAt(s.CurrentPlayerIndex)
	}
	e.mu.Unlock()

	c.logger.Debug("move played", "match_id", res.MatchID, "player", req.Player, "card", card.String())
	c.publish(ctx, Event{
		Kind:    EventMovePlayed,
		MatchID: res.MatchID,
		Status:  res.Status,
		Payload: MovePlayedPayload{
			Player:      req.Player,
			Card:        card,
			ActiveColor: res.ActiveColor,
			NextPlayer:  res.NextPlayer,
			CardsLeft:   res.CardsLeft,
		},
	})

	if !finished {
		return res, nil
	}
	out, err := c.recordWin(ctx, e, req.Player)
	res.Winner = req.Player
	res.Status = out.Status
	res.Commit = out.Receipt
	return res, err
}

// DrawResult describes a drawn card.
type DrawResult struct {
	MatchID  string
	Player   ports.Address
	Card     domain.Card
	HandSize int
	DeckSize int
	Status   Status
}

// DrawCard draws one card for player. The turn stays with the player.
func (c *Coordinator) DrawCard(ctx context.Context, matchID string, player ports.Address) (DrawResult, error) {
	e, err := c.lookup(matchID)
	if err != nil {
		return DrawResult{}, err
	}
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	m := e.match
	seat, err := checkPlayable(m, player)
	if err != nil {
		e.mu.Unlock()
		return DrawResult{}, err
	}
	s := m.Session
	card, err := s.DrawCard(seat)
	if err != nil {
		e.mu.Unlock()
		return DrawResult{}, engineError("draw rejected", err)
	}
	if m.Status == StatusFullyStaked {
		m.Status = StatusInProgress
	}
	m.UpdatedAt = c.now()
	res := DrawResult{
		MatchID:  m.ID.String(),
		Player:   player,
		Card:     card,
		HandSize: len(s.Hands[seat]),
		DeckSize: len(s.Deck),
		Status:   m.Status,
	}
	e.mu.Unlock()

	c.publish(ctx, Event{
		Kind:    EventCardDrawn,
		MatchID: res.MatchID,
		Status:  res.Status,
		Payload: CardDrawnPayload{Player: player, HandSize: res.HandSize, DeckSize: res.DeckSize},
	})
	return res, nil
}

// CommitOutcome reports a result commitment. Duplicate is set when an earlier
// signal already started the commit and nothing was submitted.
type CommitOutcome struct {
	MatchID   string
	Winner    ports.Address
	Receipt   *ports.TxReceipt
	Status    Status
	Duplicate bool
}

// RecordWin commits winner to the ledger. The ledger sees at most one commit
// per match; later signals are no-ops. The game must be in progress, and a
// reported winner must agree with the game when the game has finished.
func (c *Coordinator) RecordWin(ctx context.Context, matchID string, winner ports.Address) (CommitOutcome, error) {
	e, err := c.lookup(matchID)
	if err != nil {
		return CommitOutcome{}, err
	}
	e.op.Lock()
	defer e.op.Unlock()
	return c.recordWin(ctx, e, winner)
}

func (c *Coordinator) recordWin(ctx context.Context, e *entry, winner ports.Address) (CommitOutcome, error) {
	e.mu.Lock()
	m := e.match
	out := CommitOutcome{MatchID: m.ID.String(), Winner: winner, Status: m.Status}
	if m.commitAttempted {
		out.Winner = m.claimedWinner
		out.Duplicate = true
		e.mu.Unlock()
		return out, nil
	}
	seat := m.Seat(winner)
	var err error
	switch {
	case m.Status.Terminal():
		err = ErrMatchClosed.withf("match %s is %s", out.MatchID, m.Status)
	case seat < 0:
		err = ErrUnauthorizedPlayer.withf("%s is not part of match %s", winner, out.MatchID)
	case !m.Status.Playable():
		err = ErrStakesPending
	case m.Status != StatusInProgress:
		err = ErrGameNotStarted.withf("match %s has no move yet", out.MatchID)
	case m.Session != nil && m.Session.Finished() && m.Session.WinnerIndex != seat:
		err = ErrWinnerMismatch.withf("game was won by %s", m.PlayerAt(m.Session.WinnerIndex))
	}
	if err != nil {
		e.mu.Unlock()
		return CommitOutcome{}, err
	}
	m.commitAttempted = true
	m.claimedWinner = winner
	m.Status = StatusResultPending
	m.UpdatedAt = c.now()
	key := m.Key
	e.mu.Unlock()

	log := c.logger.With("match_id", out.MatchID, "winner", winner)
	log.Info("committing result")
	c.publish(ctx, Event{
		Kind:    EventResultPending,
		MatchID: out.MatchID,
		Status:  StatusResultPending,
		Payload: ResultPendingPayload{Winner: winner},
	})

	rc, err := c.gateway.CommitResult(ctx, key, winner)
	if err == nil && !rc.Success {
		c.record(e, Receipt{Op: "commitResult", Player: winner, TxReceipt: rc})
		err = ledgerRevertError("commitResult", rc.Reason)
	} else if err != nil {
		err = ledgerCallError("commitResult", err)
	}
	if err != nil {
		log.Error("ledger commit failed", "error", err)
		c.fail(ctx, e, err)
		out.Status = StatusFailed
		return out, err
	}

	e.mu.Lock()
	m.Winner = winner
	m.Receipts = append(m.Receipts, Receipt{Op: "commitResult", Player: winner, TxReceipt: rc})
	m.close(StatusCompleted, c.now())
	loserScore := m.LoserScore
	e.mu.Unlock()

	out.Status = StatusCompleted
	out.Receipt = &rc
	log.Info("match completed", "tx_hash", rc.TxHash, "loser_score", loserScore)
	c.publish(ctx, Event{
		Kind:    EventMatchCompleted,
		MatchID: out.MatchID,
		Status:  StatusCompleted,
		Payload: MatchCompletedPayload{Winner: winner, TxHash: rc.TxHash, LoserScore: loserScore},
	})
	return out, nil
}

// PurchaseRequest buys reward tokens. Amount is a decimal stake-asset amount.
type PurchaseRequest struct {
	Amount string
	Buyer  ports.Address
}

// PurchaseResult echoes the effective amounts of a purchase, all in smallest units.
type PurchaseResult struct {
	Buyer   ports.Address
	Amount  *big.Int
	Rate    *big.Int
	Reward  *big.Int
	Receipt ports.TxReceipt
}

// Purchase exchanges the stake asset for reward tokens at the current rate.
func (c *Coordinator) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if !req.Buyer.Valid() {
		return PurchaseResult{}, ErrInvalidAddress.withf("invalid buyer address %q", req.Buyer)
	}
	amount, err := token.ParseUnits(req.Amount, c.converter.StakeDecimals)
	if err != nil || amount.Sign() <= 0 {
		return PurchaseResult{}, ErrInvalidAmount.withf("invalid amount %q", req.Amount)
	}

	rate, err := c.gateway.ExchangeRate(ctx)
	if err != nil {
		return PurchaseResult{}, ledgerCallError("exchangeRate", err)
	}
	reward, err := c.converter.QuoteReward(amount, rate)
	if err != nil {
		return PurchaseResult{}, &Error{Kind: KindLedger, Code: "INVALID_RATE", Message: "ledger quoted an unusable rate", Cause: err}
	}

	rc, err := c.gateway.Buy(ports.WithCaller(ctx, req.Buyer), amount)
	if err != nil {
		return PurchaseResult{}, ledgerCallError("buy", err)
	}
	if !rc.Success {
		return PurchaseResult{}, ledgerRevertError("buy", rc.Reason)
	}

	res := PurchaseResult{Buyer: req.Buyer, Amount: amount, Rate: rate, Reward: reward, Receipt: rc}
	c.logger.Info("purchase completed",
		"buyer", req.Buyer,
		"amount", token.FormatUnits(amount, c.converter.StakeDecimals),
		"reward", token.FormatUnits(reward, c.converter.RewardDecimals),
		"tx_hash", rc.TxHash)
	c.publish(ctx, Event{
		Kind: EventPurchaseCompleted,
		Payload: PurchaseCompletedPayload{
			Buyer:  req.Buyer,
			Amount: amount.String(),
			Reward: reward.String(),
			TxHash: rc.TxHash,
		},
	})
	return res, nil
}

// Match returns a snapshot of the match. It does not wait for in-flight ledger calls.
func (c *Coordinator) Match(matchID string) (MatchView, error) {
	e, err := c.lookup(matchID)
	if err != nil {
		return MatchView{}, err
	}
	return c.snapshot(e), nil
}

// Hand returns a copy of player's hand.
func (c *Coordinator) Hand(matchID string, player ports.Address) ([]domain.Card, error) {
	e, err := c.lookup(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	m := e.match
	seat := m.Seat(player)
	if seat < 0 {
		return nil, ErrUnauthorizedPlayer.withf("%s is not part of match %s", player, m.ID)
	}
	if m.Session == nil {
		return nil, nil
	}
	return append([]domain.Card(nil), m.Session.Hands[seat]...), nil
}

// Converter returns the token scales stakes and purchases are expressed in.
func (c *Coordinator) Converter() token.Converter {
	return c.converter
}

func (c *Coordinator) lookup(matchID string) (*entry, error) {
	id, err := ParseMatchID(matchID)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	e, ok := c.matches[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownMatch.withf("match %s not found", id)
	}
	return e, nil
}

func (c *Coordinator) resolveID(raw string) (MatchID, error) {
	if raw != "" {
		return ParseMatchID(raw)
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	id, err := NewMatchID(c.rng)
	if err != nil {
		return id, &Error{Kind: KindInternal, Code: "INTERNAL", Message: "generate match id", Cause: err}
	}
	return id, nil
}

func (c *Coordinator) resolveStake(amount, tier string) (*big.Int, error) {
	if amount == "" {
		id := tier
		if id == "" {
			id = c.defaultTier
		}
		tierStake, ok := c.tiers[id]
		if !ok {
			return nil, ErrInvalidStake.withf("unknown stake tier %q", id)
		}
		amount = tierStake
	}
	stake, err := token.ParseUnits(amount, c.converter.RewardDecimals)
	if err != nil || stake.Sign() <= 0 {
		return nil, ErrInvalidStake.withf("invalid stake %q", amount)
	}
	return stake, nil
}

func (c *Coordinator) reserve(id MatchID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.matches[id]; ok {
		return ErrDuplicateMatch.withf("match %s already exists", id)
	}
	if _, ok := c.reserved[id]; ok {
		return ErrDuplicateMatch.withf("match %s is being created", id)
	}
	c.reserved[id] = struct{}{}
	return nil
}

func (c *Coordinator) release(id MatchID) {
	c.mu.Lock()
	delete(c.reserved, id)
	c.mu.Unlock()
}

func (c *Coordinator) deal() (*domain.Session, error) {
	c.rngMu.Lock()
	deck := domain.Shuffle(domain.BuildDeck(), c.rng)
	c.rngMu.Unlock()
	return domain.NewSession(deck, c.handSize, c.defaultColor)
}

func (c *Coordinator) fail(ctx context.Context, e *entry, cause error) {
	e.mu.Lock()
	m := e.match
	if m.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	m.Failure = cause.Error()
	m.close(StatusFailed, c.now())
	id := m.ID.String()
	e.mu.Unlock()

	c.logger.Error("match failed", "match_id", id, "status", StatusFailed, "error", cause)
	c.publish(ctx, Event{
		Kind:    EventMatchFailed,
		MatchID: id,
		Status:  StatusFailed,
		Payload: MatchFailedPayload{Reason: cause.Error()},
	})
}

func (c *Coordinator) record(e *entry, r Receipt) {
	e.mu.Lock()
	e.match.Receipts = append(e.match.Receipts, r)
	e.mu.Unlock()
}

func (c *Coordinator) status(e *entry) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.match.Status
}

func (c *Coordinator) snapshot(e *entry) MatchView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.match.view(c.converter.RewardDecimals)
}

func (c *Coordinator) publish(ctx context.Context, ev Event) {
	err := c.publisher.Publish(ctx, ports.MatchEvent{
		Kind:    string(ev.Kind),
		MatchID: ev.MatchID,
		Status:  string(ev.Status),
		At:      c.now(),
		Payload: ev.Payload,
	})
	if err != nil {
		c.logger.Warn("publish event failed", "kind", ev.Kind, "match_id", ev.MatchID, "error", err)
	}
}

func validatePlayers(p1, p2 ports.Address) error {
	switch {
	case !p1.Valid():
		return ErrInvalidAddress.withf("invalid player1 address %q", p1)
	case !p2.Valid():
		return ErrInvalidAddress.withf("invalid player2 address %q", p2)
	case p1.Equal(p2):
		return ErrInvalidAddress.withf("players must differ")
	}
	return nil
}

// checkPlayable returns player's seat if the match accepts moves.
func checkPlayable(m *Match, player ports.Address) (int, error) {
	seat := m.Seat(player)
	switch {
	case seat < 0:
		return -1, ErrUnauthorizedPlayer.withf("%s is not part of match %s", player, m.ID)
	case m.Status.Terminal(), m.Status == StatusResultPending, m.Session == nil:
		return -1, ErrMatchClosed.withf("match %s is %s", m.ID, m.Status)
	case !m.Status.Playable():
		return -1, ErrStakesPending
	}
	return seat, nil
}
