package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"unostake/internal/app"
	"unostake/internal/domain"
	"unostake/internal/ports"
)

// addressResolver maps a Nakama user to its linked ledger address.
type addressResolver interface {
	Resolve(ctx context.Context, userID string) (ports.Address, error)
}

// MatchState holds the realtime view of one coordinator match. The
// coordinator owns the game; the handler only seats presences and relays.
type MatchState struct {
	MatchID   string                      `json:"match_id"`
	Tick      int64                       `json:"tick"`
	Presences map[string]runtime.Presence `json:"-"` // userID -> presence
	Addresses map[string]ports.Address    `json:"-"` // userID -> linked address
	// Broadcast fingerprints the last match state sent to the room.
	Broadcast string `json:"-"`
}

// seated counts connected players.
func (ms *MatchState) seated() int {
	return len(ms.Presences)
}

type matchHandler struct {
	coordinator *app.Coordinator
	resolver    addressResolver
}

func newMatchHandler(coordinator *app.Coordinator, resolver addressResolver) *matchHandler {
	return &matchHandler{coordinator: coordinator, resolver: resolver}
}

type matchLabel struct {
	MatchID string     `json:"matchId"`
	Open    int        `json:"open"`
	Status  app.Status `json:"status"`
}

type playCardMessage struct {
	CardIndex int    `json:"cardIndex"`
	Color     string `json:"color"`
}

type handMessage struct {
	MatchID string        `json:"matchId"`
	Hand    []domain.Card `json:"hand"`
}

// MatchInit binds the realtime match to the coordinator match named in params.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	matchID, _ := params[MatchParamMatchID].(string)
	view, err := mh.coordinator.Match(matchID)
	if err != nil {
		logger.Error("MatchInit: unknown match %q: %v", matchID, err)
		return nil, 0, ""
	}

	state := &MatchState{
		MatchID:   view.MatchID,
		Presences: make(map[string]runtime.Presence),
		Addresses: make(map[string]ports.Address),
	}
	label, err := encodePayload(matchLabel{MatchID: view.MatchID, Open: 2, Status: view.Status})
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1
	return state, tickRate, string(label)
}

// MatchJoinAttempt admits only the two players of the match.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	addr, err := mh.resolver.Resolve(ctx, presence.GetUserId())
	if err != nil {
		return matchState, false, "no ledger address linked"
	}
	view, err := mh.coordinator.Match(matchState.MatchID)
	if err != nil {
		return matchState, false, "match not found"
	}
	if !addr.Equal(view.Player1) && !addr.Equal(view.Player2) {
		return matchState, false, "not a player in this match"
	}
	matchState.Addresses[presence.GetUserId()] = addr
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		logger.Debug("MatchJoin: %s joined match %s as %s", p.GetUserId(), matchState.MatchID, matchState.Addresses[p.GetUserId()])
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastMatchState(matchState, dispatcher, logger)
	for _, p := range presences {
		mh.sendHand(matchState, dispatcher, logger, p.GetUserId())
	}
	return matchState
}

// MatchLeave drops presences. A finished match ends once nobody is left.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())
	}

	if matchState.seated() == 0 {
		if view, err := mh.coordinator.Match(matchState.MatchID); err != nil || view.Status.Terminal() {
			logger.Info("MatchLeave: Terminating finished match %s with no players.", matchState.MatchID)
			return nil
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	changed := false
	for _, msg := range messages {
		if err := mh.handleMessage(ctx, matchState, msg.GetUserId(), msg.GetOpCode(), msg.GetData()); err != nil {
			logger.Warn("MatchLoop: op %d from %s rejected: %v", msg.GetOpCode(), msg.GetUserId(), err)
			mh.sendError(matchState, dispatcher, logger, msg.GetUserId(), err)
			// A failed commit still changed the match.
			changed = changed || app.KindOf(err) == app.KindLedger
			continue
		}
		changed = true
	}

	// Stakes, moves and results can also arrive through RPCs.
	if !changed && matchState.seated() > 0 {
		if view, err := mh.coordinator.Match(matchState.MatchID); err == nil {
			changed = fingerprint(view) != matchState.Broadcast
		}
	}

	if changed {
		mh.updateLabel(matchState, dispatcher, logger)
		mh.broadcastMatchState(matchState, dispatcher, logger)
		for userID := range matchState.Presences {
			mh.sendHand(matchState, dispatcher, logger, userID)
		}
	}
	return matchState
}

// handleMessage applies one client message through the coordinator.
func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, userID string, opCode int64, data []byte) error {
	addr, ok := state.Addresses[userID]
	if !ok {
		return app.ErrUnauthorizedPlayer
	}

	switch opCode {
	case OpStake:
		_, err := mh.coordinator.RequestStake(ctx, state.MatchID, addr)
		return err
	case OpPlayCard:
		var msg playCardMessage
		if err := decodePayload(data, &msg); err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		_, err := mh.coordinator.PlayMove(ctx, app.MoveRequest{
			MatchID:   state.MatchID,
			Player:    addr,
			CardIndex: msg.CardIndex,
			Color:     domain.Color(msg.Color),
		})
		return err
	case OpDrawCard:
		_, err := mh.coordinator.DrawCard(ctx, state.MatchID, addr)
		return err
	default:
		return fmt.Errorf("%w: unknown opcode %d", errBadMessage, opCode)
	}
}

var errBadMessage = &app.Error{Kind: app.KindValidation, Code: "INVALID_MESSAGE", Message: "invalid realtime message"}

func (mh *matchHandler) broadcastMatchState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	view, err := mh.coordinator.Match(state.MatchID)
	if err != nil {
		logger.Error("broadcastMatchState: %v", err)
		return
	}
	data, err := encodePayload(view)
	if err != nil {
		logger.Error("broadcastMatchState: Failed to marshal view: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpMatchState, data, nil, nil, true)
	state.Broadcast = fingerprint(view)
}

// fingerprint summarises the parts of a match a client renders.
func fingerprint(view app.MatchView) string {
	fp := fmt.Sprintf("%s|%d|%d", view.Status, len(view.StakedBy), len(view.Receipts))
	if g := view.Game; g != nil {
		fp += fmt.Sprintf("|%s|%s|%s|%v|%d", g.CurrentPlayer, g.TopCard, g.ActiveColor, g.HandSizes, g.DeckSize)
	}
	return fp
}

// sendHand sends a player their own hand only.
func (mh *matchHandler) sendHand(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	presence, ok := state.Presences[userID]
	if !ok {
		return
	}
	hand, err := mh.coordinator.Hand(state.MatchID, state.Addresses[userID])
	if err != nil {
		logger.Warn("sendHand: %s: %v", userID, err)
		return
	}
	data, err := encodePayload(handMessage{MatchID: state.MatchID, Hand: hand})
	if err != nil {
		logger.Error("sendHand: Failed to marshal hand: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpHand, data, []runtime.Presence{presence}, nil, true)
}

// sendError sends the structured failure to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, cause error) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	data, err := encodePayload(describe(cause))
	if err != nil {
		logger.Error("Failed to marshal error: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpGameError, data, []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	view, err := mh.coordinator.Match(state.MatchID)
	if err != nil {
		logger.Error("UpdateLabel: %v", err)
		return
	}
	label, err := encodePayload(matchLabel{MatchID: state.MatchID, Open: 2 - state.seated(), Status: view.Status})
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(label)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d grace seconds", graceSeconds)
	return state
}

// MatchSignal answers with the current match snapshot.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	view, err := mh.coordinator.Match(matchState.MatchID)
	if err != nil {
		return state, ""
	}
	out, err := encodePayload(view)
	if err != nil {
		return state, ""
	}
	return state, string(out)
}
