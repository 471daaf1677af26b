package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/heroiclabs/nakama-common/runtime"

	"unostake/internal/app"
	"unostake/internal/app/onboarding"
	"unostake/internal/domain"
	"unostake/internal/ports"
	"unostake/internal/token"
)

// matchCreator starts realtime matches. runtime.NakamaModule satisfies it.
type matchCreator interface {
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
}

// Module holds the services behind the RPC surface.
//
// Calls made with a user session act as the ledger address linked to that
// user. Server to server calls carry no user id and name addresses explicitly.
type Module struct {
	coordinator *app.Coordinator
	onboarding  *onboarding.Service
	economy     ports.EconomyPort
}

// NewModule wires the RPC handlers.
func NewModule(coordinator *app.Coordinator, onboardingSvc *onboarding.Service, economy ports.EconomyPort) *Module {
	return &Module{coordinator: coordinator, onboarding: onboardingSvc, economy: economy}
}

// RegisterRPCs registers every RPC with the initializer.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcStartMatch:   m.RpcStartMatch,
		RpcStake:        m.RpcStake,
		RpcPlayMove:     m.RpcPlayMove,
		RpcDrawCard:     m.RpcDrawCard,
		RpcRecordResult: m.RpcRecordResult,
		RpcPurchase:     m.RpcPurchase,
		RpcMatchStatus:  m.RpcMatchStatus,
		RpcBalance:      m.RpcBalance,
		RpcLinkAddress:  m.RpcLinkAddress,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}
	return nil
}

type startMatchRequest struct {
	MatchID   string        `json:"matchId"`
	Player1   ports.Address `json:"player1"`
	Player2   ports.Address `json:"player2"`
	Stake     string        `json:"stake"`
	Tier      string        `json:"tier"`
	AutoStake *bool         `json:"autoStake"`
}

type startMatchResponse struct {
	Match           app.MatchView    `json:"match"`
	Receipt         ports.TxReceipt  `json:"receipt"`
	AutoStake       *ports.TxReceipt `json:"autoStake,omitempty"`
	AutoStakeError  *app.Failure     `json:"autoStakeError,omitempty"`
	RealtimeMatchID string           `json:"realtimeMatchId,omitempty"`
}

// RpcStartMatch creates a staked match. A user session always plays as
// player1 and names the opponent in player2.
//
// Payload: {"player2": "0x..", "stake": "0.1" | "tier": "casual", "autoStake": true}
func (m *Module) RpcStartMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req startMatchRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	player1, userID, err := m.actor(ctx, req.Player1)
	if err != nil {
		return "", toRuntimeError(err)
	}

	handle, err := m.coordinator.StartMatch(ctx, app.StartMatchRequest{
		MatchID:   req.MatchID,
		Player1:   player1,
		Player2:   req.Player2,
		Stake:     req.Stake,
		Tier:      req.Tier,
		AutoStake: req.AutoStake,
	})
	if err != nil {
		logger.Warn("RpcStartMatch [User:%s]: %v", userID, err)
		return "", toRuntimeError(err)
	}

	resp := startMatchResponse{Match: handle.Match, Receipt: handle.Receipt, AutoStake: handle.AutoStake}
	if handle.AutoStakeErr != nil {
		f := describe(handle.AutoStakeErr)
		resp.AutoStakeError = &f
	}
	if nk != nil {
		realtimeID, err := createRealtimeMatch(ctx, nk, handle.Match.MatchID)
		if err != nil {
			logger.Warn("RpcStartMatch [User:%s]: realtime match for %s not created: %v", userID, handle.Match.MatchID, err)
		}
		resp.RealtimeMatchID = realtimeID
	}
	logger.Info("RpcStartMatch [User:%s]: created match %s", userID, handle.Match.MatchID)
	return respond(resp)
}

func createRealtimeMatch(ctx context.Context, nk matchCreator, matchID string) (string, error) {
	return nk.MatchCreate(ctx, MatchNameUno, map[string]interface{}{MatchParamMatchID: matchID})
}

type matchRequest struct {
	MatchID string        `json:"matchId"`
	Player  ports.Address `json:"player"`
}

type stakeResponse struct {
	MatchID       string          `json:"matchId"`
	Player        ports.Address   `json:"player"`
	Receipt       ports.TxReceipt `json:"receipt"`
	AlreadyStaked bool            `json:"alreadyStaked"`
	Status        app.Status      `json:"status"`
}

// RpcStake escrows the caller's stake for a match.
//
// Payload: {"matchId": "..."}
func (m *Module) RpcStake(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req matchRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	player, userID, err := m.actor(ctx, req.Player)
	if err != nil {
		return "", toRuntimeError(err)
	}
	res, err := m.coordinator.RequestStake(ctx, req.MatchID, player)
	if err != nil {
		logger.Warn("RpcStake [User:%s]: match %s: %v", userID, req.MatchID, err)
		return "", toRuntimeError(err)
	}
	return respond(stakeResponse{
		MatchID:       res.MatchID,
		Player:        res.Player,
		Receipt:       res.Receipt,
		AlreadyStaked: res.AlreadyStaked,
		Status:        res.Status,
	})
}

type playMoveRequest struct {
	MatchID   string        `json:"matchId"`
	Player    ports.Address `json:"player"`
	CardIndex *int          `json:"cardIndex"`
	Color     string        `json:"color"`
}

type playMoveResponse struct {
	MatchID     string           `json:"matchId"`
	Player      ports.Address    `json:"player"`
	Card        domain.Card      `json:"card"`
	ActiveColor domain.Color     `json:"activeColor"`
	NextPlayer  ports.Address    `json:"nextPlayer,omitempty"`
	CardsLeft   int              `json:"cardsLeft"`
	Winner      ports.Address    `json:"winner,omitempty"`
	Status      app.Status       `json:"status"`
	Commit      *ports.TxReceipt `json:"commit,omitempty"`
	CommitError *app.Failure     `json:"commitError,omitempty"`
}

// RpcPlayMove plays a card from the caller's hand. A winning move commits
// the result; a failed commit is reported in commitError because the move
// itself was applied.
//
// Payload: {"matchId": "...", "cardIndex": 0, "color": "blue"}
func (m *Module) RpcPlayMove(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req playMoveRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	if req.CardIndex == nil {
		return "", invalidPayload(fmt.Errorf("cardIndex is required"))
	}
	player, userID, err := m.actor(ctx, req.Player)
	if err != nil {
		return "", toRuntimeError(err)
	}
	res, err := m.coordinator.PlayMove(ctx, app.MoveRequest{
		MatchID:   req.MatchID,
		Player:    player,
		CardIndex: *req.CardIndex,
		Color:     domain.Color(req.Color),
	})
	if err != nil && res.Winner == "" {
		logger.Warn("RpcPlayMove [User:%s]: match %s: %v", userID, req.MatchID, err)
		return "", toRuntimeError(err)
	}
	resp := playMoveResponse{
		MatchID:     res.MatchID,
		Player:      res.Player,
		Card:        res.Card,
		ActiveColor: res.ActiveColor,
		NextPlayer:  res.NextPlayer,
		CardsLeft:   res.CardsLeft,
		Winner:      res.Winner,
		Status:      res.Status,
		Commit:      res.Commit,
	}
	if err != nil {
		logger.Error("RpcPlayMove [User:%s]: match %s won but commit failed: %v", userID, req.MatchID, err)
		f := describe(err)
		resp.CommitError = &f
	}
	return respond(resp)
}

type drawCardResponse struct {
	MatchID  string        `json:"matchId"`
	Player   ports.Address `json:"player"`
	Card     domain.Card   `json:"card"`
	HandSize int           `json:"handSize"`
	DeckSize int           `json:"deckSize"`
	Status   app.Status    `json:"status"`
}

// RpcDrawCard draws a card for the caller. The turn does not pass.
//
// Payload: {"matchId": "..."}
func (m *Module) RpcDrawCard(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req matchRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	player, userID, err := m.actor(ctx, req.Player)
	if err != nil {
		return "", toRuntimeError(err)
	}
	res, err := m.coordinator.DrawCard(ctx, req.MatchID, player)
	if err != nil {
		logger.Warn("RpcDrawCard [User:%s]: match %s: %v", userID, req.MatchID, err)
		return "", toRuntimeError(err)
	}
	return respond(drawCardResponse(res))
}

type recordResultRequest struct {
	MatchID string        `json:"matchId"`
	Winner  ports.Address `json:"winner"`
}

type recordResultResponse struct {
	MatchID   string           `json:"matchId"`
	Winner    ports.Address    `json:"winner"`
	Receipt   *ports.TxReceipt `json:"receipt,omitempty"`
	Status    app.Status       `json:"status"`
	Duplicate bool             `json:"duplicate"`
}

// RpcRecordResult reports a winner decided outside the game engine, such as
// a forfeit. Only server to server calls may use it.
//
// Payload: {"matchId": "...", "winner": "0x.."}
func (m *Module) RpcRecordResult(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); userID != "" {
		return "", runtime.NewError("record_result is only available to server calls", codePermissionDenied)
	}
	var req recordResultRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	out, err := m.coordinator.RecordWin(ctx, req.MatchID, req.Winner)
	if err != nil {
		logger.Warn("RpcRecordResult: match %s: %v", req.MatchID, err)
		return "", toRuntimeError(err)
	}
	return respond(recordResultResponse(out))
}

type purchaseRequest struct {
	Amount string        `json:"amount"`
	Buyer  ports.Address `json:"buyer"`
}

type purchaseResponse struct {
	Buyer         ports.Address   `json:"buyer"`
	Amount        string          `json:"amount"`
	Rate          string          `json:"rate"`
	Reward        string          `json:"reward"`
	RewardDisplay string          `json:"rewardDisplay"`
	Receipt       ports.TxReceipt `json:"receipt"`
	WalletCredit  int64           `json:"walletCredit"`
}

// RpcPurchase buys reward tokens with the stake asset. For user calls the
// reward is mirrored into the Nakama wallet.
//
// Payload: {"amount": "10"}
func (m *Module) RpcPurchase(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req purchaseRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	buyer, userID, err := m.actor(ctx, req.Buyer)
	if err != nil {
		return "", toRuntimeError(err)
	}
	res, err := m.coordinator.Purchase(ctx, app.PurchaseRequest{Amount: req.Amount, Buyer: buyer})
	if err != nil {
		logger.Warn("RpcPurchase [User:%s]: %v", userID, err)
		return "", toRuntimeError(err)
	}

	conv := m.coordinator.Converter()
	resp := purchaseResponse{
		Buyer:         res.Buyer,
		Amount:        res.Amount.String(),
		Rate:          res.Rate.String(),
		Reward:        res.Reward.String(),
		RewardDisplay: token.FormatUnits(res.Reward, conv.RewardDecimals),
		Receipt:       res.Receipt,
	}
	if userID != "" && m.economy != nil {
		credit, err := walletUnits(res.Reward, conv.RewardDecimals)
		if err == nil {
			err = m.economy.UpdateBalances(ctx, []ports.WalletUpdate{{
				UserID: userID,
				Amount: credit,
				Metadata: map[string]interface{}{
					"reason":  "purchase",
					"tx_hash": res.Receipt.TxHash,
				},
			}})
		}
		if err != nil {
			// The ledger purchase stands; only the mirror is behind.
			logger.Error("RpcPurchase [User:%s]: wallet mirror failed for tx %s: %v", userID, res.Receipt.TxHash, err)
		} else {
			resp.WalletCredit = credit
		}
	}
	return respond(resp)
}

type matchStatusResponse struct {
	Match app.MatchView `json:"match"`
	Hand  []domain.Card `json:"hand,omitempty"`
}

// RpcMatchStatus returns a match snapshot. Players also receive their hand.
//
// Payload: {"matchId": "..."}
func (m *Module) RpcMatchStatus(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req matchRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	view, err := m.coordinator.Match(req.MatchID)
	if err != nil {
		return "", toRuntimeError(err)
	}
	resp := matchStatusResponse{Match: view}
	if userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); userID != "" {
		if addr, err := m.onboarding.Resolve(ctx, userID); err == nil {
			if hand, err := m.coordinator.Hand(req.MatchID, addr); err == nil {
				resp.Hand = hand
			}
		}
	}
	return respond(resp)
}

type balanceResponse struct {
	UserID   string        `json:"userId"`
	Address  ports.Address `json:"address,omitempty"`
	Balance  int64         `json:"balance"`
	Decimals int           `json:"decimals"`
	Display  string        `json:"display"`
}

// RpcBalance returns the caller's mirrored reward balance.
func (m *Module) RpcBalance(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("balance requires a user session", codeInvalidArgument)
	}
	balance, err := m.economy.GetBalance(ctx, userID)
	if err != nil {
		logger.Error("RpcBalance [User:%s]: %v", userID, err)
		return "", runtime.NewError("failed to read wallet", codeInternal)
	}
	addr, _ := m.onboarding.Resolve(ctx, userID)
	return respond(balanceResponse{
		UserID:   userID,
		Address:  addr,
		Balance:  balance,
		Decimals: ports.WalletDecimals,
		Display:  token.FormatUnits(big.NewInt(balance), ports.WalletDecimals),
	})
}

type linkAddressRequest struct {
	Address ports.Address `json:"address"`
}

// RpcLinkAddress binds the caller's account to a ledger address.
//
// Payload: {"address": "0x.."}
func (m *Module) RpcLinkAddress(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("link_address requires a user session", codeInvalidArgument)
	}
	var req linkAddressRequest
	if err := decodePayload([]byte(payload), &req); err != nil {
		return "", invalidPayload(err)
	}
	if err := m.onboarding.LinkAddress(ctx, userID, req.Address); err != nil {
		logger.Warn("RpcLinkAddress [User:%s]: %v", userID, err)
		return "", toRuntimeError(err)
	}
	logger.Info("RpcLinkAddress [User:%s]: linked %s", userID, req.Address)
	return respond(linkAddressRequest{Address: req.Address})
}

// actor resolves who a call acts as. A user session acts as its linked
// address and may not name a different one; server calls must name one.
func (m *Module) actor(ctx context.Context, named ports.Address) (ports.Address, string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		if named == "" {
			return "", "", app.ErrInvalidAddress
		}
		return named, "", nil
	}
	addr, err := m.onboarding.Resolve(ctx, userID)
	if err != nil {
		return "", userID, err
	}
	if named != "" && !named.Equal(addr) {
		return "", userID, app.ErrUnauthorizedPlayer
	}
	return addr, userID, nil
}

func respond(v interface{}) (string, error) {
	out, err := encodePayload(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(out), nil
}

// walletUnits scales a reward amount to wallet precision, truncating.
func walletUnits(reward *big.Int, rewardDecimals int) (int64, error) {
	v := new(big.Int).Set(reward)
	shift := rewardDecimals - ports.WalletDecimals
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(shift))), nil)
	if shift >= 0 {
		v.Quo(v, scale)
	} else {
		v.Mul(v, scale)
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("reward %s overflows wallet", reward)
	}
	return v.Int64(), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
