package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"unostake/internal/ports"
)

// RelayerError is a non-2xx answer from the relayer.
type RelayerError struct {
	Status  int
	Message string
}

func (e *RelayerError) Error() string {
	return fmt.Sprintf("relayer: status %d: %s", e.Status, e.Message)
}

// Relayer is a ports.LedgerGateway backed by an HTTP transaction relayer.
type Relayer struct {
	baseURL string
	client  *http.Client
	signer  *tokenSigner
}

// NewRelayer creates a relayer client. timeout bounds every request including
// the wait for the transaction to be mined.
func NewRelayer(baseURL, secret, issuer string, timeout time.Duration) *Relayer {
	return &Relayer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		signer:  newTokenSigner(secret, issuer),
	}
}

type createMatchBody struct {
	MatchID  string `json:"matchId"`
	Player1  string `json:"player1"`
	Player2  string `json:"player2"`
	StakeWei string `json:"stakeWei"`
}

type resultBody struct {
	Winner string `json:"winner"`
}

type buyBody struct {
	Amount string `json:"amount"`
}

type rateBody struct {
	Rate string `json:"rate"`
}

type errorBody struct {
	Error string `json:"error"`
}

// CreateMatch implements ports.LedgerGateway.
func (r *Relayer) CreateMatch(ctx context.Context, id ports.MatchKey, p1, p2 ports.Address, stakeWei *big.Int) (ports.TxReceipt, error) {
	if stakeWei == nil {
		return ports.TxReceipt{}, fmt.Errorf("create match: nil stake")
	}
	body := createMatchBody{
		MatchID:  id.Hex(),
		Player1:  string(p1),
		Player2:  string(p2),
		StakeWei: stakeWei.String(),
	}
	var receipt ports.TxReceipt
	err := r.do(ctx, http.MethodPost, "/v1/matches", "", string(OpCreateMatch), body, &receipt)
	return receipt, err
}

// Stake implements ports.LedgerGateway.
func (r *Relayer) Stake(ctx context.Context, id ports.MatchKey) (ports.TxReceipt, error) {
	caller, ok := ports.CallerFromContext(ctx)
	if !ok {
		return ports.TxReceipt{}, ErrNoCaller
	}
	var receipt ports.TxReceipt
	err := r.do(ctx, http.MethodPost, "/v1/matches/"+id.Hex()+"/stake", caller, string(OpStake), nil, &receipt)
	return receipt, err
}

// CommitResult implements ports.LedgerGateway.
func (r *Relayer) CommitResult(ctx context.Context, id ports.MatchKey, winner ports.Address) (ports.TxReceipt, error) {
	var receipt ports.TxReceipt
	err := r.do(ctx, http.MethodPost, "/v1/matches/"+id.Hex()+"/result", "", string(OpCommitResult), resultBody{Winner: string(winner)}, &receipt)
	return receipt, err
}

// Buy implements ports.LedgerGateway.
func (r *Relayer) Buy(ctx context.Context, amount *big.Int) (ports.TxReceipt, error) {
	caller, ok := ports.CallerFromContext(ctx)
	if !ok {
		return ports.TxReceipt{}, ErrNoCaller
	}
	if amount == nil {
		return ports.TxReceipt{}, fmt.Errorf("buy: nil amount")
	}
	var receipt ports.TxReceipt
	err := r.do(ctx, http.MethodPost, "/v1/store/buy", caller, string(OpBuy), buyBody{Amount: amount.String()}, &receipt)
	return receipt, err
}

// ExchangeRate implements ports.LedgerGateway.
func (r *Relayer) ExchangeRate(ctx context.Context) (*big.Int, error) {
	var body rateBody
	if err := r.do(ctx, http.MethodGet, "/v1/store/rate", "", "rate", nil, &body); err != nil {
		return nil, err
	}
	rate, ok := new(big.Int).SetString(body.Rate, 10)
	if !ok {
		return nil, fmt.Errorf("relayer: malformed rate %q", body.Rate)
	}
	return rate, nil
}

func (r *Relayer) do(ctx context.Context, method, path string, subject ports.Address, action string, in, out any) error {
	var payload io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", action, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	token, err := r.signer.Sign(subject, action)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(raw))
		}
		return &RelayerError{Status: resp.StatusCode, Message: eb.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", action, err)
	}
	return nil
}
