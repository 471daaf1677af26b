package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"unostake/internal/ports"
	"unostake/internal/token"
)

// Op names a ledger operation.
type Op string

const (
	OpGenesis      Op = "genesis"
	OpCreateMatch  Op = "createMatch"
	OpStake        Op = "stake"
	OpCommitResult Op = "commitResult"
	OpBuy          Op = "buy"
	OpFund         Op = "fund"
)

// ErrNoCaller is returned by caller-scoped operations invoked without ports.WithCaller.
var ErrNoCaller = errors.New("no caller bound to context")

// Block records one transaction in the memory chain.
type Block struct {
	Number    uint64            `json:"number"`
	Timestamp int64             `json:"timestamp"`
	PrevHash  string            `json:"prevHash"`
	Hash      string            `json:"hash"`
	Op        Op                `json:"op"`
	Caller    ports.Address     `json:"caller,omitempty"`
	Args      map[string]string `json:"args,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
}

type escrow struct {
	p1, p2  ports.Address
	stake   *big.Int
	staked  map[ports.Address]bool
	settled bool
	winner  ports.Address
}

// Memory is an in-process ledger. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	blocks    []Block
	matches   map[ports.MatchKey]*escrow
	balances  map[string]*big.Int
	rate      *big.Int
	converter token.Converter
	faults    map[Op][]error
	now       func() time.Time
}

// NewMemory creates a memory ledger selling reward tokens at rate per stake unit.
func NewMemory(rate int64, converter token.Converter) *Memory {
	m := &Memory{
		matches:   make(map[ports.MatchKey]*escrow),
		balances:  make(map[string]*big.Int),
		rate:      big.NewInt(rate),
		converter: converter,
		faults:    make(map[Op][]error),
		now:       time.Now,
	}
	m.blocks = append(m.blocks, m.seal(Block{Number: 0, PrevHash: "0", Op: OpGenesis, Success: true}))
	return m
}

// CreateMatch implements ports.LedgerGateway.
func (m *Memory) CreateMatch(ctx context.Context, id ports.MatchKey, p1, p2 ports.Address, stakeWei *big.Int) (ports.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(OpCreateMatch); err != nil {
		return ports.TxReceipt{}, err
	}
	caller, _ := ports.CallerFromContext(ctx)
	args := map[string]string{"matchId": id.Hex(), "p1": string(p1), "p2": string(p2), "stake": stakeString(stakeWei)}

	switch {
	case m.matches[id] != nil:
		return m.revert(OpCreateMatch, caller, args, "match exists"), nil
	case stakeWei == nil || stakeWei.Sign() <= 0:
		return m.revert(OpCreateMatch, caller, args, "stake must be positive"), nil
	}
	m.matches[id] = &escrow{
		p1:     p1,
		p2:     p2,
		stake:  new(big.Int).Set(stakeWei),
		staked: make(map[ports.Address]bool, 2),
	}
	return m.commit(OpCreateMatch, caller, args), nil
}

// Stake implements ports.LedgerGateway.
func (m *Memory) Stake(ctx context.Context, id ports.MatchKey) (ports.TxReceipt, error) {
	caller, ok := ports.CallerFromContext(ctx)
	if !ok {
		return ports.TxReceipt{}, ErrNoCaller
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(OpStake); err != nil {
		return ports.TxReceipt{}, err
	}
	args := map[string]string{"matchId": id.Hex()}
	e := m.matches[id]
	switch {
	case e == nil:
		return m.revert(OpStake, caller, args, "unknown match"), nil
	case e.settled:
		return m.revert(OpStake, caller, args, "match settled"), nil
	case !caller.Equal(e.p1) && !caller.Equal(e.p2):
		return m.revert(OpStake, caller, args, "not a player"), nil
	case e.staked[normalize(caller)]:
		return m.revert(OpStake, caller, args, "already staked"), nil
	case m.balanceLocked(caller).Cmp(e.stake) < 0:
		return m.revert(OpStake, caller, args, "insufficient balance"), nil
	}
	m.adjust(caller, new(big.Int).Neg(e.stake))
	e.staked[normalize(caller)] = true
	return m.commit(OpStake, caller, args), nil
}

// CommitResult implements ports.LedgerGateway.
func (m *Memory) CommitResult(ctx context.Context, id ports.MatchKey, winner ports.Address) (ports.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(OpCommitResult); err != nil {
		return ports.TxReceipt{}, err
	}
	caller, _ := ports.CallerFromContext(ctx)
	args := map[string]string{"matchId": id.Hex(), "winner": string(winner)}
	e := m.matches[id]
	switch {
	case e == nil:
		return m.revert(OpCommitResult, caller, args, "unknown match"), nil
	case e.settled:
		return m.revert(OpCommitResult, caller, args, "result already committed"), nil
	case !winner.Equal(e.p1) && !winner.Equal(e.p2):
		return m.revert(OpCommitResult, caller, args, "winner is not a player"), nil
	case len(e.staked) != 2:
		return m.revert(OpCommitResult, caller, args, "stakes incomplete"), nil
	}
	e.settled = true
	e.winner = winner
	m.adjust(winner, new(big.Int).Mul(e.stake, big.NewInt(2)))
	return m.commit(OpCommitResult, caller, args), nil
}

// Buy implements ports.LedgerGateway.
func (m *Memory) Buy(ctx context.Context, amount *big.Int) (ports.TxReceipt, error) {
	caller, ok := ports.CallerFromContext(ctx)
	if !ok {
		return ports.TxReceipt{}, ErrNoCaller
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(OpBuy); err != nil {
		return ports.TxReceipt{}, err
	}
	args := map[string]string{"amount": stakeString(amount), "rate": m.rate.String()}
	reward, err := m.converter.QuoteReward(amount, m.rate)
	if err != nil {
		return m.revert(OpBuy, caller, args, err.Error()), nil
	}
	m.adjust(caller, reward)
	args["minted"] = reward.String()
	return m.commit(OpBuy, caller, args), nil
}

// ExchangeRate implements ports.LedgerGateway.
func (m *Memory) ExchangeRate(ctx context.Context) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.rate), nil
}

// SetExchangeRate changes the rate quoted to later purchases.
func (m *Memory) SetExchangeRate(rate int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = big.NewInt(rate)
}

// Fund credits reward tokens to an account outside the store, e.g. to seed demo players.
func (m *Memory) Fund(account ports.Address, amount *big.Int) ports.TxReceipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjust(account, amount)
	return m.commit(OpFund, account, map[string]string{"amount": stakeString(amount)})
}

// Balance returns the reward-token balance of account.
func (m *Memory) Balance(account ports.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.balanceLocked(account))
}

// Staked reports whether account has escrowed its stake for the match.
func (m *Memory) Staked(id ports.MatchKey, account ports.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.matches[id]
	return e != nil && e.staked[normalize(account)]
}

// Winner returns the committed winner of a match.
func (m *Memory) Winner(id ports.MatchKey) (ports.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.matches[id]
	if e == nil || !e.settled {
		return "", false
	}
	return e.winner, true
}

// FailNext makes the next call of op return err without touching the chain.
// Several queued errors are returned in order.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Blocks returns a copy of the chain.
func (m *Memory) Blocks() []Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Block, len(m.blocks))
	copy(out, m.blocks)
	return out
}

// Verify checks block numbering and hash links of the whole chain.
func (m *Memory) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.blocks) == 0 || m.blocks[0].PrevHash != "0" {
		return fmt.Errorf("invalid genesis block")
	}
	for i := 1; i < len(m.blocks); i++ {
		cur, prev := m.blocks[i], m.blocks[i-1]
		if cur.Number != prev.Number+1 {
			return fmt.Errorf("block %d: number %d does not follow %d", i, cur.Number, prev.Number)
		}
		if cur.PrevHash != prev.Hash {
			return fmt.Errorf("block %d: broken link", i)
		}
		if want := blockHash(cur); cur.Hash != want {
			return fmt.Errorf("block %d: hash %s, want %s", i, cur.Hash, want)
		}
	}
	return nil
}

func (m *Memory) takeFault(op Op) error {
	queue := m.faults[op]
	if len(queue) == 0 {
		return nil
	}
	m.faults[op] = queue[1:]
	return queue[0]
}

func (m *Memory) commit(op Op, caller ports.Address, args map[string]string) ports.TxReceipt {
	return m.append(Block{Op: op, Caller: caller, Args: args, Success: true})
}

func (m *Memory) revert(op Op, caller ports.Address, args map[string]string, reason string) ports.TxReceipt {
	return m.append(Block{Op: op, Caller: caller, Args: args, Reason: reason})
}

func (m *Memory) append(b Block) ports.TxReceipt {
	latest := m.blocks[len(m.blocks)-1]
	b.Number = latest.Number + 1
	b.PrevHash = latest.Hash
	b = m.seal(b)
	m.blocks = append(m.blocks, b)
	return ports.TxReceipt{TxHash: b.Hash, BlockNumber: b.Number, Success: b.Success, Reason: b.Reason}
}

func (m *Memory) seal(b Block) Block {
	b.Timestamp = m.now().Unix()
	b.Hash = blockHash(b)
	return b
}

func (m *Memory) balanceLocked(account ports.Address) *big.Int {
	if b, ok := m.balances[string(normalize(account))]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Memory) adjust(account ports.Address, delta *big.Int) {
	key := string(normalize(account))
	b, ok := m.balances[key]
	if !ok {
		b = new(big.Int)
		m.balances[key] = b
	}
	b.Add(b, delta)
}

func blockHash(b Block) string {
	args, _ := json.Marshal(b.Args)
	data := fmt.Sprintf("%d%d%s%s%s%s%t%s", b.Number, b.Timestamp, b.PrevHash, b.Op, b.Caller, args, b.Success, b.Reason)
	sum := sha256.Sum256([]byte(data))
	return "0x" + hex.EncodeToString(sum[:])
}

func normalize(a ports.Address) ports.Address {
	return ports.Address(strings.ToLower(string(a)))
}

func stakeString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
