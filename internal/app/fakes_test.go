package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"unostake/internal/ports"
)

const (
	alice ports.Address = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	bob   ports.Address = "0xbBbBBbBbbBBbbbbBbBbbbbBBbBbbbbBbBbbBBbBb"
	carol ports.Address = "0xcccccccccccccccccccccccccccccccccccccccc"
)

// fakeGateway records calls and answers with configurable receipts.
type fakeGateway struct {
	mu sync.Mutex

	createErr   error
	stakeErr    map[ports.Address]error
	stakeRevert map[ports.Address]string
	stakeBlock  map[ports.Address]chan struct{}
	commitErr   error
	commitBlock chan struct{}
	buyErr      error
	rate        *big.Int
	rateErr     error

	creates  int
	stakes   []ports.Address
	commits  []ports.Address
	buys     []*big.Int
	buyers   []ports.Address
	nextHash int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		stakeErr:    make(map[ports.Address]error),
		stakeRevert: make(map[ports.Address]string),
		stakeBlock:  make(map[ports.Address]chan struct{}),
		rate:        big.NewInt(10),
	}
}

var errRPC = errors.New("rpc unavailable")

func (g *fakeGateway) receipt(success bool, reason string) ports.TxReceipt {
	g.nextHash++
	return ports.TxReceipt{TxHash: fmt.Sprintf("0x%064x", g.nextHash), BlockNumber: uint64(g.nextHash), Success: success, Reason: reason}
}

func (g *fakeGateway) CreateMatch(ctx context.Context, id ports.MatchKey, p1, p2 ports.Address, stake *big.Int) (ports.TxReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	if g.createErr != nil {
		return ports.TxReceipt{}, g.createErr
	}
	return g.receipt(true, ""), nil
}

func (g *fakeGateway) Stake(ctx context.Context, id ports.MatchKey) (ports.TxReceipt, error) {
	caller, ok := ports.CallerFromContext(ctx)
	if !ok {
		return ports.TxReceipt{}, errors.New("no caller")
	}
	g.mu.Lock()
	block := g.stakeBlock[caller]
	g.stakes = append(g.stakes, caller)
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.stakeErr[caller]; err != nil {
		return ports.TxReceipt{}, err
	}
	if reason, ok := g.stakeRevert[caller]; ok {
		return g.receipt(false, reason), nil
	}
	return g.receipt(true, ""), nil
}

func (g *fakeGateway) CommitResult(ctx context.Context, id ports.MatchKey, winner ports.Address) (ports.TxReceipt, error) {
	g.mu.Lock()
	block := g.commitBlock
	g.commits = append(g.commits, winner)
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.commitErr != nil {
		return ports.TxReceipt{}, g.commitErr
	}
	return g.receipt(true, ""), nil
}

func (g *fakeGateway) Buy(ctx context.Context, amount *big.Int) (ports.TxReceipt, error) {
	caller, _ := ports.CallerFromContext(ctx)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buys = append(g.buys, amount)
	g.buyers = append(g.buyers, caller)
	if g.buyErr != nil {
		return ports.TxReceipt{}, g.buyErr
	}
	return g.receipt(true, ""), nil
}

func (g *fakeGateway) ExchangeRate(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rateErr != nil {
		return nil, g.rateErr
	}
	return new(big.Int).Set(g.rate), nil
}

func (g *fakeGateway) commitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.commits)
}

func (g *fakeGateway) stakeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.stakes)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.MatchEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev ports.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}
