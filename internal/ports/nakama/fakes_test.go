package nakama

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"unostake/internal/app"
	"unostake/internal/app/onboarding"
	"unostake/internal/ledger"
	"unostake/internal/ports"
	"unostake/internal/token"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	carol = "0x3333333333333333333333333333333333333333"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	messages []sentMessage
	labels   []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.messages = append(md.messages, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

func (md *mockDispatcher) byOp(opCode int64) []sentMessage {
	var out []sentMessage
	for _, m := range md.messages {
		if m.opCode == opCode {
			out = append(out, m)
		}
	}
	return out
}

// fakeNakama implements the storage, wallet and account calls the adapters use.
type fakeNakama struct {
	mu        sync.Mutex
	objects   map[string]string
	wallets   map[string]map[string]int64
	profiles  map[string]string
	walletErr error
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		objects:  make(map[string]string),
		wallets:  make(map[string]map[string]int64),
		profiles: make(map[string]string),
	}
}

func storageKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if v, ok := f.objects[storageKey(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, &api.StorageObject{Collection: r.Collection, Key: r.Key, UserId: r.UserID, Value: v})
		}
	}
	return out, nil
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range writes {
		k := storageKey(w.Collection, w.Key, w.UserID)
		if _, exists := f.objects[k]; exists && w.Version == "*" {
			return nil, runtime.ErrStorageRejectedVersion
		}
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		f.objects[storageKey(w.Collection, w.Key, w.UserID)] = w.Value
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID})
	}
	return acks, nil
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, err := json.Marshal(f.wallets[userID])
	if err != nil {
		return nil, err
	}
	return &api.Account{Wallet: string(wallet)}, nil
}

func (f *fakeNakama) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.walletErr != nil {
		return nil, nil, f.walletErr
	}
	if _, ok := f.wallets[userID]; !ok {
		f.wallets[userID] = make(map[string]int64)
	}
	prev := make(map[string]int64)
	for k, v := range f.wallets[userID] {
		prev[k] = v
	}
	for k, v := range changeset {
		f.wallets[userID][k] += v
	}
	return prev, f.wallets[userID], nil
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID] = displayName
	return nil
}

func (f *fakeNakama) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[userID][walletCurrency]
}

// testPresence implements runtime.Presence.
type testPresence struct {
	userID string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.userID }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node" }

// testMatchData implements runtime.MatchData.
type testMatchData struct {
	testPresence
	opCode int64
	data   []byte
}

func (d testMatchData) GetOpCode() int64      { return d.opCode }
func (d testMatchData) GetData() []byte       { return d.data }
func (d testMatchData) GetReliable() bool     { return true }
func (d testMatchData) GetReceiveTime() int64 { return 0 }

type testEnv struct {
	module      *Module
	coordinator *app.Coordinator
	ledger      *ledger.Memory
	nk          *fakeNakama
	onboarding  *onboarding.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := ledger.NewMemory(10, token.DefaultConverter)
	nk := newFakeNakama()
	coordinator := app.NewCoordinator(mem, app.Options{
		Rng:         rand.New(rand.NewSource(7)),
		Now:         func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		StakeTiers:  map[string]string{"casual": "0.1"},
		DefaultTier: "casual",
		AutoStake:   true,
	})
	svc := onboarding.NewService(NewNakamaAccountAdapter(nk), NewNakamaAddressBook(nk), rand.New(rand.NewSource(1)))
	return &testEnv{
		module:      NewModule(coordinator, svc, NewNakamaEconomyAdapter(nk)),
		coordinator: coordinator,
		ledger:      mem,
		nk:          nk,
		onboarding:  svc,
	}
}

func userCtx(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

// link binds userID to addr, failing the test on error.
func (e *testEnv) link(t *testing.T, userID, addr string) {
	t.Helper()
	if err := e.onboarding.LinkAddress(context.Background(), userID, ports.Address(addr)); err != nil {
		t.Fatalf("link %s: %v", userID, err)
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func decodeInto(t *testing.T, raw string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

// runtimeCode extracts the gRPC code from a runtime error, or -1.
func runtimeCode(err error) int {
	if rtErr, ok := err.(*runtime.Error); ok {
		return rtErr.Code
	}
	return -1
}
