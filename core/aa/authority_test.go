// Copyright 2026 The go-halcyon Authors

package aa

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// mockState implements AccountState for testing.
type mockState struct {
	owners       map[common.Address]common.Address
	balances     map[common.Address]*big.Int
	materialized map[common.Address]bool
}

func newMockState() *mockState {
	return &mockState{
		owners:       make(map[common.Address]common.Address),
		balances:     make(map[common.Address]*big.Int),
		materialized: make(map[common.Address]bool),
	}
}

func (m *mockState) Exists(addr common.Address) bool {
	return m.materialized[addr]
}

func (m *mockState) Owner(addr common.Address) common.Address {
	return m.owners[addr]
}

func (m *mockState) Materialize(addr common.Address, initPayload []byte) error {
	if len(initPayload) < common.AddressLength {
		return ErrMalformedInitPayload
	}
	m.owners[addr] = common.BytesToAddress(initPayload[:common.AddressLength])
	m.materialized[addr] = true
	return nil
}

func (m *mockState) Balance(addr common.Address) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (m *mockState) SubBalance(addr common.Address, amount *big.Int) {
	if _, ok := m.balances[addr]; !ok {
		m.balances[addr] = big.NewInt(0)
	}
	m.balances[addr].Sub(m.balances[addr], amount)
}

func (m *mockState) AddBalance(addr common.Address, amount *big.Int) {
	if _, ok := m.balances[addr]; !ok {
		m.balances[addr] = big.NewInt(0)
	}
	m.balances[addr].Add(m.balances[addr], amount)
}

var (
	testDispatcher = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	testSysCaller  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testEngineAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	testTime = uint64(1700000000)
)

func testConfig() Config {
	return Config{
		ChainID:          big.NewInt(1337),
		Engine:           testEngineAddr,
		Dispatcher:       testDispatcher,
		SystemCaller:     testSysCaller,
		StrictSlotNonces: true,
		SignerCacheSize:  16,
	}
}

// newTestAuthority sets up an authority over a mock state with one
// materialized, funded account and a deterministic clock.
func newTestAuthority(t *testing.T) (*Authority, *mockState, common.Address, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")

	state := newMockState()
	state.owners[sender] = owner
	state.materialized[sender] = true
	state.balances[sender] = big.NewInt(1e18)

	a := NewAuthority(testConfig(), state, nil)
	a.now = func() uint64 { return testTime }
	return a, state, sender, key
}

func makeOp(sender common.Address, seq uint64) *Operation {
	return &Operation{
		Sender:      sender,
		Nonce:       uint256.NewInt(seq),
		CallPayload: []byte{0x01, 0x02, 0x03},
	}
}

func signOp(t *testing.T, a *Authority, op *Operation, key *ecdsa.PrivateKey) {
	t.Helper()
	cfg := a.Config()
	if err := SignOperation(op, cfg.ChainID, cfg.Engine, key); err != nil {
		t.Fatalf("sign operation: %v", err)
	}
}

func TestValidateAcceptsAndAdvancesNonce(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)
	a.nonces.commit(sender, NonceKey{}, 5)

	op := makeOp(sender, 6)
	signOp(t, a, op, key)

	result, err := a.Validate(op, nil)
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a validation result")
	}
	if last := a.nonces.Last(sender, NonceKey{}); last != 6 {
		t.Errorf("nonce not advanced, last = %d", last)
	}
}

func TestValidateRejectsReplay(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)

	op := makeOp(sender, 1)
	signOp(t, a, op, key)
	if _, err := a.Validate(op, nil); err != nil {
		t.Fatalf("first validation should accept, got %v", err)
	}

	// Identical resubmission must always be rejected.
	if _, err := a.Validate(op, nil); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
	if last := a.nonces.Last(sender, NonceKey{}); last != 1 {
		t.Errorf("replay moved the nonce, last = %d", last)
	}
}

func TestValidateRejectsWrongSigner(t *testing.T) {
	a, state, sender, _ := newTestAuthority(t)

	other, _ := crypto.GenerateKey()
	op := makeOp(sender, 1)
	signOp(t, a, op, other)

	_, err := a.Validate(op, big.NewInt(1000))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	// No state changes on rejection.
	if last := a.nonces.Last(sender, NonceKey{}); last != 0 {
		t.Errorf("nonce consumed on rejection, last = %d", last)
	}
	if state.Balance(sender).Cmp(big.NewInt(1e18)) != 0 {
		t.Error("balance changed on rejection")
	}
}

func TestValidateRejectionIsIdempotent(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)
	a.nonces.commit(sender, NonceKey{}, 5)

	op := makeOp(sender, 3) // stale
	signOp(t, a, op, key)

	_, err1 := a.Validate(op, nil)
	_, err2 := a.Validate(op, nil)
	if !errors.Is(err1, ErrInvalidNonce) || !errors.Is(err2, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce twice, got %v then %v", err1, err2)
	}
	if last := a.nonces.Last(sender, NonceKey{}); last != 5 {
		t.Errorf("state drifted across rejections, last = %d", last)
	}
}

func TestValidateShortfallStillAccepts(t *testing.T) {
	a, state, sender, key := newTestAuthority(t)
	state.balances[sender] = big.NewInt(500)

	op := makeOp(sender, 1)
	signOp(t, a, op, key)

	missing := big.NewInt(1000)
	result, err := a.Validate(op, missing)
	if err != nil {
		t.Fatalf("shortfall must not reject, got %v", err)
	}
	if result.PrefundPaid.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("transferred %v, want full balance 500", result.PrefundPaid)
	}
	if result.PrefundShortfall.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("shortfall %v, want 500", result.PrefundShortfall)
	}
	if state.Balance(testDispatcher).Cmp(big.NewInt(500)) != 0 {
		t.Errorf("dispatcher received %v, want 500", state.Balance(testDispatcher))
	}
}

func TestValidatePrefundNeverOverdraws(t *testing.T) {
	a, state, sender, key := newTestAuthority(t)

	op := makeOp(sender, 1)
	signOp(t, a, op, key)

	result, err := a.Validate(op, big.NewInt(1000))
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if result.PrefundPaid.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("transferred %v, want exactly 1000", result.PrefundPaid)
	}
	if result.PrefundShortfall.Sign() != 0 {
		t.Errorf("unexpected shortfall %v", result.PrefundShortfall)
	}
	want := new(big.Int).Sub(big.NewInt(1e18), big.NewInt(1000))
	if state.Balance(sender).Cmp(want) != 0 {
		t.Errorf("sender balance %v, want %v", state.Balance(sender), want)
	}
}

func TestValidateTimeWindow(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)

	// Window opens in the future.
	op := makeOp(sender, 1)
	op.ValidAfter = testTime + 100
	signOp(t, a, op, key)
	if _, err := a.Validate(op, nil); !errors.Is(err, ErrNotYetValid) {
		t.Fatalf("expected ErrNotYetValid, got %v", err)
	}

	// Time passes; the identical window with a fresh nonce is fine.
	a.now = func() uint64 { return testTime + 200 }
	late := makeOp(sender, 1)
	late.ValidAfter = testTime + 100
	signOp(t, a, late, key)
	if _, err := a.Validate(late, nil); err != nil {
		t.Fatalf("expected accept once window opened, got %v", err)
	}

	// Expired window.
	expired := makeOp(sender, 2)
	expired.ValidUntil = testTime
	signOp(t, a, expired, key)
	if _, err := a.Validate(expired, nil); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestValidateKeyedSlotsAreIndependent(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)

	slotNonce := func(slot byte, seq uint64) *uint256.Int {
		n := new(uint256.Int).Lsh(uint256.NewInt(uint64(slot)), 64)
		return n.Or(n, uint256.NewInt(seq))
	}

	for _, n := range []*uint256.Int{slotNonce(1, 1), slotNonce(2, 1), slotNonce(1, 2)} {
		op := makeOp(sender, 0)
		op.Nonce = n
		signOp(t, a, op, key)
		if _, err := a.Validate(op, nil); err != nil {
			t.Fatalf("slot nonce %s rejected: %v", n, err)
		}
	}

	// Replay within a slot is still rejected.
	op := makeOp(sender, 0)
	op.Nonce = slotNonce(2, 1)
	signOp(t, a, op, key)
	if _, err := a.Validate(op, nil); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce for slot replay, got %v", err)
	}
}

func TestValidateMonotonicSlotNonces(t *testing.T) {
	cfg := testConfig()
	cfg.StrictSlotNonces = false

	key, _ := crypto.GenerateKey()
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	state := newMockState()
	state.owners[sender] = crypto.PubkeyToAddress(key.PublicKey)
	state.materialized[sender] = true

	a := NewAuthority(cfg, state, nil)
	a.now = func() uint64 { return testTime }

	op := makeOp(sender, 10) // gap is fine when not strict
	signOp(t, a, op, key)
	if _, err := a.Validate(op, nil); err != nil {
		t.Fatalf("monotonic mode rejected gapped nonce: %v", err)
	}
	stale := makeOp(sender, 10)
	signOp(t, a, stale, key)
	if _, err := a.Validate(stale, nil); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce for non-increasing nonce, got %v", err)
	}
}

func TestValidateMaterializesOnFirstUse(t *testing.T) {
	a, state, _, key := newTestAuthority(t)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	fresh := common.HexToAddress("0x3333333333333333333333333333333333333333")

	op := makeOp(fresh, 1)
	op.InitPayload = append(owner.Bytes(), 0xab, 0xcd)
	signOp(t, a, op, key)

	if _, err := a.Validate(op, nil); err != nil {
		t.Fatalf("first-use validation failed: %v", err)
	}
	if !state.Exists(fresh) {
		t.Error("account not materialized on acceptance")
	}
	if state.Owner(fresh) != owner {
		t.Errorf("controlling key %s, want %s", state.Owner(fresh), owner)
	}
}

func TestValidateRejectionLeavesAccountUnmaterialized(t *testing.T) {
	a, state, _, key := newTestAuthority(t)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	fresh := common.HexToAddress("0x4444444444444444444444444444444444444444")

	wrong, _ := crypto.GenerateKey()
	op := makeOp(fresh, 1)
	op.InitPayload = owner.Bytes()
	signOp(t, a, op, wrong)

	if _, err := a.Validate(op, nil); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if state.Exists(fresh) {
		t.Error("rejected first-use still materialized the account")
	}
}

func TestValidateRequiresInitPayload(t *testing.T) {
	a, _, _, key := newTestAuthority(t)
	fresh := common.HexToAddress("0x5555555555555555555555555555555555555555")

	op := makeOp(fresh, 1)
	signOp(t, a, op, key)
	if _, err := a.Validate(op, nil); !errors.Is(err, ErrUninitializedAccount) {
		t.Fatalf("expected ErrUninitializedAccount, got %v", err)
	}

	short := makeOp(fresh, 1)
	short.InitPayload = []byte{0x01, 0x02}
	signOp(t, a, short, key)
	if _, err := a.Validate(short, nil); !errors.Is(err, ErrMalformedInitPayload) {
		t.Fatalf("expected ErrMalformedInitPayload, got %v", err)
	}
}

func TestValidateRejectsEmptySender(t *testing.T) {
	a, _, _, _ := newTestAuthority(t)
	op := makeOp(common.Address{}, 1)
	if _, err := a.Validate(op, nil); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestAcceptedSetIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.AcceptedOpsLimit = 2

	key, _ := crypto.GenerateKey()
	sender := common.HexToAddress("0x6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a6a")
	state := newMockState()
	state.owners[sender] = crypto.PubkeyToAddress(key.PublicKey)
	state.materialized[sender] = true
	state.balances[sender] = big.NewInt(1e18)

	a := NewAuthority(cfg, state, nil)
	a.now = func() uint64 { return testTime }
	e := NewExecutor(a, state)

	ops := make([]*Operation, 3)
	for i := range ops {
		ops[i] = makeOp(sender, uint64(i+1))
		signOp(t, a, ops[i], key)
		if _, err := a.Validate(ops[i], nil); err != nil {
			t.Fatalf("validate op %d: %v", i, err)
		}
	}

	// The oldest acceptance was evicted and fails closed.
	if _, err := e.Execute(ops[0], testDispatcher); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("evicted acceptance must fail closed, got %v", err)
	}
	// The two acceptances within the bound still execute.
	for i, op := range ops[1:] {
		if _, err := e.Execute(op, testDispatcher); err != nil {
			t.Fatalf("retained acceptance %d rejected: %v", i+1, err)
		}
	}
}

func TestValidateSequentialRejectsKeyedSlot(t *testing.T) {
	a, _, sender, key := newTestAuthority(t)

	op := makeOp(sender, 0)
	op.Nonce = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	op.Nonce.Or(op.Nonce, uint256.NewInt(1))
	signOp(t, a, op, key)

	if _, err := a.validateSequential(op, a.Digest(op), nil, testSysCaller); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce for keyed slot, got %v", err)
	}
}
