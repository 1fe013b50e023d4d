package engine

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/slacktip/tipbot/pkg/ledger"
	"github.com/slacktip/tipbot/pkg/ledgerstore"
	"github.com/slacktip/tipbot/pkg/txqueue"
	"github.com/slacktip/tipbot/pkg/wallet"
)

// memStore is an in-memory ledgerstore.Store for engine tests. It is not
// transactional: RunInTx just runs fn against the same state, which is enough
// because engine tests only exercise the happy path ordering.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*ledger.User // by slack id
	tips     map[string]*ledger.Tip  // by tip id
	tipKeys  map[string]bool         // duplicate guard
	settings ledger.Settings
	admins   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  1,
		users:   make(map[string]*ledger.User),
		tips:    make(map[string]*ledger.Tip),
		tipKeys: make(map[string]bool),
		settings: ledger.Settings{
			DailyTipLimit: 10,
			TipAmount:     decimal.RequireFromString("0.01"),
		},
		admins: make(map[string]bool),
	}
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Store) error) error {
	return fn(ctx, s)
}

func (s *memStore) GetOrCreateUser(ctx context.Context, slackID string) (*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr, ok := s.users[slackID]; ok {
		cp := *usr
		return &cp, nil
	}
	usr := &ledger.User{
		ID:            s.nextID,
		SlackID:       slackID,
		LastResetDate: ledger.DateOf(time.Now()),
	}
	s.nextID++
	s.users[slackID] = usr
	cp := *usr
	return &cp, nil
}

func (s *memStore) GetUserBySlackID(ctx context.Context, slackID string) (*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usr, ok := s.users[slackID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	cp := *usr
	return &cp, nil
}

func (s *memStore) GetUserByID(ctx context.Context, id int64) (*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usr := s.byID(id)
	if usr == nil {
		return nil, ledger.ErrUserNotFound
	}
	cp := *usr
	return &cp, nil
}

// byID must be called with the lock held.
func (s *memStore) byID(id int64) *ledger.User {
	for _, usr := range s.users {
		if usr.ID == id {
			return usr
		}
	}
	return nil
}

func (s *memStore) SetDepositAddress(ctx context.Context, userID int64, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr := s.byID(userID); usr != nil {
		usr.DepositAddress = address
	}
	return nil
}

func (s *memStore) SetWithdrawalAddress(ctx context.Context, userID int64, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr := s.byID(userID); usr != nil {
		usr.WithdrawalAddress = address
	}
	return nil
}

func (s *memStore) SetQuota(ctx context.Context, userID int64, tipsGivenToday int, lastResetDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr := s.byID(userID); usr != nil {
		usr.TipsGivenToday = tipsGivenToday
		usr.LastResetDate = lastResetDate
	}
	return nil
}

func (s *memStore) CreditFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr := s.byID(userID); usr != nil {
		usr.FreeBalance = usr.FreeBalance.Add(amount)
	}
	return nil
}

func (s *memStore) DebitFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	usr := s.byID(userID)
	if usr == nil || usr.FreeBalance.LessThan(amount) {
		return fmt.Errorf("free balance debit matched no row")
	}
	usr.FreeBalance = usr.FreeBalance.Sub(amount)
	return nil
}

func (s *memStore) CreditExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usr := s.byID(userID); usr != nil {
		usr.ExtraBalance = usr.ExtraBalance.Add(amount)
	}
	return nil
}

func (s *memStore) DebitExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	usr := s.byID(userID)
	if usr == nil || usr.ExtraBalance.LessThan(amount) {
		return ledger.ErrInsufficientExtraBalance
	}
	usr.ExtraBalance = usr.ExtraBalance.Sub(amount)
	return nil
}

func (s *memStore) ListUsersWithFreeBalance(ctx context.Context) ([]*ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.User
	for _, usr := range s.users {
		if usr.FreeBalance.IsPositive() {
			cp := *usr
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateTip(ctx context.Context, tip *ledger.Tip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d/%d/%s/%s", tip.FromUserID, tip.ToUserID, tip.ChannelID, tip.MessageTS)
	if s.tipKeys[key] {
		return ledger.ErrDuplicateTip
	}
	s.tipKeys[key] = true
	cp := *tip
	s.tips[tip.ID] = &cp
	return nil
}

func (s *memStore) SetTipTxHash(ctx context.Context, tipID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tip, ok := s.tips[tipID]; ok {
		tip.TxHash = txHash
	}
	return nil
}

func (s *memStore) ListTipsByUser(ctx context.Context, userID int64, limit int) ([]*ledger.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.Tip
	for _, tip := range s.tips {
		if tip.FromUserID == userID || tip.ToUserID == userID {
			cp := *tip
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListRecentTips(ctx context.Context, limit int) ([]*ledger.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.Tip
	for _, tip := range s.tips {
		cp := *tip
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetSettings(ctx context.Context) (*ledger.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.settings
	return &cp, nil
}

func (s *memStore) UpdateSettings(ctx context.Context, dailyTipLimit int, tipAmount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.DailyTipLimit = dailyTipLimit
	s.settings.TipAmount = tipAmount
	return nil
}

func (s *memStore) IsAdmin(ctx context.Context, slackID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[slackID], nil
}

func (s *memStore) AddAdmin(ctx context.Context, slackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[slackID] = true
	return nil
}

func (s *memStore) ListAdmins(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// mockChain records submitted transfers and confirms them immediately.
type mockChain struct {
	mu           sync.Mutex
	admin        common.Address
	balances     map[common.Address]*big.Int
	transfers    []mockTransfer
	authRedeemed []*wallet.TransferAuthorization
	transferErr  error
	confirmErr   error
	nextHashSeed byte
}

type mockTransfer struct {
	To     common.Address
	Amount *big.Int
	Hash   common.Hash
}

func newMockChain() *mockChain {
	c := &mockChain{
		admin:    common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		balances: make(map[common.Address]*big.Int),
	}
	// The pool starts funded; shortfall tests zero it out explicitly.
	c.balances[c.admin] = big.NewInt(1_000_000_000)
	return c
}

func (c *mockChain) nextHash() common.Hash {
	c.nextHashSeed++
	var h common.Hash
	h[31] = c.nextHashSeed
	return h
}

func (c *mockChain) AdminAddress() common.Address { return c.admin }

func (c *mockChain) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *mockChain) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		return common.Hash{}, c.transferErr
	}
	h := c.nextHash()
	c.transfers = append(c.transfers, mockTransfer{To: to, Amount: new(big.Int).Set(amount), Hash: h})
	return h, nil
}

func (c *mockChain) TransferWithAuthorization(ctx context.Context, a *wallet.TransferAuthorization) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		return common.Hash{}, c.transferErr
	}
	c.authRedeemed = append(c.authRedeemed, a)
	return c.nextHash(), nil
}

func (c *mockChain) WaitForConfirmation(ctx context.Context, txHash common.Hash) error {
	return c.confirmErr
}

// inlineQueue runs jobs synchronously so tests observe their effects without
// waiting.
type inlineQueue struct {
	mu   sync.Mutex
	jobs []string
	errs []error
}

func (q *inlineQueue) Enqueue(name string, job txqueue.Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, name)
	q.mu.Unlock()

	err := job(context.Background())

	q.mu.Lock()
	q.errs = append(q.errs, err)
	q.mu.Unlock()
	return nil
}

// mockNotifier records direct messages.
type mockNotifier struct {
	mu       sync.Mutex
	messages map[string][]string // slack id -> texts
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{messages: make(map[string][]string)}
}

func (n *mockNotifier) DirectMessage(ctx context.Context, slackID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[slackID] = append(n.messages[slackID], text)
	return nil
}
