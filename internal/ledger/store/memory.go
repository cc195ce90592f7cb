package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/models"
)

// MemoryStore keeps the ledger in process. Writers of one franchise are
// serialized by a per-franchise mutex and stage their changes until fn
// returns nil, so a failed unit leaves no partial effect.
type MemoryStore struct {
	mu sync.RWMutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	franchises map[string]models.Franchise
	tokens     map[string]models.FranchiseToken
	holdings   map[string]map[string]models.TokenHolding
	tokenTxs   map[string][]models.TokenTransaction
	wallets    map[string]models.FranchiseWallet
	walletTxs  map[string][]models.WalletTransaction
	revenue    map[string]models.RevenueRecord

	outbox       []memOutboxRow
	nextOutboxID int64
}

type memOutboxRow struct {
	entry     models.OutboxEntry
	processed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:      make(map[string]*sync.Mutex),
		franchises: make(map[string]models.Franchise),
		tokens:     make(map[string]models.FranchiseToken),
		holdings:   make(map[string]map[string]models.TokenHolding),
		tokenTxs:   make(map[string][]models.TokenTransaction),
		wallets:    make(map[string]models.FranchiseWallet),
		walletTxs:  make(map[string][]models.WalletTransaction),
		revenue:    make(map[string]models.RevenueRecord),
	}
}

// PutFranchise registers a catalogue franchise. The catalogue is owned
// elsewhere; this is how the in-process store is seeded.
func (s *MemoryStore) PutFranchise(f models.Franchise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.franchises[f.ID] = f
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) franchiseLock(franchiseID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[franchiseID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[franchiseID] = l
	}
	return l
}

func (s *MemoryStore) WithFranchise(ctx context.Context, franchiseID string, fn func(tx Tx) error) error {
	l := s.franchiseLock(franchiseID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewTransactionFailedError(err)
	}

	tx := newMemTx(s, franchiseID)
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *MemoryStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.token != nil {
		s.tokens[tx.franchiseID] = *tx.token
	}
	if len(tx.holdings) > 0 {
		hs, ok := s.holdings[tx.franchiseID]
		if !ok {
			hs = make(map[string]models.TokenHolding)
			s.holdings[tx.franchiseID] = hs
		}
		for id, h := range tx.holdings {
			hs[id] = h
		}
	}
	if tx.wallet != nil {
		s.wallets[tx.franchiseID] = *tx.wallet
	}

	for _, rec := range tx.newTokenTxs {
		s.tokenTxs[rec.FranchiseID] = append(s.tokenTxs[rec.FranchiseID], rec)
	}
	for _, rec := range tx.newWalletTxs {
		s.walletTxs[rec.FranchiseID] = append(s.walletTxs[rec.FranchiseID], rec)
	}
	for _, rec := range tx.newRevenue {
		s.revenue[rec.WalletTransactionID] = rec
	}

	for id, u := range tx.statusUpdates {
		s.applyStatusLocked(tx.franchiseID, id, u)
	}

	for i := range s.outbox {
		row := &s.outbox[i]
		if msg, ok := tx.outboxAttempts[row.entry.ID]; ok {
			row.entry.Attempts++
			row.entry.LastError = msg
		}
		if tx.outboxProcessed[row.entry.ID] {
			row.processed = true
		}
	}
	for _, e := range tx.newOutbox {
		s.nextOutboxID++
		e.ID = s.nextOutboxID
		s.outbox = append(s.outbox, memOutboxRow{entry: e})
	}
}

func (s *MemoryStore) applyStatusLocked(franchiseID, id string, u statusUpdate) {
	switch u.ledger {
	case models.LedgerToken:
		txs := s.tokenTxs[franchiseID]
		for i := range txs {
			if txs[i].ID == id {
				txs[i].Status = u.status
				txs[i].SettlementRef = u.ref
				txs[i].UpdatedAt = u.at
			}
		}
	case models.LedgerWallet:
		txs := s.walletTxs[franchiseID]
		for i := range txs {
			if txs[i].ID == id {
				txs[i].Status = u.status
				txs[i].SettlementRef = u.ref
				txs[i].UpdatedAt = u.at
			}
		}
	}
}

// --- committed reads ---

func (s *MemoryStore) GetFranchise(_ context.Context, franchiseID string) (*models.Franchise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.franchises[franchiseID]
	if !ok {
		return nil, apperrors.NewNotFoundError("franchise", franchiseID)
	}
	return &f, nil
}

func (s *MemoryStore) ListFranchisesByBrand(_ context.Context, brandID string) ([]models.Franchise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Franchise
	for _, f := range s.franchises {
		if f.BrandID == brandID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetToken(_ context.Context, franchiseID string) (*models.FranchiseToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[franchiseID]
	if !ok {
		return nil, apperrors.NewNotFoundError("token", franchiseID)
	}
	return &t, nil
}

func (s *MemoryStore) GetHolding(_ context.Context, franchiseID, investorID string) (*models.TokenHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[franchiseID][investorID]
	if !ok {
		return nil, apperrors.NewNotFoundError("holding", franchiseID+"/"+investorID)
	}
	return &h, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, franchiseID string) ([]models.TokenHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHoldings(s.holdings[franchiseID], nil), nil
}

func (s *MemoryStore) GetWallet(_ context.Context, franchiseID string) (*models.FranchiseWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[franchiseID]
	if !ok {
		return nil, apperrors.NewNotFoundError("wallet", franchiseID)
	}
	return &w, nil
}

func (s *MemoryStore) GetTokenTransaction(_ context.Context, id string) (*models.TokenTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, txs := range s.tokenTxs {
		for _, rec := range txs {
			if rec.ID == id {
				return &rec, nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError("token transaction", id)
}

func (s *MemoryStore) GetWalletTransaction(_ context.Context, id string) (*models.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, txs := range s.walletTxs {
		for _, rec := range txs {
			if rec.ID == id {
				return &rec, nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError("wallet transaction", id)
}

func (s *MemoryStore) GetRevenueRecord(_ context.Context, walletTransactionID string) (*models.RevenueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.revenue[walletTransactionID]
	if !ok {
		return nil, apperrors.NewNotFoundError("revenue record", walletTransactionID)
	}
	return &rec, nil
}

func (s *MemoryStore) ListTokenTransactions(_ context.Context, franchiseID string, limit int) ([]models.TokenTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.tokenTxs[franchiseID], nil, limit), nil
}

func (s *MemoryStore) ListWalletTransactions(_ context.Context, franchiseID string, limit int) ([]models.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.walletTxs[franchiseID], nil, limit), nil
}

func (s *MemoryStore) ListPendingOutbox(_ context.Context, limit int) ([]models.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OutboxEntry
	for _, row := range s.outbox {
		if row.processed {
			continue
		}
		out = append(out, row.entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortedHoldings(committed, staged map[string]models.TokenHolding) []models.TokenHolding {
	merged := make(map[string]models.TokenHolding, len(committed)+len(staged))
	for id, h := range committed {
		merged[id] = h
	}
	for id, h := range staged {
		merged[id] = h
	}
	out := make([]models.TokenHolding, 0, len(merged))
	for _, h := range merged {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvestorID < out[j].InvestorID })
	return out
}

// newestFirst concatenates the committed and staged ledgers and returns them
// in reverse append order.
func newestFirst[T any](committed, staged []T, limit int) []T {
	all := make([]T, 0, len(committed)+len(staged))
	all = append(all, committed...)
	all = append(all, staged...)

	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out
}

// --- staged transaction ---

type statusUpdate struct {
	ledger models.LedgerName
	status models.TxStatus
	ref    string
	at     time.Time
}

type memTx struct {
	s           *MemoryStore
	franchiseID string

	token    *models.FranchiseToken
	holdings map[string]models.TokenHolding
	wallet   *models.FranchiseWallet

	newTokenTxs   []models.TokenTransaction
	newWalletTxs  []models.WalletTransaction
	newRevenue    []models.RevenueRecord
	statusUpdates map[string]statusUpdate

	newOutbox       []models.OutboxEntry
	outboxAttempts  map[int64]string
	outboxProcessed map[int64]bool
}

func newMemTx(s *MemoryStore, franchiseID string) *memTx {
	return &memTx{
		s:               s,
		franchiseID:     franchiseID,
		holdings:        make(map[string]models.TokenHolding),
		statusUpdates:   make(map[string]statusUpdate),
		outboxAttempts:  make(map[int64]string),
		outboxProcessed: make(map[int64]bool),
	}
}

func (t *memTx) checkScope(franchiseID string) error {
	if franchiseID != t.franchiseID {
		return apperrors.NewInvalidInputError("write outside the franchise of this transaction: " + franchiseID)
	}
	return nil
}

func (t *memTx) GetFranchise(ctx context.Context, franchiseID string) (*models.Franchise, error) {
	return t.s.GetFranchise(ctx, franchiseID)
}

func (t *memTx) ListFranchisesByBrand(ctx context.Context, brandID string) ([]models.Franchise, error) {
	return t.s.ListFranchisesByBrand(ctx, brandID)
}

func (t *memTx) GetToken(ctx context.Context, franchiseID string) (*models.FranchiseToken, error) {
	if franchiseID == t.franchiseID && t.token != nil {
		tok := *t.token
		return &tok, nil
	}
	return t.s.GetToken(ctx, franchiseID)
}

func (t *memTx) GetHolding(ctx context.Context, franchiseID, investorID string) (*models.TokenHolding, error) {
	if franchiseID == t.franchiseID {
		if h, ok := t.holdings[investorID]; ok {
			return &h, nil
		}
	}
	return t.s.GetHolding(ctx, franchiseID, investorID)
}

func (t *memTx) ListHoldings(_ context.Context, franchiseID string) ([]models.TokenHolding, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if franchiseID != t.franchiseID {
		return sortedHoldings(t.s.holdings[franchiseID], nil), nil
	}
	return sortedHoldings(t.s.holdings[franchiseID], t.holdings), nil
}

func (t *memTx) GetWallet(ctx context.Context, franchiseID string) (*models.FranchiseWallet, error) {
	if franchiseID == t.franchiseID && t.wallet != nil {
		w := *t.wallet
		return &w, nil
	}
	return t.s.GetWallet(ctx, franchiseID)
}

func (t *memTx) GetTokenTransaction(ctx context.Context, id string) (*models.TokenTransaction, error) {
	for _, rec := range t.newTokenTxs {
		if rec.ID == id {
			return t.withTokenStatus(rec), nil
		}
	}
	rec, err := t.s.GetTokenTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.withTokenStatus(*rec), nil
}

func (t *memTx) withTokenStatus(rec models.TokenTransaction) *models.TokenTransaction {
	if u, ok := t.statusUpdates[rec.ID]; ok && u.ledger == models.LedgerToken {
		rec.Status, rec.SettlementRef, rec.UpdatedAt = u.status, u.ref, u.at
	}
	return &rec
}

func (t *memTx) GetWalletTransaction(ctx context.Context, id string) (*models.WalletTransaction, error) {
	for _, rec := range t.newWalletTxs {
		if rec.ID == id {
			return t.withWalletStatus(rec), nil
		}
	}
	rec, err := t.s.GetWalletTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.withWalletStatus(*rec), nil
}

func (t *memTx) withWalletStatus(rec models.WalletTransaction) *models.WalletTransaction {
	if u, ok := t.statusUpdates[rec.ID]; ok && u.ledger == models.LedgerWallet {
		rec.Status, rec.SettlementRef, rec.UpdatedAt = u.status, u.ref, u.at
	}
	return &rec
}

func (t *memTx) GetRevenueRecord(ctx context.Context, walletTransactionID string) (*models.RevenueRecord, error) {
	for _, rec := range t.newRevenue {
		if rec.WalletTransactionID == walletTransactionID {
			return &rec, nil
		}
	}
	return t.s.GetRevenueRecord(ctx, walletTransactionID)
}

func (t *memTx) ListTokenTransactions(_ context.Context, franchiseID string, limit int) ([]models.TokenTransaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var staged []models.TokenTransaction
	if franchiseID == t.franchiseID {
		staged = t.newTokenTxs
	}
	return newestFirst(t.s.tokenTxs[franchiseID], staged, limit), nil
}

func (t *memTx) ListWalletTransactions(_ context.Context, franchiseID string, limit int) ([]models.WalletTransaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var staged []models.WalletTransaction
	if franchiseID == t.franchiseID {
		staged = t.newWalletTxs
	}
	return newestFirst(t.s.walletTxs[franchiseID], staged, limit), nil
}

func (t *memTx) ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	return t.s.ListPendingOutbox(ctx, limit)
}

func (t *memTx) InsertToken(ctx context.Context, token *models.FranchiseToken) error {
	if err := t.checkScope(token.FranchiseID); err != nil {
		return err
	}
	if _, err := t.GetToken(ctx, token.FranchiseID); err == nil {
		return apperrors.NewAlreadyExistsError("token", token.FranchiseID)
	}
	tok := *token
	t.token = &tok
	return nil
}

func (t *memTx) UpdateToken(ctx context.Context, token *models.FranchiseToken) error {
	if err := t.checkScope(token.FranchiseID); err != nil {
		return err
	}
	if _, err := t.GetToken(ctx, token.FranchiseID); err != nil {
		return err
	}
	tok := *token
	t.token = &tok
	return nil
}

func (t *memTx) UpsertHolding(_ context.Context, holding *models.TokenHolding) error {
	if err := t.checkScope(holding.FranchiseID); err != nil {
		return err
	}
	t.holdings[holding.InvestorID] = *holding
	return nil
}

func (t *memTx) AppendTokenTransaction(_ context.Context, rec *models.TokenTransaction) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	t.newTokenTxs = append(t.newTokenTxs, *rec)
	return nil
}

func (t *memTx) InsertWallet(ctx context.Context, wallet *models.FranchiseWallet) error {
	if err := t.checkScope(wallet.FranchiseID); err != nil {
		return err
	}
	if _, err := t.GetWallet(ctx, wallet.FranchiseID); err == nil {
		return apperrors.NewAlreadyExistsError("wallet", wallet.FranchiseID)
	}
	w := *wallet
	t.wallet = &w
	return nil
}

func (t *memTx) UpdateWallet(ctx context.Context, wallet *models.FranchiseWallet) error {
	if err := t.checkScope(wallet.FranchiseID); err != nil {
		return err
	}
	if _, err := t.GetWallet(ctx, wallet.FranchiseID); err != nil {
		return err
	}
	w := *wallet
	t.wallet = &w
	return nil
}

func (t *memTx) AppendWalletTransaction(_ context.Context, rec *models.WalletTransaction) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	t.newWalletTxs = append(t.newWalletTxs, *rec)
	return nil
}

func (t *memTx) AppendRevenueRecord(_ context.Context, rec *models.RevenueRecord) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	t.newRevenue = append(t.newRevenue, *rec)
	return nil
}

func (t *memTx) SetTransactionStatus(ctx context.Context, ledger models.LedgerName, id string, status models.TxStatus, settlementRef string) error {
	var (
		current     models.TxStatus
		franchiseID string
	)
	switch ledger {
	case models.LedgerToken:
		rec, err := t.GetTokenTransaction(ctx, id)
		if err != nil {
			return err
		}
		current, franchiseID = rec.Status, rec.FranchiseID
	case models.LedgerWallet:
		rec, err := t.GetWalletTransaction(ctx, id)
		if err != nil {
			return err
		}
		current, franchiseID = rec.Status, rec.FranchiseID
	default:
		return apperrors.NewInvalidInputError("unknown ledger " + string(ledger))
	}
	if err := t.checkScope(franchiseID); err != nil {
		return err
	}
	if !current.CanTransitionTo(status) {
		return apperrors.NewInvalidStatusError("transaction", string(current), string(status))
	}

	for i := range t.newTokenTxs {
		if t.newTokenTxs[i].ID == id {
			t.newTokenTxs[i].Status, t.newTokenTxs[i].SettlementRef = status, settlementRef
			return nil
		}
	}
	for i := range t.newWalletTxs {
		if t.newWalletTxs[i].ID == id {
			t.newWalletTxs[i].Status, t.newWalletTxs[i].SettlementRef = status, settlementRef
			return nil
		}
	}
	t.statusUpdates[id] = statusUpdate{ledger: ledger, status: status, ref: settlementRef, at: time.Now().UTC()}
	return nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, entry *models.OutboxEntry) error {
	if err := t.checkScope(entry.FranchiseID); err != nil {
		return err
	}
	t.newOutbox = append(t.newOutbox, *entry)
	return nil
}

func (t *memTx) outboxRow(id int64) (*memOutboxRow, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for i := range t.s.outbox {
		if t.s.outbox[i].entry.ID == id {
			row := t.s.outbox[i]
			return &row, nil
		}
	}
	return nil, apperrors.NewNotFoundError("outbox entry", strconv.FormatInt(id, 10))
}

func (t *memTx) MarkOutboxProcessed(_ context.Context, id int64) error {
	row, err := t.outboxRow(id)
	if err != nil {
		return err
	}
	if err := t.checkScope(row.entry.FranchiseID); err != nil {
		return err
	}
	t.outboxProcessed[id] = true
	return nil
}

func (t *memTx) RecordOutboxAttempt(_ context.Context, id int64, lastError string) error {
	row, err := t.outboxRow(id)
	if err != nil {
		return err
	}
	if err := t.checkScope(row.entry.FranchiseID); err != nil {
		return err
	}
	t.outboxAttempts[id] = lastError
	return nil
}
