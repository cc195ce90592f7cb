package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/models"
)

const pqUniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore keeps the ledger in PostgreSQL. WithFranchise takes a
// transaction-scoped advisory lock on the franchise and reads aggregates
// FOR UPDATE, so concurrent writers of a franchise are serialized.
type PostgresStore struct {
	db *sql.DB
	pgReader
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, pgReader: pgReader{q: db}}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewExternalServiceError(apperrors.ErrCodeDatabaseConnectionFailed, "postgres", err)
	}
	return nil
}

func (s *PostgresStore) WithFranchise(ctx context.Context, franchiseID string, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewTransactionFailedError(err)
	}

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, franchiseID); err != nil {
		_ = sqlTx.Rollback()
		return apperrors.NewDatabaseError("lock franchise", err)
	}

	tx := &pgTx{pgReader: pgReader{q: sqlTx, lock: " FOR UPDATE"}, tx: sqlTx, franchiseID: franchiseID}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperrors.NewTransactionFailedError(err)
	}
	return nil
}

// ==========================
// Reads
// ==========================

type pgReader struct {
	q    querier
	lock string
}

const tokenColumns = `id, franchise_id, symbol, decimals, total_supply, circulating_supply, unit_price, status, created_at, updated_at`

const holdingColumns = `franchise_id, investor_id, balance, total_purchased, total_sold, average_purchase_price, last_transaction_at, created_at`

const tokenTxColumns = `id, franchise_id, token_id, investor_id, kind, amount, unit_price, total_value, settlement_ref, status, created_at, updated_at`

const walletColumns = `id, franchise_id, address, balance, reporting_balance, total_income, total_expenses, total_payouts, total_royalties, transaction_count, last_activity, status, created_at, updated_at`

const walletTxColumns = `id, wallet_id, franchise_id, kind, native_amount, reporting_amount, description, category, from_ref, to_ref, settlement_ref, status, created_at, updated_at`

const revenueColumns = `id, wallet_transaction_id, franchise_id, native_amount, reporting_amount, native_currency, reporting_currency, description, recorded_at`

const outboxColumns = `id, topic, ledger, record_id, franchise_id, attempts, last_error, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r pgReader) GetFranchise(ctx context.Context, franchiseID string) (*models.Franchise, error) {
	var f models.Franchise
	err := r.q.QueryRowContext(ctx, `
		SELECT id, brand_id, total_investment
		FROM franchises
		WHERE id = $1`, franchiseID).Scan(&f.ID, &f.BrandID, &f.TotalInvestment)
	if err != nil {
		return nil, notFoundOr(err, "franchise", franchiseID, "get franchise")
	}
	return &f, nil
}

func (r pgReader) ListFranchisesByBrand(ctx context.Context, brandID string) ([]models.Franchise, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, brand_id, total_investment
		FROM franchises
		WHERE brand_id = $1
		ORDER BY id`, brandID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list franchises", err)
	}
	defer rows.Close()

	var out []models.Franchise
	for rows.Next() {
		var f models.Franchise
		if err := rows.Scan(&f.ID, &f.BrandID, &f.TotalInvestment); err != nil {
			return nil, apperrors.NewDatabaseError("scan franchise", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list franchises", err)
	}
	return out, nil
}

func scanToken(row scanner) (*models.FranchiseToken, error) {
	var t models.FranchiseToken
	var status string
	err := row.Scan(&t.ID, &t.FranchiseID, &t.Symbol, &t.Decimals, &t.TotalSupply,
		&t.CirculatingSupply, &t.UnitPrice, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TokenStatus(status)
	return &t, nil
}

func (r pgReader) GetToken(ctx context.Context, franchiseID string) (*models.FranchiseToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM franchise_tokens WHERE franchise_id = $1`+r.lock, franchiseID)
	t, err := scanToken(row)
	if err != nil {
		return nil, notFoundOr(err, "token", franchiseID, "get token")
	}
	return t, nil
}

func scanHolding(row scanner) (*models.TokenHolding, error) {
	var h models.TokenHolding
	err := row.Scan(&h.FranchiseID, &h.InvestorID, &h.Balance, &h.TotalPurchased, &h.TotalSold,
		&h.AveragePurchasePrice, &h.LastTransactionAt, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r pgReader) GetHolding(ctx context.Context, franchiseID, investorID string) (*models.TokenHolding, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+holdingColumns+` FROM token_holdings WHERE franchise_id = $1 AND investor_id = $2`+r.lock,
		franchiseID, investorID)
	h, err := scanHolding(row)
	if err != nil {
		return nil, notFoundOr(err, "holding", franchiseID+"/"+investorID, "get holding")
	}
	return h, nil
}

func (r pgReader) ListHoldings(ctx context.Context, franchiseID string) ([]models.TokenHolding, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+holdingColumns+` FROM token_holdings WHERE franchise_id = $1 ORDER BY investor_id`, franchiseID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list holdings", err)
	}
	defer rows.Close()

	var out []models.TokenHolding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan holding", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list holdings", err)
	}
	return out, nil
}

func scanWallet(row scanner) (*models.FranchiseWallet, error) {
	var w models.FranchiseWallet
	var status string
	var lastActivity sql.NullTime
	err := row.Scan(&w.ID, &w.FranchiseID, &w.Address, &w.Balance, &w.ReportingBalance,
		&w.TotalIncome, &w.TotalExpenses, &w.TotalPayouts, &w.TotalRoyalties,
		&w.TransactionCount, &lastActivity, &status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = models.WalletStatus(status)
	if lastActivity.Valid {
		at := lastActivity.Time
		w.LastActivity = &at
	}
	return &w, nil
}

func (r pgReader) GetWallet(ctx context.Context, franchiseID string) (*models.FranchiseWallet, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM franchise_wallets WHERE franchise_id = $1`+r.lock, franchiseID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, notFoundOr(err, "wallet", franchiseID, "get wallet")
	}
	return w, nil
}

func scanTokenTx(row scanner) (*models.TokenTransaction, error) {
	var t models.TokenTransaction
	var investor, ref sql.NullString
	var kind, status string
	err := row.Scan(&t.ID, &t.FranchiseID, &t.TokenID, &investor, &kind, &t.Amount, &t.UnitPrice,
		&t.TotalValue, &ref, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.InvestorID = investor.String
	t.SettlementRef = ref.String
	t.Kind = models.TokenTxKind(kind)
	t.Status = models.TxStatus(status)
	return &t, nil
}

func (r pgReader) GetTokenTransaction(ctx context.Context, id string) (*models.TokenTransaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+tokenTxColumns+` FROM token_transactions WHERE id = $1`+r.lock, id)
	t, err := scanTokenTx(row)
	if err != nil {
		return nil, notFoundOr(err, "token transaction", id, "get token transaction")
	}
	return t, nil
}

func (r pgReader) ListTokenTransactions(ctx context.Context, franchiseID string, limit int) ([]models.TokenTransaction, error) {
	query := `SELECT ` + tokenTxColumns + ` FROM token_transactions WHERE franchise_id = $1 ORDER BY seq DESC`
	args := []interface{}{franchiseID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list token transactions", err)
	}
	defer rows.Close()

	var out []models.TokenTransaction
	for rows.Next() {
		t, err := scanTokenTx(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan token transaction", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list token transactions", err)
	}
	return out, nil
}

func scanWalletTx(row scanner) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	var ref sql.NullString
	var kind, status string
	err := row.Scan(&t.ID, &t.WalletID, &t.FranchiseID, &kind, &t.NativeAmount, &t.ReportingAmount,
		&t.Description, &t.Category, &t.FromRef, &t.ToRef, &ref, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SettlementRef = ref.String
	t.Kind = models.WalletTxKind(kind)
	t.Status = models.TxStatus(status)
	return &t, nil
}

func (r pgReader) GetWalletTransaction(ctx context.Context, id string) (*models.WalletTransaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+walletTxColumns+` FROM wallet_transactions WHERE id = $1`+r.lock, id)
	t, err := scanWalletTx(row)
	if err != nil {
		return nil, notFoundOr(err, "wallet transaction", id, "get wallet transaction")
	}
	return t, nil
}

func (r pgReader) ListWalletTransactions(ctx context.Context, franchiseID string, limit int) ([]models.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE franchise_id = $1 ORDER BY seq DESC`
	args := []interface{}{franchiseID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list wallet transactions", err)
	}
	defer rows.Close()

	var out []models.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTx(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan wallet transaction", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list wallet transactions", err)
	}
	return out, nil
}

func (r pgReader) GetRevenueRecord(ctx context.Context, walletTransactionID string) (*models.RevenueRecord, error) {
	var rec models.RevenueRecord
	err := r.q.QueryRowContext(ctx,
		`SELECT `+revenueColumns+` FROM revenue_ledger WHERE wallet_transaction_id = $1`, walletTransactionID).
		Scan(&rec.ID, &rec.WalletTransactionID, &rec.FranchiseID, &rec.NativeAmount, &rec.ReportingAmount,
			&rec.NativeCurrency, &rec.ReportingCurrency, &rec.Description, &rec.RecordedAt)
	if err != nil {
		return nil, notFoundOr(err, "revenue record", walletTransactionID, "get revenue record")
	}
	return &rec, nil
}

func (r pgReader) ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	query := `SELECT ` + outboxColumns + ` FROM settlement_outbox WHERE processed_at IS NULL ORDER BY id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list outbox", err)
	}
	defer rows.Close()

	var out []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		var topic, ledger string
		if err := rows.Scan(&e.ID, &topic, &ledger, &e.RecordID, &e.FranchiseID, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan outbox", err)
		}
		e.Topic = models.OutboxTopic(topic)
		e.Ledger = models.LedgerName(ledger)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list outbox", err)
	}
	return out, nil
}

// ==========================
// Writes
// ==========================

type pgTx struct {
	pgReader
	tx          *sql.Tx
	franchiseID string
}

func (t *pgTx) checkScope(franchiseID string) error {
	if franchiseID != t.franchiseID {
		return apperrors.NewInvalidInputError("write outside the franchise of this transaction: " + franchiseID)
	}
	return nil
}

func (t *pgTx) InsertToken(ctx context.Context, tok *models.FranchiseToken) error {
	if err := t.checkScope(tok.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO franchise_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tok.ID, tok.FranchiseID, tok.Symbol, tok.Decimals, tok.TotalSupply, tok.CirculatingSupply,
		tok.UnitPrice, string(tok.Status), tok.CreatedAt, tok.UpdatedAt)
	if isUniqueViolation(err) {
		return apperrors.NewAlreadyExistsError("token", tok.FranchiseID)
	}
	if err != nil {
		return apperrors.NewDatabaseError("insert token", err)
	}
	return nil
}

func (t *pgTx) UpdateToken(ctx context.Context, tok *models.FranchiseToken) error {
	if err := t.checkScope(tok.FranchiseID); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE franchise_tokens
		SET circulating_supply = $2, unit_price = $3, status = $4, updated_at = $5
		WHERE franchise_id = $1`,
		tok.FranchiseID, tok.CirculatingSupply, tok.UnitPrice, string(tok.Status), tok.UpdatedAt)
	return expectOneRow(res, err, "token", tok.FranchiseID, "update token")
}

func (t *pgTx) UpsertHolding(ctx context.Context, h *models.TokenHolding) error {
	if err := t.checkScope(h.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO token_holdings (`+holdingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (franchise_id, investor_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			total_purchased = EXCLUDED.total_purchased,
			total_sold = EXCLUDED.total_sold,
			average_purchase_price = EXCLUDED.average_purchase_price,
			last_transaction_at = EXCLUDED.last_transaction_at`,
		h.FranchiseID, h.InvestorID, h.Balance, h.TotalPurchased, h.TotalSold,
		h.AveragePurchasePrice, h.LastTransactionAt, h.CreatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("upsert holding", err)
	}
	return nil
}

func (t *pgTx) AppendTokenTransaction(ctx context.Context, rec *models.TokenTransaction) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO token_transactions (`+tokenTxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.FranchiseID, rec.TokenID, nullString(rec.InvestorID), string(rec.Kind), rec.Amount,
		rec.UnitPrice, rec.TotalValue, nullString(rec.SettlementRef), string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("append token transaction", err)
	}
	return nil
}

func (t *pgTx) InsertWallet(ctx context.Context, w *models.FranchiseWallet) error {
	if err := t.checkScope(w.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO franchise_wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		w.ID, w.FranchiseID, w.Address, w.Balance, w.ReportingBalance, w.TotalIncome, w.TotalExpenses,
		w.TotalPayouts, w.TotalRoyalties, w.TransactionCount, nullTime(w.LastActivity), string(w.Status),
		w.CreatedAt, w.UpdatedAt)
	if isUniqueViolation(err) {
		return apperrors.NewAlreadyExistsError("wallet", w.FranchiseID)
	}
	if err != nil {
		return apperrors.NewDatabaseError("insert wallet", err)
	}
	return nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *models.FranchiseWallet) error {
	if err := t.checkScope(w.FranchiseID); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE franchise_wallets SET
			balance = $2, reporting_balance = $3, total_income = $4, total_expenses = $5,
			total_payouts = $6, total_royalties = $7, transaction_count = $8, last_activity = $9,
			status = $10, updated_at = $11
		WHERE franchise_id = $1`,
		w.FranchiseID, w.Balance, w.ReportingBalance, w.TotalIncome, w.TotalExpenses, w.TotalPayouts,
		w.TotalRoyalties, w.TransactionCount, nullTime(w.LastActivity), string(w.Status), w.UpdatedAt)
	return expectOneRow(res, err, "wallet", w.FranchiseID, "update wallet")
}

func (t *pgTx) AppendWalletTransaction(ctx context.Context, rec *models.WalletTransaction) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (`+walletTxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.WalletID, rec.FranchiseID, string(rec.Kind), rec.NativeAmount, rec.ReportingAmount,
		rec.Description, rec.Category, rec.FromRef, rec.ToRef, nullString(rec.SettlementRef),
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("append wallet transaction", err)
	}
	return nil
}

func (t *pgTx) AppendRevenueRecord(ctx context.Context, rec *models.RevenueRecord) error {
	if err := t.checkScope(rec.FranchiseID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO revenue_ledger (`+revenueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.WalletTransactionID, rec.FranchiseID, rec.NativeAmount, rec.ReportingAmount,
		rec.NativeCurrency, rec.ReportingCurrency, rec.Description, rec.RecordedAt)
	if err != nil {
		return apperrors.NewDatabaseError("append revenue record", err)
	}
	return nil
}

func (t *pgTx) SetTransactionStatus(ctx context.Context, ledger models.LedgerName, id string, status models.TxStatus, settlementRef string) error {
	var (
		table       string
		current     models.TxStatus
		franchiseID string
	)
	switch ledger {
	case models.LedgerToken:
		rec, err := t.GetTokenTransaction(ctx, id)
		if err != nil {
			return err
		}
		table, current, franchiseID = "token_transactions", rec.Status, rec.FranchiseID
	case models.LedgerWallet:
		rec, err := t.GetWalletTransaction(ctx, id)
		if err != nil {
			return err
		}
		table, current, franchiseID = "wallet_transactions", rec.Status, rec.FranchiseID
	default:
		return apperrors.NewInvalidInputError("unknown ledger " + string(ledger))
	}
	if err := t.checkScope(franchiseID); err != nil {
		return err
	}
	if !current.CanTransitionTo(status) {
		return apperrors.NewInvalidStatusError("transaction", string(current), string(status))
	}

	res, err := t.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $2, settlement_ref = $3, updated_at = $4
		WHERE id = $1`, table),
		id, string(status), nullString(settlementRef), time.Now().UTC())
	return expectOneRow(res, err, "transaction", id, "set transaction status")
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, e *models.OutboxEntry) error {
	if err := t.checkScope(e.FranchiseID); err != nil {
		return err
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO settlement_outbox (topic, ledger, record_id, franchise_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		string(e.Topic), string(e.Ledger), e.RecordID, e.FranchiseID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return apperrors.NewDatabaseError("enqueue outbox", err)
	}
	return nil
}

func (t *pgTx) MarkOutboxProcessed(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE settlement_outbox SET processed_at = $2
		WHERE id = $1 AND franchise_id = $3`, id, time.Now().UTC(), t.franchiseID)
	return expectOneRow(res, err, "outbox entry", strconv.FormatInt(id, 10), "mark outbox processed")
}

func (t *pgTx) RecordOutboxAttempt(ctx context.Context, id int64, lastError string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE settlement_outbox SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND franchise_id = $3`, id, lastError, t.franchiseID)
	return expectOneRow(res, err, "outbox entry", strconv.FormatInt(id, 10), "record outbox attempt")
}

// ==========================
// Helpers
// ==========================

func notFoundOr(err error, entity, ref, operation string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(entity, ref)
	}
	return apperrors.NewDatabaseError(operation, err)
}

func expectOneRow(res sql.Result, err error, entity, ref, operation string) error {
	if err != nil {
		return apperrors.NewDatabaseError(operation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(operation, err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(entity, ref)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
