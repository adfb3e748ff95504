package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrInsufficientFunds is returned when a debit would take a wallet below
// zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// WalletRepo encapsulates wallet and wallet transaction queries. Balance
// mutations and their transaction rows are written atomically.
type WalletRepo struct{ db *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// GetOrCreate returns the user's wallet, creating an empty INR wallet on
// first access.
func (r *WalletRepo) GetOrCreate(ctx context.Context, userID string) (*model.Wallet, error) {
	w, err := r.getByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO wallets (id, user_id) VALUES (?,?)", id, userID); err != nil {
		// A concurrent first access may have inserted already; re-read.
		w, rerr := r.getByUser(ctx, userID)
		if rerr == nil {
			return w, nil
		}
		return nil, err
	}
	return r.getByUser(ctx, userID)
}

func (r *WalletRepo) getByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, balance, currency, created_at FROM wallets WHERE user_id=? LIMIT 1",
		userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Credit adds funds to a wallet and records the transaction atomically.
func (r *WalletRepo) Credit(ctx context.Context, walletID string, amount float64, reference string) error {
	return r.apply(ctx, walletID, amount, model.TxCredit, reference)
}

// Debit removes funds from a wallet and records the transaction atomically.
// The balance check and update happen in one statement so two concurrent
// debits cannot overdraw.
func (r *WalletRepo) Debit(ctx context.Context, walletID string, amount float64, reference string) error {
	return r.apply(ctx, walletID, -amount, model.TxDebit, reference)
}

func (r *WalletRepo) apply(ctx context.Context, walletID string, delta float64, kind model.TransactionType, reference string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE wallets SET balance = balance + ? WHERE id=? AND balance + ? >= 0",
		delta, walletID, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrInsufficientFunds
		return err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO wallet_transactions (id, wallet_id, tx_type, amount, reference) VALUES (?,?,?,?,?)",
		uuid.NewString(), walletID, string(kind), amount, reference); err != nil {
		return err
	}
	return tx.Commit()
}

// Transactions returns the wallet's transaction history, newest first.
func (r *WalletRepo) Transactions(ctx context.Context, walletID string) ([]*model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, wallet_id, tx_type, amount, reference, created_at
		 FROM wallet_transactions WHERE wallet_id=? ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		var kind string
		if err := rows.Scan(&t.ID, &t.WalletID, &kind, &t.Amount, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(kind)
		out = append(out, &t)
	}
	return out, rows.Err()
}
