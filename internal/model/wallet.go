package model

import "time"

// TransactionType distinguishes credits from debits on a wallet.
type TransactionType string

const (
	TxCredit TransactionType = "CREDIT"
	TxDebit  TransactionType = "DEBIT"
)

// Wallet mirrors the `wallets` table. Each user owns exactly one wallet;
// it is created lazily on first access.
type Wallet struct {
	ID        string
	UserID    string
	Balance   float64
	Currency  string
	CreatedAt time.Time
}

// WalletTransaction mirrors the `wallet_transactions` table. Every balance
// mutation leaves a row here; the balance column on the wallet is updated in
// the same database transaction.
type WalletTransaction struct {
	ID        string
	WalletID  string
	Type      TransactionType
	Amount    float64
	Reference string
	CreatedAt time.Time
}
