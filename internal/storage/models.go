package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSampleRecord is a persisted price observation for one candidate.
type PriceSampleRecord struct {
	CandidateID string
	Price       decimal.Decimal
	ObservedAt  time.Time
	CreatedAt   time.Time
}

// AlertEventRecord captures a fired alert for auditing.
type AlertEventRecord struct {
	ID          int64
	AlertID     string
	CandidateID string
	Condition   string
	Threshold   decimal.Decimal
	Price       decimal.Decimal
	ChangePct   decimal.Decimal
	TriggeredAt time.Time
	CreatedAt   time.Time
}

// TransactionRecord mirrors a governor ledger entry.
type TransactionRecord struct {
	ID          string
	PrincipalID string
	Amount      decimal.Decimal
	Payee       string
	ServiceType string
	Status      string
	Reason      string
	CreatedAt   time.Time
	SettledAt   *time.Time
}
