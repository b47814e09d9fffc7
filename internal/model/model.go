// Package model содержит доменные сущности личного кабинета инвестора.
// Все сущности являются проекциями записей, которыми владеет внешний бэкенд.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет профиль пользователя, полученный из эндпоинта идентификации.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	// KYCRequired и KYCCompleted присылаются бэкендом не всегда.
	KYCRequired  *bool `json:"kyc_required,omitempty"`
	KYCCompleted *bool `json:"kyc_completed,omitempty"`
}

// IsAdmin сообщает, должна ли пользователю показываться административная навигация.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// VerificationStatus описывает состояние проверки KYC.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "none"
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Known сообщает, является ли статус одним из перечисленных значений.
func (s VerificationStatus) Known() bool {
	switch s {
	case VerificationNone, VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// Verification описывает текущую запись KYC пользователя.
type Verification struct {
	ID              int64              `json:"id"`
	Status          VerificationStatus `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
}

// Wallet содержит снимок кошелька в исходном строковом виде.
// Строки разбираются в числа только при построении представления.
type Wallet struct {
	Balance          string `json:"balance"`
	TotalDeposits    string `json:"total_deposits"`
	TotalWithdrawals string `json:"total_withdrawals"`
}

// Plan описывает инвестиционный план.
type Plan struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	DailyROIPercent decimal.Decimal `json:"daily_roi_percent"`
	DurationDays    int             `json:"duration_days"`
}

// InvestmentStatus описывает статус инвестиции.
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentPending   InvestmentStatus = "pending"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

// Investment содержит нормализованную запись инвестиции. Вариант формы ответа
// (вложенный план или плоские поля) разрешается один раз в клиенте бэкенда.
type Investment struct {
	ID        int64
	Amount    decimal.Decimal
	Plan      Plan
	Status    InvestmentStatus
	StartDate time.Time
	EndDate   time.Time
	// ServerTotalReturn заполняется, только если бэкенд прислал итоговую сумму.
	ServerTotalReturn *decimal.Decimal
}

// TransactionType описывает тип транзакции.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus описывает статус обработки транзакции.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// Transaction содержит нормализованную запись транзакции. На стороне клиента запись не изменяется.
type Transaction struct {
	ID        string            `json:"id"`
	Type      TransactionType   `json:"type"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Reference string            `json:"reference,omitempty"`
	Method    string            `json:"method,omitempty"`
	TxHash    string            `json:"tx_hash,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ReferralSummary содержит сводку по реферальной программе.
type ReferralSummary struct {
	Code          string          `json:"code"`
	TotalReferred int             `json:"total_referred"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
}

// VirtualCard описывает виртуальную карту пользователя.
type VirtualCard struct {
	ID         int64           `json:"id"`
	CardNumber string          `json:"card_number"`
	Holder     string          `json:"holder_name"`
	ExpiryDate string          `json:"expiry_date"`
	Balance    decimal.Decimal `json:"balance"`
	Status     string          `json:"status"`
}

// FeedTransaction описывает анонимизированную запись публичной ленты транзакций.
type FeedTransaction struct {
	User      string          `json:"user"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}
