package core

import (
	"fmt"
	"strings"
	"time"
)

// AccountType is an open-ended account tag. The constants are the tags the
// UI offers; any non-blank string is accepted.
type AccountType string

const (
	AccountBank         AccountType = "bank"
	AccountCash         AccountType = "cash"
	AccountMobileWallet AccountType = "mobile-wallet"
	AccountEWallet      AccountType = "e-wallet"
	AccountTransitCard  AccountType = "transit-card"
)

// KnownAccountTypes lists the built-in tags in display order.
func KnownAccountTypes() []AccountType {
	return []AccountType{AccountBank, AccountCash, AccountMobileWallet, AccountEWallet, AccountTransitCard}
}

// Kind is the direction of a transaction.
type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %w: got %q", ErrValidation, ErrInvalidKind, string(k))
	}
}

// Signed returns the balance contribution of amount for this kind:
// +amount for income, -amount for expense.
func (k Kind) Signed(amount Money) Money {
	if k == Expense {
		return amount.Neg()
	}
	return amount
}

// Classification splits expense categories for reporting.
type Classification string

const (
	Fixed    Classification = "fixed"
	Variable Classification = "variable"
)

func (c Classification) Validate() error {
	switch c {
	case Fixed, Variable:
		return nil
	default:
		return fmt.Errorf("%w: %w: got %q", ErrValidation, ErrInvalidClass, string(c))
	}
}

// AccountDeletePolicy decides what happens to transactions that still
// reference an account being deleted.
type AccountDeletePolicy string

const (
	// DeleteBlock refuses the delete with ErrConflict while transactions exist.
	DeleteBlock AccountDeletePolicy = "block"
	// DeleteCascade removes the account's transactions in the same unit.
	DeleteCascade AccountDeletePolicy = "cascade"
	// DeleteOrphan removes only the account row and leaves transactions behind.
	DeleteOrphan AccountDeletePolicy = "orphan"
)

func (p AccountDeletePolicy) IsValid() bool {
	switch p {
	case DeleteBlock, DeleteCascade, DeleteOrphan:
		return true
	default:
		return false
	}
}

type (
	Account struct {
		ID             int64       `json:"id"`
		Name           string      `json:"name"`
		Type           AccountType `json:"type"`
		InitialBalance Money       `json:"initialBalance"`
		CurrentBalance Money       `json:"currentBalance"`
		CreatedAt      time.Time   `json:"createdAt"`
	}

	// AccountInput carries the caller-editable account fields. InitialBalance
	// is only read on create.
	AccountInput struct {
		Name           string      `json:"name"`
		Type           AccountType `json:"type"`
		InitialBalance Money       `json:"initialBalance"`
	}

	Transaction struct {
		ID          int64     `json:"id"`
		AccountID   int64     `json:"accountId"`
		AccountName string    `json:"accountName"`
		Kind        Kind      `json:"type"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description,omitempty"`
		Date        Date      `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	TransactionInput struct {
		AccountID   int64  `json:"accountId"`
		Kind        Kind   `json:"type"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	// TransactionFilter narrows ListTransactions. The month window applies
	// only when both Month and Year are set.
	TransactionFilter struct {
		AccountID *int64 `json:"accountId,omitempty"`
		Month     *int   `json:"month,omitempty"`
		Year      *int   `json:"year,omitempty"`
	}

	ExpenseCategory struct {
		ID             int64          `json:"id"`
		Category       string         `json:"category"`
		Classification Classification `json:"type"`
		CreatedAt      time.Time      `json:"createdAt"`
	}
)

// Normalize trims the name and defaults a blank type to bank.
func (in AccountInput) Normalize() AccountInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = AccountType(strings.TrimSpace(string(in.Type)))
	if in.Type == "" {
		in.Type = AccountBank
	}
	return in
}

func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyName)
	}
	return nil
}

// Normalize trims the free-text fields.
func (in TransactionInput) Normalize() TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in TransactionInput) Validate() error {
	if err := in.Kind.Validate(); err != nil {
		return err
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: %w: got %s", ErrValidation, ErrNegativeAmount, in.Amount)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyCategory)
	}
	if len(in.Description) > 500 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrDescriptionLimit)
	}
	return in.Date.Validate()
}

// Period returns the filter's month window, if both parts are set.
func (f TransactionFilter) Period() (Period, bool, error) {
	if f.Month == nil || f.Year == nil {
		return Period{}, false, nil
	}
	p, err := NewPeriod(*f.Year, *f.Month)
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

// DefaultExpenseCategories is the seed set written on first initialisation.
func DefaultExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{
		{Category: "rent", Classification: Fixed},
		{Category: "utilities", Classification: Fixed},
		{Category: "internet", Classification: Fixed},
		{Category: "phone", Classification: Fixed},
		{Category: "insurance", Classification: Fixed},
		{Category: "subscriptions", Classification: Fixed},
		{Category: "loans", Classification: Fixed},

		{Category: "food", Classification: Variable},
		{Category: "transport", Classification: Variable},
		{Category: "entertainment", Classification: Variable},
		{Category: "shopping", Classification: Variable},
		{Category: "health", Classification: Variable},
		{Category: "education", Classification: Variable},
		{Category: "travel", Classification: Variable},
		{Category: "gifts", Classification: Variable},
		{Category: "other", Classification: Variable},
	}
}

// IncomeCategories are the income categories the entry forms suggest. They
// carry no metadata row and classify as variable in reports.
func IncomeCategories() []string {
	return []string{"salary", "savings", "investments", "transfers", "freelance", "other"}
}
