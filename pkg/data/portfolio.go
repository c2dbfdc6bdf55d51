package data

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	insertHolding = `INSERT INTO portfolio
		(id, account, address, asset_class, purchase_price, current_value, monthly_rent, monthly_expenses, acquired_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, address) DO UPDATE SET
			current_value = excluded.current_value,
			monthly_rent = excluded.monthly_rent,
			monthly_expenses = excluded.monthly_expenses
	`
	selectHoldings = `SELECT id, account, address, asset_class, purchase_price,
		current_value, monthly_rent, monthly_expenses, acquired_on, last_score, last_grade, created_on
		FROM portfolio WHERE account = ? ORDER BY created_on DESC, id
	`
	updateHoldingScore = `UPDATE portfolio SET last_score = ?, last_grade = ?
		WHERE account = ? AND address = ?
	`
	deleteHolding = `DELETE FROM portfolio WHERE account = ? AND address = ?`
)

// Holding is one owned property tracked in the portfolio.
type Holding struct {
	ID              string             `json:"id"`
	Account         string             `json:"account"`
	Address         string             `json:"address"`
	AssetClass      scoring.AssetClass `json:"asset_class"`
	PurchasePrice   float64            `json:"purchase_price"`
	CurrentValue    *float64           `json:"current_value,omitempty"`
	MonthlyRent     *float64           `json:"monthly_rent,omitempty"`
	MonthlyExpenses *float64           `json:"monthly_expenses,omitempty"`
	AcquiredOn      string             `json:"acquired_on,omitempty"`
	LastScore       *float64           `json:"last_score,omitempty"`
	LastGrade       *string            `json:"last_grade,omitempty"`
	CreatedOn       time.Time          `json:"created_on"`
}

// PortfolioSummary aggregates the account's holdings.
type PortfolioSummary struct {
	Holdings      int      `json:"holdings"`
	TotalInvested float64  `json:"total_invested"`
	TotalValue    float64  `json:"total_value"`
	TotalGain     float64  `json:"total_gain"`
	MonthlyNOI    float64  `json:"monthly_noi"`
	AverageScore  *float64 `json:"average_score,omitempty"`
}

// AddHolding records an owned property, updating value and cashflow fields
// when the address already exists.
func AddHolding(db *sql.DB, h *Holding) error {
	if db == nil {
		return errDBNotInitialized
	}
	if h == nil || h.Address == "" {
		return errors.New("holding with address is required")
	}
	if h.PurchasePrice <= 0 {
		return errors.Errorf("purchase price must be positive, got %v", h.PurchasePrice)
	}

	_, err := db.Exec(insertHolding, uuid.NewString(), h.Account, h.Address, string(h.AssetClass),
		h.PurchasePrice, h.CurrentValue, h.MonthlyRent, h.MonthlyExpenses, h.AcquiredOn)
	if err != nil {
		return errors.Wrapf(err, "failed to insert holding for: %s", h.Address)
	}
	return nil
}

// ListHoldings returns the account's portfolio.
func ListHoldings(db *sql.DB, account string) ([]*Holding, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectHoldings, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query portfolio")
	}
	defer rows.Close()

	list := make([]*Holding, 0)
	for rows.Next() {
		var h Holding
		var asset string
		var acquired sql.NullString
		var value, rent, expenses, score sql.NullFloat64
		var grade sql.NullString
		err := rows.Scan(&h.ID, &h.Account, &h.Address, &asset, &h.PurchasePrice,
			&value, &rent, &expenses, &acquired, &score, &grade, &h.CreatedOn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan holding row")
		}
		h.AssetClass = scoring.AssetClass(asset)
		h.AcquiredOn = acquired.String
		if value.Valid {
			h.CurrentValue = &value.Float64
		}
		if rent.Valid {
			h.MonthlyRent = &rent.Float64
		}
		if expenses.Valid {
			h.MonthlyExpenses = &expenses.Float64
		}
		if score.Valid {
			h.LastScore = &score.Float64
		}
		if grade.Valid {
			h.LastGrade = &grade.String
		}
		list = append(list, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate holding rows")
	}
	return list, nil
}

// UpdateHoldingScore records the latest grade for an owned property.
func UpdateHoldingScore(db *sql.DB, account, address string, score float64, grade string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(updateHoldingScore, score, grade, account, address); err != nil {
		return errors.Wrapf(err, "failed to update holding score for: %s", address)
	}
	return nil
}

// RemoveHolding drops a property from the portfolio.
func RemoveHolding(db *sql.DB, account, address string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(deleteHolding, account, address); err != nil {
		return errors.Wrapf(err, "failed to delete holding for: %s", address)
	}
	return nil
}

// GetPortfolioSummary aggregates invested capital, estimated value, and NOI
// across all holdings. Value falls back to purchase price when no current
// value has been recorded.
func GetPortfolioSummary(db *sql.DB, account string) (*PortfolioSummary, error) {
	holdings, err := ListHoldings(db, account)
	if err != nil {
		return nil, err
	}

	s := &PortfolioSummary{Holdings: len(holdings)}
	scored := 0
	scoreSum := 0.0
	for _, h := range holdings {
		s.TotalInvested += h.PurchasePrice
		value := h.PurchasePrice
		if h.CurrentValue != nil {
			value = *h.CurrentValue
		}
		s.TotalValue += value
		if h.MonthlyRent != nil && h.MonthlyExpenses != nil {
			s.MonthlyNOI += *h.MonthlyRent - *h.MonthlyExpenses
		}
		if h.LastScore != nil {
			scored++
			scoreSum += *h.LastScore
		}
	}
	s.TotalGain = s.TotalValue - s.TotalInvested
	if scored > 0 {
		avg := scoreSum / float64(scored)
		s.AverageScore = &avg
	}
	return s, nil
}
