package data

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// DefaultAccount is the local single-user account name.
const DefaultAccount = "local"

// StartingCredits is granted when an account is first created.
const StartingCredits = 3

// ErrNoCredits means the account has run out of scoring credits and is not pro.
var ErrNoCredits = errors.New("no scoring credits left")

const (
	insertAccount = `INSERT INTO account (name, credits) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`
	selectAccount = `SELECT name, credits, pro, created_on FROM account WHERE name = ?`
	updateCredits = `UPDATE account SET credits = credits + ?, updated_on = CURRENT_TIMESTAMP WHERE name = ?`
	spendCredit   = `UPDATE account SET credits = credits - 1, updated_on = CURRENT_TIMESTAMP
		WHERE name = ? AND pro = 0 AND credits > 0
	`
	updatePro = `UPDATE account SET pro = ?, updated_on = CURRENT_TIMESTAMP WHERE name = ?`
)

type Account struct {
	Name      string    `json:"name"`
	Credits   int       `json:"credits"`
	Pro       bool      `json:"pro"`
	CreatedOn time.Time `json:"created_on"`
}

// EnsureAccount creates the account with starting credits if it does not
// exist and returns its current state.
func EnsureAccount(db *sql.DB, name string) (*Account, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if name == "" {
		name = DefaultAccount
	}

	if _, err := db.Exec(insertAccount, name, StartingCredits); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure account: %s", name)
	}
	return GetAccount(db, name)
}

// GetAccount returns the account or nil when it does not exist.
func GetAccount(db *sql.DB, name string) (*Account, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var a Account
	var pro int
	err := db.QueryRow(selectAccount, name).Scan(&a.Name, &a.Credits, &pro, &a.CreatedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to scan account row")
	}
	a.Pro = pro != 0
	return &a, nil
}

// AddCredits grants additional scoring credits.
func AddCredits(db *sql.DB, name string, n int) error {
	if db == nil {
		return errDBNotInitialized
	}
	if n <= 0 {
		return errors.Errorf("credit grant must be positive, got %d", n)
	}

	if _, err := db.Exec(updateCredits, n, name); err != nil {
		return errors.Wrapf(err, "failed to add credits for: %s", name)
	}
	return nil
}

// SpendCredit consumes one scoring credit. Pro accounts never spend.
// Returns ErrNoCredits when the balance is exhausted.
func SpendCredit(db *sql.DB, name string) error {
	if db == nil {
		return errDBNotInitialized
	}

	a, err := GetAccount(db, name)
	if err != nil {
		return err
	}
	if a == nil {
		return errors.Errorf("unknown account: %s", name)
	}
	if a.Pro {
		return nil
	}

	res, err := db.Exec(spendCredit, name)
	if err != nil {
		return errors.Wrapf(err, "failed to spend credit for: %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNoCredits
	}
	return nil
}

// SetPro flips the unlimited-scoring flag.
func SetPro(db *sql.DB, name string, pro bool) error {
	if db == nil {
		return errDBNotInitialized
	}

	v := 0
	if pro {
		v = 1
	}
	if _, err := db.Exec(updatePro, v, name); err != nil {
		return errors.Wrapf(err, "failed to update pro flag for: %s", name)
	}
	return nil
}
