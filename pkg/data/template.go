package data

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	insertTemplate = `INSERT INTO template (name, account, description, deal_json, builtin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			deal_json = excluded.deal_json
	`
	selectTemplate  = `SELECT name, account, description, deal_json, builtin, created_on FROM template WHERE name = ?`
	selectTemplates = `SELECT name, account, description, deal_json, builtin, created_on
		FROM template WHERE builtin = 1 OR account = ? ORDER BY builtin DESC, name
	`
	deleteTemplate = `DELETE FROM template WHERE name = ? AND builtin = 0`
)

// Template is a reusable deal preset: default financing terms and
// assumptions for a named strategy.
type Template struct {
	Name        string       `json:"name"`
	Account     string       `json:"account,omitempty"`
	Description string       `json:"description"`
	Deal        scoring.Deal `json:"deal"`
	Builtin     bool         `json:"builtin"`
	CreatedOn   time.Time    `json:"created_on"`
}

// builtinTemplates seed the template table on first run. Financing terms
// reflect common splits for each strategy.
var builtinTemplates = []Template{
	{
		Name:        "ltr",
		Description: "Long-term rental: 25% down, 30yr fixed, stabilized occupancy",
		Deal: scoring.Deal{
			Asset:           scoring.SingleFamily,
			VacancyRate:     f64(0.08),
			DownPaymentPct:  f64(25),
			InterestRatePct: f64(6.9),
			TermYears:       iptr(30),
		},
	},
	{
		Name:        "brrrr",
		Description: "Buy-rehab-rent-refinance-repeat: heavier leverage, value-add entry",
		Deal: scoring.Deal{
			Asset:           scoring.SingleFamily,
			VacancyRate:     f64(0.10),
			DownPaymentPct:  f64(15),
			InterestRatePct: f64(7.5),
			TermYears:       iptr(30),
		},
	},
	{
		Name:        "flip",
		Description: "Fix and flip: short hold, hard money terms",
		Deal: scoring.Deal{
			Asset:           scoring.SingleFamily,
			VacancyRate:     f64(0.0),
			DownPaymentPct:  f64(20),
			InterestRatePct: f64(10.5),
			TermYears:       iptr(1),
		},
	},
	{
		Name:        "str",
		Description: "Short-term rental: higher gross, higher expense load and vacancy",
		Deal: scoring.Deal{
			Asset:           scoring.SingleFamily,
			VacancyRate:     f64(0.30),
			DownPaymentPct:  f64(25),
			InterestRatePct: f64(7.1),
			TermYears:       iptr(30),
		},
	},
}

// SeedTemplates inserts the built-in strategy templates. Safe to call on
// every start.
func SeedTemplates(db *sql.DB) error {
	if db == nil {
		return errDBNotInitialized
	}

	for _, t := range builtinTemplates {
		b, err := json.Marshal(t.Deal)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize builtin template: %s", t.Name)
		}
		if _, err := db.Exec(insertTemplate, t.Name, "", t.Description, string(b), 1); err != nil {
			return errors.Wrapf(err, "failed to seed template: %s", t.Name)
		}
	}
	return nil
}

// SaveTemplate stores a user-defined preset, replacing any previous version
// with the same name.
func SaveTemplate(db *sql.DB, account string, t *Template) error {
	if db == nil {
		return errDBNotInitialized
	}
	if t == nil || t.Name == "" {
		return errors.New("template with name is required")
	}

	existing, err := GetTemplate(db, t.Name)
	if err != nil {
		return err
	}
	if existing != nil && existing.Builtin {
		return errors.Errorf("cannot overwrite builtin template: %s", t.Name)
	}

	b, err := json.Marshal(t.Deal)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize template: %s", t.Name)
	}
	if _, err := db.Exec(insertTemplate, t.Name, account, t.Description, string(b), 0); err != nil {
		return errors.Wrapf(err, "failed to save template: %s", t.Name)
	}
	return nil
}

// GetTemplate returns one preset by name, or nil when not found.
func GetTemplate(db *sql.DB, name string) (*Template, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var t Template
	var dealJSON string
	var builtin int
	err := db.QueryRow(selectTemplate, name).Scan(&t.Name, &t.Account, &t.Description, &dealJSON, &builtin, &t.CreatedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to scan template row")
	}

	t.Builtin = builtin != 0
	if err := json.Unmarshal([]byte(dealJSON), &t.Deal); err != nil {
		return nil, errors.Wrapf(err, "failed to parse template deal: %s", name)
	}
	return &t, nil
}

// ListTemplates returns built-ins plus the account's own presets.
func ListTemplates(db *sql.DB, account string) ([]*Template, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectTemplates, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query templates")
	}
	defer rows.Close()

	list := make([]*Template, 0)
	for rows.Next() {
		var t Template
		var dealJSON string
		var builtin int
		if err := rows.Scan(&t.Name, &t.Account, &t.Description, &dealJSON, &builtin, &t.CreatedOn); err != nil {
			return nil, errors.Wrap(err, "failed to scan template row")
		}
		t.Builtin = builtin != 0
		if err := json.Unmarshal([]byte(dealJSON), &t.Deal); err != nil {
			return nil, errors.Wrapf(err, "failed to parse template deal: %s", t.Name)
		}
		list = append(list, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate template rows")
	}
	return list, nil
}

// DeleteTemplate removes a user preset. Built-ins cannot be deleted.
func DeleteTemplate(db *sql.DB, name string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(deleteTemplate, name); err != nil {
		return errors.Wrapf(err, "failed to delete template: %s", name)
	}
	return nil
}

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }
