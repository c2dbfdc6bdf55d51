package data

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	insertWatch = `INSERT INTO watchlist (id, account, address, asset_class, target_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, address) DO UPDATE SET target_score = excluded.target_score
	`
	selectWatches = `SELECT id, account, address, asset_class, target_score,
		last_score, last_grade, last_checked, created_on
		FROM watchlist WHERE account = ? ORDER BY created_on DESC, id
	`
	updateWatchScore = `UPDATE watchlist
		SET last_score = ?, last_grade = ?, last_checked = CURRENT_TIMESTAMP
		WHERE account = ? AND address = ?
	`
	deleteWatch = `DELETE FROM watchlist WHERE account = ? AND address = ?`
)

// Watch is one tracked address with an optional alert threshold. A zero
// target score means notify on every rescore.
type Watch struct {
	ID          string             `json:"id"`
	Account     string             `json:"account"`
	Address     string             `json:"address"`
	AssetClass  scoring.AssetClass `json:"asset_class"`
	TargetScore float64            `json:"target_score"`
	LastScore   *float64           `json:"last_score,omitempty"`
	LastGrade   *string            `json:"last_grade,omitempty"`
	LastChecked *time.Time         `json:"last_checked,omitempty"`
	CreatedOn   time.Time          `json:"created_on"`
}

// AddWatch tracks an address, updating the threshold when it is already
// watched.
func AddWatch(db *sql.DB, account, address string, asset scoring.AssetClass, targetScore float64) error {
	if db == nil {
		return errDBNotInitialized
	}
	if address == "" {
		return errors.New("address is required")
	}

	_, err := db.Exec(insertWatch, uuid.NewString(), account, address, string(asset), targetScore)
	if err != nil {
		return errors.Wrapf(err, "failed to insert watch for: %s", address)
	}
	return nil
}

// ListWatches returns the account's watchlist.
func ListWatches(db *sql.DB, account string) ([]*Watch, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectWatches, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query watchlist")
	}
	defer rows.Close()

	list := make([]*Watch, 0)
	for rows.Next() {
		var w Watch
		var asset string
		var lastScore sql.NullFloat64
		var lastGrade sql.NullString
		var lastChecked sql.NullTime
		err := rows.Scan(&w.ID, &w.Account, &w.Address, &asset, &w.TargetScore,
			&lastScore, &lastGrade, &lastChecked, &w.CreatedOn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan watch row")
		}
		w.AssetClass = scoring.AssetClass(asset)
		if lastScore.Valid {
			w.LastScore = &lastScore.Float64
		}
		if lastGrade.Valid {
			w.LastGrade = &lastGrade.String
		}
		if lastChecked.Valid {
			w.LastChecked = &lastChecked.Time
		}
		list = append(list, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate watch rows")
	}
	return list, nil
}

// UpdateWatchScore records the outcome of a rescore pass.
func UpdateWatchScore(db *sql.DB, account, address string, score float64, grade string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(updateWatchScore, score, grade, account, address); err != nil {
		return errors.Wrapf(err, "failed to update watch score for: %s", address)
	}
	return nil
}

// RemoveWatch stops tracking an address.
func RemoveWatch(db *sql.DB, account, address string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(deleteWatch, account, address); err != nil {
		return errors.Wrapf(err, "failed to delete watch for: %s", address)
	}
	return nil
}
