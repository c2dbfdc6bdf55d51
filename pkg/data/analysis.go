package data

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	insertAnalysis = `INSERT INTO analysis
		(id, account, address, asset_class, rate_env, score, grade, confidence, deal_json, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	selectAnalysis = `SELECT id, account, address, asset_class, rate_env, score, grade,
		confidence, deal_json, result_json, created_on
		FROM analysis WHERE id = ?
	`
	selectAnalyses = `SELECT id, account, address, asset_class, rate_env, score, grade,
		confidence, deal_json, result_json, created_on
		FROM analysis WHERE account = ? ORDER BY created_on DESC, id LIMIT ?
	`
	selectAnalysesByAddress = `SELECT id, account, address, asset_class, rate_env, score, grade,
		confidence, deal_json, result_json, created_on
		FROM analysis WHERE account = ? AND address = ? ORDER BY created_on DESC, id LIMIT ?
	`
	deleteAnalysis = `DELETE FROM analysis WHERE id = ?`
)

// Analysis is one persisted scoring run: the deal as submitted and the full
// result, plus indexed scalars for listing.
type Analysis struct {
	ID         string             `json:"id"`
	Account    string             `json:"account"`
	Address    string             `json:"address"`
	AssetClass scoring.AssetClass `json:"asset_class"`
	RateEnv    scoring.RateBucket `json:"rate_env"`
	Score      float64            `json:"score"`
	Grade      string             `json:"grade"`
	Confidence float64            `json:"confidence"`
	Deal       scoring.Deal       `json:"deal"`
	Result     scoring.Result     `json:"result"`
	CreatedOn  time.Time          `json:"created_on"`
}

// SaveAnalysis persists a scoring run and returns its generated ID.
func SaveAnalysis(db *sql.DB, account string, deal scoring.Deal, rate scoring.RateBucket, res *scoring.Result) (string, error) {
	if db == nil {
		return "", errDBNotInitialized
	}
	if res == nil {
		return "", errors.New("result is required")
	}

	dealJSON, err := json.Marshal(deal)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize deal")
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize result")
	}

	id := uuid.NewString()
	_, err = db.Exec(insertAnalysis, id, account, deal.Address, string(deal.Asset), string(rate),
		res.Score, res.Grade, res.Confidence, string(dealJSON), string(resultJSON))
	if err != nil {
		return "", errors.Wrapf(err, "failed to insert analysis for: %s", deal.Address)
	}
	return id, nil
}

// GetAnalysis returns one saved run, or nil when not found.
func GetAnalysis(db *sql.DB, id string) (*Analysis, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	row := db.QueryRow(selectAnalysis, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListAnalyses returns the account's most recent runs.
func ListAnalyses(db *sql.DB, account string, limit int) ([]*Analysis, error) {
	return queryAnalyses(db, selectAnalyses, account, limit)
}

// ListAnalysesForAddress returns the score history for one address, newest
// first.
func ListAnalysesForAddress(db *sql.DB, account, address string, limit int) ([]*Analysis, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(selectAnalysesByAddress, account, address, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query analyses by address")
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// DeleteAnalysis removes one saved run.
func DeleteAnalysis(db *sql.DB, id string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(deleteAnalysis, id); err != nil {
		return errors.Wrapf(err, "failed to delete analysis: %s", id)
	}
	return nil
}

func queryAnalyses(db *sql.DB, query, account string, limit int) ([]*Analysis, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(query, account, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query analyses")
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

func collectAnalyses(rows *sql.Rows) ([]*Analysis, error) {
	list := make([]*Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate analysis rows")
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var asset, rate, dealJSON, resultJSON string
	err := row.Scan(&a.ID, &a.Account, &a.Address, &asset, &rate, &a.Score, &a.Grade,
		&a.Confidence, &dealJSON, &resultJSON, &a.CreatedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan analysis row")
	}

	a.AssetClass = scoring.AssetClass(asset)
	a.RateEnv = scoring.RateBucket(rate)
	if err := json.Unmarshal([]byte(dealJSON), &a.Deal); err != nil {
		return nil, errors.Wrap(err, "failed to parse stored deal")
	}
	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return nil, errors.Wrap(err, "failed to parse stored result")
	}
	return &a, nil
}
