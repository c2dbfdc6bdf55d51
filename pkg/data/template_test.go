package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plupoV2/aire/pkg/scoring"
)

func TestSeedTemplates(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SeedTemplates(db))
	require.NoError(t, SeedTemplates(db))

	list, err := ListTemplates(db, DefaultAccount)
	require.NoError(t, err)
	require.Len(t, list, 4)

	names := make([]string, 0, len(list))
	for _, tpl := range list {
		assert.True(t, tpl.Builtin)
		names = append(names, tpl.Name)
	}
	assert.Contains(t, names, "ltr")
	assert.Contains(t, names, "brrrr")
	assert.Contains(t, names, "flip")
	assert.Contains(t, names, "str")
}

func TestGetTemplate(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedTemplates(db))

	tpl, err := GetTemplate(db, "brrrr")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.True(t, tpl.Builtin)
	require.NotNil(t, tpl.Deal.DownPaymentPct)
	assert.Equal(t, 15.0, *tpl.Deal.DownPaymentPct)

	missing, err := GetTemplate(db, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveTemplate(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedTemplates(db))

	tpl := &Template{
		Name:        "duplex-house-hack",
		Description: "owner occupied duplex, FHA terms",
		Deal: scoring.Deal{
			Asset:           scoring.Multifamily,
			DownPaymentPct:  f64(3.5),
			InterestRatePct: f64(6.4),
			TermYears:       iptr(30),
		},
	}
	require.NoError(t, SaveTemplate(db, DefaultAccount, tpl))

	got, err := GetTemplate(db, "duplex-house-hack")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Builtin)
	assert.Equal(t, DefaultAccount, got.Account)
	require.NotNil(t, got.Deal.DownPaymentPct)
	assert.Equal(t, 3.5, *got.Deal.DownPaymentPct)

	// builtins cannot be overwritten
	tpl.Name = "ltr"
	assert.Error(t, SaveTemplate(db, DefaultAccount, tpl))
}

func TestDeleteTemplate(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedTemplates(db))

	require.NoError(t, SaveTemplate(db, DefaultAccount, &Template{
		Name: "scratch", Deal: scoring.Deal{Asset: scoring.Land},
	}))
	require.NoError(t, DeleteTemplate(db, "scratch"))
	got, err := GetTemplate(db, "scratch")
	require.NoError(t, err)
	assert.Nil(t, got)

	// builtins survive delete attempts
	require.NoError(t, DeleteTemplate(db, "ltr"))
	got, err = GetTemplate(db, "ltr")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
