package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrecon/internal/discrepancy"
	"finrecon/internal/recon"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() recon.Report {
	return recon.Report{
		Status:      recon.StatusOK,
		LeftRows:    3,
		RightRows:   3,
		MatchedRows: 2,
		Summary:     recon.Summary{TotalCells: 2, MatchingCells: 1, MismatchingCells: 1, MismatchPercentage: 50},
		Discrepancies: []discrepancy.Record{
			{Key: "1-2222-2222", Keys: map[string]string{"Center": "1"}, Account: "2222-2222", Column: "Amount", Variance: -5, Severity: discrepancy.Minor},
			{Key: "1-3333-3333", Account: "3333-3333", Column: "Amount", Variance: 30, MissingInRight: true, Severity: discrepancy.Major},
		},
	}
}

func TestSaveAndReadBack(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	id, err := s.SaveRun(ctx, sampleReport(), "left.xlsx", "sqlite:right.db")
	require.NoError(t, err)
	require.Len(t, id, 36)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", run.Status)
	assert.Equal(t, "left.xlsx", run.LeftSource)
	assert.Equal(t, 2, run.MatchedRows)
	assert.Equal(t, 50.0, run.MismatchPercentage)
	assert.False(t, run.OverallMatch)
	assert.True(t, run.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	var decoded recon.Report
	require.NoError(t, json.Unmarshal(run.Report, &decoded))
	assert.Equal(t, recon.StatusOK, decoded.Status)
	assert.Len(t, decoded.Discrepancies, 2)

	recs, err := s.Discrepancies(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sampleReport().Discrepancies, recs)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		s.now = func() time.Time { return at }
		id, err := s.SaveRun(ctx, sampleReport(), "l", "r")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	two, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMissingRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	_, err := s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.Discrepancies(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
