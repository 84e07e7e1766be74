package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
)

func TestToTaskResponse_DueDateIgnoresServerZone(t *testing.T) {
	stored := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	for _, loc := range []*time.Location{
		time.UTC,
		time.FixedZone("EST", -5*3600),
		time.FixedZone("NZDT", 13*3600),
	} {
		due := stored.In(loc)
		resp := toTaskResponse(&repository.Task{ID: "t1", DueDate: &due}, nil, nil)
		require.NotNil(t, resp.DueDate, loc.String())
		assert.Equal(t, "2025-03-10", *resp.DueDate, loc.String())
	}
}

func TestParseDueDate(t *testing.T) {
	cases := map[string]string{
		"2025-03-10":                "2025-03-10",
		" 2025-03-10 ":              "2025-03-10",
		"2025-03-10T00:00:00Z":      "2025-03-10",
		"2025-03-10T18:30:00+00:00": "2025-03-10",
	}
	for in, want := range cases {
		got, err := parseDueDate(&in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.UTC().Format("2006-01-02"), in)
		assert.Equal(t, time.UTC, got.Location(), in)
	}

	bad := "10/03/2025"
	_, err := parseDueDate(&bad)
	ve, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "dueDate", ve.Field)
}
