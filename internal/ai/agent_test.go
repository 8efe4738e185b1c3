package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare statement",
			in:   "SELECT count() FROM lumen.swaps",
			want: "SELECT count() FROM lumen.swaps",
		},
		{
			name: "fenced with language tag",
			in:   "```sql\nSELECT pair FROM swaps\n```",
			want: "SELECT pair FROM swaps",
		},
		{
			name: "fenced without tag",
			in:   "```\nSELECT pair FROM swaps\n```",
			want: "SELECT pair FROM swaps",
		},
		{
			name: "prose around the fence",
			in:   "Here you go:\n```sql\nSELECT pair FROM swaps\n```\nHope that helps!",
			want: "SELECT pair FROM swaps",
		},
		{
			name: "trailing semicolon dropped",
			in:   "SELECT pair FROM swaps;",
			want: "SELECT pair FROM swaps",
		},
		{
			name: "only the first statement survives",
			in:   "SELECT pair FROM swaps; DROP TABLE swaps",
			want: "SELECT pair FROM swaps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSQL(tt.in))
		})
	}
}

func TestGuardSQL(t *testing.T) {
	valid := []string{
		"SELECT count() FROM lumen.swaps",
		"SELECT pair, sum(toUInt256(amount_in)) FROM swaps GROUP BY pair",
		"WITH hops AS (SELECT signature FROM lumen.swaps) SELECT countDistinct(signature) FROM hops, lumen.swaps",
		"select pair from swaps where timestamp >= now() - INTERVAL 24 HOUR",
	}
	for _, q := range valid {
		require.NoError(t, guardSQL(q), "query should pass: %s", q)
	}

	t.Run("rejects empty", func(t *testing.T) {
		assert.Error(t, guardSQL(""))
	})

	t.Run("rejects writes", func(t *testing.T) {
		for _, q := range []string{
			"INSERT INTO swaps VALUES (1)",
			"SELECT pair FROM swaps UNION ALL SELECT name FROM system.tables WHERE 1=1 OR DROP TABLE swaps",
			"ALTER TABLE swaps DELETE WHERE 1",
		} {
			assert.Error(t, guardSQL(q), "query should be rejected: %s", q)
		}
	})

	t.Run("rejects statement chaining", func(t *testing.T) {
		assert.Error(t, guardSQL("SELECT pair FROM swaps; SELECT 1"))
	})

	t.Run("rejects other tables", func(t *testing.T) {
		assert.Error(t, guardSQL("SELECT name FROM system.tables"))
	})

	t.Run("rejects non selects", func(t *testing.T) {
		assert.Error(t, guardSQL("SHOW TABLES"))
	})
}
