package compiler

import (
	"testing"

	faker "github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/pkg/prng"
)

// fakeBookRows generates n plausible book rows from a seeded PRNG, so a
// batch-insert test exercises realistic, reproducible fixture data
// instead of a handful of hand-typed rows.
func fakeBookRows(t *testing.T, seed int64, n int) []map[string]any {
	t.Helper()
	faker.SetCryptoSource(prng.New(seed))

	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"id":    i + 1,
			"title": faker.Sentence(),
		}
	}
	return rows
}

func TestCompileInsert_FakeBatchFixture(t *testing.T) {
	c := testCompiler()
	rows := fakeBookRows(t, 42, 20)

	stmt, err := c.CompileInsert(testRelation(), CreateRequest{Data: rows})
	require.NoError(t, err)
	require.Len(t, stmt.Args, 40)
	require.Contains(t, stmt.SQL, "INSERT INTO")
}
