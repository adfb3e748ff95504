package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("agrilink", "s3cret", "db.internal", "3306", "agrilink")

	assert.Equal(t,
		"agrilink:s3cret@tcp(db.internal:3306)/agrilink?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		dsn)
}

func TestBuildDSNWithoutPassword(t *testing.T) {
	dsn := buildDSN("root", "", "localhost", "3306", "agrilink")

	assert.Equal(t,
		"root@tcp(localhost:3306)/agrilink?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		dsn)
}

// Repositories infer row existence from RowsAffected after UPDATEs that may
// write unchanged values (re-linking the same telegram chat, re-verifying).
// That inference is only sound with matched-rows semantics.
func TestBuildDSNRequestsMatchedRows(t *testing.T) {
	dsn := buildDSN("u", "p", "h", "3306", "d")
	assert.Contains(t, dsn, "clientFoundRows=true")
}
