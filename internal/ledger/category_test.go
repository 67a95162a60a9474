package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCoversEveryCategory(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.Categories, len(knownCategories))
	assert.Equal(t, CategoryFood, c.Categories[0].Key)
	assert.Equal(t, "🍚 食費", c.Label(CategoryFood))
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte("categories:\n  - key: rent\n    label: Rent\n"))
	require.NoError(t, err)
	assert.Equal(t, CategoryRent, c.Categories[0].Key)
	assert.Len(t, c.Categories, len(knownCategories), "missing categories are appended")
	assert.Equal(t, "other", c.Label(CategoryOther))

	_, err = ParseCatalog([]byte("categories:\n  - key: yacht\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("categories:\n  - key: rent\n  - key: rent\n"))
	assert.Error(t, err)
}

func TestMonths(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, tokyo)
	assert.Equal(t, "2024-01", CurrentMonth(now, tokyo))
	assert.Equal(t, "2023-12", PreviousMonth(now, tokyo))

	ym, err := ParseYearMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", ym)

	for _, bad := range []string{"", "2024-13", "2024-2", "2024/02", "24-02"} {
		_, err := ParseYearMonth(bad)
		assert.Error(t, err, bad)
	}
}
