package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttributeIndex(t *testing.T) {
	idx := testIndex()

	t.Run("It looks up attributes by key", func(t *testing.T) {
		def, ok := idx.Get("HARMONIZED.PROFILES.TIER")
		require.True(t, ok)
		require.Equal(t, attrTier, def)

		_, ok = idx.Get("HARMONIZED.PROFILES.MISSING")
		require.False(t, ok)
		require.Equal(t, 5, idx.Len())
	})

	t.Run("It keeps categories in load order", func(t *testing.T) {
		require.Equal(t, []string{"Profile", "Engagement"}, idx.Categories())
	})

	t.Run("It sorts categories by label", func(t *testing.T) {
		defs := idx.ByCategory("Profile")
		require.Len(t, defs, 3)
		require.Equal(t, "Age", defs[0].Label)
		require.Equal(t, "Income Level", defs[1].Label)
		require.Equal(t, "Tier", defs[2].Label)
		require.Empty(t, idx.ByCategory("Unknown"))
	})

	t.Run("It keeps equal labels in key order", func(t *testing.T) {
		archived := attrTier
		archived.SourceTable = "ARCHIVE.PROFILES"
		idx := NewAttributeIndex([]AttributeDefinition{attrTier, attrAge, archived})

		defs := idx.Search("")
		require.Equal(t, []string{attrAge.Key(), archived.Key(), attrTier.Key()}, []string{defs[0].Key(), defs[1].Key(), defs[2].Key()})
	})

	t.Run("It searches labels ignoring case", func(t *testing.T) {
		defs := idx.Search("  LEVEL ")
		require.Len(t, defs, 1)
		require.Equal(t, attrIncome, defs[0])

		require.Len(t, idx.Search(""), 5)
		// Only labels are searched, not column names.
		require.Empty(t, idx.Search("INCOME_"))
	})

	t.Run("It replaces duplicate keys with later definitions", func(t *testing.T) {
		updated := attrTier
		updated.DataType = "NUMBER"
		idx := NewAttributeIndex([]AttributeDefinition{attrTier, updated})
		require.Equal(t, 1, idx.Len())
		def, _ := idx.Get(attrTier.Key())
		require.Equal(t, "NUMBER", def.DataType)
	})

	t.Run("It returns the first attribute in key order", func(t *testing.T) {
		def, ok := idx.First()
		require.True(t, ok)
		require.Equal(t, attrActive, def)
	})

	t.Run("It is safe to use a nil index", func(t *testing.T) {
		var idx *AttributeIndex
		_, ok := idx.Get(attrTier.Key())
		require.False(t, ok)
		require.Equal(t, 0, idx.Len())
		require.Empty(t, idx.All())
		require.Empty(t, idx.Search("tier"))
	})
}
