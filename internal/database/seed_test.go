package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/models"
	"pocketbook/internal/testutil"
)

func TestSeedGlobalCategories(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	n, err := SeedGlobalCategories(db, []string{"Food", "Rent"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second run only adds what is missing.
	n, err = SeedGlobalCategories(db, []string{"Food", "Rent", "Health"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var globals []models.Category
	require.NoError(t, db.Where("user_id IS NULL").Order("name").Find(&globals).Error)
	require.Len(t, globals, 3)
	assert.Equal(t, "Food", globals[0].Name)
	assert.True(t, globals[0].IsGlobal())
}

func TestSeedGlobalCategories_IgnoresUserOwnedNames(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	owner := user.ID
	require.NoError(t, db.Create(&models.Category{Name: "Food", UserID: &owner}).Error)

	n, err := SeedGlobalCategories(db, []string{"Food"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a user's Food category does not make a global one")
}
