package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	err := repo.Get(ctx, "sis:org-1:levels", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "sis:org-1:levels", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "sis:org-1:levels"))
	require.NoError(t, repo.DeleteByPattern(ctx, "sis:org-1:*"))
	require.NoError(t, repo.Close())
}
