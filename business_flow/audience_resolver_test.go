package businessflow

import (
	"context"
	"sync"
	"testing"

	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolverCreds = services.Credentials{ClientID: "client", ClientSecret: "secret"}

func TestAudienceResolver_Resolve(t *testing.T) {
	t.Run("creates when absent", func(t *testing.T) {
		stack := newTestStack(t)

		res, err := stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "weekly_actives")
		require.NoError(t, err)
		assert.Equal(t, Resolution{AudienceID: "5678", Path: services.PathCreated}, res)
		assert.Equal(t, 1, stack.fake.Calls("list"))
		assert.Equal(t, 1, stack.fake.Calls("create"))
	})

	t.Run("sequential calls return the same id", func(t *testing.T) {
		stack := newTestStack(t)

		first, err := stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "weekly_actives")
		require.NoError(t, err)
		second, err := stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "weekly_actives")
		require.NoError(t, err)

		assert.Equal(t, first.AudienceID, second.AudienceID)
		assert.Equal(t, services.PathFound, second.Path)
		assert.Equal(t, 1, stack.fake.Calls("create"))
	})

	t.Run("conflict without id relists once", func(t *testing.T) {
		stack := newTestStack(t)
		stack.fake.ConflictNoID = true
		stack.fake.BeforeCreate = func(name string) {
			stack.fake.Seed("12345", "1234", name)
		}

		res, err := stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "weekly_actives")
		require.NoError(t, err)
		assert.Equal(t, Resolution{AudienceID: "1234", Path: services.PathConflictRelisted}, res)
		assert.Equal(t, 2, stack.fake.Calls("list"))
	})

	t.Run("empty name fails before the network", func(t *testing.T) {
		stack := newTestStack(t)

		_, err := stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "")
		require.Error(t, err)
		assert.True(t, syncerror.IsPermanent(err))
		assert.Equal(t, syncerror.CodeAudienceNameRequired, syncerror.CodeOf(err))
		assert.Zero(t, stack.fake.Calls("list"))
	})

	t.Run("non-numeric advertiser is permanent", func(t *testing.T) {
		stack := newTestStack(t)

		for _, advertiser := range []string{"acme", "12a", " 12345", "-1", ""} {
			_, err := stack.resolver.Resolve(context.Background(), resolverCreds, advertiser, "weekly_actives")
			require.Error(t, err, advertiser)
			assert.True(t, syncerror.IsPermanent(err), advertiser)
		}
		assert.Zero(t, stack.fake.Calls("list"))
		assert.Zero(t, stack.fake.Calls("create"))
	})
}

func TestAudienceResolver_ConcurrentResolversConverge(t *testing.T) {
	const resolvers = 16
	stack := newTestStack(t)
	stack.fake.HideFromList = resolvers

	var wg sync.WaitGroup
	results := make([]Resolution, resolvers)
	errs := make([]error, resolvers)
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = stack.resolver.Resolve(context.Background(), resolverCreds, "12345", "weekly_actives")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < resolvers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].AudienceID, results[i].AudienceID)
		if results[i].Path == services.PathCreated {
			created++
		} else {
			assert.Equal(t, services.PathConflictRecovered, results[i].Path)
		}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, stack.fake.Audiences("12345"), 1)
}
