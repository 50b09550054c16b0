package inngestgo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateFunction(t *testing.T) {
	handler := func(ctx context.Context, input Input[Event]) (any, error) {
		return nil, nil
	}

	create := func(t *testing.T, opts FunctionOpts) (ServableFunction, error) {
		t.Helper()
		c := newTestClient(t, ClientOpts{})
		return CreateFunction(c, opts, EventTrigger("test/event", nil), handler)
	}

	t.Run("derives the ID from the name", func(t *testing.T) {
		sf, err := create(t, FunctionOpts{Name: "My Billing Function"})
		require.NoError(t, err)
		require.Equal(t, "my-billing-function", sf.ID())
		require.True(t, strings.HasSuffix(sf.FullyQualifiedID(), "-my-billing-function"))
	})

	t.Run("requires an ID or name", func(t *testing.T) {
		_, err := create(t, FunctionOpts{})
		require.Error(t, err)
	})

	t.Run("rejects duplicate IDs within a client", func(t *testing.T) {
		c := newTestClient(t, ClientOpts{})
		_, err := CreateFunction(c, FunctionOpts{ID: "dupe"}, EventTrigger("test/event", nil), handler)
		require.NoError(t, err)
		_, err = CreateFunction(c, FunctionOpts{ID: "dupe"}, EventTrigger("test/event", nil), handler)
		require.ErrorContains(t, err, "already registered")
	})

	t.Run("rejects negative retries", func(t *testing.T) {
		_, err := create(t, FunctionOpts{ID: "f", Retries: IntPtr(-1)})
		require.ErrorContains(t, err, "retries")
	})

	t.Run("concurrency", func(t *testing.T) {
		t.Run("rejects negative limits", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Concurrency: []Concurrency{{Limit: -1}}})
			require.ErrorContains(t, err, "concurrency limit")
		})

		t.Run("rejects unknown scopes", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Concurrency: []Concurrency{{Limit: 1, Scope: "galaxy"}}})
			require.ErrorContains(t, err, "scope")
		})

		t.Run("rejects more than two limits", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Concurrency: []Concurrency{
				{Limit: 1, Scope: ConcurrencyScopeFn},
				{Limit: 2, Scope: ConcurrencyScopeEnv},
				{Limit: 3, Scope: ConcurrencyScopeAccount},
			}})
			require.ErrorContains(t, err, "maximum of 2")
		})

		t.Run("accepts an unlimited limit of zero", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Concurrency: []Concurrency{{Limit: 0}}})
			require.NoError(t, err)
		})
	})

	t.Run("debounce", func(t *testing.T) {
		t.Run("rejects periods under a second", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Debounce: &Debounce{Period: 500 * time.Millisecond}})
			require.ErrorContains(t, err, "between 1s and 7d")
		})

		t.Run("rejects periods over seven days", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Debounce: &Debounce{Period: 8 * 24 * time.Hour}})
			require.ErrorContains(t, err, "between 1s and 7d")
		})

		t.Run("accepts the bounds", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Debounce: &Debounce{Period: time.Second}})
			require.NoError(t, err)
			_, err = create(t, FunctionOpts{ID: "f2", Debounce: &Debounce{Period: 7 * 24 * time.Hour}})
			require.NoError(t, err)
		})
	})

	t.Run("priority", func(t *testing.T) {
		t.Run("rejects empty expressions", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Priority: &Priority{}})
			require.ErrorContains(t, err, "priority")
		})

		t.Run("rejects oversized expressions", func(t *testing.T) {
			expr := strings.Repeat("a", 1001)
			_, err := create(t, FunctionOpts{ID: "f", Priority: &Priority{Run: &expr}})
			require.ErrorContains(t, err, "1000")
		})

		t.Run("rejects disallowed characters", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Priority: &Priority{Run: StrPtr("event.data.plan == `enterprise` ? 120 : 0;")}})
			require.Error(t, err)
		})

		t.Run("accepts a plain expression", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Priority: &Priority{
				Run: StrPtr("event.data.plan == 'enterprise' ? 120 : 0"),
			}})
			require.NoError(t, err)
		})
	})

	t.Run("singleton", func(t *testing.T) {
		t.Run("rejects unknown modes", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Singleton: &Singleton{Mode: "pause"}})
			require.ErrorContains(t, err, "singleton mode")
		})

		t.Run("accepts skip and cancel", func(t *testing.T) {
			_, err := create(t, FunctionOpts{ID: "f", Singleton: &Singleton{Mode: SingletonModeSkip}})
			require.NoError(t, err)
			_, err = create(t, FunctionOpts{ID: "f2", Singleton: &Singleton{Mode: SingletonModeCancel}})
			require.NoError(t, err)
		})
	})
}

func TestConfigPrecedence(t *testing.T) {
	t.Run("explicit options override the environment", func(t *testing.T) {
		t.Setenv(envKeyAPIBaseURL, "https://env.example.com")
		c := &apiClient{ClientOpts: ClientOpts{APIBaseURL: StrPtr("https://opt.example.com")}}
		require.Equal(t, "https://opt.example.com", c.GetAPIBaseURL())
	})

	t.Run("the environment overrides the default", func(t *testing.T) {
		t.Setenv(envKeyAPIBaseURL, "https://env.example.com")
		c := &apiClient{}
		require.Equal(t, "https://env.example.com", c.GetAPIBaseURL())
	})

	t.Run("defaults apply last", func(t *testing.T) {
		t.Setenv(envKeyDev, "")
		t.Setenv(envKeyAPIBaseURL, "")
		t.Setenv(envKeyEventAPIBaseURL, "")
		c := &apiClient{}
		require.Equal(t, "https://api.inngest.com", c.GetAPIBaseURL())
		require.Equal(t, "https://inn.gs", c.GetEventAPIBaseURL())
	})

	t.Run("dev mode retargets both base URLs", func(t *testing.T) {
		t.Setenv(envKeyDev, "1")
		c := &apiClient{}
		require.Equal(t, "http://127.0.0.1:8288", c.GetAPIBaseURL())
		require.Equal(t, "http://127.0.0.1:8288", c.GetEventAPIBaseURL())
	})

	t.Run("a dev URL overrides the dev server origin", func(t *testing.T) {
		t.Setenv(envKeyDev, "http://192.168.1.254:8288")
		c := &apiClient{}
		require.Equal(t, "http://192.168.1.254:8288", c.GetAPIBaseURL())
	})
}
