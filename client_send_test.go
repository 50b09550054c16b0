package inngestgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("events are posted to the event API with the event key", func(t *testing.T) {
		var (
			gotPath   string
			gotSDK    string
			gotEnv    string
			gotEvents []map[string]any
		)
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotSDK = r.Header.Get(HeaderKeySDK)
			gotEnv = r.Header.Get(HeaderKeyEnv)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvents))
			_ = json.NewEncoder(w).Encode(eventAPIResponse{
				IDs:    []string{"evt_1", "evt_2"},
				Status: 200,
			})
		}))
		defer api.Close()

		c := newTestClient(t, ClientOpts{
			EventKey:        StrPtr("test-key"),
			Env:             StrPtr("branch-env"),
			EventAPIBaseURL: StrPtr(api.URL),
		})

		ids, err := c.SendMany(ctx, []any{
			Event{Name: "billing/invoice.created", Data: map[string]any{"amount": 100}},
			Event{Name: "billing/invoice.paid", Data: map[string]any{"amount": 100}},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"evt_1", "evt_2"}, ids)

		require.Equal(t, "/e/test-key", gotPath)
		require.Equal(t, HeaderValueSDK, gotSDK)
		require.Equal(t, "branch-env", gotEnv)

		require.Len(t, gotEvents, 2)
		for _, evt := range gotEvents {
			require.NotEmpty(t, evt["id"], "missing IDs must be filled in")
			require.NotZero(t, evt["ts"], "missing timestamps must be filled in")
		}
		require.Equal(t, "billing/invoice.created", gotEvents[0]["name"])
	})

	t.Run("Send returns the single event ID", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(eventAPIResponse{IDs: []string{"evt_1"}, Status: 200})
		}))
		defer api.Close()

		c := newTestClient(t, ClientOpts{
			EventKey:        StrPtr("test-key"),
			EventAPIBaseURL: StrPtr(api.URL),
		})

		id, err := c.Send(ctx, Event{Name: "user/signup.new"})
		require.NoError(t, err)
		require.Equal(t, "evt_1", id)
	})

	t.Run("events without names are rejected locally", func(t *testing.T) {
		c := newTestClient(t, ClientOpts{
			EventKey:        StrPtr("test-key"),
			EventAPIBaseURL: StrPtr("http://127.0.0.1:0"),
		})

		_, err := c.Send(ctx, Event{Data: map[string]any{}})
		require.ErrorContains(t, err, "name")
	})

	t.Run("non-200 responses surface the API error", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(eventAPIResponse{Error: "event key not found", Status: 401})
		}))
		defer api.Close()

		c := newTestClient(t, ClientOpts{
			EventKey:        StrPtr("bad-key"),
			EventAPIBaseURL: StrPtr(api.URL),
		})

		_, err := c.Send(ctx, Event{Name: "user/signup.new"})
		require.ErrorContains(t, err, "event key not found")
	})
}
