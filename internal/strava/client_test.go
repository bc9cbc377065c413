package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://glycofy.test/v1/strava/callback",
		OAuthBaseURL: server.URL + "/oauth",
		APIBaseURL:   server.URL + "/api/v3",
		HTTPClient:   server.Client(),
	})
	return client, server
}

func activitiesJSON(n int, startID int64) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"id": %d, "name": "Morning Ride", "type": "Ride", "moving_time": 2700, "distance": 21000}`, startID+int64(i)))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestListActivitiesSendsPaginationAndAuth(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/athlete/activities", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, activitiesJSON(2, 100))
	}))

	batch, err := client.ListActivities(context.Background(), "token-abc", 3, 50, 1754006400)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "100", batch[0].ExternalID())

	require.Equal(t, "Bearer token-abc", gotAuth)
	require.Equal(t, "3", gotQuery.Get("page"))
	require.Equal(t, "50", gotQuery.Get("per_page"))
	require.Equal(t, "1754006400", gotQuery.Get("after"))
}

func TestListActivitiesOmitsZeroAfter(t *testing.T) {
	var gotQuery url.Values
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, "[]")
	}))

	_, err := client.ListActivities(context.Background(), "token", 1, 50, 0)
	require.NoError(t, err)
	require.False(t, gotQuery.Has("after"))
}

func TestListActivitiesDegradesMalformedElements(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "type": "Ride"}, {"id": "not-a-number-or-string-id", "type": 42}, {"id": 3, "type": "Run"}, {"id": 4, "type": "Ride", "distance": "oops", "moving_time": 2700}]`)
	}))

	batch, err := client.ListActivities(context.Background(), "token", 1, 50, 0)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	require.Equal(t, "1", batch[0].ExternalID())
	require.Empty(t, batch[1].ExternalID())
	require.Equal(t, "3", batch[2].ExternalID())

	// A bad counter does not cost the record its identity.
	require.Equal(t, "4", batch[3].ExternalID())
	require.Equal(t, Float(0), batch[3].Distance)
	require.Equal(t, Float(2700), batch[3].MovingTime)
}

func TestListActivitiesReturnsAPIError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message": "Rate Limit Exceeded"}`)
	}))

	_, err := client.ListActivities(context.Background(), "token", 1, 50, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.Contains(t, apiErr.Body, "Rate Limit Exceeded")
}

func TestRefreshTokenPostsForm(t *testing.T) {
	var gotForm url.Values
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		fmt.Fprint(w, `{"access_token": "new-access", "refresh_token": "new-refresh", "expires_at": 1790000000}`)
	}))

	token, err := client.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", token.AccessToken)
	require.Equal(t, "new-refresh", token.RefreshToken)
	require.Equal(t, int64(1790000000), token.ExpiresAt)

	require.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	require.Equal(t, "old-refresh", gotForm.Get("refresh_token"))
	require.Equal(t, "client-id", gotForm.Get("client_id"))
	require.Equal(t, "client-secret", gotForm.Get("client_secret"))
}

func TestPostTokenDefaultsMissingExpiry(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token": "new-access"}`)
	}))

	before := time.Now().Add(time.Hour).Unix()
	token, err := client.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.GreaterOrEqual(t, token.ExpiresAt, before)
}

func TestExchangeCodeCarriesAthlete(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "the-code", r.PostForm.Get("code"))
		fmt.Fprint(w, `{"access_token": "a", "refresh_token": "r", "expires_at": 1790000000, "athlete": {"id": 5551212}}`)
	}))

	token, err := client.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	require.Equal(t, "5551212", token.Athlete.ID.String())
}

func TestForEachPageStopsOnEmptyPage(t *testing.T) {
	pagesServed := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, activitiesJSON(2, 100)) // full page at per_page=2
			return
		}
		fmt.Fprint(w, "[]")
	}))

	var seen int
	pages, err := client.ForEachPage(context.Background(), "token", PageOptions{PerPage: 2, MaxPages: 10}, func(batch []RawActivity) error {
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, pages)
	require.Equal(t, 2, seen)
	require.Equal(t, 2, pagesServed)
}

func TestForEachPageStopsOnPartialPage(t *testing.T) {
	pagesServed := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		fmt.Fprint(w, activitiesJSON(1, 100))
	}))

	pages, err := client.ForEachPage(context.Background(), "token", PageOptions{PerPage: 2, MaxPages: 10}, func([]RawActivity) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, pages)
	require.Equal(t, 1, pagesServed)
}

func TestForEachPageHonorsMaxPages(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, activitiesJSON(2, 100))
	}))

	pages, err := client.ForEachPage(context.Background(), "token", PageOptions{PerPage: 2, MaxPages: 3}, func([]RawActivity) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, pages)
}

func TestForEachPageKeepsProgressOnLatePageFailure(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, activitiesJSON(2, 100))
	}))

	pages, err := client.ForEachPage(context.Background(), "token", PageOptions{PerPage: 2, MaxPages: 10}, func([]RawActivity) error {
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 1, pages)
}

func TestAuthorizeURLCarriesStateAndScope(t *testing.T) {
	client := NewClient(ClientConfig{
		ClientID:    "client-id",
		RedirectURI: "https://glycofy.test/v1/strava/callback",
	})

	parsed, err := url.Parse(client.AuthorizeURL("user-1", ""))
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, "client-id", query.Get("client_id"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, DefaultScope, query.Get("scope"))
	require.Equal(t, "user-1", query.Get("state"))
}
