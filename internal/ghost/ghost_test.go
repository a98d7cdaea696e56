package ghost

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-scheduler/internal/config"
)

func TestFetchRecipes(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test_key", r.URL.Query().Get("key"))
			assert.Equal(t, "tags", r.URL.Query().Get("include"))

			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{
				"posts": [
					{"id": "1", "title": "Lemon Chicken", "html": "<p>...</p>", "updated_at": "2026-01-02T10:00:00Z",
					 "tags": [{"name": "Weeknight", "slug": "weeknight"}, {"name": "protein-chicken", "slug": "protein-chicken"}]},
					{"id": "2", "title": "Salmon Bowl", "html": "<p>...</p>", "updated_at": "2026-01-03T10:00:00Z"}
				]
			}`)
		}))
		defer server.Close()

		client := NewClient(&config.Config{GhostURL: server.URL + "/", GhostContentKey: "test_key"})
		posts, err := client.FetchRecipes(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		require.Len(t, posts[0].Tags, 2)
		assert.Equal(t, "protein-chicken", posts[0].Tags[1].Slug)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(&config.Config{GhostURL: server.URL, GhostContentKey: "test_key"})
		_, err := client.FetchRecipes(ctx)
		assert.Error(t, err)
	})
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	secret := []byte("0123456789abcdef0123456789abcdef")
	adminKey := "key-id:" + hex.EncodeToString(secret)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Ghost ")
		token, err := jwt.Parse(auth, func(tok *jwt.Token) (interface{}, error) {
			assert.Equal(t, "key-id", tok.Header["kid"])
			return secret, nil
		}, jwt.WithAudience("/v3/admin/"), jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var body PostsResponse
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Posts) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "draft", body.Posts[0].Status)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"posts":[{"id":"99","title":%q,"status":"draft"}]}`, body.Posts[0].Title)
	}))
	defer server.Close()

	t.Run("Success", func(t *testing.T) {
		client := NewClient(&config.Config{GhostURL: server.URL, GhostAdminKey: adminKey})
		post, err := client.CreatePost(ctx, "Week of 9 March", "<ul></ul>", false)
		require.NoError(t, err)
		assert.Equal(t, "99", post.ID)
		assert.Equal(t, "Week of 9 March", post.Title)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		client := NewClient(&config.Config{GhostURL: server.URL, GhostAdminKey: "key-id:" + hex.EncodeToString([]byte("nope"))})
		_, err := client.CreatePost(ctx, "x", "", false)
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("MalformedKey", func(t *testing.T) {
		client := NewClient(&config.Config{GhostURL: server.URL, GhostAdminKey: "no-colon"})
		_, err := client.CreatePost(ctx, "x", "", false)
		assert.ErrorContains(t, err, "invalid admin key format")
	})
}
