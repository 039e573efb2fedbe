package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/mealchat-go/internal/db"
	"github.com/raphaelgruber/mealchat-go/internal/metrics"
	"github.com/raphaelgruber/mealchat-go/internal/models"
	"github.com/raphaelgruber/mealchat-go/internal/server"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeStore backs the HTTP handlers without a database.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]bool
	messages      map[string][]models.Message
	meals         map[string][]models.Meal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: map[string]bool{},
		messages:      map[string][]models.Message{},
		meals:         map[string][]models.Meal{},
	}
}

func (s *fakeStore) EnsureConversation(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations[userID] {
		return false, nil
	}
	s.conversations[userID] = true
	return true, nil
}

func (s *fakeStore) ListMessages(_ context.Context, userID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]models.Message(nil), msgs...), nil
}

func (s *fakeStore) ClearMessages(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.messages[userID])
	delete(s.messages, userID)
	return n, nil
}

func (s *fakeStore) GetMeal(_ context.Context, id string) (*models.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meals := range s.meals {
		for i := range meals {
			if got, err := models.RecordIDString(meals[i].ID); err == nil && got == id {
				return &meals[i], nil
			}
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeStore) ListMeals(_ context.Context, userID string, limit int) ([]models.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meals := s.meals[userID]
	if limit > 0 && len(meals) > limit {
		meals = meals[:limit]
	}
	return append([]models.Meal(nil), meals...), nil
}

func (s *fakeStore) MealsSince(_ context.Context, userID string, since time.Time) ([]models.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Meal
	for _, m := range s.meals[userID] {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeFeed records appends and hands subscribers a channel the test can
// push into.
type fakeFeed struct {
	store *fakeStore

	mu   sync.Mutex
	seq  int
	subs map[string][]chan models.Message
}

func newFakeFeed(store *fakeStore) *fakeFeed {
	return &fakeFeed{store: store, subs: map[string][]chan models.Message{}}
}

func (f *fakeFeed) Append(_ context.Context, userID string, msg models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	msg.ID = surrealmodels.NewRecordID("message", "m"+strconv.Itoa(f.seq))
	msg.Timestamp = time.Date(2025, 6, 1, 12, 0, f.seq, 0, time.UTC)
	f.store.mu.Lock()
	f.store.messages[userID] = append(f.store.messages[userID], msg)
	f.store.mu.Unlock()
	for _, ch := range f.subs[userID] {
		ch <- msg
	}
	return &msg, nil
}

func (f *fakeFeed) Subscribe(userID string) (<-chan models.Message, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan models.Message, 16)
	f.subs[userID] = append(f.subs[userID], ch)
	return ch, func() {}
}

func newTestServer(t *testing.T) (*fakeStore, *fakeFeed, *httptest.Server) {
	t.Helper()
	store := newFakeStore()
	feed := newFakeFeed(store)
	srv := server.New("127.0.0.1:0", store, feed, testLogger(), metrics.NewCollector(), "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return store, feed, ts
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestStats(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap metrics.Snapshot
	decodeBody(t, resp, &snap)
	assert.NotNil(t, snap.Operations)
}

func TestPostMessageSeedsWelcome(t *testing.T) {
	store, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/conversations/alice/messages", "application/json",
		strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created server.MessageDTO
	decodeBody(t, resp, &created)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, "text", created.Kind)
	assert.Equal(t, "hello", created.Text)

	msgs := store.messages["alice"]
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Start a conversation! Send a message or upload a photo of your meal.", msgs[0].Text)
	assert.Equal(t, "hello", msgs[1].Text)
}

func TestPostMessageWelcomeOnlyOnce(t *testing.T) {
	store, _, ts := newTestServer(t)

	for _, text := range []string{`{"text":"one"}`, `{"text":"two"}`} {
		resp, err := http.Post(ts.URL+"/conversations/alice/messages", "application/json",
			strings.NewReader(text))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	require.Len(t, store.messages["alice"], 3, "welcome + two user messages")
}

func TestPostImageMessage(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/conversations/alice/messages", "application/json",
		strings.NewReader(`{"image_url":"https://cdn.example.com/lunch.jpg"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created server.MessageDTO
	decodeBody(t, resp, &created)
	assert.Equal(t, "image", created.Kind)
	require.NotNil(t, created.ImageURL)
	assert.Equal(t, "https://cdn.example.com/lunch.jpg", *created.ImageURL)
}

func TestPostMessageValidation(t *testing.T) {
	_, _, ts := newTestServer(t)

	for name, body := range map[string]string{
		"empty fields": `{"text":"  "}`,
		"invalid json": `{not json`,
	} {
		resp, err := http.Post(ts.URL+"/conversations/alice/messages", "application/json",
			strings.NewReader(body))
		require.NoError(t, err, name)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestListMessages(t *testing.T) {
	_, feed, ts := newTestServer(t)
	_, err := feed.Append(context.Background(), "alice", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "hi",
	})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/conversations/alice/messages")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []server.MessageDTO `json:"messages"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hi", body.Messages[0].Text)
}

func TestListMessagesBadLimit(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/conversations/alice/messages?limit=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearMessages(t *testing.T) {
	_, feed, ts := newTestServer(t)
	for _, text := range []string{"a", "b"} {
		_, err := feed.Append(context.Background(), "alice", models.Message{
			Role: models.RoleUser, Kind: models.KindText, Text: text,
		})
		require.NoError(t, err)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/conversations/alice/messages", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body["deleted"])
}

func TestGetMeal(t *testing.T) {
	store, _, ts := newTestServer(t)
	macros := models.Macros{Protein: 34, Carbs: 45, Fat: 15}
	store.meals["bob"] = []models.Meal{{
		ID:                surrealmodels.NewRecordID("meal", "abc"),
		UserID:            "bob",
		FoodItems:         []string{"chicken", "rice"},
		EstimatedCalories: 450,
		Macros:            &macros,
		CreatedAt:         time.Now().UTC(),
	}}

	resp, err := http.Get(ts.URL + "/meals/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var meal server.MealDTO
	decodeBody(t, resp, &meal)
	assert.Equal(t, "abc", meal.ID)
	assert.Equal(t, 450, meal.EstimatedCalories)
	require.NotNil(t, meal.Macros)
	assert.Equal(t, macros, *meal.Macros)
}

func TestGetMealNotFound(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/meals/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMealsToday(t *testing.T) {
	store, _, ts := newTestServer(t)
	now := time.Now().UTC()
	store.meals["bob"] = []models.Meal{
		{ID: surrealmodels.NewRecordID("meal", "m1"), UserID: "bob", EstimatedCalories: 450, CreatedAt: now},
		{ID: surrealmodels.NewRecordID("meal", "m2"), UserID: "bob", EstimatedCalories: 300, CreatedAt: now},
		{ID: surrealmodels.NewRecordID("meal", "old"), UserID: "bob", EstimatedCalories: 999, CreatedAt: now.AddDate(0, 0, -2)},
	}

	resp, err := http.Get(ts.URL + "/conversations/bob/meals/today")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var totals server.DailyTotalsDTO
	decodeBody(t, resp, &totals)
	assert.Len(t, totals.Meals, 2)
	assert.Equal(t, 750, totals.TotalCalories)
	assert.NotZero(t, totals.Macros.Protein)
}

func TestWatchStreamsMessages(t *testing.T) {
	_, feed, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/conversations/alice/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_, err = feed.Append(context.Background(), "alice", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "live",
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg server.MessageDTO
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "live", msg.Text)
}
