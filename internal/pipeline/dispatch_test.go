package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/mealchat-go/internal/models"
	"github.com/raphaelgruber/mealchat-go/internal/vision"
)

func newTestDispatcher(store *fakeStore) *Dispatcher {
	d := NewDispatcher(store, nil)
	engine := NewEngine(d,
		&fakeFetcher{result: &vision.Normalized{Data: []byte{0xff}, Width: 640, Height: 480}},
		&fakeDescriber{text: "chicken, rice\nEstimated total calories: 500", ok: true},
		nil, nil)
	d.Bind(engine)
	return d
}

func TestAppendFiresImageTrigger(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)

	url := "https://cdn.example.com/upload/dinner.jpg"
	_, err := d.Append(context.Background(), "alice", models.Message{
		Role:     models.RoleUser,
		Kind:     models.KindImage,
		ImageURL: &url,
	})
	require.NoError(t, err)
	d.Wait()

	written := store.appended(1)
	require.Len(t, written, 2)
	assert.Equal(t, models.KindText, written[0].Kind)
	assert.Equal(t, models.KindConfirmation, written[1].Kind)
}

func TestDuplicateDeliverySuppressed(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)

	// A message whose creation event is delivered twice must be
	// processed once.
	img := seedImageMessage(t, store, "alice")
	d.fire("alice", img)
	d.fire("alice", img)
	d.Wait()

	written := store.appended(1)
	require.Len(t, written, 2, "one description/confirmation pair, not two")
}

func TestEndToEndConfirmationThroughDispatcher(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)
	ctx := context.Background()

	url := "https://cdn.example.com/upload/lunch.jpg"
	_, err := d.Append(ctx, "bob", models.Message{
		Role: models.RoleUser, Kind: models.KindImage, ImageURL: &url,
	})
	require.NoError(t, err)
	d.Wait()

	_, err = d.Append(ctx, "bob", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "Yes",
	})
	require.NoError(t, err)
	d.Wait()

	require.Len(t, store.meals, 1)
	assert.Equal(t, 500, store.meals[0].EstimatedCalories)

	messages := store.appended(0)
	last := messages[len(messages)-1]
	assert.Equal(t, "Meal logged. 500 calories (P 38g · C 50g · F 17g)", last.Text)
	assert.True(t, last.MealLogged)
}

func TestSubscriberReceivesCascade(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)

	ch, cancel := d.Subscribe("alice")
	defer cancel()

	url := "https://cdn.example.com/upload/snack.jpg"
	_, err := d.Append(context.Background(), "alice", models.Message{
		Role: models.RoleUser, Kind: models.KindImage, ImageURL: &url,
	})
	require.NoError(t, err)
	d.Wait()

	// Wait returns only after every cascaded append has published.
	require.Len(t, ch, 3)
	assert.Equal(t, models.KindImage, (<-ch).Kind)
	assert.Equal(t, models.KindText, (<-ch).Kind)
	assert.Equal(t, models.KindConfirmation, (<-ch).Kind)
}

func TestSubscriberScopedToConversation(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)

	ch, cancel := d.Subscribe("alice")
	defer cancel()

	_, err := d.Append(context.Background(), "carol", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "hello",
	})
	require.NoError(t, err)
	d.Wait()

	assert.Len(t, ch, 0)
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)

	ch, cancel := d.Subscribe("alice")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Cancel twice is safe.
	cancel()
}
