package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/notify-push/internal/connections"
	"github.com/streamspace-dev/notify-push/internal/logger"
	"github.com/streamspace-dev/notify-push/internal/message"
	"github.com/streamspace-dev/notify-push/internal/preauth"
	"github.com/streamspace-dev/notify-push/internal/user"
)

type fakeMapper struct {
	users []user.ID
	err   error
}

func (f *fakeMapper) UsersForPath(ctx context.Context, storageID, path string) ([]user.ID, error) {
	return f.users, f.err
}

func envelope(t *testing.T, kind, payload string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]json.RawMessage{
		"kind":    json.RawMessage(`"` + kind + `"`),
		"payload": json.RawMessage(payload),
	})
	require.NoError(t, err)
	return raw
}

func recvOrFail(t *testing.T, sub *connections.Subscriber) message.Type {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return message.Type{}
	}
}

func TestDispatcher_ActivityRoutesToUser(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	sub, err := reg.Subscribe("alice")
	require.NoError(t, err)
	defer sub.Close()

	d := New(reg, preauth.New(15*time.Second), nil, logger.NewHandle())
	d.Handle(context.Background(), envelope(t, "activity", `{"user":"alice"}`))

	assert.Equal(t, message.Activity(), recvOrFail(t, sub))
}

func TestDispatcher_CustomRoutesWithTagAndBody(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	sub, err := reg.Subscribe("alice")
	require.NoError(t, err)
	defer sub.Close()

	d := New(reg, preauth.New(15*time.Second), nil, logger.NewHandle())
	d.Handle(context.Background(), envelope(t, "custom", `{"user":"alice","message":"refresh","body":"body-data"}`))

	assert.Equal(t, message.Custom("refresh", "body-data"), recvOrFail(t, sub))
}

func TestDispatcher_PreAuthInsertsIntoCache(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	cache := preauth.New(15 * time.Second)
	d := New(reg, cache, nil, logger.NewHandle())

	d.Handle(context.Background(), envelope(t, "pre_auth", `{"user":"bob","token":"abc"}`))

	require.Eventually(t, func() bool {
		id, ok := cache.Consume("abc")
		return ok && id == user.ID("bob")
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_TestCookieStoresValue(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	d := New(reg, preauth.New(15*time.Second), nil, logger.NewHandle())

	d.Handle(context.Background(), envelope(t, "test_cookie", `{"value":42}`))

	require.Eventually(t, func() bool {
		return d.TestCookie() == 42
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_StorageUpdateFansOutToMappedUsers(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	subA, err := reg.Subscribe("alice")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := reg.Subscribe("bob")
	require.NoError(t, err)
	defer subB.Close()

	mapper := &fakeMapper{users: []user.ID{"alice", "bob"}}
	d := New(reg, preauth.New(15*time.Second), mapper, logger.NewHandle())

	d.Handle(context.Background(), envelope(t, "storage_update", `{"storage_id":"s1","path":"/foo"}`))

	assert.Equal(t, message.File(), recvOrFail(t, subA))
	assert.Equal(t, message.File(), recvOrFail(t, subB))
}

func TestDispatcher_StorageUpdateMappingErrorIsDropped(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	sub, err := reg.Subscribe("alice")
	require.NoError(t, err)
	defer sub.Close()

	mapper := &fakeMapper{err: errors.New("db down")}
	d := New(reg, preauth.New(15*time.Second), mapper, logger.NewHandle())

	d.Handle(context.Background(), envelope(t, "storage_update", `{"storage_id":"s1","path":"/foo"}`))

	select {
	case <-sub.C():
		t.Fatal("expected no delivery on mapping error")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcher_MalformedEventIsDropped(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	d := New(reg, preauth.New(15*time.Second), nil, logger.NewHandle())

	d.Handle(context.Background(), []byte(`not json`))
}

func TestDispatcher_ConfigPushAndPopLogLevel(t *testing.T) {
	reg := connections.NewRegistry(64, 4, nil)
	h := logger.NewHandle()
	d := New(reg, preauth.New(15*time.Second), nil, h)

	d.Handle(context.Background(), envelope(t, "config", `{"log_spec":"debug"}`))
	d.Handle(context.Background(), envelope(t, "config", `{"restore_log":true}`))
}
