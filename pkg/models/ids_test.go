package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskIDJSON(t *testing.T) {
	id := NewTaskID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded TaskID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestParseTaskID(t *testing.T) {
	id := NewTaskID()

	parsed, err := ParseTaskID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseTaskID("not-a-uuid")
	require.Error(t, err)
}

func TestTaskIDScan(t *testing.T) {
	id := NewTaskID()

	var fromString TaskID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	var fromBytes TaskID
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	assert.Equal(t, id, fromBytes)

	var fromNil TaskID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	var bad TaskID
	require.Error(t, bad.Scan(42))
}

func TestZeroIDValueIsNull(t *testing.T) {
	v, err := TaskID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = UserID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestUserPasswordHashNotSerialized(t *testing.T) {
	user := User{
		ID:           NewUserID(),
		Email:        "alice@example.com",
		PasswordHash: "bcrypt-hash",
	}

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bcrypt-hash")
	assert.Contains(t, string(data), "alice@example.com")
}

func TestNewChangeNotification(t *testing.T) {
	task := &Task{ID: NewTaskID(), Title: "t"}
	n := NewChangeNotification(task, ActionUpdated)

	assert.Equal(t, TaskReceivedEvent, n.Event)
	assert.Equal(t, ActionUpdated, n.Action)
	assert.Same(t, task, n.Task)

	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"TaskReceived"`)
	assert.Contains(t, string(data), `"action":"updated"`)
}
