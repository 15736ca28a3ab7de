package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitetrack/entity"
	"invitetrack/internal/events"
)

type fakeInterpreter struct {
	calls []fakeCall
	fail  map[string]error
}

type fakeCall struct {
	script string
	env    map[string]interface{}
}

func (f *fakeInterpreter) Eval(_ context.Context, script string, env map[string]interface{}) (string, error) {
	f.calls = append(f.calls, fakeCall{script: script, env: env})
	if err, ok := f.fail[script]; ok {
		return "", err
	}
	return "resolved-" + script, nil
}

type fakeQuery struct {
	rec *entity.JoinRecord
}

func (f *fakeQuery) GetInviteeData(context.Context, string, string) (*entity.JoinRecord, error) {
	return f.rec, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func joinEvent() events.Event {
	return events.Event{
		Kind:      events.KindJoin,
		GuildID:   "g1",
		MemberID:  "m1",
		InviterID: "u1",
		Code:      "ABC",
		IsFake:    true,
	}
}

func TestBridge_LiteralChannelIsNotEvaluated(t *testing.T) {
	itp := &fakeInterpreter{}
	b := New(itp, nil, testLogger())
	b.Bind(events.KindJoin, Command{Name: "welcome", Channel: "123456", Code: "body"})

	require.NoError(t, b.Dispatch(joinEvent()))

	// only the command body ran; the channel id was taken literally
	require.Len(t, itp.calls, 1)
	assert.Equal(t, "body", itp.calls[0].script)
	assert.Equal(t, "123456", itp.calls[0].env["channel"])
}

func TestBridge_NamedChannelIsNotEvaluated(t *testing.T) {
	itp := &fakeInterpreter{}
	b := New(itp, nil, testLogger())
	b.Bind(events.KindJoin, Command{Name: "welcome", Channel: "general", Code: "body"})

	require.NoError(t, b.Dispatch(joinEvent()))

	// a plain channel name is a literal, not a script
	require.Len(t, itp.calls, 1)
	assert.Equal(t, "body", itp.calls[0].script)
	assert.Equal(t, "general", itp.calls[0].env["channel"])
}

func TestBridge_ExpressionChannelIsEvaluated(t *testing.T) {
	itp := &fakeInterpreter{}
	b := New(itp, nil, testLogger())
	b.Bind(events.KindJoin, Command{Name: "welcome", Channel: "$welcomeChannel", Code: "body"})

	require.NoError(t, b.Dispatch(joinEvent()))

	// the $ prefix is stripped and the rest evaluated
	require.Len(t, itp.calls, 2)
	assert.Equal(t, "welcomeChannel", itp.calls[0].script)
	assert.Equal(t, "body", itp.calls[1].script)
	assert.Equal(t, "resolved-welcomeChannel", itp.calls[1].env["channel"])
}

func TestBridge_EventInfoPayload(t *testing.T) {
	itp := &fakeInterpreter{}
	query := &fakeQuery{rec: &entity.JoinRecord{
		GuildID:   "g1",
		MemberID:  "m1",
		InviterID: "u1",
		Code:      "ABC",
		IsFake:    true,
		JoinedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	b := New(itp, query, testLogger())
	b.Bind(events.KindJoin, Command{Name: "welcome", Channel: "42", Code: "body"})

	require.NoError(t, b.Dispatch(joinEvent()))

	require.Len(t, itp.calls, 1)
	info, ok := itp.calls[0].env["eventInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "g1", info["guild"])
	assert.Equal(t, "m1", info["member"])
	assert.Equal(t, "u1", info["inviter"])
	assert.Equal(t, "ABC", info["code"])
	assert.Equal(t, true, info["isFake"])

	invitee, ok := info["invitee"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", invitee["inviter"])
}

func TestBridge_CommandsRunInBindOrderAndFailuresDoNotStop(t *testing.T) {
	itp := &fakeInterpreter{fail: map[string]error{"first": errors.New("script broken")}}
	b := New(itp, nil, testLogger())
	b.Bind(events.KindJoin, Command{Name: "a", Channel: "1", Code: "first"})
	b.Bind(events.KindJoin, Command{Name: "b", Channel: "2", Code: "second"})

	require.NoError(t, b.Dispatch(joinEvent()))

	require.Len(t, itp.calls, 2)
	assert.Equal(t, "first", itp.calls[0].script)
	assert.Equal(t, "second", itp.calls[1].script)
}

func TestBridge_NoCommandsNoCalls(t *testing.T) {
	itp := &fakeInterpreter{}
	b := New(itp, nil, testLogger())

	require.NoError(t, b.Dispatch(joinEvent()))
	assert.Empty(t, itp.calls)
}

func TestBridge_ErrorEventCarriesMessage(t *testing.T) {
	itp := &fakeInterpreter{}
	b := New(itp, nil, testLogger())
	b.Bind(events.KindError, Command{Name: "alert", Channel: "7", Code: "body"})

	require.NoError(t, b.Dispatch(events.Event{
		Kind: events.KindError,
		Err:  errors.New("fetch failed"),
	}))

	require.Len(t, itp.calls, 1)
	info := itp.calls[0].env["eventInfo"].(map[string]interface{})
	assert.Equal(t, "fetch failed", info["error"])
}
