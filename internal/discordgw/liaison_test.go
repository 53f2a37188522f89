package discordgw

import (
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLiaison() *Liaison {
	return &Liaison{logger: zap.NewNop()}
}

func TestDuplicateEvents_FansOutToEverySubscriber(t *testing.T) {
	l := newTestLiaison()

	a := l.DuplicateEvents()
	b := l.DuplicateEvents()

	evt := Event{Reconnected: true}
	l.broadcast(evt)

	require.Len(t, l.subs, 2)
	assert.Equal(t, evt, <-a)
	assert.Equal(t, evt, <-b)
}

func TestBroadcast_DropsEventForSlowSubscriber(t *testing.T) {
	l := newTestLiaison()
	ch := l.DuplicateEvents()

	for i := 0; i < cap(ch); i++ {
		l.broadcast(Event{Reconnected: true})
	}

	done := make(chan struct{})
	go func() {
		l.broadcast(Event{Reconnected: true})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber channel")
	}
}

func TestBotUserID_ReflectsMostRecentReady(t *testing.T) {
	l := newTestLiaison()
	assert.Equal(t, discord.UserID(0), l.BotUserID())

	l.botID.Store(42)
	assert.Equal(t, discord.UserID(42), l.BotUserID())
}
