package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrepare_Derives_Privacy_And_UTC(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 11, 21, 2, 49, 15, 0, time.FixedZone("CET", 3600))

	public, err := Prepare(Record{FromUser: " alice ", Body: "hi", Timestamp: at})
	req.NoError(err)
	req.False(public.IsPrivate)
	req.Equal("alice", public.FromUser)
	req.Equal(time.UTC, public.Timestamp.Location())
	req.True(at.Equal(public.Timestamp))

	private, err := Prepare(Record{FromUser: "alice", ToUser: "bob", Body: "hi", IsPrivate: false})
	req.NoError(err)
	req.True(private.IsPrivate)
	req.False(private.Timestamp.IsZero())
}

func TestPrepare_Rejects_Blank_Fields(t *testing.T) {
	req := require.New(t)

	_, err := Prepare(Record{FromUser: " ", Body: "hi"})
	req.ErrorIs(err, ErrInvalidRecord)

	_, err = Prepare(Record{FromUser: "alice", Body: "  \n"})
	req.ErrorIs(err, ErrInvalidRecord)
}

func TestQuery_Helpers(t *testing.T) {
	req := require.New(t)

	req.Equal(DefaultLimit, Public(0).EffectiveLimit())
	req.Equal(10, Public(10).EffectiveLimit())
	req.False(Public(0).Degenerate())
	req.True(Between("", "bob", 0).Degenerate())

	a, b := Between("Bob", "alice", 0).PairKeys()
	req.Equal("alice", a)
	req.Equal("bob", b)
}
