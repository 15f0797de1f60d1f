package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type repeatLedgerSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	ledger *RepeatLedger
	window time.Duration
}

func (s *repeatLedgerSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.window = time.Hour
	s.ledger, err = NewRepeatLedger(s.client, func(string) time.Duration { return s.window })
	s.Require().NoError(err)
}

func (s *repeatLedgerSuite) TearDownTest() {
	_ = s.client.Close()
	s.mr.Close()
}

func (s *repeatLedgerSuite) TestNewRepeatLedgerValidation() {
	_, err := NewRepeatLedger(nil, func(string) time.Duration { return time.Hour })
	s.Error(err)
	_, err = NewRepeatLedger(s.client, nil)
	s.Error(err)
}

func (s *repeatLedgerSuite) TestMarkAndCheck() {
	ctx := context.Background()
	served, err := s.ledger.ServedRecently(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.False(served)

	s.NoError(s.ledger.MarkServed(ctx, "chan", "src", "q1"))

	served, err = s.ledger.ServedRecently(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.True(served)
}

func (s *repeatLedgerSuite) TestEntriesAreChannelScoped() {
	ctx := context.Background()
	s.NoError(s.ledger.MarkServed(ctx, "one", "src", "q1"))

	served, err := s.ledger.ServedRecently(ctx, "two", "src", "q1")
	s.NoError(err)
	s.False(served, "a question served on one channel stays eligible on another")
}

func (s *repeatLedgerSuite) TestWindowExpiry() {
	ctx := context.Background()
	s.NoError(s.ledger.MarkServed(ctx, "chan", "src", "q1"))

	s.mr.FastForward(s.window + time.Minute)

	served, err := s.ledger.ServedRecently(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.False(served, "entry should expire with the repeat window")
}

func (s *repeatLedgerSuite) TestZeroWindowDisablesTracking() {
	ctx := context.Background()
	s.window = 0
	s.NoError(s.ledger.MarkServed(ctx, "chan", "src", "q1"))

	served, err := s.ledger.ServedRecently(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.False(served)
}

func (s *repeatLedgerSuite) TestLastServed() {
	ctx := context.Background()
	ts, err := s.ledger.LastServed(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.True(ts.IsZero())

	before := time.Now().UTC().Add(-time.Second)
	s.NoError(s.ledger.MarkServed(ctx, "chan", "src", "q1"))

	ts, err = s.ledger.LastServed(ctx, "chan", "src", "q1")
	s.NoError(err)
	s.False(ts.IsZero())
	s.True(ts.After(before))
}

func TestRepeatLedgerSuite(t *testing.T) {
	suite.Run(t, new(repeatLedgerSuite))
}
