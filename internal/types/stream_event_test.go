package types

import (
	"testing"

	"github.com/rxtech-lab/argo-console/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StreamEventTestSuite struct {
	suite.Suite
}

func TestStreamEventSuite(t *testing.T) {
	suite.Run(t, new(StreamEventTestSuite))
}

func (s *StreamEventTestSuite) TestParseProgress() {
	raw := []byte(`{"type":"progress","data":{"percent":55,"qty":10,"avg_price":60000,"buy_amt":600000,"current_price":61000,"eval_amt":610000,"eval_pnl":10000,"return_rate":1.2,"trade_count":3}}`)

	ev, err := ParseStreamEvent(raw)
	s.Require().NoError(err)
	s.Equal(EventTypeProgress, ev.Type)
	s.Require().NotNil(ev.Progress)
	s.Equal(55, ev.Progress.Percent)
	s.Equal(10, ev.Progress.Qty)
	s.InDelta(1.2, ev.Progress.ReturnRate, 1e-9)
	s.False(ev.Terminal())
}

func (s *StreamEventTestSuite) TestParseTradeEvent() {
	raw := []byte(`{"type":"trade_event","data":{"event_id":"e1","timestamp":"20240101 093000","symbol":"005930","side":"BUY","price":60000,"qty":10,"order_id":"o1","pnl":null,"meta":{"reward_risk":2.5}}}`)

	ev, err := ParseStreamEvent(raw)
	s.Require().NoError(err)
	s.Equal(EventTypeTradeEvent, ev.Type)
	s.Require().NotNil(ev.Trade)
	s.Equal(TradeSideBuy, ev.Trade.Side)
	s.Equal(10, ev.Trade.Qty)
	s.True(ev.Trade.Pnl.IsNone())
	s.Equal(2.5, ev.Trade.Meta["reward_risk"])
	s.False(ev.Terminal())
}

func (s *StreamEventTestSuite) TestParseTradeEventWithPnl() {
	raw := []byte(`{"type":"trade_event","data":{"event_id":"e2","timestamp":"20240102 100000","side":"SELL","price":61000,"qty":10,"pnl":10000,"pnl_pct":1.66}}`)

	ev, err := ParseStreamEvent(raw)
	s.Require().NoError(err)
	s.Require().NotNil(ev.Trade)
	s.True(ev.Trade.Pnl.IsSome())
	s.InDelta(10000, ev.Trade.Pnl.Unwrap(), 1e-9)
	s.True(ev.Trade.PnlPct.IsSome())
}

func (s *StreamEventTestSuite) TestParseResult() {
	raw := []byte(`{"type":"result","result":{"metrics":{"total_return":3.2,"total_asset":103200000,"mdd":1.1,"trade_count":7},"history":[{"event_id":"e1","timestamp":"20240101 ","side":"BUY","price":60000,"qty":10}],"daily_stats":[{"date":"20240101","total_asset":100000000}]}}`)

	ev, err := ParseStreamEvent(raw)
	s.Require().NoError(err)
	s.Equal(EventTypeResult, ev.Type)
	s.Require().NotNil(ev.Result)
	s.InDelta(3.2, ev.Result.Metrics.TotalReturn, 1e-9)
	s.Len(ev.Result.History, 1)
	s.Len(ev.Result.DailyStats, 1)
	s.True(ev.Terminal())
}

func (s *StreamEventTestSuite) TestParseError() {
	raw := []byte(`{"type":"error","message":"No data found. Please run download first."}`)

	ev, err := ParseStreamEvent(raw)
	s.Require().NoError(err)
	s.Equal(EventTypeError, ev.Type)
	s.Require().NotNil(ev.Err)
	s.Equal("No data found. Please run download first.", ev.Err.Message)
	s.True(ev.Terminal())
}

func (s *StreamEventTestSuite) TestParseUnknownType() {
	raw := []byte(`{"type":"heartbeat","data":{}}`)

	_, err := ParseStreamEvent(raw)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeUnknownMessageType))
}

func (s *StreamEventTestSuite) TestParseMalformed() {
	_, err := ParseStreamEvent([]byte(`{"type":"progress","data":`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeMalformedMessage))

	_, err = ParseStreamEvent([]byte(`{"type":"progress","data":"not-an-object"}`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeMalformedMessage))
}
