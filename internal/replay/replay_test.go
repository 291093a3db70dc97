package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botview/internal/types"
)

type stubStepper struct {
	res   types.ReplayStepResult
	err   error
	calls []Request
}

func (s *stubStepper) RunReplayStep(_ context.Context, accountID int64, symbol string, limit, index, offset int, candles []types.Candle) (types.ReplayStepResult, error) {
	s.calls = append(s.calls, Request{AccountID: accountID, Symbol: symbol, Limit: limit, Index: index, Offset: offset, Candles: candles})
	return s.res, s.err
}

func TestStepRelaysServerIndex(t *testing.T) {
	st := &stubStepper{res: types.ReplayStepResult{Signal: "HOLD", NextIndex: 22}}
	d := NewDriver(st)

	res, err := d.Step(context.Background(), Request{AccountID: 2, Symbol: "BTCUSDT", Limit: 200, Index: 21, Offset: 500})
	require.NoError(t, err)
	assert.Equal(t, 22, res.NextIndex)
	require.Len(t, st.calls, 1)
	assert.Equal(t, 21, st.calls[0].Index)
	assert.Equal(t, 500, st.calls[0].Offset)
}

func TestStepFailureIsStepError(t *testing.T) {
	boom := errors.New("connection refused")
	d := NewDriver(&stubStepper{err: boom})

	_, err := d.Step(context.Background(), Request{Index: 21, Limit: 200})
	var se *types.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.ModeTraining, se.Mode)
	assert.ErrorIs(t, err, boom)
}

func TestStepRejectsRegressingIndex(t *testing.T) {
	d := NewDriver(&stubStepper{res: types.ReplayStepResult{NextIndex: 30}})
	_, err := d.Step(context.Background(), Request{Index: 40, Limit: 200})
	assert.ErrorIs(t, err, ErrMalformedStep)
}

func TestValidate(t *testing.T) {
	req := Request{Index: 21, Limit: 100}

	assert.NoError(t, Validate(req, types.ReplayStepResult{NextIndex: 22}))
	assert.NoError(t, Validate(req, types.ReplayStepResult{NextIndex: 0, Done: true}))
	assert.ErrorIs(t, Validate(req, types.ReplayStepResult{NextIndex: 101}), ErrMalformedStep)
	assert.ErrorIs(t, Validate(req, types.ReplayStepResult{NextIndex: -1, Done: true}), ErrMalformedStep)
	assert.ErrorIs(t, Validate(req, types.ReplayStepResult{NextIndex: 22, TradesExecuted: -1}), ErrMalformedStep)
}

type recordingHooks struct {
	order  []string
	failAt string
}

func (h *recordingHooks) stage(name string) error {
	h.order = append(h.order, name)
	if name == h.failAt {
		return errors.New(name + " failed")
	}
	return nil
}

func (h *recordingHooks) ResetAccount(context.Context) error    { return h.stage("reset") }
func (h *recordingHooks) ClearCaches()                          { _ = h.stage("clear") }
func (h *recordingHooks) Refetch(context.Context) error         { return h.stage("refetch") }
func (h *recordingHooks) CaptureSnapshot(context.Context) error { return h.stage("snapshot") }
func (h *recordingHooks) ReloadSnapshots(context.Context) error { return h.stage("reload") }

func TestResetRunsInOrder(t *testing.T) {
	h := &recordingHooks{}
	require.NoError(t, NewDriver(nil).Reset(context.Background(), types.ModeTraining, h))
	assert.Equal(t, []string{"reset", "clear", "refetch", "snapshot", "reload"}, h.order)
}

func TestResetStopsAtFirstFailure(t *testing.T) {
	h := &recordingHooks{failAt: "refetch"}
	err := NewDriver(nil).Reset(context.Background(), types.ModeTrading, h)

	var se *types.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.ModeTrading, se.Mode)
	assert.Equal(t, []string{"reset", "clear", "refetch"}, h.order)
}
