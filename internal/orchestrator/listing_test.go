package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/yourorg/hubsync/internal/testutil"
	"github.com/yourorg/hubsync/internal/types"
)

func devices(ids ...string) []types.DeviceIdentity {
	out := make([]types.DeviceIdentity, len(ids))
	for i, id := range ids {
		out[i] = types.DeviceIdentity{DeviceID: id}
	}
	return out
}

func TestListDevicesPages(t *testing.T) {
	reg := &tu.FakeRegistry{Devices: devices("A", "B", "C")}
	q := reg.Query(DeviceQuery, 2)

	var got []string
	n, err := ListDevices(context.Background(), q, func(d types.DeviceIdentity) error {
		got = append(got, d.DeviceID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"A", "B", "C"}, got)
	assert.Equal(t, 2, q.Pages)
}

func TestListDevicesEmpty(t *testing.T) {
	reg := &tu.FakeRegistry{}
	n, err := ListDevices(context.Background(), reg.Query(DeviceQuery, 2), func(types.DeviceIdentity) error {
		t.Fatal("emit called for empty registry")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

type scriptedPager struct {
	pages [][]types.DeviceIdentity
	err   error
}

func (p *scriptedPager) HasMoreResults() bool { return len(p.pages) > 0 || p.err != nil }

func (p *scriptedPager) Next(context.Context) ([]types.DeviceIdentity, error) {
	if len(p.pages) == 0 {
		err := p.err
		p.err = nil
		return nil, err
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, nil
}

func TestListDevicesSkipsRepeatedIDs(t *testing.T) {
	p := &scriptedPager{pages: [][]types.DeviceIdentity{devices("A", "B"), devices("B", "C")}}
	var got []string
	n, err := ListDevices(context.Background(), p, func(d types.DeviceIdentity) error {
		got = append(got, d.DeviceID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestListDevicesErrors(t *testing.T) {
	boom := errors.New("boom")
	p := &scriptedPager{pages: [][]types.DeviceIdentity{devices("A")}, err: boom}
	n, err := ListDevices(context.Background(), p, func(types.DeviceIdentity) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)

	stop := errors.New("stop")
	p = &scriptedPager{pages: [][]types.DeviceIdentity{devices("A", "B")}}
	_, err = ListDevices(context.Background(), p, func(types.DeviceIdentity) error { return stop })
	assert.ErrorIs(t, err, stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ListDevices(ctx, &scriptedPager{pages: [][]types.DeviceIdentity{devices("A")}}, func(types.DeviceIdentity) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
