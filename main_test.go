package main

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.fiblab.net/sim/raptor/v2/router"
)

func hm(h, m float64) float64 {
	return h*3600 + m*60
}

func inMemoryLoader(doc *router.TimetableDoc) func() (*router.TimetableDoc, error) {
	return func() (*router.TimetableDoc, error) { return doc, nil }
}

func testDoc() *router.TimetableDoc {
	return &router.TimetableDoc{
		Stops: []router.StopDoc{{Id: 1}, {Id: 2}},
		Trips: []router.TripDoc{
			{Id: 1, Stops: []int32{1, 2}, Times: []router.StopTimeDoc{
				{Arr: hm(10, 0), Dep: hm(10, 0)}, {Arr: hm(10, 20), Dep: hm(10, 20)},
			}},
		},
	}
}

func TestServerQuery(t *testing.T) {
	server := NewRaptorServer(inMemoryLoader(testDoc()), router.Options{}, nil)

	res, err := server.Query(context.Background(), connect.NewRequest(&QueryRequest{
		Source: 1, Target: 2, Departure: hm(9, 0),
	}))
	require.NoError(t, err)
	assert.True(t, res.Msg.Reached)
	// 不可达轮次映射为-1
	assert.Equal(t, []float64{-1, hm(10, 20), hm(10, 20)}, res.Msg.Arrivals)

	// 单向线路反向查询不可达，但不是错误
	res, err = server.Query(context.Background(), connect.NewRequest(&QueryRequest{
		Source: 2, Target: 1, Departure: hm(9, 0),
	}))
	require.NoError(t, err)
	assert.False(t, res.Msg.Reached)
	assert.Equal(t, []float64{-1, -1}, res.Msg.Arrivals)
}

func TestServerQueryInvalidStop(t *testing.T) {
	server := NewRaptorServer(inMemoryLoader(testDoc()), router.Options{}, nil)

	_, err := server.Query(context.Background(), connect.NewRequest(&QueryRequest{
		Source: 99, Target: 2, Departure: hm(9, 0),
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = server.Query(context.Background(), connect.NewRequest(&QueryRequest{
		Source: 1, Target: 99, Departure: hm(9, 0),
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestServerReload(t *testing.T) {
	current := testDoc()
	server := NewRaptorServer(func() (*router.TimetableDoc, error) { return current, nil },
		router.Options{}, nil)

	// 数据源更新后Reload生效
	current = &router.TimetableDoc{
		Stops: []router.StopDoc{{Id: 1}, {Id: 2}, {Id: 3}},
		Trips: []router.TripDoc{
			{Id: 1, Stops: []int32{1, 3}, Times: []router.StopTimeDoc{
				{Arr: hm(8, 0), Dep: hm(8, 0)}, {Arr: hm(8, 30), Dep: hm(8, 30)},
			}},
		},
	}
	res, err := server.Reload(context.Background(), connect.NewRequest(&ReloadRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Msg.Stops)

	q, err := server.Query(context.Background(), connect.NewRequest(&QueryRequest{
		Source: 1, Target: 3, Departure: hm(7, 0),
	}))
	require.NoError(t, err)
	assert.True(t, q.Msg.Reached)
	assert.Equal(t, hm(8, 30), q.Msg.Arrivals[1])
}

func TestServerSuspendResume(t *testing.T) {
	server := NewRaptorServer(inMemoryLoader(testDoc()), router.Options{}, nil)
	server.Suspend()

	done := make(chan struct{})
	go func() {
		_, err := server.Query(context.Background(), connect.NewRequest(&QueryRequest{
			Source: 1, Target: 2, Departure: hm(9, 0),
		}))
		assert.NoError(t, err)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("query should block while suspended")
	default:
	}
	server.Resume()
	<-done
}
