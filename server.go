package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"connectrpc.com/connect"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"

	"git.fiblab.net/sim/raptor/v2/router"
)

const (
	QueryProcedure  = "/raptor.v2.RaptorService/Query"
	ReloadProcedure = "/raptor.v2.RaptorService/Reload"
)

// jsonCodec 不经protobuf生成代码的connect编解码器，
// 请求响应为普通JSON结构体
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(m any) ([]byte, error) { return json.Marshal(m) }

func (jsonCodec) Unmarshal(data []byte, m any) error { return json.Unmarshal(data, m) }

type QueryRequest struct {
	Source    int32   `json:"source"`
	Target    int32   `json:"target"`
	Departure float64 `json:"departure"`
}

// QueryResponse 第k项为至多乘k个trip的最优到达时刻，
// 不可达轮次以-1表示（JSON无法承载+Inf）
type QueryResponse struct {
	Arrivals []float64 `json:"arrivals"`
	Reached  bool      `json:"reached"`
}

type ReloadRequest struct{}

type ReloadResponse struct {
	Stops int `json:"stops"`
}

type RaptorServer struct {
	router  *router.Router
	load    func() (*router.TimetableDoc, error)
	metrics *Collector

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewRaptorServer(
	load func() (*router.TimetableDoc, error),
	opts router.Options,
	metrics *Collector,
) *RaptorServer {
	doc, err := load()
	if err != nil {
		log.Panicf("failed to load timetable: %v", err)
	}
	r, err := router.New(doc, opts)
	if err != nil {
		log.Panicf("failed to build timetable: %v", err)
	}
	metrics.SetTimetableStops(r.StopCount())
	return &RaptorServer{
		router: r, load: load, metrics: metrics,
		ok: true, cond: sync.NewCond(&sync.Mutex{}),
	}
}

// newTimetableLoader 时刻表数据源：yaml文件或mongo集合。
// mongo集合内文档形如{class: "stop"|"trip", data: {...}}
func newTimetableLoader(mongoURI string, path *Path) func() (*router.TimetableDoc, error) {
	return func() (*router.TimetableDoc, error) {
		if path.File != "" {
			data, err := os.ReadFile(path.File)
			if err != nil {
				return nil, fmt.Errorf("failed to read timetable file %s: %w", path.File, err)
			}
			doc := &router.TimetableDoc{}
			if err := yaml.Unmarshal(data, doc); err != nil {
				return nil, fmt.Errorf("failed to parse timetable file %s: %w", path.File, err)
			}
			return doc, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		defer client.Disconnect(context.Background())
		coll := client.Database(path.GetDb()).Collection(path.GetColl())

		doc := &router.TimetableDoc{}
		stopCur, err := coll.Find(ctx, bson.M{"class": "stop"})
		if err != nil {
			return nil, fmt.Errorf("failed to download stops from %s: %w", path, err)
		}
		var stopRows []struct {
			Data router.StopDoc `bson:"data"`
		}
		if err := stopCur.All(ctx, &stopRows); err != nil {
			return nil, fmt.Errorf("failed to decode stops from %s: %w", path, err)
		}
		for _, row := range stopRows {
			doc.Stops = append(doc.Stops, row.Data)
		}

		tripCur, err := coll.Find(ctx, bson.M{"class": "trip"})
		if err != nil {
			return nil, fmt.Errorf("failed to download trips from %s: %w", path, err)
		}
		var tripRows []struct {
			Data router.TripDoc `bson:"data"`
		}
		if err := tripCur.All(ctx, &tripRows); err != nil {
			return nil, fmt.Errorf("failed to decode trips from %s: %w", path, err)
		}
		for _, row := range tripRows {
			doc.Trips = append(doc.Trips, row.Data)
		}
		return doc, nil
	}
}

// Register 注册connect路由
func (s *RaptorServer) Register(mux *http.ServeMux) {
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(
		QueryProcedure, s.Query, connect.WithCodec(jsonCodec{})))
	mux.Handle(ReloadProcedure, connect.NewUnaryHandler(
		ReloadProcedure, s.Reload, connect.WithCodec(jsonCodec{})))
}

func (s *RaptorServer) Query(
	ctx context.Context,
	req *connect.Request[QueryRequest],
) (*connect.Response[QueryResponse], error) {
	in := req.Msg
	// 暂停-恢复机制
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()

	// 检查数据是否超出范围
	if !s.router.HasStopID(in.Source) {
		s.metrics.CountQuery("invalid")
		return nil, connect.NewError(
			connect.CodeInvalidArgument,
			fmt.Errorf("no source stop ID: %v", in.Source),
		)
	}
	if !s.router.HasStopID(in.Target) {
		s.metrics.CountQuery("invalid")
		return nil, connect.NewError(
			connect.CodeInvalidArgument,
			fmt.Errorf("no target stop ID: %v", in.Target),
		)
	}

	log.Debugf("Search transit route from %v to %v", in.Source, in.Target)
	start := time.Now()
	labels, err := s.router.SearchTransit(in.Source, in.Target, in.Departure)
	if err != nil {
		s.metrics.CountQuery("invalid")
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	ret := &QueryResponse{Arrivals: make([]float64, 0, len(labels))}
	for _, l := range labels {
		if math.IsInf(l, 1) {
			ret.Arrivals = append(ret.Arrivals, -1)
		} else {
			ret.Arrivals = append(ret.Arrivals, l)
		}
	}
	ret.Reached = !math.IsInf(labels[len(labels)-1], 1)

	outcome := "unreachable"
	if ret.Reached {
		outcome = "ok"
	}
	s.metrics.CountQuery(outcome)
	s.metrics.ObserveQuery(time.Since(start), len(labels)-1)
	return connect.NewResponse(ret), nil
}

// Reload 重新加载时刻表数据源并整体替换
func (s *RaptorServer) Reload(
	ctx context.Context,
	req *connect.Request[ReloadRequest],
) (*connect.Response[ReloadResponse], error) {
	doc, err := s.load()
	if err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	if err := s.router.Reload(doc); err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	s.metrics.SetTimetableStops(s.router.StopCount())
	log.Infof("timetable reloaded: %d stops", s.router.StopCount())
	return connect.NewResponse(&ReloadResponse{Stops: s.router.StopCount()}), nil
}

// 暂停服务
func (s *RaptorServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复服务
func (s *RaptorServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭服务
func (s *RaptorServer) Close() {
	s.router.Close()
}
