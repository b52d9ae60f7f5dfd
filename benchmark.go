package main

import (
	"context"
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 1000, "the random query count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

func runBenchmark(server *RaptorServer) {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 设置随机种子
	e := rand.New(rand.NewSource(*benchmarkSeed))
	stopIDs := server.router.StopIDs()
	if len(stopIDs) < 2 {
		log.Fatal("benchmark needs at least two stops")
	}
	// 随机生成benchmarkCount个查询请求，起终点与出发时刻都是随机的
	reqs := make([]*connect.Request[QueryRequest], *benchmarkCount)
	for i := 0; i < *benchmarkCount; i++ {
		req := connect.NewRequest(&QueryRequest{
			Source: stopIDs[e.Intn(len(stopIDs))],
			Target: stopIDs[e.Intn(len(stopIDs))],
			// 05:00-23:00之间出发
			Departure: float64(5*3600 + e.Intn(18*3600)),
		})
		reqs[i] = req
	}

	// 开始benchmark
	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, req := range reqs {
			res, err := server.Query(context.Background(), req)
			if err != nil {
				log.Error("benchmark failed, err:", err)
				continue
			}
			if res.Msg.Reached {
				success.Add(1)
			}
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(*benchmarkCount)
		for _, req := range reqs {
			go func(req *connect.Request[QueryRequest]) {
				defer wg.Done()
				res, err := server.Query(context.Background(), req)
				if err != nil {
					log.Error("benchmark failed, err:", err)
					return
				}
				if res.Msg.Reached {
					success.Add(1)
				}
			}(req)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(*benchmarkCount), "\n",
		"success:", success.Load(), "\n",
	)
}
