package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"git.fiblab.net/sim/raptor/v2/router"
)

var (
	// 配置信息
	mongoURI         = flag.String("mongo_uri", "", "mongo db uri")
	timetablePathStr = flag.String("timetable", "", "timetable source [format: {fspath} or {db}.{col}]")
	configPath       = flag.String("config", "", "optional service config file (yaml)")
	listenAddr       = flag.String("listen", "localhost:53101", "service listening address")
	logLevel         = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")
	useHubLabels     = flag.Bool("use-hub-labels", false, "relax walking transfers via precomputed hub labels")
	profileQuery     = flag.Bool("profile-query", false, "require at least one transit leg (no pure walking)")

	// 性能测试
	benchmark   = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr   = flag.String("pprof", "localhost:53102", "pprof listening address")
	metricsAddr = flag.String("metrics", "localhost:53103", "prometheus listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}

	log = logrus.WithField("module", "raptor")
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	config := ReadConfig(*configPath)
	opts := router.Options{
		UseHubLabels: *useHubLabels || config.Engine.UseHubLabels,
		Profile:      *profileQuery || config.Engine.Profile,
		PoolSize:     config.Engine.PoolSize,
	}

	timetablePath, err := NewPath(*timetablePathStr)
	if err != nil {
		logrus.Fatalf("invalid timetable path: %s", err)
	}
	if timetablePath == nil {
		logrus.Fatal("timetable path is required")
	}

	metrics := NewCollector()
	// 启动查询服务
	server := NewRaptorServer(
		newTimetableLoader(*mongoURI, timetablePath),
		opts,
		metrics,
	)

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}
	if *metricsAddr != "" {
		metrics.Serve(*metricsAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(server)
		return
	}

	// 启动tcp监听和初始化connect服务端
	mux := http.NewServeMux()
	server.Register(mux)

	addr := *listenAddr
	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	// 监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		// 退出connect-go
		s.Close()
		// 退出查询服务
		server.Close()
		os.Exit(0)
	}()

	// 启动server
	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // 延迟等待"优雅退出"
	log.Info("raptor closes")
}
