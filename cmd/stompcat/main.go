package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"main/internal/archive"
	"main/internal/ops"
	"main/pkg/stomp"
	"main/pkg/transport"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/pkg/sys"
)

func main() {
	configPath := flag.String("config", "stompcat.json", "Path to JSON config")
	callBody := flag.String("call", "", "Body to send as an RPC call (optional)")
	callTimeout := flag.Duration("call-timeout", 15*time.Second, "RPC call timeout")
	dialAttempts := flag.Int("dial-attempts", 5, "Connect attempts before giving up")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	if cfg.Profile.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "stompcat",
			ServerAddress:   cfg.Profile.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseObjects,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	anchors, err := cfg.Broker.LoadAnchors()
	if err != nil {
		log.Fatalf("load trust anchors: %v", err)
	}
	var transportOpts []transport.Option
	if len(anchors) > 0 {
		transportOpts = append(transportOpts, transport.WithTrustAnchors(anchors))
	}

	var recorder *archive.FrameRecorder
	connOpts := []stomp.Option{}
	if hb := cfg.Broker.Heartbeat(); hb > 0 {
		connOpts = append(connOpts, stomp.WithHeartbeat(hb))
	}
	if cfg.Archive.Enabled {
		store, err := archive.NewPGStore(archive.PGOption{
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
			Database: cfg.Archive.Database,
			SSLMode:  cfg.Archive.SSLMode,
		})
		if err != nil {
			log.Fatalf("open archive store: %v", err)
		}
		recorder, err = archive.NewFrameRecorder(archive.Config{Store: store})
		if err != nil {
			log.Fatalf("build frame recorder: %v", err)
		}
		if err := recorder.Start(ctx); err != nil {
			log.Fatalf("start frame recorder: %v", err)
		}
		connOpts = append(connOpts, stomp.WithTap(recorder))
	}

	var conn *stomp.Conn
	err = transport.Retry(ctx, *dialAttempts, transport.DefaultBackoff(), func(ctx context.Context) error {
		conn = stomp.NewConn(transport.New(transportOpts...), connOpts...)
		return conn.Connect(ctx, cfg.Broker.Endpoint, cfg.Broker.Login, cfg.Broker.Passcode)
	})
	if err != nil {
		log.Fatalf("connect: %+v", err)
	}
	defer conn.Close()

	caller := stomp.NewCaller(conn, stomp.WithCallTimeout(*callTimeout))
	defer caller.Close()

	if cfg.Broker.Destination != "" {
		sub, err := conn.Subscribe(ctx, cfg.Broker.Destination, func(f *stomp.Frame) {
			fmt.Printf("%s %s\n", f.String(), f.Body)
		})
		if err != nil {
			log.Fatalf("subscribe %s: %+v", cfg.Broker.Destination, err)
		}
		defer func() {
			_ = conn.Unsubscribe(ctx, sub)
		}()
		log.Printf("subscribed to %s as %s", sub.Destination(), sub.ID())
	}

	if *callBody != "" && cfg.Broker.CallDestination != "" {
		reply, err := caller.CallTimeout(ctx, cfg.Broker.CallDestination, []byte(*callBody), *callTimeout)
		if err != nil {
			log.Printf("call failed: %+v", err)
		} else {
			fmt.Printf("reply: %s\n", reply.Body)
		}
	}

	<-sys.Shutdown()

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("close recorder: %v", err)
		}
		if dropped := recorder.Dropped(); dropped > 0 {
			log.Printf("archive dropped %d frames", dropped)
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
