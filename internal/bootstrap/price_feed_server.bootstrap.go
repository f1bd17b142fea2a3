package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/krobus00/price-feed-service/internal/entity"
	httpHandler "github.com/krobus00/price-feed-service/internal/handler/pricefeed/http"
	websocketHandler "github.com/krobus00/price-feed-service/internal/handler/pricefeed/websocket"
	"github.com/krobus00/price-feed-service/internal/infrastructure"
	"github.com/krobus00/price-feed-service/internal/repository"
	"github.com/krobus00/price-feed-service/internal/service/broadcast"
	"github.com/krobus00/price-feed-service/internal/service/pricesink"
	"github.com/krobus00/price-feed-service/internal/service/pricing"
	"github.com/krobus00/price-feed-service/internal/service/subscription"
	"github.com/krobus00/price-feed-service/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	priceFeedDatabase  = "price_feed"
	priceCacheRedis    = "price_cache"
	catalogLoadTimeout = 30 * time.Second
)

func StartPriceFeedServer(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedCfg := config.Env.PriceFeed

	listings, err := loadInstrumentListings(ctx, feedCfg)
	util.ContinueOrFatal(err)

	store := pricing.NewPriceStore(listings)
	generator := pricing.NewGenerator(store, pricing.NewLockedRand(time.Now().UnixNano()), pricing.GeneratorConfig{
		MaxChange: feedCfg.MaxChange(),
		Floor:     feedCfg.Floor(),
	})

	directory := subscription.NewIdentityDirectory(store.InstrumentSet())
	registry := subscription.NewSessionRegistry(directory)
	subscriptionService := subscription.NewSubscriptionService(directory, registry)

	clock := clockwork.NewRealClock()
	priceFeedWS := websocketHandler.NewPriceFeedWebsocketHandler(subscriptionService, config.Env.Websocket, clock)
	engine := broadcast.NewBroadcastEngine(registry, directory, store, priceFeedWS)

	sinks := make([]entity.TickSink, 0, 2)

	var nc *nats.Conn
	if config.Env.NatsJetstream.Enabled {
		var js nats.JetStreamContext
		nc, js, err = infrastructure.NewJetstream(config.Env.NatsJetstream)
		util.ContinueOrFatal(err)

		jetstreamSink := pricesink.NewJetstreamSink(js)
		publishers := []entity.Publisher{jetstreamSink}
		for _, v := range publishers {
			err = v.JetstreamEventInit(ctx)
			util.ContinueOrFatal(err)
		}
		sinks = append(sinks, jetstreamSink)
	}

	var redisClient *redis.Client
	if redisCfg, ok := config.Env.Redis[priceCacheRedis]; ok && redisCfg.CacheDSN != "" {
		redisClient, err = infrastructure.NewRedisClient(ctx, redisCfg)
		util.ContinueOrFatal(err)
		sinks = append(sinks, pricesink.NewRedisSink(redisClient, redisCfg.KeyTTL))
	}

	driver := broadcast.NewTickDriver(generator, store, engine, clock, broadcast.TickDriverConfig{
		Interval:       feedCfg.TickInterval,
		SinkBufferSize: feedCfg.SinkBufferSize,
	}, sinks...)

	grpcServer := infrastructure.NewGRPCServer(fmt.Sprintf(":%s", config.Env.Port["grpc"]), config.Env.Env)
	lis, err := grpcServer.Listen()
	util.ContinueOrFatal(err)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logrus.Error(err)
		}
	}()

	readiness := &infrastructure.Readiness{}
	httpMux := infrastructure.NewProbeMux(readiness)
	priceFeedWS.Register(httpMux)
	httpHandler.NewPriceFeedHTTPHandler(store).Register(httpMux)

	httpServer := infrastructure.NewHTTPServerWithConfig(infrastructure.HTTPServerConfig{
		Addr:            infrastructure.ResolveHTTPAddr(config.Env.Port["http"]),
		ShutdownTimeout: config.Env.GracefulShutdownTimeout,
	}, httpMux)

	go func() {
		err := httpServer.Start()
		if err != nil {
			logrus.Error(err)
		}
	}()

	tickCtx, stopTicks := context.WithCancel(ctx)
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		driver.Run(tickCtx)
	}()

	readiness.Set(true)
	grpcServer.SetServing(true)

	logrus.WithFields(logrus.Fields{
		"instruments": store.Instruments(),
		"interval":    feedCfg.TickInterval,
		"sinks":       len(sinks),
	}).Info("price feed started")

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"tick loop": func(ctx context.Context) error {
			readiness.Set(false)
			grpcServer.SetServing(false)
			stopTicks()
			<-tickDone
			return nil
		},
		"http": func(ctx context.Context) error {
			priceFeedWS.CloseAll("server shutting down")
			return httpServer.Shutdown(ctx)
		},
		"grpc": func(ctx context.Context) error {
			grpcServer.Stop()
			return nil
		},
		"nats connection": func(ctx context.Context) error {
			<-tickDone
			return infrastructure.CloseJetstream(nc)
		},
		"redis cache": func(ctx context.Context) error {
			<-tickDone
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	<-wait
}

// loadInstrumentListings resolves the fixed instrument set once at startup.
func loadInstrumentListings(ctx context.Context, feedCfg config.PriceFeedConfig) ([]entity.InstrumentListing, error) {
	switch feedCfg.InstrumentSource {
	case config.InstrumentSourcePostgres:
		ctx, cancel := context.WithTimeout(ctx, catalogLoadTimeout)
		defer cancel()

		db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database[priceFeedDatabase])
		if err != nil {
			return nil, err
		}
		defer db.Close()

		return repository.NewInstrumentRepository(db).GetActive(ctx, feedCfg.Base())
	default:
		listings := make([]entity.InstrumentListing, 0, len(feedCfg.Instruments))
		for _, symbol := range feedCfg.Instruments {
			listings = append(listings, entity.InstrumentListing{
				Symbol:    entity.Instrument(symbol),
				BasePrice: feedCfg.Base(),
			})
		}
		return listings, nil
	}
}
