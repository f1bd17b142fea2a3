package bootstrap

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/infrastructure"
	"github.com/krobus00/price-feed-service/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	watchReconnectFactor = 2.0
	watchMinBackoff      = 500 * time.Millisecond
	watchMaxBackoff      = 15 * time.Second
)

var errIdentityRequired = errors.New("--identity is required")

func StartPriceFeedWatch(cmd *cobra.Command, args []string) {
	rawURL, _ := cmd.Flags().GetString("url")
	identity, _ := cmd.Flags().GetString("identity")
	instruments, _ := cmd.Flags().GetStringSlice("instruments")

	if strings.TrimSpace(identity) == "" {
		util.ContinueOrFatal(errIdentityRequired)
	}

	wsURL, err := url.Parse(rawURL)
	util.ContinueOrFatal(err)

	initFrames, err := watchInitFrames(identity, instruments)
	util.ContinueOrFatal(err)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	for {
		connected, err := runWS(ctx, *wsURL, initFrames, logFeedEvent)
		if ctx.Err() != nil {
			logrus.Info("watch stopped")
			return
		}
		if connected {
			attempt = 0
		}

		wait := infrastructure.BackoffWithJitter(attempt, watchReconnectFactor, watchMinBackoff, watchMaxBackoff, rng)
		logrus.WithFields(logrus.Fields{
			"attempt":  attempt + 1,
			"retry_in": wait.String(),
		}).Warnf("feed connection lost: %v", err)
		attempt++

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			logrus.Info("watch stopped")
			return
		}
	}
}

// watchInitFrames logs in first. Subscriptions belong to the identity, so
// sending them again after a reconnect is harmless.
func watchInitFrames(identity string, instruments []string) ([]entity.FeedEvent, error) {
	frames := make([]entity.FeedEvent, 0, len(instruments)+1)

	login, err := entity.NewFeedEvent(constant.FeedEventLogin, identity)
	if err != nil {
		return nil, err
	}
	frames = append(frames, login)

	for _, instrument := range instruments {
		instrument = strings.TrimSpace(instrument)
		if instrument == "" {
			continue
		}

		subscribe, err := entity.NewFeedEvent(constant.FeedEventSubscribe, instrument)
		if err != nil {
			return nil, err
		}
		frames = append(frames, subscribe)
	}

	return frames, nil
}

func logFeedEvent(_ context.Context, message []byte) error {
	var event entity.FeedEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}

	switch event.Event {
	case constant.FeedEventSubscriptionsLoaded:
		var subs []entity.Instrument
		if err := json.Unmarshal(event.Data, &subs); err != nil {
			return err
		}
		logrus.WithField("instruments", subs).Info("subscriptions loaded")
	case constant.FeedEventPriceUpdate:
		var update entity.PriceUpdate
		if err := json.Unmarshal(event.Data, &update); err != nil {
			return err
		}
		fields := make(logrus.Fields, len(update))
		for instrument, price := range update {
			fields[string(instrument)] = price
		}
		logrus.WithFields(fields).Info("price update")
	default:
		logrus.WithField("event", event.Event).Debug("unhandled event")
	}

	return nil
}
