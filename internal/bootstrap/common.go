package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/sirupsen/logrus"
)

const wsPingInterval = 30 * time.Second

type operation func(ctx context.Context) error

// gracefulShutdown waits for termination syscalls and doing clean up operations after received it.
func gracefulShutdown(ctx context.Context, timeout time.Duration, ops map[string]operation) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)

		// add any other syscalls that you want to be notified with
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		<-s

		logrus.Info("shutting down")

		// set timeout for the ops to be done to prevent system hang
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.Error(fmt.Sprintf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds()))
			os.Exit(0)
		})

		defer timeoutFunc.Stop()

		var wg sync.WaitGroup

		// Do the operations asynchronously to save time
		for key, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()

				logrus.Info(fmt.Sprintf("cleaning up: %s", key))
				if err := op(ctx); err != nil {
					logrus.Error(fmt.Sprintf("%s: clean up failed: %s", key, err.Error()))
					return
				}

				logrus.Info(fmt.Sprintf("%s was shutdown gracefully", key))
			}()
		}

		wg.Wait()

		close(wait)
	}()

	return wait
}

// runWS dials the feed, sends initFrames in order and hands every received
// frame to onMessage until the connection drops or ctx is done. connected
// reports whether the dial succeeded.
func runWS(ctx context.Context, wsHost url.URL, initFrames []entity.FeedEvent, onMessage func(ctx context.Context, message []byte) error) (connected bool, err error) {
	logrus.Infof("connecting to %s", wsHost.String())

	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsHost.String(), nil)
	if err != nil {
		return false, err
	}
	defer c.Close()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteMessage(messageType, data)
	}

	for _, frame := range initFrames {
		payload, err := json.Marshal(frame)
		if err != nil {
			return true, err
		}
		if err := write(websocket.TextMessage, payload); err != nil {
			return true, err
		}
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					logrus.Error(err)
					return
				}
			case <-ctx.Done():
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		if onMessage != nil {
			if err := onMessage(ctx, message); err != nil {
				logrus.Error(err)
			}
		}
	}
}
