package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// WatchInterrupt cancels the returned context on SIGINT/SIGTERM. The
// consumer is expected to stop pulling; if it has not exited after
// forceShutdownDelay the process is killed outright.
func WatchInterrupt(ctx context.Context, forceShutdownDelay time.Duration) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		<-sigs
		log.Warnf("interrupt signal received, try shutdown gracefully or kill app in %s...", forceShutdownDelay)
		cancel()
		timer := time.NewTimer(forceShutdownDelay)
		<-timer.C
		log.Warnf("app still not shutdown after %s, exit immediately", forceShutdownDelay)
		os.Exit(1)
	}()

	return ctx
}
