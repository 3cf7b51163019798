package capture

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/metrics"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// readLoop runs one reader goroutine until stopped or the reader ends.
type readLoop struct {
	name     string
	stop     chan struct{}
	wg       sync.WaitGroup
	received atomic.Uint64
	running  atomic.Bool
}

// isTimeout reports read errors that only mean "nothing arrived yet".
type isTimeout func(error) bool

func (l *readLoop) start(r packetReader, linkType layers.LinkType, timeout isTimeout, handler func(Frame)) {
	l.stop = make(chan struct{})
	l.running.Store(true)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer l.running.Store(false)

		logger := log.GetLogger().WithField("source", l.name)
		counter := metrics.CapturePacketsTotal.WithLabelValues(l.name)

		for {
			select {
			case <-l.stop:
				return
			default:
			}

			data, ci, err := r.ReadPacketData()
			if err != nil {
				if timeout != nil && timeout(err) {
					continue
				}
				if errors.Is(err, io.EOF) {
					logger.Info("capture source exhausted")
					return
				}
				logger.WithError(err).Error("capture read failed, stopping")
				return
			}

			l.received.Add(1)
			counter.Inc()
			handler(Frame{LinkType: linkType, Data: data, CaptureInfo: ci})
		}
	}()
}

func (l *readLoop) halt() {
	if l.stop == nil {
		return
	}
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	l.wg.Wait()
}

// Done reports whether the read goroutine has exited.
func (l *readLoop) Done() bool { return !l.running.Load() }
