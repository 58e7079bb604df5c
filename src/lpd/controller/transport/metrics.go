package transport

import (
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// accumulator aggregates transport traffic between flushes.
type accumulator struct {
	sendCount atomic.Int64
	recvCount atomic.Int64
	sentBytes atomic.Int64
	recvBytes atomic.Int64
}

func (a *accumulator) sent(size int) {
	a.sendCount.Inc()
	a.sentBytes.Add(int64(size))
}

func (a *accumulator) received(size int) {
	a.recvCount.Inc()
	a.recvBytes.Add(int64(size))
}

// flush reports the totals since the previous flush and resets them. Nothing is reported for an idle interval.
func (a *accumulator) flush(scope tally.Scope) bool {
	sendCount := a.sendCount.Swap(0)
	recvCount := a.recvCount.Swap(0)
	sentBytes := a.sentBytes.Swap(0)
	recvBytes := a.recvBytes.Swap(0)
	if sendCount == 0 && recvCount == 0 && sentBytes == 0 && recvBytes == 0 {
		return false
	}

	scope.Counter("send_count").Inc(sendCount)
	scope.Counter("recv_count").Inc(recvCount)
	scope.Counter("sent_bytes").Inc(sentBytes)
	scope.Counter("recv_bytes").Inc(recvBytes)
	return true
}
