package idgen

import (
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID はWebSocket接続などの識別に使うULIDを生成します
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// Sequence はプロセス内で単調増加するID列です
// 複数のgoroutineから同時にNextを呼び出しても値は重複しません
type Sequence struct {
	n atomic.Int64
}

// NewSequence は start の次の値から払い出すSequenceを作成します
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next は次のIDを返します（1から開始）
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}
