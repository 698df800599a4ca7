package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/notice"
	noticeview "github.com/zappabad/stockpond/internal/notice/view"
)

// NoticeService records notices and hands each one to every subscriber.
// Publish never blocks: it runs under the playback controller's lock.
type NoticeService struct {
	cfg Config
	log *noticeview.Log

	mu     sync.Mutex
	subs   map[chan notice.Notice]struct{}
	closed bool

	dropped atomic.Int64
}

// NewNoticeService creates a new NoticeService.
func NewNoticeService(cfg Config) *NoticeService {
	def := DefaultConfig()
	if cfg.History <= 0 {
		cfg.History = def.History
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}
	return &NoticeService{
		cfg:  cfg,
		log:  noticeview.NewLog(cfg.History),
		subs: make(map[chan notice.Notice]struct{}),
	}
}

// Publish records a notice. ID and Time are filled in when missing.
// Subscribers receive the entry as recorded, so a repeat arrives with the
// original ID and a higher Repeat count.
func (s *NoticeService) Publish(n notice.Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	if n.Level == notice.LevelError {
		logx.Errorf("notice: %s", n.Message)
	} else {
		logx.Infof("notice: %s", n.Message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	stored := s.log.Record(n)
	for ch := range s.subs {
		select {
		case ch <- stored:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of published notices and a func that ends the
// subscription. buffer <= 0 uses the configured SubscriberBuffer. The channel
// is closed by cancel or Close.
func (s *NoticeService) Subscribe(buffer int) (<-chan notice.Notice, func()) {
	if buffer <= 0 {
		buffer = s.cfg.SubscriberBuffer
	}
	ch := make(chan notice.Notice, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Latest returns the last n notices.
func (s *NoticeService) Latest(n int) []notice.Notice {
	return s.log.Latest(n)
}

// ForSymbol returns the last n notices about sym.
func (s *NoticeService) ForSymbol(sym market.Symbol, n int) []notice.Notice {
	return s.log.ForSymbol(sym, n)
}

// DroppedEvents returns how many deliveries full subscribers missed.
func (s *NoticeService) DroppedEvents() int64 {
	return s.dropped.Load()
}

// Close ends every subscription. Later notices are discarded.
func (s *NoticeService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
