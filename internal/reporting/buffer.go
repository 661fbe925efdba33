package reporting

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultLogBufferLines is the default capacity of a LineBuffer.
const DefaultLogBufferLines = 5000

// LineBuffer holds the lines of the unit currently being followed. It is
// bounded: when full, the oldest line is evicted. Every Reset starts a new
// generation and appends tagged with an older generation are discarded, so
// a line read by a closed subscription can never land in the new target.
type LineBuffer struct {
	mu    sync.RWMutex
	max   int
	unit  string
	gen   uint64
	lines []string
	start int
	count int
	stats BufferStats
}

// BufferStats is a snapshot of LineBuffer counters.
type BufferStats struct {
	Appended  int64
	Evicted   int64
	Stale     int64
	LastReset time.Time
}

// NewLineBuffer creates a buffer holding at most max lines.
func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultLogBufferLines
	}
	return &LineBuffer{max: max, lines: make([]string, max)}
}

// Reset clears the buffer, switches it to unit and returns the new
// generation.
func (b *LineBuffer) Reset(unit string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.unit = unit
	b.start, b.count = 0, 0
	for i := range b.lines {
		b.lines[i] = ""
	}
	b.stats.LastReset = time.Now()
	return b.gen
}

// Append adds a line if gen is the current generation. It reports whether
// the line was kept.
func (b *LineBuffer) Append(gen uint64, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.unit == "" {
		b.stats.Stale++
		return false
	}
	if b.count == b.max {
		b.lines[b.start] = text
		b.start = (b.start + 1) % b.max
		b.stats.Evicted++
	} else {
		b.lines[(b.start+b.count)%b.max] = text
		b.count++
	}
	b.stats.Appended++
	return true
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *LineBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.start+i)%b.max]
	}
	return out
}

// Unit returns the unit the buffer currently follows.
func (b *LineBuffer) Unit() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unit
}

// Generation returns the current generation.
func (b *LineBuffer) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}

// Len returns the number of buffered lines.
func (b *LineBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the maximum number of lines.
func (b *LineBuffer) Cap() int { return b.max }

// Stats returns a copy of the buffer counters.
func (b *LineBuffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// BufferAction defines what to do when a channel is full
type BufferAction int

const (
	BufferActionDrop BufferAction = iota
	// BufferActionBlock waits for room for at most the channel's block
	// timeout, then drops.
	BufferActionBlock
	// BufferActionWait waits for room until the channel is closed.
	BufferActionWait
)

// String makes BufferAction satisfy the fmt.Stringer interface
func (ba BufferAction) String() string {
	switch ba {
	case BufferActionDrop:
		return "Drop"
	case BufferActionBlock:
		return "Block"
	case BufferActionWait:
		return "Wait"
	default:
		return "Unknown"
	}
}

// BufferStrategy decides how to handle a full channel
type BufferStrategy interface {
	OnBufferFull(msg tea.Msg) BufferAction
}

// PriorityBufferStrategy picks an action per message type
type PriorityBufferStrategy struct {
	DefaultAction BufferAction
	PriorityRules map[string]BufferAction
}

// NewPriorityBufferStrategy creates a priority-based buffer strategy
func NewPriorityBufferStrategy(defaultAction BufferAction) *PriorityBufferStrategy {
	return &PriorityBufferStrategy{
		DefaultAction: defaultAction,
		PriorityRules: make(map[string]BufferAction),
	}
}

// SetPriority sets the action for a specific message type
func (p *PriorityBufferStrategy) SetPriority(msgType string, action BufferAction) {
	p.PriorityRules[msgType] = action
}

// OnBufferFull returns the action based on message type priority
func (p *PriorityBufferStrategy) OnBufferFull(msg tea.Msg) BufferAction {
	if action, exists := p.PriorityRules[messageType(msg)]; exists {
		return action
	}
	return p.DefaultAction
}

// DefaultStrategy never loses what the UI cannot rebuild: log lines,
// log resets and session changes wait for the UI to catch up. A service
// snapshot waits for the block timeout and is dropped after that.
func DefaultStrategy() *PriorityBufferStrategy {
	s := NewPriorityBufferStrategy(BufferActionBlock)
	s.SetPriority("LogLineMsg", BufferActionWait)
	s.SetPriority("LogResetMsg", BufferActionWait)
	s.SetPriority("SessionMsg", BufferActionWait)
	return s
}

func messageType(msg tea.Msg) string {
	switch msg.(type) {
	case ServicesMsg:
		return "ServicesMsg"
	case LogResetMsg:
		return "LogResetMsg"
	case LogLineMsg:
		return "LogLineMsg"
	case ActionOutcomeMsg:
		return "ActionOutcomeMsg"
	case SessionMsg:
		return "SessionMsg"
	case StreamErrorMsg:
		return "StreamErrorMsg"
	default:
		return "Unknown"
	}
}

// ChannelStats is a snapshot of BufferedChannel counters
type ChannelStats struct {
	MessagesSent    int64
	MessagesDropped int64
	MessagesBlocked int64
	LastDropTime    time.Time
}

// BufferedChannel wraps a channel with configurable overflow behaviour.
// Blocking sends give up after blockTimeout; waiting sends give up only
// when the channel is closed, so a UI that stopped reading cannot wedge a
// stream goroutine past shutdown.
type BufferedChannel struct {
	ch           chan tea.Msg
	strategy     BufferStrategy
	blockTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once

	// sendMu is held for reading by senders and for writing by Close, so
	// the channel is never closed under a pending send.
	sendMu sync.RWMutex

	mu    sync.Mutex
	stats ChannelStats
}

// NewBufferedChannel creates a buffered channel with the given strategy
func NewBufferedChannel(size int, strategy BufferStrategy, blockTimeout time.Duration) *BufferedChannel {
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	if blockTimeout <= 0 {
		blockTimeout = time.Second
	}
	return &BufferedChannel{
		ch:           make(chan tea.Msg, size),
		strategy:     strategy,
		blockTimeout: blockTimeout,
		done:         make(chan struct{}),
	}
}

// Send delivers msg according to the strategy and reports whether it was
// delivered. Sends from one goroutine arrive in order.
func (bc *BufferedChannel) Send(msg tea.Msg) bool {
	bc.sendMu.RLock()
	defer bc.sendMu.RUnlock()

	select {
	case <-bc.done:
		return false
	default:
	}

	select {
	case bc.ch <- msg:
		bc.count(func(s *ChannelStats) { s.MessagesSent++ })
		return true
	default:
	}

	var timeout <-chan time.Time
	switch bc.strategy.OnBufferFull(msg) {
	case BufferActionBlock:
		timer := time.NewTimer(bc.blockTimeout)
		defer timer.Stop()
		timeout = timer.C
	case BufferActionWait:
	default:
		bc.dropped()
		return false
	}

	bc.count(func(s *ChannelStats) { s.MessagesBlocked++ })
	select {
	case bc.ch <- msg:
		bc.count(func(s *ChannelStats) { s.MessagesSent++ })
		return true
	case <-timeout:
	case <-bc.done:
	}
	bc.dropped()
	return false
}

func (bc *BufferedChannel) count(f func(*ChannelStats)) {
	bc.mu.Lock()
	f(&bc.stats)
	bc.mu.Unlock()
}

func (bc *BufferedChannel) dropped() {
	bc.count(func(s *ChannelStats) {
		s.MessagesDropped++
		s.LastDropTime = time.Now()
	})
}

// Channel returns the receive side.
func (bc *BufferedChannel) Channel() <-chan tea.Msg {
	return bc.ch
}

// Stats returns a copy of the channel counters
func (bc *BufferedChannel) Stats() ChannelStats {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.stats
}

// Close releases waiting senders and closes the underlying channel. Later
// sends are dropped. Close is idempotent.
func (bc *BufferedChannel) Close() {
	bc.closeOnce.Do(func() {
		close(bc.done)
		bc.sendMu.Lock()
		close(bc.ch)
		bc.sendMu.Unlock()
	})
}
