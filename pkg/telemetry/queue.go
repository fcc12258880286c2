package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// 默认批处理参数
const (
	DefaultMaxBatch      = 50
	DefaultFlushInterval = time.Second
)

// Sender 负责把一个批次发往采集端
type Sender interface {
	SendBatch(ctx context.Context, batch []Event) error
}

// QueueStats 队列运行统计快照
type QueueStats struct {
	Enqueued       int64 `json:"enqueued"`
	SentBatches    int64 `json:"sent_batches"`
	SentEvents     int64 `json:"sent_events"`
	DroppedBatches int64 `json:"dropped_batches"`
}

// Queue 生产者侧批处理队列
//
// 任意调用点并发 Enqueue，单个后台消费 goroutine 串行发送。
// 两个触发条件先到先触发：缓冲达到 maxBatch，或距上次
// 冲刷超过 flushInterval。冲刷时整体排空缓冲，冲刷期间
// 到达的事件进入下一批。
//
// 投递是尽力而为：发送失败只记日志并丢弃该批次，
// 不重试、不回传调用点。
type Queue struct {
	sender        Sender
	maxBatch      int
	flushInterval time.Duration
	logger        *zap.Logger
	debug         bool

	mu     sync.Mutex
	buf    []Event
	notify chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	stopped   chan struct{}

	enqueued       atomic.Int64
	sentBatches    atomic.Int64
	sentEvents     atomic.Int64
	droppedBatches atomic.Int64
}

// NewQueue 创建队列（不启动消费者）
func NewQueue(sender Sender, maxBatch int, flushInterval time.Duration, logger *zap.Logger, debug bool) *Queue {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		sender:        sender,
		maxBatch:      maxBatch,
		flushInterval: flushInterval,
		logger:        logger,
		debug:         debug,
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start 启动后台消费者，对重复调用幂等
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// Enqueue 入队一个事件
//
// 永不因网络 I/O 阻塞：仅追加到无界缓冲并立即返回，
// 可从任意 goroutine 并发调用。
func (q *Queue) Enqueue(e Event) {
	q.mu.Lock()
	q.buf = append(q.buf, e)
	q.mu.Unlock()

	q.enqueued.Add(1)

	if q.debug {
		q.logger.Debug("事件入队", zap.String("request_id", e.RequestID))
	}

	// 唤醒消费者（已有待处理信号时直接合并）
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Shutdown 停止消费者，尽力排空剩余缓冲
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		close(q.done)
	})
	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 返回运行统计快照
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		SentBatches:    q.sentBatches.Load(),
		SentEvents:     q.sentEvents.Load(),
		DroppedBatches: q.droppedBatches.Load(),
	}
}

// run 消费循环：等待入队信号或冲刷定时器，先到者生效
func (q *Queue) run() {
	timer := time.NewTimer(q.flushInterval)
	defer timer.Stop()

	for {
		select {
		case <-q.done:
			// 退出前尽力冲刷一次
			q.flush()
			close(q.stopped)
			return

		case <-q.notify:
			if q.size() >= q.maxBatch {
				q.flush()
				q.resetTimer(timer)
			}

		case <-timer.C:
			// 空缓冲时不发送，仅重置计时窗口
			q.flush()
			timer.Reset(q.flushInterval)
		}
	}
}

func (q *Queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// flush 整体排空缓冲并串行发送为一个批次
func (q *Queue) flush() {
	q.mu.Lock()
	batch := q.buf
	q.buf = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := q.sender.SendBatch(ctx, batch); err != nil {
		// 尽力而为：丢弃该批次，消费循环继续
		q.droppedBatches.Add(1)
		q.logger.Warn("批次发送失败，已丢弃",
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		return
	}

	q.sentBatches.Add(1)
	q.sentEvents.Add(int64(len(batch)))

	if q.debug {
		q.logger.Debug("批次发送完成", zap.Int("count", len(batch)))
	}
}

func (q *Queue) resetTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(q.flushInterval)
}
