package workflow

import (
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventWorkflowCreated   EventType = "workflow.created"
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventWorkflowCancelled EventType = "workflow.cancelled"
	EventStageStarted      EventType = "stage.started"
	EventStageCompleted    EventType = "stage.completed"
	EventStageFailed       EventType = "stage.failed"
	EventArtifactWritten   EventType = "artifact.written"
	// EventWorkflowSnapshot 订阅建立时推送的当前状态。
	EventWorkflowSnapshot EventType = "workflow.snapshot"
)

// Terminal 事件是否表示工作流结束。
func (t EventType) Terminal() bool {
	return t == EventWorkflowCompleted || t == EventWorkflowFailed || t == EventWorkflowCancelled
}

// Event 工作流事件，经 websocket 推送给订阅者。
type Event struct {
	Type       EventType `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	Stage      string    `json:"stage,omitempty"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type subscriber struct {
	workflowID string
	ch         chan Event
}

// EventBus is a simple pub/sub event bus with per-workflow filtering.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	buffer      int
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{buffer: 100}
}

// Subscribe 订阅事件；workflowID 为空时接收所有工作流的事件。
// 返回的函数用于取消订阅，会关闭通道。
func (eb *EventBus) Subscribe(workflowID string) (<-chan Event, func()) {
	sub := &subscriber{workflowID: workflowID, ch: make(chan Event, eb.buffer)}

	eb.mu.Lock()
	eb.subscribers = append(eb.subscribers, sub)
	eb.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { eb.unsubscribe(sub) })
	}
}

func (eb *EventBus) unsubscribe(sub *subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subscribers {
		if s == sub {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish sends an event to matching subscribers (non-blocking).
func (eb *EventBus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, s := range eb.subscribers {
		if s.workflowID != "" && s.workflowID != evt.WorkflowID {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			// 订阅者跟不上时丢弃
		}
	}
}

// SubscriberCount 当前订阅者数量。
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
