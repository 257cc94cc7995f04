// Package notify 记录变更事件：新建、修改、删除成功后发布
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action 变更类型
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change 一次已被服务端确认的写操作
type Change struct {
	ID       string    `json:"id"`
	Resource string    `json:"resource"`
	Action   Action    `json:"action"`
	RecordID int64     `json:"record_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewChange 填充事件 ID 与时间
func NewChange(resource string, action Action, recordID int64, at time.Time) Change {
	return Change{
		ID:       uuid.New().String(),
		Resource: resource,
		Action:   action,
		RecordID: recordID,
		At:       at.UTC(),
	}
}

// Publisher 变更发布
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Nop 不发布
type Nop struct{}

func (Nop) Publish(ctx context.Context, c Change) error { return nil }

// Recorder 内存收集（测试用）
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *Recorder) Publish(ctx context.Context, c Change) error {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

type rawPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher 发布到 <prefix>/<resource>
type MQTTPublisher struct {
	client rawPublisher
	prefix string
	qos    byte
	logger *zap.Logger
}

func NewMQTTPublisher(client *Client, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return newMQTTPublisher(client, prefix, qos, logger)
}

func newMQTTPublisher(client rawPublisher, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		qos:    qos,
		logger: logger,
	}
}

// Topic 事件主题
func (p *MQTTPublisher) Topic(resource string) string {
	return p.prefix + "/" + resource
}

func (p *MQTTPublisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	topic := p.Topic(c.Resource)
	if err := p.client.Publish(topic, p.qos, false, payload); err != nil {
		p.logger.Warn("Failed to publish change",
			zap.String("topic", topic),
			zap.String("action", string(c.Action)),
			zap.Error(err),
		)
		return err
	}
	p.logger.Debug("Change published", zap.String("topic", topic), zap.Int64("record_id", c.RecordID))
	return nil
}
