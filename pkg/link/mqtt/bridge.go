package mqtt

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/msgs"
)

// Topic suffixes under the device ID.
const (
	TopicNotify = "notify"
	TopicEvents = "events"
)

// DefaultPublishTimeout bounds a publish when no timeout is given.
const DefaultPublishTimeout = 500 * time.Millisecond

// DeviceTopic returns the topic of a device, relative to the queue prefix.
func DeviceTopic(deviceID, suffix string) string {
	return deviceID + "/" + suffix
}

// Bridge publishes a board's link notifications and events.
//
//	<prefix><device-id>/notify  raw NotifyEvent records
//	<prefix><device-id>/events  msgs.Typed envelopes
type Bridge struct {
	Queue    *Queue
	DeviceID string
	Timeout  time.Duration

	seq uint64
}

// NewBridge creates a Bridge.
func NewBridge(q *Queue, deviceID string) *Bridge {
	return &Bridge{Queue: q, DeviceID: deviceID, Timeout: DefaultPublishTimeout}
}

func (b *Bridge) publish(suffix string, payload []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	token := b.Queue.Pub(DeviceTopic(b.DeviceID, suffix), payload)
	if !token.WaitTimeout(timeout) {
		return link.ErrTimeout
	}
	return token.Error()
}

// OpenNotify creates a notification channel publishing to the notify topic.
func (b *Bridge) OpenNotify() (link.NotifySink, error) {
	return &notifySink{bridge: b}, nil
}

type notifySink struct {
	bridge *Bridge
}

func (s *notifySink) SendNotify(record []byte, timeout time.Duration) error {
	return s.bridge.publish(TopicNotify, record, timeout)
}

// Close leaves the queue connected, it's owned by the Bridge.
func (s *notifySink) Close() error {
	return nil
}

// PublishMessage publishes an event message.
func (b *Bridge) PublishMessage(msg msgs.Message) error {
	data, err := msgs.Encode(msg, atomic.AddUint64(&b.seq, 1))
	if err != nil {
		return err
	}
	return b.publish(TopicEvents, data, 0)
}

// HandleEvent mirrors a relayed NotifyEvent as a DeviceWrite message.
func (b *Bridge) HandleEvent(ev *link.NotifyEvent) {
	if ev.Kind != link.NotifyDeviceWrite {
		return
	}
	if err := b.PublishMessage(msgs.NewDeviceWrite(ev.Name, ev.Nbyte)); err != nil {
		glog.V(2).Infof("publish %s write event failed: %v", ev.Name, err)
	}
}
