package mqtt

import (
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/msgs"
)

// WatchHandler receives decoded notifications and events of devices.
type WatchHandler interface {
	HandleNotify(deviceID string, ev *link.NotifyEvent)
	HandleMessage(deviceID string, msg msgs.Message, typed *msgs.Typed)
}

// Watch subscribes to notifications and events of a device, or of all
// devices when deviceID is empty.
func Watch(q *Queue, deviceID string, h WatchHandler) []*Subscription {
	if deviceID == "" {
		deviceID = "+"
	}
	notify := q.Sub(DeviceTopic(deviceID, TopicNotify), func(topic string, payload []byte) {
		var ev link.NotifyEvent
		if err := ev.UnmarshalBinary(payload); err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		h.HandleNotify(topicDeviceID(topic), &ev)
	})
	events := q.Sub(DeviceTopic(deviceID, TopicEvents), func(topic string, payload []byte) {
		msg, typed, err := msgs.DecodeMessage(payload)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		h.HandleMessage(topicDeviceID(topic), msg, typed)
	})
	return []*Subscription{notify, events}
}

func topicDeviceID(topic string) string {
	if pos := strings.LastIndex(topic, "/"); pos >= 0 {
		return topic[:pos]
	}
	return topic
}
