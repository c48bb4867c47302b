package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/link/mqtt"
	"github.com/robotalks/mculink/pkg/msgs"
)

var (
	mqttURL  = "mqtt://localhost:1883/mculink/"
	deviceID string
)

func init() {
	if val := os.Getenv("MCULINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&deviceID, "device-id", deviceID, "Device to watch, empty for all.")
}

type printer struct{}

func (printer) HandleNotify(deviceID string, ev *link.NotifyEvent) {
	switch ev.Kind {
	case link.NotifyDeviceWrite:
		log.Printf("%s: notify write %s %d bytes", deviceID, ev.Name, ev.Nbyte)
	default:
		log.Printf("%s: notify kind=%d %s %d", deviceID, ev.Kind, ev.Name, ev.Nbyte)
	}
}

func (printer) HandleMessage(deviceID string, msg msgs.Message, typed *msgs.Typed) {
	if ev, ok := msg.(*msgs.BoardEvent); ok {
		log.Printf("%s: #%d [board %s] %s %s %s", deviceID, typed.Seq, ev.KindName(), ev.SysName, ev.SysVersion, ev.Message)
		return
	}
	log.Printf("%s: #%d [%s] %s", deviceID, typed.Seq,
		reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
		msg.(msgs.SerializableMessage).Serializable().String())
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	mqtt.Watch(q, deviceID, printer{})
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()
	<-(chan struct{})(nil)
}
