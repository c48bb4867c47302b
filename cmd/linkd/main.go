package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/board"
	"github.com/robotalks/mculink/pkg/cli/sh"
	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/link/mqtt"
	"github.com/robotalks/mculink/pkg/msgs"
	"github.com/robotalks/mculink/pkg/sched"
)

var withShell bool

func init() {
	board.SetupFlags()
	sh.SetupFlags()
	flag.BoolVar(&withShell, "shell", withShell, "Run the interactive shell, the link is opened by 'link open'.")
}

func bridgeBoard(bridge *mqtt.Bridge, b *board.Board, svc *board.LinkService) {
	conf := b.Config
	b.Relay.AddHandler(bridge)
	b.Supervisor.AddHandler(board.HandleBoardEventFunc(func(ev board.Event, arg interface{}) {
		var msg *msgs.BoardEvent
		switch ev {
		case board.EventFatal:
			msg = msgs.NewBoardEvent(msgs.BoardEventFatal, fmt.Sprint(arg))
		case board.EventStartLink:
			msg = msgs.NewBoardEvent(msgs.BoardEventStartLink, conf.LinkName)
		case board.EventStartFilesystem:
			msg = msgs.NewBoardEvent(msgs.BoardEventStartFilesystem, fmt.Sprint(arg))
		default:
			return
		}
		msg.SysName, msg.SysVersion = conf.SysName, conf.SysVersion
		if err := bridge.PublishMessage(msg); err != nil {
			glog.Warningf("publish %s event failed: %v", ev, err)
		}
	}))
	svc.OnState = func(name string, state link.State) {
		if err := bridge.PublishMessage(msgs.NewLinkState(name, state.String())); err != nil {
			glog.Warningf("publish link state failed: %v", err)
		}
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := board.Default()
	b := conf.MustNewBoard()
	defer b.Close()
	svc := board.NewLinkService(b)

	bridge, err := conf.NewBridge()
	if err != nil {
		log.Fatalln(err)
	}
	if bridge != nil {
		token := bridge.Queue.Connect()
		if token.Wait(); token.Error() != nil {
			log.Fatalf("connect %s failed: %v", conf.MQTTBrokerURL, token.Error())
		}
		defer bridge.Queue.Close()
		bridgeBoard(bridge, b, svc)
	}

	if withShell {
		shell := sh.New(b)
		shell.Session.Service = svc
		shell.Run(flag.Args()...)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tasks := sched.NewTableWith(ctx, conf.TaskTotal).HandleSignals()
	recovery := sched.NamedTask("recovery", sched.TaskFunc(func(ctx context.Context) error {
		select {
		case err := <-b.Supervisor.Recovery():
			glog.Errorf("recovery mode requested: %v", err)
			cancel()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	if err := tasks.Go(svc, recovery); err != nil {
		log.Fatalln(err)
	}
	if err := tasks.Wait(); err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}
