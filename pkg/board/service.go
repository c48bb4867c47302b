package board

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/sched"
)

// StateHandler is notified when the link service opens or closes the link.
type StateHandler func(name string, state link.State)

// LinkService is the task owning the link. It opens the PHY, then pumps
// stdio-out to the host and host data to stdio-in until the context ends.
type LinkService struct {
	Board *Board
	// NotifySink overrides the endpoint's own notification channel.
	NotifySink link.NotifySink
	OnState    StateHandler
}

// NewLinkService creates a LinkService.
func NewLinkService(b *Board) *LinkService {
	return &LinkService{Board: b}
}

// Name implements sched.Named.
func (s *LinkService) Name() string {
	return "link"
}

func (s *LinkService) state(st link.State) {
	if fn := s.OnState; fn != nil {
		fn(s.Board.Config.LinkName, st)
	}
}

// Run implements sched.Task.
func (s *LinkService) Run(ctx context.Context) error {
	b, conf := s.Board, s.Board.Config
	ep, err := b.PHY.Open(ctx, conf.LinkName, conf.BaudRate)
	if err != nil {
		return err
	}
	s.state(link.StateOpen)

	if conf.Flags&FlagNotify != 0 {
		if err := b.PHY.OpenNotify(s.NotifySink); err != nil {
			glog.Warningf("link %s: notification channel unavailable: %v", conf.LinkName, err)
		} else {
			ep = b.PHY.Endpoint()
		}
	}
	b.Supervisor.Emit(EventStartLink, ep)

	pumpCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var errs sched.AggregatedError
	var errsLock sync.Mutex
	pump := func(fn func(context.Context) error) {
		defer wg.Done()
		defer cancel()
		if err := fn(pumpCtx); err != nil {
			errsLock.Lock()
			errs.Add(err)
			errsLock.Unlock()
		}
	}
	if b.Stdout != nil && b.Stdin != nil {
		wg.Add(2)
		go pump(s.pumpOut)
		go pump(s.pumpIn)
	}

	<-pumpCtx.Done()
	errs.Add(b.PHY.Close())
	wg.Wait()
	cancel()
	s.state(link.StateClosed)

	if err := ctx.Err(); err != nil {
		if agg := errs.Aggregate(); agg != nil {
			glog.Warningf("link %s stopped: %v", conf.LinkName, agg)
		}
		return err
	}
	return errs.Aggregate()
}

func isRetry(err error) bool {
	return errors.Is(err, dev.ErrTimeout) || errors.Is(err, link.ErrNoHost)
}

// pumpOut forwards stdio-out to the host. Output is dropped while no host
// is attached.
func (s *LinkService) pumpOut(ctx context.Context) error {
	b := s.Board
	buf := make([]byte, b.Stdout.Cap())
	for ctx.Err() == nil {
		n, err := b.Stdout.Read(buf)
		if err != nil {
			if errors.Is(err, dev.ErrTimeout) {
				continue
			}
			if errors.Is(err, dev.ErrClosed) {
				return nil
			}
			return err
		}
		for data := buf[:n]; len(data) > 0; {
			written, err := b.PHY.Write(data)
			data = data[written:]
			if err == nil {
				continue
			}
			if isRetry(err) {
				glog.V(2).Infof("stdio-out: %d bytes dropped: %v", len(data), err)
				break
			}
			if errors.Is(err, link.ErrClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

// pumpIn forwards host data to stdio-in.
func (s *LinkService) pumpIn(ctx context.Context) error {
	b := s.Board
	buf := make([]byte, link.ReadBufferSize)
	for ctx.Err() == nil {
		n, err := b.PHY.Read(buf)
		if err != nil {
			if errors.Is(err, link.ErrTimeout) {
				continue
			}
			if errors.Is(err, link.ErrClosed) {
				return nil
			}
			return err
		}
		for data := buf[:n]; len(data) > 0 && ctx.Err() == nil; {
			written, err := b.Stdin.Write(data)
			data = data[written:]
			if err == nil {
				continue
			}
			if errors.Is(err, dev.ErrTimeout) {
				glog.V(2).Infof("stdio-in: %d bytes dropped: %v", len(data), err)
				break
			}
			if errors.Is(err, dev.ErrClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}
