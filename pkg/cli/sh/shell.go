// Package sh provides an interactive shell over the board namespace and link.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mculink/pkg/board"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Session *Session
}

const (
	shellKey = "$shell"
	// DefaultCatSize limits the bytes printed by cat.
	DefaultCatSize = 4096
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ListCmd,
		&StatCmd,
		&CatCmd,
		&EchoCmd,
		&FIFOCmd,
		&LinkCmd,
	}
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(b *board.Board) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Session: NewSession(b),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", b.Config.SysName))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// WithArgs wraps command func requiring at least n arguments.
func WithArgs(n int, fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("%d argument(s) expected", n))
			return
		}
		fn(c)
	}
}

// Print prints a value as JSON or plain text.
func Print(c *ishell.Context, v interface{}) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Session.StopLink()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ListCmd lists a directory.
	ListCmd = ishell.Cmd{
		Name:    "ls",
		Aliases: []string{"l"},
		Help:    "[PATH]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var path string
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			infos, err := s.Session.List(path)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				Print(c, infos)
				return
			}
			for _, info := range infos {
				c.Println(info)
			}
		},
	}

	// StatCmd shows an entry.
	StatCmd = ishell.Cmd{
		Name: "stat",
		Help: "PATH",
		Func: WithArgs(1, func(c *ishell.Context) {
			info, err := ShellFrom(c).Session.Stat(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			Print(c, info)
		}),
	}

	// CatCmd prints available bytes of a device.
	CatCmd = ishell.Cmd{
		Name: "cat",
		Help: "PATH [MAX]",
		Func: WithArgs(1, func(c *ishell.Context) {
			max := DefaultCatSize
			if len(c.Args) > 1 {
				n, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				max = n
			}
			data, err := ShellFrom(c).Session.Cat(c.Args[0], max)
			if len(data) > 0 {
				c.Print(string(data))
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}

	// EchoCmd writes text to a device.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "PATH TEXT...",
		Func: WithArgs(2, func(c *ishell.Context) {
			text := strings.Join(c.Args[1:], " ") + "\n"
			n, err := ShellFrom(c).Session.Echo(c.Args[0], []byte(text))
			if err != nil {
				c.Err(err)
				return
			}
			if n < len(text) {
				c.Printf("%d of %d bytes written\n", n, len(text))
			}
		}),
	}

	// FIFOCmd shows the state of a FIFO device.
	FIFOCmd = ishell.Cmd{
		Name: "fifo",
		Help: "PATH",
		Func: WithArgs(1, func(c *ishell.Context) {
			info, err := ShellFrom(c).Session.FIFOInfo(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if ShellFrom(c).OutputJSON {
				Print(c, info)
				return
			}
			c.Printf("size=%d used=%d overflow=%d nonblock=%v\n", info.Size, info.Used, info.Overflow, info.NonBlocking)
		}),
	}

	// LinkCmd controls the link.
	LinkCmd = ishell.Cmd{
		Name: "link",
		Help: "[status|open|close|notify on|off]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			op := "status"
			if len(c.Args) > 0 {
				op = c.Args[0]
			}
			var err error
			switch op {
			case "status":
				Print(c, s.Session.LinkStatus())
				return
			case "open":
				err = s.Session.StartLink()
			case "close":
				err = s.Session.StopLink()
			case "notify":
				if len(c.Args) < 2 {
					err = fmt.Errorf("on or off expected")
					break
				}
				err = s.Session.SetNotify(c.Args[1] == "on")
			default:
				err = fmt.Errorf("unknown operation %q", op)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}
)
