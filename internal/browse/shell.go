package browse

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

const shellHelp = `Commands:
  load <file|dir|glob>...  select images (jpg, jpeg, png, bmp)
  next, prev               move through the selection
  show                     print the current image
  list                     print the whole selection
  predict                  classify the current image
  help                     this text
  quit                     leave`

// Predictor is the part of the pipeline the shell needs.
type Predictor interface {
	PredictFile(ctx context.Context, path string) (*pipeline.Result, error)
}

// Shell is a line-oriented front end over a Session.
type Shell struct {
	session   *Session
	predictor Predictor
	out       io.Writer
}

func NewShell(predictor Predictor, out io.Writer) *Shell {
	return &Shell{
		session:   NewSession(),
		predictor: predictor,
		out:       out,
	}
}

func (s *Shell) Session() *Session {
	return s.session
}

// Run reads commands until quit or end of input.
func (s *Shell) Run(ctx context.Context, rl *readline.Instance) error {
	fmt.Fprintln(s.out, "Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		if quit := s.Exec(ctx, line); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the shell should exit. Errors
// are printed and never end the session.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "load":
		s.load(args)
	case "next", "n":
		if path, ok := s.session.Next(); ok {
			s.printPosition(path)
		} else {
			fmt.Fprintln(s.out, "Already at the last image.")
		}
	case "prev", "previous", "p":
		if path, ok := s.session.Previous(); ok {
			s.printPosition(path)
		} else {
			fmt.Fprintln(s.out, "Already at the first image.")
		}
	case "show":
		if path, ok := s.session.Current(); ok {
			s.printPosition(path)
		} else {
			fmt.Fprintln(s.out, "No images loaded.")
		}
	case "list", "ls":
		for i, path := range s.session.Paths() {
			marker := " "
			if i == s.session.Index() {
				marker = ">"
			}
			fmt.Fprintf(s.out, "%s %3d  %s\n", marker, i+1, path)
		}
	case "predict":
		s.predict(ctx)
	default:
		fmt.Fprintf(s.out, "Unknown command %q, try 'help'.\n", cmd)
	}
	return false
}

func (s *Shell) load(patterns []string) {
	if len(patterns) == 0 {
		fmt.Fprintln(s.out, "Usage: load <file|dir|glob>...")
		return
	}
	paths, err := Expand(patterns)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.session.Load(paths)
	fmt.Fprintf(s.out, "Loaded %d image(s).\n", len(paths))
	if path, ok := s.session.Current(); ok {
		s.printPosition(path)
	}
}

func (s *Shell) predict(ctx context.Context) {
	path, ok := s.session.Current()
	if !ok {
		fmt.Fprintln(s.out, "No images loaded.")
		return
	}
	res, err := s.predictor.PredictFile(ctx, path)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Predicted Category: %s\n", res.Label)
}

func (s *Shell) printPosition(path string) {
	fmt.Fprintf(s.out, "[%d/%d] %s\n", s.session.Index()+1, s.session.Len(), path)
}
