package remediation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Request is what a decision source decides on.
type Request struct {
	// CreatePrivateEndpoint resolves a bare private endpoint request to
	// the automated action instead of the guidance.
	CreatePrivateEndpoint bool

	// Context is shown to an interactive user above the menu.
	Context string

	// Note is a pre-supplied note for the Custom choice.
	Note string
}

// Selection is a resolved choice.
type Selection struct {
	Choice Choice `json:"choice"`
	Source string `json:"source"`
	Note   string `json:"note,omitempty"`
}

// DecisionSource resolves a choice. ok is false when the source has no
// valid choice, in which case the next source is asked.
type DecisionSource interface {
	Name() string
	Decide(ctx context.Context, req Request) (sel Selection, ok bool, err error)
}

// CodeSource resolves a short code such as "PublicNetwork" or "2".
type CodeSource string

func (s CodeSource) Name() string { return "code" }

func (s CodeSource) Decide(_ context.Context, req Request) (Selection, bool, error) {
	choice, ok := ParseCode(string(s), req.CreatePrivateEndpoint)
	return Selection{Choice: choice, Source: s.Name(), Note: req.Note}, ok, nil
}

// DescriptionSource resolves a descriptive choice such as "enable public
// network access".
type DescriptionSource string

func (s DescriptionSource) Name() string { return "description" }

func (s DescriptionSource) Decide(_ context.Context, req Request) (Selection, bool, error) {
	choice, ok := ParseDescription(string(s), req.CreatePrivateEndpoint)
	return Selection{Choice: choice, Source: s.Name(), Note: req.Note}, ok, nil
}

// PromptSource offers the numbered menu on a plain line-based stream.
type PromptSource struct {
	In  io.Reader
	Out io.Writer
}

func (p *PromptSource) Name() string { return "prompt" }

func (p *PromptSource) Decide(ctx context.Context, req Request) (Selection, bool, error) {
	r := bufio.NewReader(p.In)
	if req.Context != "" {
		fmt.Fprintln(p.Out, req.Context)
	}
	for _, item := range Menu {
		fmt.Fprintf(p.Out, "  %d) %s: %s\n", item.Number, item.Title, item.Description)
	}
	fmt.Fprintf(p.Out, "Select an option [1-%d] (empty to skip): ", len(Menu))

	line, err := readLine(ctx, p.In, r)
	if err != nil || line == "" {
		return Selection{}, false, ignoreEOF(err)
	}
	choice, ok := ParseCode(line, req.CreatePrivateEndpoint)
	if !ok {
		fmt.Fprintf(p.Out, "%q is not a valid option\n", line)
		return Selection{}, false, nil
	}

	sel := Selection{Choice: choice, Source: p.Name(), Note: req.Note}
	if choice == ChoiceCustom && sel.Note == "" {
		fmt.Fprint(p.Out, "Note: ")
		if sel.Note, err = readLine(ctx, p.In, r); err != nil {
			return Selection{}, false, ignoreEOF(err)
		}
	}
	return sel, true, nil
}

// readDeadliner is implemented by inputs whose pending reads can be
// interrupted, such as pipes and terminals opened as *os.File.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// readLine reads one line from r, giving up when ctx is done. When in
// supports read deadlines the pending read is interrupted as well.
// Otherwise the reader goroutine stays blocked until in yields a line or
// EOF, which a one-shot CLI tolerates because the process exits.
func readLine(ctx context.Context, in io.Reader, r *bufio.Reader) (string, error) {
	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) && text != "" {
			err = nil
		}
		ch <- line{text: strings.TrimSpace(text), err: err}
	}()

	select {
	case <-ctx.Done():
		if d, ok := in.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now())
		}
		return "", ctx.Err()
	case l := <-ch:
		return l.text, l.err
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Interactive returns the huh menu when in is a terminal and the line
// prompter otherwise.
func Interactive(in *os.File, out io.Writer) DecisionSource {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return &HuhSource{}
	}
	return &PromptSource{In: in, Out: out}
}

// Sources returns the decision chain for the pre-supplied inputs, in
// precedence order. interactive may be nil.
func Sources(code, description string, interactive DecisionSource) []DecisionSource {
	var sources []DecisionSource
	if strings.TrimSpace(code) != "" {
		sources = append(sources, CodeSource(code))
	}
	if strings.TrimSpace(description) != "" {
		sources = append(sources, DescriptionSource(description))
	}
	if interactive != nil {
		sources = append(sources, interactive)
	}
	return sources
}
