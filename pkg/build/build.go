package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/kballard/go-shellquote"

	"github.com/0xmhha/cortex-watch/pkg/discovery"
	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// grammar is the argument surface of the build sub-command.
type grammar struct {
	Build struct {
		Cwd string `name:"cwd" type:"path" required:"" help:"Path inside the project to build."`
	} `cmd:"" help:"Build the project containing a path."`
}

// operation implements the Operation interface by running an external
// command.
type operation struct {
	words   []string
	timeout time.Duration
	logger  logger.Logger
}

// New creates a build Operation.
//
// Returns error if the command is empty or cannot be split.
func New(cfg Config, log logger.Logger) (Operation, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrEmptyCommand
	}

	words, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	return &operation{
		words:   words,
		timeout: cfg.Timeout,
		logger:  log.With("component", "build"),
	}, nil
}

// Parse implements Operation.Parse.
func (o *operation) Parse(argv []string) (Options, error) {
	var g grammar

	parser, err := kong.New(&g,
		kong.Name("cortex"),
		kong.Writers(io.Discard, io.Discard),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	if _, err := parser.Parse(argv); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	root, err := discovery.FindRoot(g.Build.Cwd)
	if err != nil {
		return Options{}, err
	}

	return Options{Cwd: g.Build.Cwd, Root: root}, nil
}

// Run implements Operation.Run.
func (o *operation) Run(ctx context.Context, opts Options, done func(error)) error {
	if opts.Root == "" {
		return fmt.Errorf("%w: %s", ErrNoRoot, opts.Cwd)
	}
	if done == nil {
		done = func(error) {}
	}

	words := o.command(opts)

	go func() {
		done(o.exec(ctx, opts.Root, words))
	}()

	return nil
}

// command returns the command words with placeholders substituted.
func (o *operation) command(opts Options) []string {
	replacer := strings.NewReplacer(
		PlaceholderRoot, opts.Root,
		PlaceholderCwd, opts.Cwd,
	)

	words := make([]string, len(o.words))
	for i, word := range o.words {
		words[i] = replacer.Replace(word)
	}
	return words
}

func (o *operation) exec(ctx context.Context, root string, words []string) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()

	cmd := exec.CommandContext(ctx, words[0], words[1:]...) //nolint:gosec // the build command is user configuration
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CORTEX_ROOT="+root)

	output, err := cmd.CombinedOutput()
	o.logger.Debug("build command finished",
		"root", root,
		"command", words,
		"duration", time.Since(start),
		"output", string(output))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("build of %s aborted: %w", root, ctxErr)
		}
		return fmt.Errorf("build of %s failed: %w: %s", root, err, lastLine(output))
	}

	return nil
}

// lastLine returns the last non-empty line of output.
func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimRight(string(output), "\r\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
