// Package rpc talks to an out-of-process analyzer over newline delimited JSON-RPC 2.0.
//
// The analyzer process reads requests on stdin and writes responses on stdout. It
// must implement a single method:
//
//	twoslash.analyze(analyzer.Request) -> analyzer.Result
package rpc

import (
	"context"
	"io"
	"os/exec"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/analyzer"
)

const Method = "twoslash.analyze"

// Client is an analyzer.Analyzer backed by a JSON-RPC peer.
type Client struct {
	cli   *jrpc2.Client
	stdin io.Closer
	cmd   *exec.Cmd
}

var _ analyzer.Analyzer = (*Client)(nil)

func NewClient(ch channel.Channel) *Client {
	return &Client{cli: jrpc2.NewClient(ch, nil)}
}

// Dial starts command and connects to it over its stdio.
func Dial(ctx context.Context, command []string) (*Client, error) {
	if len(command) == 0 {
		return nil, errors.New("empty analyzer command")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = zerolog.Ctx(ctx).With().Str("analyzer", command[0]).Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Errorf("opening analyzer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Errorf("opening analyzer stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Errorf("starting analyzer %q: %w", command[0], err)
	}

	zerolog.Ctx(ctx).Debug().Strs("command", command).Int("pid", cmd.Process.Pid).Msg("analyzer process started")

	return &Client{
		cli:   jrpc2.NewClient(channel.Line(stdout, stdin), nil),
		stdin: stdin,
		cmd:   cmd,
	}, nil
}

func (c *Client) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	var res analyzer.Result
	if err := c.cli.CallResult(ctx, Method, req, &res); err != nil {
		return nil, errors.Errorf("calling %s: %w", Method, err)
	}
	return &res, nil
}

// Close shuts down the connection and, for dialed clients, waits for the process to exit.
func (c *Client) Close() error {
	err := c.cli.Close()
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd != nil {
		if werr := c.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		return errors.Errorf("closing analyzer client: %w", err)
	}
	return nil
}

// Handlers exposes a as the twoslash.analyze method, for hosting an analyzer
// written in Go behind the same protocol.
func Handlers(a analyzer.Analyzer) handler.Map {
	return handler.Map{
		Method: handler.New(func(ctx context.Context, req *analyzer.Request) (*analyzer.Result, error) {
			if req == nil {
				return nil, errors.New("missing request")
			}
			return a.Analyze(ctx, *req)
		}),
	}
}

type rpcLogger struct{}

func (rpcLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	zerolog.Ctx(ctx).Debug().Str("rpc_id", req.ID()).Str("rpc_method", req.Method()).Msg("analyzer request")
}

func (rpcLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	ev := zerolog.Ctx(ctx).Debug().Str("rpc_id", res.ID())
	if rerr := res.Error(); rerr != nil {
		ev = ev.Str("rpc_error", rerr.Message)
	}
	ev.Msg("analyzer response")
}

// Serve answers requests read from in with a until in is exhausted or ctx ends.
func Serve(ctx context.Context, in io.Reader, out io.WriteCloser, a analyzer.Analyzer) error {
	logger := zerolog.Ctx(ctx)
	opts := &jrpc2.ServerOptions{
		RPCLog: rpcLogger{},
		NewContext: func() context.Context {
			return logger.WithContext(context.Background())
		},
	}

	srv := jrpc2.NewServer(Handlers(a), opts).Start(channel.Line(in, out))

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			srv.Stop()
		case <-done:
		}
	}()

	if err := srv.Wait(); err != nil && !errors.Is(err, io.EOF) {
		return errors.Errorf("serving analyzer: %w", err)
	}
	return nil
}
