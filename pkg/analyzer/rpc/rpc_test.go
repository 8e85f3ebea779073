package rpc_test

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/analyzer"
	"github.com/walteh/gotwoslash/pkg/analyzer/rpc"
)

func intp(v int) *int { return &v }

func serve(t *testing.T, a analyzer.Analyzer) *rpc.Client {
	t.Helper()

	cch, sch := channel.Direct()
	srv := jrpc2.NewServer(rpc.Handlers(a), nil).Start(sch)
	client := rpc.NewClient(cch)

	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
	})

	return client
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	var seen analyzer.Request
	client := serve(t, analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
		seen = req
		return &analyzer.Result{
			Code: req.Code,
			Queries: []analyzer.Annotation{
				{Kind: "query", Line: intp(0), Start: intp(6), Length: 1, Text: "const x: number"},
			},
		}, nil
	}))

	req := analyzer.Request{
		Code:              "const x = 1;\n//    ^?",
		Lang:              "typescript",
		CompilerOptions:   map[string]any{"strict": true},
		ExpectedErrors:    []int{2345},
		IncludeDefaultLib: true,
	}

	res, err := client.Analyze(ctx, req)
	require.NoError(t, err)

	require.Len(t, res.Queries, 1)
	assert.Equal(t, "const x: number", res.Queries[0].Text)
	assert.Equal(t, 6, *res.Queries[0].Start)

	assert.Equal(t, req.Code, seen.Code)
	assert.Equal(t, []int{2345}, seen.ExpectedErrors)
	assert.Equal(t, true, seen.CompilerOptions["strict"])
}

func TestRemoteFailure(t *testing.T) {
	client := serve(t, analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
		return nil, errors.New("Errors were thrown in the sample, but not included in an errors tag: 2322")
	}))

	_, err := client.Analyze(context.Background(), analyzer.Request{Code: "let a: number = 'x';", Lang: "typescript"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2322")
}

func TestDialEmptyCommand(t *testing.T) {
	_, err := rpc.Dial(context.Background(), nil)
	require.Error(t, err)
}

func TestServeOverStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- rpc.Serve(ctx, serverR, serverW, analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
			return &analyzer.Result{Code: req.Code}, nil
		}))
	}()

	client := rpc.NewClient(channel.Line(clientR, clientW))

	res, err := client.Analyze(ctx, analyzer.Request{Code: "let a = 1;", Lang: "typescript"})
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;", res.Code)

	_ = client.Close()
	cancel()
	<-done
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestServeReturnsWithoutCancel(t *testing.T) {
	a := analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
		return &analyzer.Result{}, nil
	})

	before := runtime.NumGoroutine()
	for range 20 {
		var out bytes.Buffer
		require.NoError(t, rpc.Serve(context.Background(), strings.NewReader(""), nopWriteCloser{&out}, a))
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 10*time.Millisecond, "serve left goroutines behind")
}

func TestDialMissingBinary(t *testing.T) {
	_, err := rpc.Dial(context.Background(), []string{"definitely-not-a-real-analyzer-binary"})
	require.Error(t, err)
}
