// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/app"
	"github.com/z5labs/otel-cli/lifecycle"
	"github.com/z5labs/otel-cli/tracedata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
)

const (
	testTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	testSpanID  = "00f067aa0ba902b7"
)

type collector struct {
	status int

	mu       sync.Mutex
	requests []ptrace.Traces
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/traces" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req := ptraceotlp.NewExportRequest()
	err = req.UnmarshalJSON(b)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.requests = append(c.requests, req.Traces())
	c.mu.Unlock()

	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}

func (c *collector) spans() []ptrace.Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	var spans []ptrace.Span
	for _, td := range c.requests {
		rss := td.ResourceSpans()
		for i := range rss.Len() {
			sss := rss.At(i).ScopeSpans()
			for j := range sss.Len() {
				ss := sss.At(j).Spans()
				for k := range ss.Len() {
					spans = append(spans, ss.At(k))
				}
			}
		}
	}
	return spans
}

func environ(vars ...string) Option {
	return Environ(func() []string {
		return vars
	})
}

func execute(ctx context.Context, args []string, opts ...Option) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := New(opts...)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestGenerateID(t *testing.T) {
	t.Run("will print a valid id", func(t *testing.T) {
		testCases := []struct {
			Type  string
			Valid func(string) bool
		}{
			{Type: "trace", Valid: tracedata.ValidTraceID},
			{Type: "span", Valid: tracedata.ValidSpanID},
		}

		for _, testCase := range testCases {
			t.Run("of type "+testCase.Type, func(t *testing.T) {
				out, _, err := execute(context.Background(), []string{"generate-id", "--type", testCase.Type}, environ())
				if !assert.Nil(t, err) {
					return
				}
				if !assert.True(t, testCase.Valid(strings.TrimSpace(out))) {
					return
				}
			})
		}
	})

	t.Run("will return an UnknownIDTypeError", func(t *testing.T) {
		t.Run("if the type is not trace or span", func(t *testing.T) {
			_, _, err := execute(context.Background(), []string{"generate-id", "--type", "parent"}, environ())

			var ierr UnknownIDTypeError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "parent", ierr.Type) {
				return
			}
		})
	})
}

func TestExport(t *testing.T) {
	t.Run("will export the span to the collector", func(t *testing.T) {
		c := &collector{}
		srv := httptest.NewServer(c)
		defer srv.Close()

		out, _, err := execute(
			context.Background(),
			[]string{
				"export",
				"--trace-id", testTraceID,
				"--span-id", testSpanID,
				"--name", "compile",
				"--kind", "client",
				"--start-time-millis", "1700000000000",
				"--end-time-secs", "1700000001",
				"--status-code", "ERROR",
				"--attributes", "retries=3,cached=false",
				"--traceparent-print",
			},
			environ(
				"OTEL_EXPORTER_OTLP_ENDPOINT="+srv.URL,
				"OTEL_SERVICE_NAME=build",
			),
		)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "00-"+testTraceID+"-"+testSpanID+"-01\n", out) {
			return
		}

		spans := c.spans()
		if !assert.Len(t, spans, 1) {
			return
		}
		span := spans[0]
		if !assert.Equal(t, "compile", span.Name()) {
			return
		}
		if !assert.Equal(t, testTraceID, span.TraceID().String()) {
			return
		}
		if !assert.Equal(t, ptrace.SpanKindClient, span.Kind()) {
			return
		}
		if !assert.Equal(t, uint64(1700000000000000000), uint64(span.StartTimestamp())) {
			return
		}
		if !assert.Equal(t, uint64(1700000001000000000), uint64(span.EndTimestamp())) {
			return
		}
		retries, ok := span.Attributes().Get("retries")
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, int64(3), retries.Int()) {
			return
		}
	})

	t.Run("will take the trace and parent span id from the traceparent", func(t *testing.T) {
		c := &collector{}
		srv := httptest.NewServer(c)
		defer srv.Close()

		_, _, err := execute(
			context.Background(),
			[]string{
				"export",
				"--name", "test",
				"--service-name", "ci",
				"--start-time-nanos", "1",
				"--end-time-nanos", "2",
			},
			environ(
				"OTEL_EXPORTER_OTLP_ENDPOINT="+srv.URL,
				"TRACEPARENT=00-"+testTraceID+"-b7ad6b7169203331-01",
			),
		)
		if !assert.Nil(t, err) {
			return
		}

		spans := c.spans()
		if !assert.Len(t, spans, 1) {
			return
		}
		if !assert.Equal(t, testTraceID, spans[0].TraceID().String()) {
			return
		}
		if !assert.Equal(t, "b7ad6b7169203331", spans[0].ParentSpanID().String()) {
			return
		}
	})

	t.Run("will mask exporter header values in verbose logs", func(t *testing.T) {
		c := &collector{}
		srv := httptest.NewServer(c)
		defer srv.Close()

		_, stderr, err := execute(
			context.Background(),
			[]string{
				"export",
				"--verbose",
				"--trace-id", testTraceID,
				"--span-id", testSpanID,
				"--name", "test",
				"--service-name", "ci",
				"--start-time-nanos", "1",
				"--end-time-nanos", "2",
			},
			environ(
				"OTEL_EXPORTER_OTLP_ENDPOINT="+srv.URL,
				"OTEL_EXPORTER_OTLP_HEADERS=x-api-key=hunter2",
			),
		)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Contains(t, stderr, "x-api-key=****") {
			return
		}
		if !assert.NotContains(t, stderr, "hunter2") {
			return
		}
	})

	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if the collector rejects the span", func(t *testing.T) {
			c := &collector{status: http.StatusServiceUnavailable}
			srv := httptest.NewServer(c)
			defer srv.Close()

			out, stderr, err := execute(
				context.Background(),
				[]string{
					"export",
					"--trace-id", testTraceID,
					"--span-id", testSpanID,
					"--name", "test",
					"--start-time-nanos", "1",
					"--end-time-nanos", "2",
					"--traceparent-print",
				},
				environ(
					"OTEL_EXPORTER_OTLP_ENDPOINT="+srv.URL,
					"OTEL_CLI_SERVICE_NAME=ci",
				),
			)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Contains(t, out, testTraceID) {
				return
			}
			if !assert.Contains(t, stderr, "unable to export span") {
				return
			}
		})
	})

	t.Run("will return a MissingOptionError", func(t *testing.T) {
		testCases := []struct {
			Name    string
			Args    []string
			Option  string
			Environ []string
		}{
			{
				Name:   "if there is no trace id",
				Args:   []string{"export", "--name", "test", "--service-name", "ci", "--start-time-nanos", "1", "--end-time-nanos", "2"},
				Option: "trace id",
			},
			{
				Name:    "if the traceparent is disabled and there is no trace id",
				Args:    []string{"export", "--name", "test", "--service-name", "ci", "--start-time-nanos", "1", "--end-time-nanos", "2", "--traceparent-disable"},
				Option:  "trace id",
				Environ: []string{"TRACEPARENT=00-" + testTraceID + "-b7ad6b7169203331-01"},
			},
			{
				Name:   "if there is no start time",
				Args:   []string{"export", "-t", testTraceID, "--name", "test", "--service-name", "ci", "--end-time-nanos", "2"},
				Option: "span start time",
			},
			{
				Name:   "if there is no service name",
				Args:   []string{"export", "-t", testTraceID, "--name", "test", "--start-time-nanos", "1", "--end-time-nanos", "2"},
				Option: "service name",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, _, err := execute(context.Background(), testCase.Args, environ(testCase.Environ...))

				var merr MissingOptionError
				if !assert.ErrorAs(t, err, &merr) {
					return
				}
				if !assert.Equal(t, testCase.Option, merr.Option) {
					return
				}
				var berr app.AppBuildError
				if !assert.ErrorAs(t, err, &berr) {
					return
				}
			})
		}
	})

	t.Run("will return an InvalidIDError", func(t *testing.T) {
		t.Run("if the traceparent is malformed", func(t *testing.T) {
			_, _, err := execute(
				context.Background(),
				[]string{"export", "--name", "test", "--service-name", "ci", "--start-time-nanos", "1", "--end-time-nanos", "2"},
				environ("TRACEPARENT=not-a-traceparent"),
			)

			var ierr tracedata.InvalidIDError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
		})
	})

	t.Run("will hand the span to the relay", func(t *testing.T) {
		t.Run("if a server port is configured", func(t *testing.T) {
			received := make(chan tracedata.TraceData, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var d tracedata.TraceData
				err := json.NewDecoder(r.Body).Decode(&d)
				if err != nil || r.URL.Path != "/export" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				received <- d
			}))
			defer srv.Close()

			_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
			require.Nil(t, err)

			fsys := fstest.MapFS{
				"otel-cli.yaml": &fstest.MapFile{
					Data: []byte("server:\n  host: 127.0.0.1\n"),
				},
			}

			_, _, err = execute(
				context.Background(),
				[]string{
					"export",
					"--config", "otel-cli.yaml",
					"-t", testTraceID,
					"--name", "test",
					"--start-time-nanos", "1",
					"--end-time-nanos", "2",
					"--resource-attributes", "service.name=ignored,env=ci",
				},
				FS(fsys),
				environ(
					"OTEL_SERVICE_NAME=ci",
					"OTEL_CLI_SERVER_PORT="+port,
				),
			)
			if !assert.Nil(t, err) {
				return
			}

			select {
			case d := <-received:
				if !assert.Equal(t, "ci", d.Metadata.ServiceName) {
					return
				}
				if !assert.Equal(t, []tracedata.Attribute{{Key: "env", Value: tracedata.StringValue("ci")}}, d.Metadata.ResourceAttributes) {
					return
				}
				if !assert.Equal(t, testTraceID, d.Spans[0].TraceID) {
					return
				}
				if !assert.True(t, tracedata.ValidSpanID(d.Spans[0].SpanID)) {
					return
				}
			case <-time.After(5 * time.Second):
				t.Fatal("relay never received the span")
			}
		})
	})
}

func freePort(t *testing.T) string {
	ls, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer ls.Close()

	_, port, err := net.SplitHostPort(ls.Addr().String())
	require.Nil(t, err)
	return port
}

func TestStartServer(t *testing.T) {
	t.Run("will relay spans until shut down", func(t *testing.T) {
		c := &collector{}
		srv := httptest.NewServer(c)
		defer srv.Close()

		port := freePort(t)
		env := environ(
			"OTEL_EXPORTER_OTLP_ENDPOINT="+srv.URL,
			"OTEL_SERVICE_NAME=ci",
			"OTEL_CLI_SERVER_PORT="+port,
			"OTEL_CLI_SERVER_PPID=0",
		)
		terminated := make(chan int, 1)
		registry := lifecycle.NewRegistry(lifecycle.ExitFunc(func(int) {}))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serverErr := make(chan error, 1)
		go func() {
			_, _, err := execute(
				ctx,
				[]string{"start-server"},
				env,
				Terminator(func(code int) { terminated <- code }),
				Registry(registry),
			)
			serverErr <- err
		}()

		require.Eventually(t, func() bool {
			conn, err := net.Dial("tcp", net.JoinHostPort("localhost", port))
			if err != nil {
				return false
			}
			conn.Close()
			return true
		}, 5*time.Second, 10*time.Millisecond)

		_, _, err := execute(
			context.Background(),
			[]string{"export", "-t", testTraceID, "--name", "relayed", "--start-time-nanos", "1", "--end-time-nanos", "2"},
			env,
		)
		if !assert.Nil(t, err) {
			return
		}

		_, _, err = execute(context.Background(), []string{"shutdown-server"}, env)
		if !assert.Nil(t, err) {
			return
		}

		spans := c.spans()
		if !assert.Len(t, spans, 1) {
			return
		}
		if !assert.Equal(t, "relayed", spans[0].Name()) {
			return
		}

		select {
		case code := <-terminated:
			if !assert.Equal(t, 0, code) {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("relay never terminated")
		}

		cancel()
		select {
		case err := <-serverErr:
			if !assert.Nil(t, err) {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("start-server never returned")
		}
	})

	t.Run("will return a MissingEndpointError", func(t *testing.T) {
		t.Run("if no endpoint is configured", func(t *testing.T) {
			_, _, err := execute(context.Background(), []string{"start-server"}, environ())

			var merr exporter.MissingEndpointError
			if !assert.ErrorAs(t, err, &merr) {
				return
			}
		})
	})

	t.Run("will spawn a detached relay", func(t *testing.T) {
		t.Run("if --detach is given", func(t *testing.T) {
			var spawned *exec.Cmd
			_, _, err := execute(
				context.Background(),
				[]string{"start-server", "--detach", "--server-port", "9999", "-H", "x-api-key=secret"},
				environ("OTEL_EXPORTER_OTLP_ENDPOINT=http://collector:4318"),
				Spawn(func(cmd *exec.Cmd) error {
					spawned = cmd
					return nil
				}),
			)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.NotNil(t, spawned) {
				return
			}
			if !assert.Equal(t, "start-server", spawned.Args[len(spawned.Args)-1]) {
				return
			}
			if !assert.Contains(t, spawned.Env, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT=http://collector:4318/v1/traces") {
				return
			}
			if !assert.Contains(t, spawned.Env, "OTEL_CLI_SERVER_PORT=9999") {
				return
			}
			if !assert.Contains(t, spawned.Env, "OTEL_EXPORTER_OTLP_HEADERS=x-api-key=secret") {
				return
			}
			if !assert.Contains(t, spawned.Env, "OTEL_CLI_SERVER_PPID="+strconv.Itoa(os.Getppid())) {
				return
			}
		})
	})
}

func TestShutdownServer(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if no relay is listening", func(t *testing.T) {
			_, _, err := execute(
				context.Background(),
				[]string{"shutdown-server", "--server-port", freePort(t)},
				environ(),
			)
			if !assert.Error(t, err) {
				return
			}
		})
	})
}
