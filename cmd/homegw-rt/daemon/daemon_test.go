package daemon

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
	"go.bug.st/f"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

const pinsJSON = `{"gpio": {"pins": {"modem": {"chip": 0, "offset": 3, "direction": "out"}}}}`

func TestLoadDocument(t *testing.T) {
	dir := paths.New(t.TempDir())
	yamlFile := dir.Join("pins.yaml")
	require.NoError(t, yamlFile.WriteFile([]byte("gpio:\n  pins:\n    led: {chip: 0, offset: 1, direction: out, function: liveness_blink}\n")))

	testCases := []struct {
		name       string
		configFile string
		stdin      io.Reader
		wantPins   []string
		wantLog    string
	}{
		{name: "stdin", stdin: strings.NewReader(pinsJSON), wantPins: []string{"modem"}},
		{name: "empty stdin", stdin: strings.NewReader(""), wantPins: []string{}},
		{name: "yaml file", configFile: yamlFile.String(), stdin: strings.NewReader(pinsJSON), wantPins: []string{"led"}},
		{name: "broken stdin", stdin: strings.NewReader("{"), wantPins: []string{}, wantLog: "unable to load pin configuration"},
		{name: "missing file", configFile: dir.Join("nope.json").String(), wantPins: []string{}, wantLog: "unable to load pin configuration"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := testLogger(&buf)

			doc := loadDocument(logger, tc.configFile, tc.stdin)
			require.NotNil(t, doc)
			names := []string{}
			for _, p := range doc.Pins(logger) {
				names = append(names, p.Name)
			}
			require.Equal(t, tc.wantPins, names)
			if tc.wantLog != "" {
				require.Contains(t, buf.String(), tc.wantLog)
			}
		})
	}
}

func TestListenUnixReplacesStaleSocket(t *testing.T) {
	socket := paths.New(t.TempDir()).Join("run", "rt.sock")
	require.NoError(t, socket.Parent().MkdirAll())
	require.NoError(t, socket.WriteFile(nil))

	ln, err := listenUnix(socket)
	require.NoError(t, err)
	defer ln.Close()
	require.Equal(t, "unix", ln.Addr().Network())
	require.Equal(t, socket.String(), ln.Addr().String())
}

func TestServeStopsOnCancel(t *testing.T) {
	socket := paths.New(t.TempDir()).Join("rt.sock")
	ln := f.Must(listenUnix(socket))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	c := http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket.String())
		},
	}}
	resp, err := c.Get("http://homegw-rt/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
