package realtime

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/valyala/fasthttp"
)

const defaultProbeTimeout = 3 * time.Second

// Probe sends a plain GET to the HTTP form of a websocket endpoint. Any HTTP
// answer counts as reachable; the middle tier rejects non-upgrade requests
// with a 4xx, which still proves it is listening.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u.String())
	req.Header.SetMethod(fasthttp.MethodGet)

	errC := make(chan error, 1)
	go func() {
		errC <- fasthttp.DoTimeout(req, resp, timeout)
	}()
	select {
	case <-ctx.Done():
		// resp is still owned by the request goroutine
		<-errC
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("%w: %s: %w", shared.ErrBackendUnreachable, u.Host, err)
		}
	}
	if resp.StatusCode() >= fasthttp.StatusInternalServerError {
		return fmt.Errorf("%w: %s answered %d", shared.ErrBackendUnreachable, u.Host, resp.StatusCode())
	}
	return nil
}
