package bulletin

import (
	"context"
	"math/rand"
	"net/http/cookiejar"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bulletin-scraper/lib/restyutil"
	"bulletin-scraper/lib/telemetry"
)

var tracer = otel.Tracer("scrapers/bulletin")

const DefaultBaseURL = "https://bulletins.psu.edu/university-course-descriptions/"

type Client struct {
	Http *resty.Client
	gate *delayGate
}

type ClientOptions struct {
	// MinDelay/MaxDelay bound the politeness pause between any two
	// requests made through this client, shared across goroutines.
	// Defaults to 1-2s, matching what the bulletin site tolerates.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// RetryWait is the base wait between retry attempts. Defaults
	// to 500ms and grows exponentially per resty's backoff.
	RetryWait time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.MinDelay == 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay * 2
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = time.Millisecond * 500
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(opts.Timeout)

	// 3 attempts total on transport errors and 5xx. 4xx means the
	// server understood us and said no; asking again won't change that.
	client.SetRetryCount(2)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetRetryMaxWaitTime(opts.RetryWait * 20)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	telemetry.InstrumentResty(client, "scrapers/bulletin/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	return &Client{
		Http: client,
		gate: newDelayGate(opts.MinDelay, opts.MaxDelay),
	}, nil
}

// Page fetches one bulletin page. Failures come back as *FetchError;
// check Permanent() to decide whether the URL is worth revisiting.
func (c *Client) Page(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:Page")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "url",
		Value: attribute.StringValue(pageURL),
	})

	if err := c.gate.wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled while waiting for request slot")
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		fetchErr := &FetchError{
			URL:      pageURL,
			Attempts: attemptCount(res),
			Err:      err,
		}
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, fetchErr
	}
	if res.StatusCode() >= 400 {
		fetchErr := &FetchError{
			URL:        pageURL,
			StatusCode: res.StatusCode(),
			Attempts:   attemptCount(res),
		}
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "bad response status")
		return nil, fetchErr
	}

	return res.Body(), nil
}

func attemptCount(res *resty.Response) int {
	if res == nil || res.Request == nil {
		return 1
	}
	return res.Request.Attempt
}

// delayGate spaces requests out so a worker pool never hits the site
// faster than one request per MinDelay..MaxDelay, no matter how many
// goroutines share the client.
type delayGate struct {
	mu   sync.Mutex
	next time.Time
	min  time.Duration
	max  time.Duration
}

func newDelayGate(min, max time.Duration) *delayGate {
	return &delayGate{min: min, max: max}
}

func (g *delayGate) wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	at := g.next
	if at.Before(now) {
		at = now
	}
	delay := g.min
	if g.max > g.min {
		delay += time.Duration(rand.Int63n(int64(g.max - g.min)))
	}
	g.next = at.Add(delay)
	g.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
