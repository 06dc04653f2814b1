package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/okinaau/iloader/internal/utils"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/net/http/httpproxy"
)

// ErrDownloadFailed is returned for transport errors and non 2xx replies.
var ErrDownloadFailed = errors.New("download failed")

// Downloader fetches release artifacts to local files.
type Downloader struct {
	progress  io.Writer
	userAgent string

	client *http.Client
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithProgress draws a progress bar to w when the size is known.
func WithProgress(w io.Writer) Option {
	return func(d *Downloader) {
		d.progress = w
	}
}

// WithUserAgent overrides the random browser user agent.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// NewDownloader creates a new downloader
func NewDownloader(proxy string, insecure bool, opts ...Option) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             GetProxy(proxy),
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: insecure},
				ForceAttemptHTTP2: true,
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetProxy takes either an input string or read the enviornment and returns a proxy function
func GetProxy(proxy string) func(*http.Request) (*url.URL, error) {
	if len(proxy) > 0 {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.WithError(err).Error("bad proxy url")
			return http.ProxyFromEnvironment
		}
		log.Debugf("proxy set to: %s", proxyURL)
		return http.ProxyURL(proxyURL)
	}

	conf := httpproxy.FromEnvironment()
	if len(conf.HTTPProxy) > 0 || len(conf.HTTPSProxy) > 0 {
		log.WithFields(log.Fields{
			"http_proxy":  conf.HTTPProxy,
			"https_proxy": conf.HTTPSProxy,
			"no_proxy":    conf.NoProxy,
		}).Debugf("proxy info from environment")
	}

	return http.ProxyFromEnvironment
}

// Download writes the body of url to dest. The body is streamed into
// dest.download which is renamed once complete, so dest is never partial.
// Exactly one request is made; retrying is left to the caller.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create http request")
	}
	ua := d.userAgent
	if ua == "" {
		ua = utils.RandomAgent()
	}
	req.Header.Add("User-Agent", ua)

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) {
			return fmt.Errorf("%w: connection reset: %w", ErrDownloadFailed, err)
		}
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned HTTP %s", ErrDownloadFailed, url, resp.Status)
	}

	tmp := dest + ".download"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", tmp)
	}

	var p *mpb.Progress
	var reader io.ReadCloser = resp.Body
	if d.progress != nil && resp.ContentLength > 0 {
		p = mpb.NewWithContext(ctx,
			mpb.WithOutput(d.progress),
			mpb.WithWidth(60),
			mpb.WithRefreshRate(180*time.Millisecond),
		)
		bar := p.New(resp.ContentLength,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
			mpb.PrependDecorators(
				decor.CountersKibiByte("\t% .2f / % .2f"),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "✅ "),
				decor.Name(" ] "),
				decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncWidth),
			),
		)
		reader = bar.ProxyReader(resp.Body)
	}
	defer reader.Close()

	n, err := io.Copy(out, reader)
	if p != nil {
		p.Wait()
	}
	if errors.Is(err, syscall.ECONNRESET) {
		err = fmt.Errorf("connection reset: %w", err)
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "cannot rename %s", tmp)
	}
	utils.Indent(log.WithFields(log.Fields{
		"file": dest,
		"size": humanize.Bytes(uint64(n)),
	}).Debug, 2)("Downloaded")

	return nil
}
