package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapsight/client/internal/imaging"
)

// Uploader performs the direct transfer to object storage using a
// presigned URL. Slots are single-use: a failed attempt fails the whole
// run and the caller must acquire a fresh slot before trying again.
type Uploader struct {
	httpClient *http.Client
}

// New constructs an Uploader. A nil client gets a transport-default
// timeout; the upload step has no dedicated deadline of its own.
func New(httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Uploader{httpClient: httpClient}
}

// Put uploads f to uploadURL with the file's content type. onProgress,
// when non-nil, receives monotonically non-decreasing percentages in
// [0,100]; 100 is reported before Put returns nil.
func (u *Uploader) Put(ctx context.Context, uploadURL string, f imaging.File, onProgress func(percent int)) error {
	body := newProgressReader(bytes.NewReader(f.Data), f.Size(), onProgress)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", f.ContentType)
	req.ContentLength = f.Size()

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload %s: storage responded %d", f.Name, resp.StatusCode)
	}

	body.finish()
	return nil
}

// progressReader reports transfer progress as whole percentages while the
// HTTP transport drains it.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	last  int
	emit  func(int)
}

func newProgressReader(r io.Reader, total int64, emit func(int)) *progressReader {
	return &progressReader{r: r, total: total, last: -1, emit: emit}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		p.report()
	}
	return n, err
}

// report emits the current percentage if it advanced. Percentages never
// decrease, and 100 is withheld until finish so retries of a rewound body
// cannot claim completion early.
func (p *progressReader) report() {
	if p.emit == nil || p.total <= 0 {
		return
	}
	percent := int(p.sent * 100 / p.total)
	if percent > 99 {
		percent = 99
	}
	if percent > p.last {
		p.last = percent
		p.emit(percent)
	}
}

// finish reports completion once the storage service acknowledged receipt.
func (p *progressReader) finish() {
	if p.emit == nil {
		return
	}
	if p.last < 100 {
		p.last = 100
		p.emit(100)
	}
}
