// Package registry is a client for the device registry REST surface used by
// the sync: bulk import/export jobs and the device query.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/connstr"
	"github.com/yourorg/hubsync/internal/types"
)

// APIVersion is sent with every request.
const APIVersion = "2021-04-12"

const tokenTTL = time.Hour

// Client talks to one registry service.
type Client struct {
	host    string
	keyName string
	key     []byte
	baseURL string
	http    *http.Client
	now     func() time.Time
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithBaseURL overrides https://<host>, e.g. for a local test server.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithClock replaces the clock used for token expiry.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a client for the registry described by cs.
func New(cs connstr.Registry, opts ...Option) *Client {
	c := &Client{
		host:    cs.HostName,
		keyName: cs.KeyName,
		key:     cs.Key,
		baseURL: "https://" + cs.HostName,
		http:    &http.Client{Timeout: 60 * time.Second},
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Host returns the registry host name.
func (c *Client) Host() string { return c.host }

// jobProperties is the wire form of a bulk job.
type jobProperties struct {
	JobID                  string `json:"jobId,omitempty"`
	Type                   string `json:"type"`
	Status                 string `json:"status,omitempty"`
	Progress               int    `json:"progress,omitempty"`
	InputBlobContainerURI  string `json:"inputBlobContainerUri,omitempty"`
	OutputBlobContainerURI string `json:"outputBlobContainerUri,omitempty"`
	ExcludeKeysInExport    *bool  `json:"excludeKeysInExport,omitempty"`
	FailureReason          string `json:"failureReason,omitempty"`
	StartTimeUTC           string `json:"startTimeUtc,omitempty"`
	EndTimeUTC             string `json:"endTimeUtc,omitempty"`
}

func (p jobProperties) toJob() types.Job {
	j := types.Job{
		ID:            p.JobID,
		Kind:          types.JobKind(p.Type),
		Status:        types.ParseJobStatus(p.Status),
		RawStatus:     p.Status,
		Progress:      p.Progress,
		InputURI:      p.InputBlobContainerURI,
		OutputURI:     p.OutputBlobContainerURI,
		FailureReason: p.FailureReason,
		StartTime:     parseServiceTime(p.StartTimeUTC),
		EndTime:       parseServiceTime(p.EndTimeUTC),
	}
	if p.ExcludeKeysInExport != nil {
		j.ExcludeKeys = *p.ExcludeKeysInExport
	}
	return j
}

// parseServiceTime accepts RFC3339 and the zone-less form the service uses
// for unset times; failures yield the zero time.
func parseServiceTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() <= 1 {
				return time.Time{}
			}
			return t.UTC()
		}
	}
	return time.Time{}
}

// CreateExportJob starts exporting every device identity into the
// container at outputURI. excludeKeys=false keeps authentication keys.
func (c *Client) CreateExportJob(ctx context.Context, outputURI string, excludeKeys bool) (types.Job, error) {
	req := jobProperties{
		Type:                   string(types.JobKindExport),
		OutputBlobContainerURI: outputURI,
		ExcludeKeysInExport:    &excludeKeys,
	}
	return c.createJob(ctx, req)
}

// CreateImportJob starts importing the identities found at inputURI; the
// service writes its processing log to outputURI.
func (c *Client) CreateImportJob(ctx context.Context, inputURI, outputURI string) (types.Job, error) {
	req := jobProperties{
		Type:                   string(types.JobKindImport),
		InputBlobContainerURI:  inputURI,
		OutputBlobContainerURI: outputURI,
	}
	return c.createJob(ctx, req)
}

func (c *Client) createJob(ctx context.Context, req jobProperties) (types.Job, error) {
	var out jobProperties
	if _, err := c.do(ctx, http.MethodPost, "/jobs/create", req, nil, &out); err != nil {
		return types.Job{}, err
	}
	if out.JobID == "" {
		return types.Job{}, fmt.Errorf("registry: create %s job returned no job id", req.Type)
	}
	return out.toJob(), nil
}

// GetJob fetches the current state of job id.
func (c *Client) GetJob(ctx context.Context, id string) (types.Job, error) {
	var out jobProperties
	if _, err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return types.Job{}, err
	}
	return out.toJob(), nil
}

// CancelJob asks the service to cancel job id.
func (c *Client) CancelJob(ctx context.Context, id string) (types.Job, error) {
	var out jobProperties
	if _, err := c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return types.Job{}, err
	}
	return out.toJob(), nil
}

// do sends one request. body and out are JSON encoded/decoded when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, hdr http.Header, out any) (http.Header, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	u := c.baseURL + path + "?api-version=" + APIVersion
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", sasToken(c.host, c.keyName, c.key, c.now().Add(tokenTTL)))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("registry request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", c.now().Sub(start)),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("registry %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseStatusError(resp.StatusCode, data)
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("registry %s %s: decode: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

// Query is a lazily paged device query.
type Query struct {
	c            *Client
	query        string
	pageSize     int
	continuation string
	started      bool
}

// Query prepares q (e.g. "select * from devices"). pageSize <= 0 lets the
// service choose.
func (c *Client) Query(q string, pageSize int) *Query {
	return &Query{c: c, query: q, pageSize: pageSize}
}

// HasMoreResults reports whether Next may return another page.
func (q *Query) HasMoreResults() bool {
	return !q.started || q.continuation != ""
}

// Next fetches the following page.
func (q *Query) Next(ctx context.Context) ([]types.DeviceIdentity, error) {
	if !q.HasMoreResults() {
		return nil, nil
	}
	hdr := http.Header{}
	if q.pageSize > 0 {
		hdr.Set("x-ms-max-item-count", strconv.Itoa(q.pageSize))
	}
	if q.continuation != "" {
		hdr.Set("x-ms-continuation", q.continuation)
	}
	var page []json.RawMessage
	body := map[string]string{"query": q.query}
	respHdr, err := q.c.do(ctx, http.MethodPost, "/devices/query", body, hdr, &page)
	if err != nil {
		return nil, err
	}
	q.started = true
	q.continuation = respHdr.Get("x-ms-continuation")

	out := make([]types.DeviceIdentity, 0, len(page))
	for _, raw := range page {
		var head struct {
			DeviceID string `json:"deviceId"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("registry query: decode twin: %w", err)
		}
		out = append(out, types.DeviceIdentity{DeviceID: head.DeviceID, Properties: raw})
	}
	return out, nil
}
