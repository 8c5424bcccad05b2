// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// FakeRegistry serves scripted job status sequences. Each GetJob call for a
// job consumes the next status; the last one repeats.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRegistry struct {
	mu sync.Mutex

	// NextIDs are handed out to created jobs in order.
	NextIDs []string
	// Statuses maps a job id to the statuses returned by successive GetJob calls.
	Statuses map[string][]types.JobStatus
	// GetErrs maps a job id to errors returned (in order) before any status.
	GetErrs map[string][]error
	// CreateErr, when set, fails every create call.
	CreateErr error

	Exports []ExportCall
	Imports []ImportCall
	Gets    []string

	Devices  []types.DeviceIdentity
	PageSize int
}

// ExportCall records a CreateExportJob call.
type ExportCall struct {
	OutputURI   string
	ExcludeKeys bool
}

// ImportCall records a CreateImportJob call.
type ImportCall struct {
	InputURI  string
	OutputURI string
}

func (f *FakeRegistry) nextID() string {
	if len(f.NextIDs) == 0 {
		return fmt.Sprintf("job-%d", len(f.Exports)+len(f.Imports))
	}
	id := f.NextIDs[0]
	f.NextIDs = f.NextIDs[1:]
	return id
}

func (f *FakeRegistry) CreateExportJob(ctx context.Context, outputURI string, excludeKeys bool) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return types.Job{}, f.CreateErr
	}
	f.Exports = append(f.Exports, ExportCall{OutputURI: outputURI, ExcludeKeys: excludeKeys})
	return types.Job{
		ID:          f.nextID(),
		Kind:        types.JobKindExport,
		Status:      types.JobStatusRunning,
		OutputURI:   outputURI,
		ExcludeKeys: excludeKeys,
	}, nil
}

func (f *FakeRegistry) CreateImportJob(ctx context.Context, inputURI, outputURI string) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return types.Job{}, f.CreateErr
	}
	f.Imports = append(f.Imports, ImportCall{InputURI: inputURI, OutputURI: outputURI})
	return types.Job{
		ID:        f.nextID(),
		Kind:      types.JobKindImport,
		Status:    types.JobStatusRunning,
		InputURI:  inputURI,
		OutputURI: outputURI,
	}, nil
}

func (f *FakeRegistry) GetJob(ctx context.Context, id string) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets = append(f.Gets, id)
	if errs := f.GetErrs[id]; len(errs) > 0 {
		f.GetErrs[id] = errs[1:]
		return types.Job{}, errs[0]
	}
	seq := f.Statuses[id]
	if len(seq) == 0 {
		return types.Job{}, fmt.Errorf("fake registry: no script for job %q", id)
	}
	st := seq[0]
	if len(seq) > 1 {
		f.Statuses[id] = seq[1:]
	}
	return types.Job{ID: id, Status: st, RawStatus: string(st)}, nil
}

// GetCount returns how many status checks were made for id.
func (f *FakeRegistry) GetCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, g := range f.Gets {
		if g == id {
			n++
		}
	}
	return n
}

// FakeQuery pages through FakeRegistry.Devices.
type FakeQuery struct {
	f      *FakeRegistry
	offset int
	Pages  int
}

// Query starts a paged listing of the fake's devices.
func (f *FakeRegistry) Query(q string, pageSize int) *FakeQuery {
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	return &FakeQuery{f: f}
}

func (q *FakeQuery) HasMoreResults() bool {
	return q.Pages == 0 || q.offset < len(q.f.Devices)
}

func (q *FakeQuery) Next(ctx context.Context) ([]types.DeviceIdentity, error) {
	size := q.f.PageSize
	if size <= 0 {
		size = len(q.f.Devices)
	}
	end := q.offset + size
	if end > len(q.f.Devices) {
		end = len(q.f.Devices)
	}
	page := q.f.Devices[q.offset:end]
	q.offset = end
	q.Pages++
	return page, nil
}

// Sleeps records requested waits and returns immediately.
type Sleeps struct {
	mu sync.Mutex
	D  []time.Duration
	// CancelAfter, when > 0, calls Cancel once that many sleeps were requested.
	CancelAfter int
	Cancel      context.CancelFunc
}

func (s *Sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.D = append(s.D, d)
	n := len(s.D)
	s.mu.Unlock()
	if s.CancelAfter > 0 && n >= s.CancelAfter && s.Cancel != nil {
		s.Cancel()
	}
	return ctx.Err()
}

// Durations returns a copy of the recorded waits.
func (s *Sleeps) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.D...)
}

// FakeProvisioner hands out unsigned scoped locations.
type FakeProvisioner struct {
	mu        sync.Mutex
	Now       time.Time
	Ensured   []string
	Issued    []types.ScopedLocation
	EnsureErr error
}

func (p *FakeProvisioner) EnsureContainer(ctx context.Context, name string) (storage.ContainerRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EnsureErr != nil {
		return storage.ContainerRef{}, p.EnsureErr
	}
	p.Ensured = append(p.Ensured, name)
	return storage.ContainerRef{Name: name, URL: "https://acct.blob.example/" + name}, nil
}

func (p *FakeProvisioner) IssueScopedURI(ref storage.ContainerRef, perms types.Permissions, ttl time.Duration) (types.ScopedLocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ttl <= 0 {
		return types.ScopedLocation{}, storage.ErrInvalidTTL
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	exp := now.UTC().Truncate(time.Second).Add(ttl)
	loc := types.ScopedLocation{
		Container:   ref.Name,
		BaseURI:     ref.URL,
		Permissions: perms,
		Expiry:      exp,
		URI:         ref.URL + "?sp=" + perms.String() + "&se=" + exp.Format("2006-01-02T15:04:05Z") + "&sr=c&sig=fake",
	}
	p.Issued = append(p.Issued, loc)
	return loc, nil
}
