package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/connstr"
	"github.com/yourorg/hubsync/internal/normalize"
	"github.com/yourorg/hubsync/internal/types"
)

// containerAPI is the subset of the container client we use; allows test fakes.
type containerAPI interface {
	Create(ctx context.Context, o *container.CreateOptions) (container.CreateResponse, error)
	URL() string
}

// newContainerClient constructs a container client; overridden in tests.
var newContainerClient = func(containerURL string, cred *azblob.SharedKeyCredential) (containerAPI, error) {
	return container.NewClientWithSharedKeyCredential(containerURL, cred, &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    4,
				RetryDelay:    500 * time.Millisecond,
				MaxRetryDelay: 30 * time.Second,
			},
		},
	})
}

// BlobProvisioner provisions blob containers and signs service SAS tokens
// with the account shared key.
type BlobProvisioner struct {
	endpoint string
	protocol sas.Protocol
	cred     *azblob.SharedKeyCredential
	now      func() time.Time
	log      *zap.Logger
}

// Option customizes a BlobProvisioner.
type Option func(*BlobProvisioner)

// WithClock replaces the issuance clock.
func WithClock(now func() time.Time) Option {
	return func(p *BlobProvisioner) { p.now = now }
}

// WithLogger sets the logger; nil disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(p *BlobProvisioner) {
		if l != nil {
			p.log = l
		}
	}
}

// NewBlobProvisioner builds a provisioner for the account in st.
func NewBlobProvisioner(st connstr.Storage, opts ...Option) (*BlobProvisioner, error) {
	cred, err := azblob.NewSharedKeyCredential(st.AccountName, st.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("storage credential: %w", err)
	}
	p := &BlobProvisioner{
		endpoint: st.BlobURL(),
		protocol: sas.ProtocolHTTPS,
		cred:     cred,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	if strings.HasPrefix(p.endpoint, "http://") {
		p.protocol = sas.ProtocolHTTPSandHTTP
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// EnsureContainer creates name if it does not exist yet.
func (p *BlobProvisioner) EnsureContainer(ctx context.Context, name string) (ContainerRef, error) {
	if err := normalize.ContainerName(name); err != nil {
		return ContainerRef{}, fmt.Errorf("container %q: %w", name, err)
	}
	cc, err := newContainerClient(p.endpoint+"/"+name, p.cred)
	if err != nil {
		return ContainerRef{}, fmt.Errorf("container client: %w", err)
	}
	ref := ContainerRef{Name: name, URL: cc.URL()}
	_, err = cc.Create(ctx, nil)
	switch {
	case err == nil:
		p.log.Info("container created", zap.String("container", name))
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		p.log.Debug("container exists", zap.String("container", name))
	default:
		return ContainerRef{}, fmt.Errorf("create container %q: %w", name, err)
	}
	return ref, nil
}

// IssueScopedURI signs a container SAS. Issuance time is truncated to whole
// seconds, the resolution of the token's expiry field, so the expiry decodes
// back to exactly issuance+ttl.
func (p *BlobProvisioner) IssueScopedURI(ref ContainerRef, perms types.Permissions, ttl time.Duration) (types.ScopedLocation, error) {
	if ttl <= 0 {
		return types.ScopedLocation{}, ErrInvalidTTL
	}
	if perms == 0 {
		return types.ScopedLocation{}, ErrNoPermissions
	}
	expiry := p.now().UTC().Truncate(time.Second).Add(ttl).Truncate(time.Second)
	cp := &sas.ContainerPermissions{
		Read:   perms.Has(types.PermRead),
		Write:  perms.Has(types.PermWrite),
		Delete: perms.Has(types.PermDelete),
	}
	qp, err := sas.BlobSignatureValues{
		Protocol:      p.protocol,
		ExpiryTime:    expiry,
		Permissions:   cp.String(),
		ContainerName: ref.Name,
	}.SignWithSharedKey(p.cred)
	if err != nil {
		return types.ScopedLocation{}, fmt.Errorf("sign scoped uri: %w", err)
	}
	return types.ScopedLocation{
		Container:   ref.Name,
		BaseURI:     ref.URL,
		Permissions: perms,
		Expiry:      expiry,
		URI:         ref.URL + "?" + qp.Encode(),
	}, nil
}

// sasTimeFormat is the layout of the se/st query fields.
const sasTimeFormat = "2006-01-02T15:04:05Z"

// DecodeScopedURI reads the permission set and expiry back out of a scoped
// URI.
func DecodeScopedURI(uri string) (types.Permissions, time.Time, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, time.Time{}, err
	}
	q := u.Query()
	sp, se := q.Get("sp"), q.Get("se")
	if sp == "" || se == "" {
		return 0, time.Time{}, ErrNotScoped
	}
	perms, err := types.ParsePermissions(sp)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrNotScoped, err)
	}
	exp, err := time.Parse(sasTimeFormat, se)
	if err != nil {
		if exp, err = time.Parse(time.RFC3339, se); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: expiry %q", ErrNotScoped, se)
		}
	}
	return perms, exp.UTC(), nil
}

// Redact strips the query string from a scoped URI for logging.
func Redact(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}
