package dossiersdk

import (
	"context"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/sync"
	"github.com/openmined/dossier/internal/version"
)

const (
	v1FilesChunk  = "/api/v1/files/chunk"
	v1FilesList   = "/api/v1/files/list"
	v1FilesDelete = "/api/v1/files/delete"
	v1Version     = "/api/v1/version"
)

// Client talks to a dossier server. It satisfies sync.Remote.
type Client struct {
	client  *req.Client
	baseURL string
}

var _ sync.Remote = (*Client)(nil)

// New creates a client for the server at baseURL
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderDossierVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		client:  client,
		baseURL: baseURL,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// WriteChunk sends one chunk. It is never retried at the transport level since an
// append is not idempotent; the sync uploader restarts the whole file instead.
func (c *Client) WriteChunk(ctx context.Context, chunk *files.Chunk) (*digest.Digest, error) {
	var apiResp ChunkResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetQueryParams(map[string]string{
			"path":  chunk.Path,
			"start": strconv.FormatBool(chunk.Start),
			"final": strconv.FormatBool(chunk.Final),
		}).
		SetContentType("application/octet-stream").
		SetBodyBytes(chunk.Data).
		SetSuccessResult(&apiResp).
		Put(v1FilesChunk)

	if err := handleAPIError(resp, err, "write chunk"); err != nil {
		return nil, err
	}

	return apiResp.Digest, nil
}

// ListFiles maps every finalized file under prefix to its digest
func (c *Client) ListFiles(ctx context.Context, prefix string) (map[string]digest.Digest, error) {
	var apiResp ListResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		SetSuccessResult(&apiResp).
		Get(v1FilesList)

	if err := handleAPIError(resp, err, "list files"); err != nil {
		return nil, err
	}

	if apiResp.Files == nil {
		apiResp.Files = make(map[string]digest.Digest)
	}
	return apiResp.Files, nil
}

// DeleteFile reports whether a file existed at path
func (c *Client) DeleteFile(ctx context.Context, path string) (bool, error) {
	var apiResp DeleteResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&DeleteRequest{Path: path}).
		SetSuccessResult(&apiResp).
		Post(v1FilesDelete)

	if err := handleAPIError(resp, err, "delete file"); err != nil {
		return false, err
	}

	return apiResp.Deleted, nil
}

// Version returns the server build information
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var apiResp VersionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(v1Version)

	if err := handleAPIError(resp, err, "version"); err != nil {
		return nil, err
	}

	return &apiResp, nil
}
