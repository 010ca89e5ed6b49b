// Package store implements the resource store client: a JSON-over-HTTP
// client for the external linked-data store that owns all resources. The
// engine never holds canonical state; every operation here is a request/
// response round trip.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/config"
	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/retry"
)

// MediaFile is a file queued for upload as a dependent operation after the
// primary resource mutation.
type MediaFile struct {
	Name string
	MIME string
	Data []byte
}

// Client is the resource store boundary. All operations are network round
// trips against the store's JSON API.
type Client interface {
	// Get fetches one resource. Returns apperrors.ErrNotFound when the id
	// does not exist.
	Get(ctx context.Context, id int64) (*models.Resource, error)

	// ResolveRefs batch-fetches the entity shapes for a list of resource
	// ids. Unknown ids are silently absent from the result.
	ResolveRefs(ctx context.Context, ids []int64) ([]models.Entity, error)

	// ListLinked returns the entities linked to id under the given property
	// key.
	ListLinked(ctx context.Context, id int64, propertyKey string) ([]models.Entity, error)

	// Create submits a new resource for the given template and returns the
	// stored representation carrying the assigned id.
	Create(ctx context.Context, templateID int64, payload models.MutationPayload) (*models.Resource, error)

	// Update replaces the mutable representation of an existing resource.
	Update(ctx context.Context, id int64, payload models.MutationPayload) (*models.Resource, error)

	// UploadMedia attaches one file to an existing resource.
	UploadMedia(ctx context.Context, resourceID int64, file MediaFile) (*models.MediaRef, error)

	// DeleteMedia removes one media attachment.
	DeleteMedia(ctx context.Context, mediaID int64) error

	// GetTemplateProperties returns the property key to property id mapping
	// declared by a template.
	GetTemplateProperties(ctx context.Context, templateID int64) (models.PropertyMap, error)
}

type httpClient struct {
	baseURL       string
	keyIdentity   string
	keyCredential string
	http          *http.Client
	retryCfg      *retry.Config
	logger        *zap.Logger
}

// NewClient builds the HTTP store client from configuration.
func NewClient(cfg *config.StoreConfig, logger *zap.Logger) Client {
	return &httpClient{
		baseURL:       cfg.BaseURL,
		keyIdentity:   cfg.KeyIdentity,
		keyCredential: cfg.KeyCredential,
		http:          &http.Client{Timeout: cfg.Timeout()},
		retryCfg: &retry.Config{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: retry.DefaultConfig().InitialDelay,
			MaxDelay:     retry.DefaultConfig().MaxDelay,
			Multiplier:   retry.DefaultConfig().Multiplier,
			JitterFactor: retry.DefaultConfig().JitterFactor,
		},
		logger: logger.Named("store-client"),
	}
}

var _ Client = (*httpClient)(nil)

// endpoint builds a request URL with API key auth attached.
func (c *httpClient) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.keyIdentity != "" {
		query.Set("key_identity", c.keyIdentity)
		query.Set("key_credential", c.keyCredential)
	}
	u := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// do performs one request with retry on transient failures and decodes the
// response body into out (when out is non-nil).
func (c *httpClient) do(ctx context.Context, method, rawURL string, body []byte, contentType string, out any) error {
	_, err := retry.DoWithResult(ctx, c.retryCfg, func() (struct{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return struct{}{}, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, retry.Transient(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return struct{}{}, apperrors.ErrNotFound
		case retry.IsRetryableStatus(resp.StatusCode):
			return struct{}{}, retry.Transient(fmt.Errorf("store returned %d for %s %s", resp.StatusCode, method, logging.SanitizeURL(rawURL)))
		case resp.StatusCode >= 400:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return struct{}{}, fmt.Errorf("store returned %d: %s", resp.StatusCode, logging.TruncateString(string(data), logging.MaxValueLogLength))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return struct{}{}, fmt.Errorf("decode response: %w", err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		c.logger.Debug("Store request failed",
			zap.String("method", method),
			zap.String("url", logging.SanitizeURL(rawURL)),
			zap.String("error", logging.SanitizeError(err)))
	}
	return err
}

func (c *httpClient) Get(ctx context.Context, id int64) (*models.Resource, error) {
	var res models.Resource
	u := c.endpoint(fmt.Sprintf("/items/%d", id), nil)
	if err := c.do(ctx, http.MethodGet, u, nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *httpClient) ResolveRefs(ctx context.Context, ids []int64) ([]models.Entity, error) {
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}
	query := url.Values{}
	for _, id := range ids {
		query.Add("id[]", strconv.FormatInt(id, 10))
	}
	return c.listItems(ctx, query)
}

func (c *httpClient) ListLinked(ctx context.Context, id int64, propertyKey string) ([]models.Entity, error) {
	query := url.Values{}
	query.Set("property[0][property]", propertyKey)
	query.Set("property[0][type]", "res")
	query.Set("property[0][text]", strconv.FormatInt(id, 10))
	return c.listItems(ctx, query)
}

func (c *httpClient) listItems(ctx context.Context, query url.Values) ([]models.Entity, error) {
	var resources []models.Resource
	u := c.endpoint("/items", query)
	if err := c.do(ctx, http.MethodGet, u, nil, "", &resources); err != nil {
		return nil, err
	}
	entities := make([]models.Entity, 0, len(resources))
	for i := range resources {
		entities = append(entities, resources[i].Entity())
	}
	return entities, nil
}

func (c *httpClient) Create(ctx context.Context, templateID int64, payload models.MutationPayload) (*models.Resource, error) {
	if _, ok := payload["o:resource_template"]; !ok {
		payload["o:resource_template"] = models.TemplateRef(templateID)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var res models.Resource
	u := c.endpoint("/items", nil)
	if err := c.do(ctx, http.MethodPost, u, body, "application/json", &res); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSaveFailed, err)
	}
	return &res, nil
}

func (c *httpClient) Update(ctx context.Context, id int64, payload models.MutationPayload) (*models.Resource, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var res models.Resource
	u := c.endpoint(fmt.Sprintf("/items/%d", id), nil)
	if err := c.do(ctx, http.MethodPut, u, body, "application/json", &res); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSaveFailed, err)
	}
	return &res, nil
}

func (c *httpClient) UploadMedia(ctx context.Context, resourceID int64, file MediaFile) (*models.MediaRef, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	meta, err := json.Marshal(map[string]any{
		"o:item": map[string]any{"o:id": resourceID},
	})
	if err != nil {
		return nil, fmt.Errorf("encode media metadata: %w", err)
	}
	if err := writer.WriteField("data", string(meta)); err != nil {
		return nil, fmt.Errorf("write media metadata: %w", err)
	}

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("create media part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("write media part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize media body: %w", err)
	}

	var ref models.MediaRef
	u := c.endpoint("/media", nil)
	if err := c.do(ctx, http.MethodPost, u, buf.Bytes(), writer.FormDataContentType(), &ref); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrMediaUpload, err)
	}
	ref.ResourceID = resourceID
	return &ref, nil
}

func (c *httpClient) DeleteMedia(ctx context.Context, mediaID int64) error {
	u := c.endpoint(fmt.Sprintf("/media/%d", mediaID), nil)
	return c.do(ctx, http.MethodDelete, u, nil, "", nil)
}

func (c *httpClient) GetTemplateProperties(ctx context.Context, templateID int64) (models.PropertyMap, error) {
	var tpl struct {
		Properties []struct {
			Property struct {
				ID   int64  `json:"o:id"`
				Term string `json:"o:term"`
			} `json:"o:property"`
		} `json:"o:resource_template_property"`
	}

	u := c.endpoint(fmt.Sprintf("/resource_templates/%d", templateID), nil)
	if err := c.do(ctx, http.MethodGet, u, nil, "", &tpl); err != nil {
		return nil, err
	}

	pm := make(models.PropertyMap, len(tpl.Properties))
	for _, p := range tpl.Properties {
		if p.Property.Term != "" && p.Property.ID != 0 {
			pm[p.Property.Term] = p.Property.ID
		}
	}
	return pm, nil
}
