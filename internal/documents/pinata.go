package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"chariblock/pkg/platform/circuit"
)

// Pinata pins files to IPFS through the Pinata pinFileToIPFS API.
type Pinata struct {
	endpoint  string
	gateway   string
	apiKey    string
	secretKey string
	client    *http.Client
	breaker   *circuit.Breaker
}

type PinataOption func(*Pinata)

// WithHTTPClient overrides the default client (30s timeout).
func WithHTTPClient(c *http.Client) PinataOption {
	return func(p *Pinata) { p.client = c }
}

func NewPinata(endpoint, gateway, apiKey, secretKey string, opts ...PinataOption) *Pinata {
	p := &Pinata{
		endpoint:  endpoint,
		gateway:   strings.TrimSuffix(gateway, "/") + "/",
		apiKey:    apiKey,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		breaker:   circuit.New("pinata", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pinFileResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload posts doc as the multipart "file" field. Any non-200 answer or
// transport error is ErrUploadFailed. After five consecutive failures
// uploads fail fast for 30s before a probe is sent again.
func (p *Pinata) Upload(ctx context.Context, doc Document) (Pinned, error) {
	if !p.breaker.Allow() {
		return Pinned{}, fmt.Errorf("%w: pinata circuit open", ErrUploadFailed)
	}
	name, err := cleanFilename(doc.Filename)
	if err != nil {
		return Pinned{}, err
	}

	body, contentType, err := multipartBody(name, doc)
	if err != nil {
		return Pinned{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return Pinned{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.secretKey)

	pinned, err := p.do(req)
	if err != nil {
		p.breaker.RecordFailure()
		return Pinned{}, err
	}
	p.breaker.RecordSuccess()
	return pinned, nil
}

func (p *Pinata) do(req *http.Request) (Pinned, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return Pinned{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Pinned{}, fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Pinned{}, fmt.Errorf("%w: pinata returned %d: %s", ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out pinFileResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.IpfsHash == "" {
		return Pinned{}, fmt.Errorf("%w: pinata response missing IpfsHash", ErrUploadFailed)
	}
	return Pinned{Hash: out.IpfsHash, URL: p.gateway + out.IpfsHash}, nil
}

// Open reports whether the breaker currently considers Pinata unhealthy.
func (p *Pinata) Open() bool {
	return p.breaker.IsOpen()
}

func multipartBody(name string, doc Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Bytes); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
