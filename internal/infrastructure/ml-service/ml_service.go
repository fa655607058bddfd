package ml_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/jitter"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
)

// MLService — HTTP-клиент внешнего ML-сервиса: описание изображений,
// embedding-векторы и генерация имен кластеров.
type MLService struct {
	httpClient    *http.Client
	baseURL       string
	maxConcurrent int
	maxRetries    int
	sem           chan struct{}
	logger        logger.Logger
}

func NewMLService(cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       cfg.BaseURL,
		maxConcurrent: cfg.MaxConcurrent,
		maxRetries:    cfg.MaxRetries,
		sem:           make(chan struct{}, cfg.MaxConcurrent),
		logger:        logger,
	}
}

type describeRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

type describeResponse struct {
	Description string `json:"description"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type nameClusterRequest struct {
	Descriptions []string `json:"descriptions"`
}

type nameClusterResponse struct {
	Name string `json:"name"`
}

// DescribeImage возвращает текстовое описание изображения.
func (m *MLService) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "MLService.DescribeImage"

	req := describeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    mimeType,
	}

	var res describeResponse
	if err := m.doWithRetries(ctx, "/v1/describe", req, &res); err != nil {
		return "", e.Wrap(op, err)
	}

	return res.Description, nil
}

// EmbedText возвращает embedding-вектор для текста.
func (m *MLService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "MLService.EmbedText"

	var res embedResponse
	if err := m.doWithRetries(ctx, "/v1/embed", embedRequest{Text: text}, &res); err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(res.Embedding) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyEmbedding)
	}

	return res.Embedding, nil
}

// NameCluster подбирает короткое имя кластера по описаниям его участников.
func (m *MLService) NameCluster(ctx context.Context, descriptions []string) (string, error) {
	const op = "MLService.NameCluster"

	var res nameClusterResponse
	if err := m.doWithRetries(ctx, "/v1/name-cluster", nameClusterRequest{Descriptions: descriptions}, &res); err != nil {
		return "", e.Wrap(op, err)
	}

	return res.Name, nil
}

// doWithRetries выполняет запрос с retry-логикой и экспоненциальной задержкой.
func (m *MLService) doWithRetries(ctx context.Context, path string, reqBody, resBody any) error {
	const (
		op         = "MLService.doWithRetries"
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		lastErr = m.doRequest(ctx, path, reqBody, resBody)
		if lastErr == nil {
			return nil
		}

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		m.logger.Warnf("ml-service call %s failed, retrying in %v (attempt %d): %v", path, sleepTime, attempt+1, lastErr)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return e.Wrap(op, ctx.Err())
		}
	}

	return e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", m.maxRetries, lastErr))
}

// doRequest выполняет один JSON-запрос с ограничением конкурентности.
func (m *MLService) doRequest(ctx context.Context, path string, reqBody, resBody any) error {
	const op = "MLService.doRequest"

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return e.Wrap(op, ctx.Err())
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return e.Wrap(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return e.Wrap(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return e.Wrap(op, fmt.Errorf("%w: %s %s: %s", e.ErrMlServiceUnavailable, path, res.Status, body))
	}

	if err := json.NewDecoder(res.Body).Decode(resBody); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}
