package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultUploadURL — multipart-создание файла в Drive API v3.
const defaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files"

// UploadResult — то немногое, что система хранит о созданном файле.
type UploadResult struct {
	ID       string `json:"id"`
	ViewLink string `json:"webViewLink"`
}

// Client выполняет единственную операцию к Drive API: создание файла
// с метаданными и бинарным содержимым.
//
// Вызов обернут в rate limiter и circuit breaker. Ретраев НЕТ намеренно:
// отказ провайдера синхронно возвращается тому запросу, который загрузку
// инициировал. Очереди отложенных загрузок в системе не существует.
type Client struct {
	store     *Store
	uploadURL string
	cb        *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	metrics   *infra.Metrics
	logger    *zap.Logger
}

func NewClient(store *Store, metrics *infra.Metrics, logger *zap.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "drive-upload",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	// Загрузки — редкие и тяжелые, лимит скромный
	limiter := rate.NewLimiter(rate.Limit(5), 5)

	return &Client{
		store:     store,
		uploadURL: defaultUploadURL,
		cb:        cb,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger.Named("drive-client"),
	}
}

func (c *Client) countUpload(result string) {
	if c.metrics != nil {
		c.metrics.DriveUploads.WithLabelValues(result).Inc()
	}
}

// Upload создает файл {name, parent folder} с содержимым r и возвращает
// {id, view link}. Без сохраненного credential — domain.ErrDriveNotConnected.
func (c *Client) Upload(ctx context.Context, name, folderID string, r io.Reader) (*UploadResult, error) {
	hc, ok := c.store.LoadSaved(ctx)
	if !ok {
		c.countUpload("not_connected")
		return nil, domain.ErrDriveNotConnected
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("upload rate limit: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.doUpload(ctx, hc, name, folderID, r)
	})
	switch {
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		c.countUpload("breaker_open")
		return nil, err
	case err != nil:
		c.countUpload("error")
		return nil, err
	}

	c.countUpload("ok")
	return result.(*UploadResult), nil
}

// doUpload собирает multipart/related тело: JSON-метаданные + содержимое.
func (c *Client) doUpload(ctx context.Context, hc *http.Client, name, folderID string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta := map[string]interface{}{"name": name}
	if folderID != "" {
		meta["parents"] = []string{folderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding file metadata: %w", err)
	}

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("building metadata part: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("writing metadata part: %w", err)
	}

	contentPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/zip"},
	})
	if err != nil {
		return nil, fmt.Errorf("building content part: %w", err)
	}
	if _, err := io.Copy(contentPart, r); err != nil {
		return nil, fmt.Errorf("writing content part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	url := c.uploadURL + "?uploadType=multipart&fields=id,webViewLink"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("drive upload failed: status %d: %s", resp.StatusCode, snippet)
	}

	var res UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}

	c.logger.Info("archive uploaded",
		zap.String("name", name),
		zap.String("file_id", res.ID),
	)

	return &res, nil
}
