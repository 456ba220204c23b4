// Package dataset is the REST client for the backtest server's data
// endpoints: chart payloads, dataset availability checks, downloads, and
// log export. The server reports most failures as HTTP 200 with a status
// envelope, so every call inspects the body before trusting it.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultLookback is how many bars the chart endpoint returns when the
	// caller does not override it.
	DefaultLookback = 300

	defaultTimeout = 30 * time.Second

	exportFallbackName       = "console_logs.txt"
	resultExportFallbackName = "backtest_result.xlsx"
)

// statusEnvelope is the server's soft-failure shape. Failures come back
// as HTTP 200 with status set to "error".
type statusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e statusEnvelope) failed() bool {
	return e.Status == "error"
}

// Client talks to one backtest server.
type Client struct {
	http     *resty.Client
	logger   *logger.Logger
	lookback int
}

// NewClient creates a dataset client for the server base URL (for example
// "http://localhost:8000"). A nil logger is replaced with a no-op logger.
func NewClient(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		http:     resty.New().SetBaseURL(baseURL).SetTimeout(defaultTimeout),
		logger:   log,
		lookback: DefaultLookback,
	}
}

// SetLookback overrides how many bars GetChartData requests.
func (c *Client) SetLookback(bars int) {
	if bars > 0 {
		c.lookback = bars
	}
}

// GetChartData fetches the chart payload for a symbol and timeframe.
func (c *Client) GetChartData(ctx context.Context, symbol string, timeframe string) (*types.ChartDataset, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"timeframe": timeframe,
			"lookback":  fmt.Sprintf("%d", c.lookback),
		}).
		Get("/api/chart/data")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeChartFetchFailed, err, "failed to fetch chart data for %s", symbol)
	}

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeServerRejected, "chart data request for %s returned status %d", symbol, resp.StatusCode())
	}

	body := resp.Body()

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.failed() {
		return nil, errors.Newf(errors.ErrCodeChartFetchFailed, "server rejected chart request for %s: %s", symbol, envelope.Message)
	}

	var dataset types.ChartDataset
	if err := json.Unmarshal(body, &dataset); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeChartFetchFailed, err, "failed to decode chart payload for %s", symbol)
	}

	c.logger.Debug("fetched chart data",
		zap.String("symbol", dataset.Symbol),
		zap.String("timeframe", dataset.Timeframe),
		zap.Int("candles", len(dataset.Candles)))

	return &dataset, nil
}

type checkDataResponse struct {
	statusEnvelope
	Exists bool `json:"exists"`
}

// CheckData reports whether the server already holds data covering the
// symbol and date range.
func (c *Client) CheckData(ctx context.Context, symbol string, start string, end string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"symbol": symbol, "start": start, "end": end}).
		Post("/api/backtest/check_data")
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeDataCheckFailed, err, "failed to check data for %s", symbol)
	}

	if resp.IsError() {
		return false, errors.Newf(errors.ErrCodeServerRejected, "data check for %s returned status %d", symbol, resp.StatusCode())
	}

	// Decoded by hand rather than via SetResult: the server does not
	// always set a JSON content type, and soft failures must never pass
	// as an empty result.
	var result checkDataResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return false, errors.Wrapf(errors.ErrCodeDataCheckFailed, err, "failed to decode data check response for %s", symbol)
	}

	if result.failed() {
		return false, errors.Newf(errors.ErrCodeDataCheckFailed, "data check for %s failed: %s", symbol, result.Message)
	}

	return result.Exists, nil
}

type downloadResponse struct {
	statusEnvelope
	Count int `json:"count"`
}

// Download asks the server to download the symbol's data for the date
// range from its upstream provider. It returns the number of rows the
// server fetched.
func (c *Client) Download(ctx context.Context, symbol string, start string, end string) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"symbol": symbol, "start": start, "end": end}).
		Post("/api/backtest/download")
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataDownloadFailed, err, "failed to download data for %s", symbol)
	}

	if resp.IsError() {
		return 0, errors.Newf(errors.ErrCodeServerRejected, "data download for %s returned status %d", symbol, resp.StatusCode())
	}

	var result downloadResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataDownloadFailed, err, "failed to decode download response for %s", symbol)
	}

	if result.failed() {
		return 0, errors.Newf(errors.ErrCodeDataDownloadFailed, "data download for %s failed: %s", symbol, result.Message)
	}

	c.logger.Info("downloaded dataset",
		zap.String("symbol", symbol),
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("rows", result.Count))

	return result.Count, nil
}

// Preload makes sure data for the run exists on the server, downloading
// it when the availability check comes back empty.
func (c *Client) Preload(ctx context.Context, symbol string, start string, end string) error {
	exists, err := c.CheckData(ctx, symbol, start, end)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeBaselinePreloadFailed, err, "preload failed for %s", symbol)
	}

	if exists {
		return nil
	}

	c.logger.Info("data missing on server, downloading",
		zap.String("symbol", symbol),
		zap.String("start", start),
		zap.String("end", end))

	if _, err := c.Download(ctx, symbol, start, end); err != nil {
		return errors.Wrapf(errors.ErrCodeBaselinePreloadFailed, err, "preload failed for %s", symbol)
	}

	return nil
}

// ExportLogs downloads the server's log file into dir and returns the
// written path. The filename comes from the Content-Disposition header
// when present.
func (c *Client) ExportLogs(ctx context.Context, dir string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/logs/download")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeExportFailed, "failed to download logs", err)
	}

	if resp.IsError() {
		return "", errors.Newf(errors.ErrCodeServerRejected, "log download returned status %d", resp.StatusCode())
	}

	body := resp.Body()

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.failed() {
		return "", errors.Newf(errors.ErrCodeExportFailed, "log download failed: %s", envelope.Message)
	}

	name := exportFilename(resp.Header().Get("Content-Disposition"), exportFallbackName)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", errors.Wrapf(errors.ErrCodeExportWriteFailed, err, "failed to write log export to %s", path)
	}

	c.logger.Info("exported server logs",
		zap.String("path", path),
		zap.Int("bytes", len(body)))

	return path, nil
}

// ExportResult uploads a finished run's history and config and saves the
// spreadsheet the server builds from them. The filename comes from the
// Content-Disposition header when present.
func (c *Client) ExportResult(ctx context.Context, dir string, history []types.TradeEvent, config types.RunConfig) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"history": history,
			"config":  config,
		}).
		Post("/api/backtest/export")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeExportFailed, "failed to export backtest result", err)
	}

	if resp.IsError() {
		return "", errors.Newf(errors.ErrCodeServerRejected, "result export returned status %d", resp.StatusCode())
	}

	body := resp.Body()

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.failed() {
		return "", errors.Newf(errors.ErrCodeExportFailed, "result export failed: %s", envelope.Message)
	}

	name := exportFilename(resp.Header().Get("Content-Disposition"), resultExportFallbackName)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", errors.Wrapf(errors.ErrCodeExportWriteFailed, err, "failed to write result export to %s", path)
	}

	c.logger.Info("exported backtest result",
		zap.String("path", path),
		zap.Int("events", len(history)))

	return path, nil
}

// exportFilename extracts the filename from a Content-Disposition header,
// falling back to a fixed name when the header is missing or unparsable.
func exportFilename(disposition string, fallback string) string {
	if disposition == "" {
		return fallback
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}

	name := filepath.Base(params["filename"])
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fallback
	}

	return name
}
