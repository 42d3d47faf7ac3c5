package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTelegramAPIURL  = "https://api.telegram.org"
	defaultTelegramTimeout = 30 * time.Second
	maxTelegramDownload    = 64 << 20 // 64 MiB
	maxTelegramResponse    = 1 << 20  // 1 MiB
)

// TelegramConfig configures the Bot API backend.
type TelegramConfig struct {
	BotToken  string
	ChatID    int64
	LogChatID int64
	APIURL    string
	Timeout   time.Duration
}

// Telegram stores packets as documents in one chat.
type Telegram struct {
	cfg        TelegramConfig
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegram returns a Bot API backend. A nil httpClient gets one with the
// configured timeout.
func NewTelegram(cfg TelegramConfig, httpClient *http.Client, logger *slog.Logger) (*Telegram, error) {
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	cfg.APIURL = apiURL
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTelegramTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		cfg:        cfg,
		baseURL:    apiURL,
		httpClient: httpClient,
		logger:     logger.With("component", "telegram"),
	}, nil
}

type telegramEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type telegramMessage struct {
	MessageID int64 `json:"message_id"`
	Document  *struct {
		FileID   string `json:"file_id"`
		FileSize int64  `json:"file_size"`
	} `json:"document"`
}

type telegramFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// UploadFile sends data as a document to the storage chat.
func (t *Telegram) UploadFile(ctx context.Context, data []byte, filename string) (Location, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", strconv.FormatInt(t.cfg.ChatID, 10)); err != nil {
		return Location{}, unavailable("sendDocument", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, filename))
	header.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(header)
	if err != nil {
		return Location{}, unavailable("sendDocument", err)
	}
	if _, err := part.Write(data); err != nil {
		return Location{}, unavailable("sendDocument", err)
	}
	if err := mw.Close(); err != nil {
		return Location{}, unavailable("sendDocument", err)
	}

	var msg telegramMessage
	if err := t.call(ctx, "sendDocument", mw.FormDataContentType(), &body, &msg); err != nil {
		return Location{}, err
	}
	if msg.Document == nil || msg.Document.FileID == "" {
		return Location{}, fmt.Errorf("%w: sendDocument: response has no document", ErrUnavailable)
	}
	return Location{Handle: msg.Document.FileID, MessageID: msg.MessageID}, nil
}

// GetFileInfo resolves a document file id to a download path.
func (t *Telegram) GetFileInfo(ctx context.Context, handle string) (FileInfo, error) {
	form := url.Values{"file_id": {handle}}
	var file telegramFile
	if err := t.callForm(ctx, "getFile", form, &file); err != nil {
		return FileInfo{}, err
	}
	if file.FilePath == "" {
		return FileInfo{}, fmt.Errorf("%w: getFile: response has no file path", ErrUnavailable)
	}
	return FileInfo{DownloadPath: file.FilePath, Size: file.FileSize}, nil
}

// DownloadFile fetches the bytes behind a getFile path.
func (t *Telegram) DownloadFile(ctx context.Context, downloadPath string) ([]byte, error) {
	endpoint := t.baseURL + "/file/bot" + t.cfg.BotToken + "/" + strings.TrimLeft(downloadPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, unavailable("download", t.redact(err))
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("download", t.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, downloadPath)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: download: status %d", ErrUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTelegramDownload))
	if err != nil {
		return nil, unavailable("download", t.redact(err))
	}
	return data, nil
}

// DeleteMessage removes the document message from the storage chat.
func (t *Telegram) DeleteMessage(ctx context.Context, loc Location) error {
	form := url.Values{
		"chat_id":    {strconv.FormatInt(t.cfg.ChatID, 10)},
		"message_id": {strconv.FormatInt(loc.MessageID, 10)},
	}
	var deleted bool
	return t.callForm(ctx, "deleteMessage", form, &deleted)
}

// SendLogMessage posts text to the log chat. It is a no-op without one.
func (t *Telegram) SendLogMessage(ctx context.Context, text string) error {
	if t.cfg.LogChatID == 0 {
		return nil
	}
	form := url.Values{
		"chat_id": {strconv.FormatInt(t.cfg.LogChatID, 10)},
		"text":    {text},
	}
	return t.callForm(ctx, "sendMessage", form, nil)
}

// TestConnection checks the bot token with getMe.
func (t *Telegram) TestConnection(ctx context.Context) error {
	return t.call(ctx, "getMe", "", nil, nil)
}

func (t *Telegram) callForm(ctx context.Context, method string, form url.Values, out any) error {
	return t.call(ctx, method, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (t *Telegram) call(ctx context.Context, method, contentType string, body io.Reader, out any) error {
	endpoint := t.baseURL + "/bot" + t.cfg.BotToken + "/" + method
	httpMethod := http.MethodPost
	if body == nil {
		httpMethod = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, body)
	if err != nil {
		return unavailable(method, t.redact(err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return unavailable(method, t.redact(err))
	}
	defer resp.Body.Close()

	var env telegramEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTelegramResponse)).Decode(&env); err != nil {
		return fmt.Errorf("%w: %s: status %d: decode response: %v", ErrUnavailable, method, resp.StatusCode, err)
	}
	if !env.OK || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		description := strings.TrimSpace(env.Description)
		if description == "" {
			description = http.StatusText(resp.StatusCode)
		}
		t.logger.Debug("bot api call failed", "method", method, "status", resp.StatusCode, "description", description)
		if isTelegramNotFound(description) {
			return fmt.Errorf("%w: %s: %s", ErrNotFound, method, description)
		}
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, method, description)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: %s: decode result: %v", ErrUnavailable, method, err)
	}
	return nil
}

func isTelegramNotFound(description string) bool {
	lower := strings.ToLower(description)
	return strings.Contains(lower, "message to delete not found") ||
		strings.Contains(lower, "wrong file_id") ||
		strings.Contains(lower, "file not found")
}

// redact keeps the bot token out of transport error messages, which embed
// the request URL.
func (t *Telegram) redact(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(strings.ReplaceAll(err.Error(), t.cfg.BotToken, "<redacted>"))
}
