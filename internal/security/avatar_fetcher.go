package security

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/userdesk/internal/model"
)

// maxAvatarSize はアバター画像の最大サイズ（2MB）。
const maxAvatarSize = 2 * 1024 * 1024

// avatarTimeout はアバター取得のタイムアウト。
const avatarTimeout = 5 * time.Second

// AvatarFetcherService はアバター画像取得のインターフェース。
type AvatarFetcherService interface {
	// FetchAvatar は指定URLからアバター画像を取得する。
	// SSRF検証に失敗した場合はAVATAR_BLOCKED、
	// 取得に失敗した場合はAVATAR_UNAVAILABLEを返す。
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// AvatarFetcher はアバター画像取得機能の実装。
// ブラウザにプライベートネットワークへのアクセスを肩代わりさせないよう、
// 取得はすべてSSRF防止付きクライアントで行う。
type AvatarFetcher struct {
	guard AvatarGuardService
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(guard AvatarGuardService) *AvatarFetcher {
	return &AvatarFetcher{
		guard: guard,
	}
}

// FetchAvatar は指定URLからアバター画像を取得する。
func (f *AvatarFetcher) FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error) {
	// SSRF検証
	if err := f.guard.ValidateURL(avatarURL); err != nil {
		slog.Warn("アバター取得: SSRFブロック",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewAvatarBlockedError()
	}

	client := f.guard.NewSafeClient(avatarTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil, "", model.NewAvatarUnavailableError(err)
	}
	req.Header.Set("User-Agent", "Userdesk/1.0 Admin Panel")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アバター取得: HTTPリクエスト失敗",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewAvatarUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アバター取得: HTTPステータス異常",
			slog.String("url", avatarURL),
			slog.Int("status", resp.StatusCode),
		)
		return nil, "", model.NewAvatarUnavailableError(nil)
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		return nil, "", model.NewAvatarUnavailableError(err)
	}
	if int64(len(body)) > maxAvatarSize {
		slog.Warn("アバター取得: サイズ超過",
			slog.String("url", avatarURL),
			slog.Int("size", len(body)),
		)
		return nil, "", model.NewAvatarUnavailableError(nil)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("アバター取得: 画像以外のContent-Type",
			slog.String("url", avatarURL),
			slog.String("content_type", mimeType),
		)
		return nil, "", model.NewAvatarUnavailableError(nil)
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプ部分を取り出す。
func extractMimeType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// isImageMime はメディアタイプが画像かを返す。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
