// Package thumbnail produces a representative still image for a token
// video. The video is fetched from the first responsive IPFS gateway and
// a frame extracted with ffmpeg. Filenames are content-addressed by CID,
// so tokens sharing one video share one thumbnail and regeneration is
// naturally idempotent.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/adapter"
	"github.com/cryptograss/railbot/internal/logger"
)

// sniffLen is how many leading bytes are captured for content sniffing.
const sniffLen = 3072

// Filename returns the wiki filename for a video's thumbnail.
func Filename(cid string) string {
	return fmt.Sprintf("Blue_Railroad_Video_%s.jpg", cid)
}

// Generator downloads token videos and extracts thumbnail frames.
type Generator struct {
	http     adapter.HTTPClient
	fs       adapter.FileSystem
	runner   adapter.Runner
	gateways []string
}

// NewGenerator creates a thumbnail generator using the given IPFS gateways.
func NewGenerator(httpClient adapter.HTTPClient, fs adapter.FileSystem, runner adapter.Runner, gateways []string) *Generator {
	return &Generator{
		http:     httpClient,
		fs:       fs,
		runner:   runner,
		gateways: gateways,
	}
}

// Generate produces a thumbnail for the video addressed by cid and
// returns the local path of the image. Failures are reported, not fatal;
// the caller logs and moves on.
func (g *Generator) Generate(ctx context.Context, cid string) (string, error) {
	if cid == "" {
		return "", fmt.Errorf("no cid given")
	}

	if _, err := g.runner.LookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	gateway, err := g.findWorkingGateway(ctx, cid)
	if err != nil {
		return "", err
	}

	tmpDir, err := g.fs.MkdirTemp("railbot-video-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := g.fs.RemoveAll(tmpDir); err != nil {
			logger.Warn("failed to remove temp dir", zap.Error(err), zap.String("dir", tmpDir))
		}
	}()

	videoPath := filepath.Join(tmpDir, "video_"+cid+".mp4")
	if err := g.download(ctx, gateway, videoPath); err != nil {
		return "", err
	}

	thumbPath := filepath.Join(g.fs.TempDir(), Filename(cid))
	if err := g.extractFrame(ctx, videoPath, thumbPath, "2.0"); err != nil {
		// The video may be shorter than two seconds.
		if err := g.extractFrame(ctx, videoPath, thumbPath, "0.5"); err != nil {
			return "", err
		}
	}

	logger.Info("generated thumbnail", zap.String("cid", cid), zap.String("path", thumbPath))
	return thumbPath, nil
}

// findWorkingGateway probes all gateways in parallel with HEAD requests
// and returns the URL of the first one that answers for the CID.
func (g *Generator) findWorkingGateway(ctx context.Context, cid string) (string, error) {
	if len(g.gateways) == 0 {
		return "", fmt.Errorf("no IPFS gateways configured")
	}

	type result struct {
		url string
		err error
	}

	resultCh := make(chan result, len(g.gateways))
	var wg sync.WaitGroup

	for _, gateway := range g.gateways {
		wg.Add(1)
		go func(gw string) {
			defer wg.Done()

			url := fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(gw, "/"), cid)
			resp, err := g.http.Head(ctx, url)
			if err != nil {
				resultCh <- result{err: err}
				return
			}
			if err := resp.Body.Close(); err != nil {
				logger.Warn("failed to close response body", zap.Error(err), zap.String("url", url))
			}

			if resp.StatusCode == http.StatusOK {
				resultCh <- result{url: url}
			} else {
				resultCh <- result{err: fmt.Errorf("gateway returned status %d", resp.StatusCode)}
			}
		}(gateway)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		if res.err == nil {
			return res.url, nil
		}
	}

	return "", fmt.Errorf("no working IPFS gateway found for CID: %s", cid)
}

// download streams the video to a local file, sniffing its leading bytes
// to confirm the gateway actually served a video.
func (g *Generator) download(ctx context.Context, url, path string) error {
	resp, err := g.http.GetResponse(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", zap.Error(err), zap.String("url", url))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d downloading video", resp.StatusCode)
	}

	file, err := g.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("failed to close file", zap.Error(err), zap.String("path", path))
		}
	}()

	var head bytes.Buffer
	tee := io.TeeReader(io.LimitReader(resp.Body, sniffLen), &head)
	if _, err := io.Copy(file, tee); err != nil {
		return fmt.Errorf("failed to write video: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to write video: %w", err)
	}

	if head.Len() == 0 {
		return fmt.Errorf("gateway served an empty body")
	}

	mime := mimetype.Detect(head.Bytes())
	if !strings.HasPrefix(mime.String(), "video/") {
		return fmt.Errorf("gateway served %s, not a video", mime.String())
	}

	return nil
}

// extractFrame pulls one frame out of the video with ffmpeg.
func (g *Generator) extractFrame(ctx context.Context, videoPath, thumbPath, offset string) error {
	output, err := g.runner.Run(ctx, "ffmpeg",
		"-y",
		"-ss", offset,
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		thumbPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, string(output))
	}

	info, err := g.fs.Stat(thumbPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty image")
	}

	return nil
}
