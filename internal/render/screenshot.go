package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// chromedp captures JPEG for any quality below 100
const pngQuality = 100

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func isPNG(b []byte) bool {
	return bytes.HasPrefix(b, pngSignature)
}

// Screenshot loads the HTML page at htmlPath in headless Chrome and saves a
// full-page PNG to pngPath
func Screenshot(ctx context.Context, htmlPath, pngPath string, width, height int64) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", htmlPath, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.WindowSize(int(width), int(height)),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(browserCtx,
		emulation.SetDeviceMetricsOverride(width, height, 1, false),
		chromedp.Navigate("file://"+abs),
		chromedp.WaitVisible(`#map`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second), // Map tiles and chart load asynchronously
		chromedp.FullScreenshot(&buf, pngQuality),
	); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if !isPNG(buf) {
		return fmt.Errorf("capturing screenshot: browser did not return PNG data")
	}

	if err := os.WriteFile(pngPath, buf, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", pngPath, err)
	}
	return nil
}
