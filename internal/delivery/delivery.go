// Package delivery sends the rendered digest by email and falls back to a
// local file when sending is not possible.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultOutputFile is where the digest lands when it is not emailed.
const DefaultOutputFile = "/tmp/job-digest-preview.html"

type Message struct {
	Subject string
	HTML    string
	// Count is the number of listings in the digest. It is only logged.
	Count int
}

type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Result reports what happened to a digest.
type Result struct {
	Sent         bool
	ID           string
	FallbackPath string
	Reason       string
}

type Deliverer struct {
	mailer       Mailer
	fallbackPath string
	logger       *zap.Logger
}

// NewDeliverer builds a Deliverer. A nil mailer means no email credential is
// configured and every digest goes to the fallback file.
func NewDeliverer(mailer Mailer, fallbackPath string, logger *zap.Logger) *Deliverer {
	if fallbackPath == "" {
		fallbackPath = DefaultOutputFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{mailer: mailer, fallbackPath: fallbackPath, logger: logger}
}

// Deliver never fails. The outcome is reported through Result and the log.
func (d *Deliverer) Deliver(ctx context.Context, msg Message) Result {
	if d.mailer == nil {
		d.logger.Warn("no email credential configured, writing digest to file",
			zap.String("path", d.fallbackPath))
		return d.fallback(msg, "email not configured")
	}

	id, err := d.mailer.Send(ctx, msg)
	if err != nil {
		d.logger.Error("sending digest failed", zap.Error(err), zap.Int("jobs", msg.Count))
		return d.fallback(msg, fmt.Sprintf("send failed: %v", err))
	}

	d.logger.Info("digest sent",
		zap.String("email_id", id),
		zap.String("subject", msg.Subject),
		zap.Int("jobs", msg.Count),
	)
	return Result{Sent: true, ID: id}
}

func (d *Deliverer) fallback(msg Message, reason string) Result {
	res := Result{Reason: reason}
	if err := WriteFile(d.fallbackPath, msg.HTML); err != nil {
		d.logger.Error("writing digest file failed", zap.String("path", d.fallbackPath), zap.Error(err))
		res.Reason = fmt.Sprintf("%s; write failed: %v", reason, err)
		return res
	}

	d.logger.Info("digest written to file", zap.String("path", d.fallbackPath), zap.Int("jobs", msg.Count))
	res.FallbackPath = d.fallbackPath
	return res
}

// WriteFile writes html to path, creating parent directories.
func WriteFile(path, html string) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
