package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imamik/vnsync/internal/trigger"
)

// Request sends an operation to a running daemon over NATS and prints the
// reply. entity and id are ignored for full sync.
func Request(ctx context.Context, w io.Writer, configPath, action, entity string, id int64, timeout time.Duration) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is not configured")
	}

	nc, err := connectNATS(ctx, cfg.NATS.URL, "vnsync-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := trigger.NewClient(nc, cfg.NATS.SubjectPrefix).Request(ctx, action, entity, id)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("%s failed: %s", action, reply.Error)
	}
	return nil
}
