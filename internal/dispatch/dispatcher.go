// Package dispatch delivers start and stop commands to relayd workers over
// their HTTP command API.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/version"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// Dispatcher sends commands to workers and interprets their acknowledgements.
type Dispatcher struct {
	client      *http.Client
	ackTimeout  time.Duration
	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:      &http.Client{},
		ackTimeout:  30 * time.Second,
		stopTimeout: 20 * time.Second,
		logger:      logger,
	}
}

// WithAckTimeout bounds how long a start command waits for the worker
// acknowledgement.
func (d *Dispatcher) WithAckTimeout(timeout time.Duration) *Dispatcher {
	d.ackTimeout = timeout
	return d
}

// WithStopTimeout bounds how long a stop command waits for the worker
// acknowledgement.
func (d *Dispatcher) WithStopTimeout(timeout time.Duration) *Dispatcher {
	d.stopTimeout = timeout
	return d
}

// WithHTTPClient replaces the HTTP client, for tests.
func (d *Dispatcher) WithHTTPClient(client *http.Client) *Dispatcher {
	d.client = client
	return d
}

// Start delivers a start command to the worker. When the worker rejects the
// primary ingest endpoint and the platform publishes a backup, the command is
// retried once against the backup before giving up.
func (d *Dispatcher) Start(ctx context.Context, worker *models.WorkerNode, platform models.Platform, cmd *types.StartCommand) error {
	err := d.post(ctx, worker, "/api/v1/commands/start", d.ackTimeout, cmd, cmd.StreamID, "start")
	if err == nil {
		return nil
	}

	// Unreachable workers and timeouts are not ingest problems; a backup
	// ingest host will not help.
	var rejection *workerRejectionError
	if !errors.As(err, &rejection) {
		return err
	}

	backup, ok := BackupIngestURL(platform, cmd.RTMPURL)
	if !ok {
		return &models.WorkerFailureError{WorkerID: worker.ID, Reason: rejection.reason}
	}

	d.logger.WarnContext(ctx, "start rejected, retrying on backup ingest",
		slog.String("stream_id", cmd.StreamID),
		slog.String("worker_id", worker.ID.String()),
		slog.String("reason", rejection.reason),
	)

	retry := *cmd
	retry.RTMPURL = backup
	if err := d.post(ctx, worker, "/api/v1/commands/start", d.ackTimeout, &retry, cmd.StreamID, "start"); err != nil {
		if errors.As(err, &rejection) {
			return &models.WorkerFailureError{WorkerID: worker.ID, Reason: rejection.reason}
		}
		return err
	}
	return nil
}

// Stop delivers a stop command to the worker.
func (d *Dispatcher) Stop(ctx context.Context, worker *models.WorkerNode, cmd *types.StopCommand) error {
	err := d.post(ctx, worker, "/api/v1/commands/stop", d.stopTimeout, cmd, cmd.StreamID, "stop")
	var rejection *workerRejectionError
	if errors.As(err, &rejection) {
		return &models.WorkerFailureError{WorkerID: worker.ID, Reason: rejection.reason}
	}
	return err
}

// workerRejectionError is an internal marker for a delivered-but-rejected
// command, so Start can distinguish it from transport failures.
type workerRejectionError struct {
	reason string
}

func (e *workerRejectionError) Error() string {
	return fmt.Sprintf("worker rejected command: %s", e.reason)
}

func (d *Dispatcher) post(ctx context.Context, worker *models.WorkerNode, path string, timeout time.Duration, payload any, streamID, command string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", command, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, worker.Addr+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if worker.Token != "" {
		req.Header.Set("Authorization", "Bearer "+worker.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return &models.AckTimeoutError{WorkerID: worker.ID, Command: command, Timeout: timeout}
		}
		return &models.WorkerUnreachableError{WorkerID: worker.ID, Addr: worker.Addr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &workerRejectionError{reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(data))}
	}

	var ack types.CommandAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decoding %s acknowledgement: %w", command, err)
	}
	if !ack.Accepted {
		return &workerRejectionError{reason: ack.Reason}
	}

	d.logger.DebugContext(ctx, "command acknowledged",
		slog.String("stream_id", streamID),
		slog.String("worker_id", worker.ID.String()),
		slog.String("command", command),
	)
	return nil
}
