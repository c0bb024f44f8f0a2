package asuslink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/muurk/asuslink/internal/logging"
	"github.com/muurk/asuslink/internal/readers"
)

// CommandMode selects how the device applies a control action.
type CommandMode int

const (
	// ModeApply requests synchronous effect: the firmware runs the
	// service before acknowledging.
	ModeApply CommandMode = iota
	// ModeQueue permits the device to batch the action with others.
	ModeQueue
)

// String returns the mode name
func (m CommandMode) String() string {
	switch m {
	case ModeApply:
		return "apply"
	case ModeQueue:
		return "queue"
	default:
		return fmt.Sprintf("CommandMode(%d)", int(m))
	}
}

// CommandResult is the device's answer to a control action.
type CommandResult struct {
	// Acknowledged reports that the device accepted and ran the action.
	Acknowledged bool
	// Modified reports that the action changed device state, when the
	// firmware distinguishes that.
	Modified bool
	// Message is the device-reported detail, when present.
	Message string
}

// dispatcher builds and sends control requests. Commands are never
// retried automatically: service restarts and access toggles are not
// idempotent, so a failure surfaces verbatim instead.
type dispatcher struct {
	sess *session
	pipe *pipeline
}

func newDispatcher(sess *session, pipe *pipeline) *dispatcher {
	return &dispatcher{sess: sess, pipe: pipe}
}

// run serializes the command into the firmware's control-request format
// and dispatches it. A successful state-changing command invalidates the
// cache for every category it is known to affect.
func (d *dispatcher) run(ctx context.Context, name string, arguments map[string]string, mode CommandMode) (*CommandResult, error) {
	if name == "" {
		return nil, newError(KindCommand, "command name must not be empty", nil)
	}

	form := url.Values{}
	form.Set("rc_service", name)
	for key, value := range arguments {
		form.Set(key, value)
	}

	endpoint := endpointApplyApp
	if mode == ModeApply {
		endpoint = endpointApply
		form.Set("action_mode", "apply")
	}

	body, err := d.sess.request(ctx, http.MethodPost, endpoint, form.Encode())
	if err != nil {
		// Session and transport failures keep their own kind; the caller
		// must distinguish connectivity from device rejection.
		return nil, err
	}

	result, err := parseCommandResponse(name, body)
	if err != nil {
		return nil, err
	}

	if affected, ok := commandInvalidations[name]; ok {
		logging.Debug("Invalidating cache after command",
			zap.String("command", name),
			zap.Int("categories", len(affected)),
		)
		d.pipe.invalidate(affected...)
	}

	logging.Info("Command dispatched",
		zap.String("command", name),
		zap.Stringer("mode", mode),
		zap.Bool("modified", result.Modified),
	)
	return result, nil
}

// parseCommandResponse interprets the completion signal: the firmware
// echoes the service name in run_service and reports state changes in
// the modify flag.
func parseCommandResponse(name string, body []byte) (*CommandResult, error) {
	response := map[string]any{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, newError(KindCommand, fmt.Sprintf("device returned an unreadable reply to %q", name), err)
	}

	ranService, _ := readers.String(response["run_service"])
	if ranService != name {
		message, _ := readers.String(response["error_msg"])
		if message == "" {
			message = fmt.Sprintf("device did not run %q (ran %q)", name, ranService)
		}
		return nil, &Error{Kind: KindCommand, Message: message}
	}

	result := &CommandResult{Acknowledged: true}
	if modified, ok := readers.Bool(response["modify"]); ok {
		result.Modified = modified
	}
	if message, ok := readers.String(response["msg"]); ok {
		result.Message = message
	}
	return result, nil
}
