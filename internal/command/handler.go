// Package command implements the local control plane.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/loader"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/scheduler"
	"firestige.xyz/wiresentry/pkg/plugin"
)

// Method names.
const (
	MethodModuleList       = "module_list"
	MethodModuleRegister   = "module_register"
	MethodModuleUnregister = "module_unregister"
	MethodAttackList       = "attack_list"
	MethodDaemonStatus     = "daemon_status"
	MethodDaemonShutdown   = "daemon_shutdown"
)

// ModuleRegistry is the registry surface the control plane manages.
type ModuleRegistry interface {
	loader.Registrar
	Unregister(id string) (plugin.Module, error)
	Detectors() []scheduler.DetectorStatus
	Handlers() []plugin.Handler
}

// AttackLister lists tracked attacks.
type AttackLister interface {
	List() []core.AttackView
}

// StatusFunc reports live daemon state for daemon_status.
type StatusFunc func() Status

// CommandHandler handles control plane commands.
type CommandHandler struct {
	registry     ModuleRegistry
	attacks      AttackLister
	status       StatusFunc
	shutdownFunc func() // Called by daemon_shutdown to trigger graceful stop
	startTime    time.Time
}

// NewCommandHandler creates a new command handler. status may be nil.
func NewCommandHandler(registry ModuleRegistry, attacks AttackLister, status StatusFunc) *CommandHandler {
	return &CommandHandler{
		registry:  registry,
		attacks:   attacks,
		status:    status,
		startTime: time.Now(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string { return fmt.Sprintf("%s (code %d)", e.Message, e.Code) }

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error

	ErrCodeModuleExists   = -32001
	ErrCodeModuleNotFound = -32002
	ErrCodePluginNotFound = -32003
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	log.GetLogger().WithFields(map[string]interface{}{
		"method": cmd.Method,
		"id":     cmd.ID,
	}).Debug("handling command")

	switch cmd.Method {
	case MethodModuleList:
		return h.handleModuleList(ctx, cmd)
	case MethodModuleRegister:
		return h.handleModuleRegister(ctx, cmd)
	case MethodModuleUnregister:
		return h.handleModuleUnregister(ctx, cmd)
	case MethodAttackList:
		return h.handleAttackList(ctx, cmd)
	case MethodDaemonStatus:
		return h.handleDaemonStatus(ctx, cmd)
	case MethodDaemonShutdown:
		return h.handleDaemonShutdown(ctx, cmd)
	default:
		return errorResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
	}
}

func errorResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}

// errorCode maps sentinel errors to response codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, core.ErrModuleExists):
		return ErrCodeModuleExists
	case errors.Is(err, core.ErrModuleNotFound):
		return ErrCodeModuleNotFound
	case errors.Is(err, core.ErrPluginNotFound):
		return ErrCodePluginNotFound
	case errors.Is(err, core.ErrPluginInitFailed):
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternalError
	}
}

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	ID       string          `json:"id"`
	Metadata plugin.Metadata `json:"metadata"`
}

// ModuleListResult is the module_list result.
type ModuleListResult struct {
	Detectors []scheduler.DetectorStatus `json:"detectors"`
	Handlers  []HandlerInfo              `json:"handlers"`
	Available AvailableKinds             `json:"available"`
}

// AvailableKinds lists the module kinds that can be registered.
type AvailableKinds struct {
	Detectors []string `json:"detectors"`
	Handlers  []string `json:"handlers"`
}

func (h *CommandHandler) handleModuleList(_ context.Context, cmd Command) Response {
	handlers := h.registry.Handlers()
	infos := make([]HandlerInfo, 0, len(handlers))
	for _, hd := range handlers {
		infos = append(infos, HandlerInfo{ID: hd.ID(), Metadata: hd.Metadata()})
	}

	return Response{
		ID: cmd.ID,
		Result: ModuleListResult{
			Detectors: h.registry.Detectors(),
			Handlers:  infos,
			Available: AvailableKinds{
				Detectors: plugin.ListDetectors(),
				Handlers:  plugin.ListHandlers(),
			},
		},
	}
}

// ModuleRegisterParams represents parameters for module_register.
type ModuleRegisterParams = loader.Entry

// ModuleResult identifies the module a register or unregister acted on.
type ModuleResult struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (h *CommandHandler) handleModuleRegister(_ context.Context, cmd Command) Response {
	var params ModuleRegisterParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if err := params.Validate(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, err.Error())
	}

	m, err := loader.Register(h.registry, params)
	if err != nil {
		return errorResponse(cmd.ID, errorCode(err), err.Error())
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"kind": params.Kind,
		"type": params.Type,
		"id":   m.ID(),
	}).Info("module registered")
	return Response{ID: cmd.ID, Result: ModuleResult{ID: m.ID(), Type: params.Type}}
}

// ModuleUnregisterParams represents parameters for module_unregister.
type ModuleUnregisterParams struct {
	ID string `json:"id"`
}

func (h *CommandHandler) handleModuleUnregister(_ context.Context, cmd Command) Response {
	var params ModuleUnregisterParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if params.ID == "" {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, "id is required")
	}

	m, err := h.registry.Unregister(params.ID)
	if err != nil {
		return errorResponse(cmd.ID, errorCode(err), err.Error())
	}
	loader.Close(m)

	typ := loader.TypeHandler
	if _, ok := m.(plugin.Detector); ok {
		typ = loader.TypeDetector
	}
	log.GetLogger().WithField("id", params.ID).Info("module unregistered")
	return Response{ID: cmd.ID, Result: ModuleResult{ID: params.ID, Type: typ}}
}

// AttackListResult is the attack_list result.
type AttackListResult struct {
	Attacks []core.AttackView `json:"attacks"`
	Count   int               `json:"count"`
}

func (h *CommandHandler) handleAttackList(_ context.Context, cmd Command) Response {
	attacks := h.attacks.List()
	return Response{ID: cmd.ID, Result: AttackListResult{Attacks: attacks, Count: len(attacks)}}
}

// Status is the daemon_status result.
type Status struct {
	Version    string         `json:"version"`
	UptimeSec  int64          `json:"uptime_sec"`
	Capture    CaptureStatus  `json:"capture"`
	Window     WindowStatus   `json:"window"`
	Enrichment EnrichStatus   `json:"enrichment"`
	Sink       string         `json:"sink"`
	Attacks    int            `json:"attacks"`
	Modules    map[string]int `json:"modules"`
}

// CaptureStatus reports the packet source.
type CaptureStatus struct {
	Source   string `json:"source"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

// WindowStatus reports window occupancy by protocol.
type WindowStatus struct {
	Count     int            `json:"count"`
	Capacity  int            `json:"capacity"`
	Protocols map[string]int `json:"protocols,omitempty"`
}

// EnrichStatus reports the enrichment backlog.
type EnrichStatus struct {
	Enabled bool `json:"enabled"`
	Pending int  `json:"pending"`
}

func (h *CommandHandler) handleDaemonStatus(_ context.Context, cmd Command) Response {
	var st Status
	if h.status != nil {
		st = h.status()
	}
	st.UptimeSec = int64(time.Since(h.startTime).Seconds())
	st.Modules = map[string]int{
		loader.TypeDetector: len(h.registry.Detectors()),
		loader.TypeHandler:  len(h.registry.Handlers()),
	}
	return Response{ID: cmd.ID, Result: st}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	log.GetLogger().Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // let the response be sent first

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"status": "shutting_down",
		},
	}
}
