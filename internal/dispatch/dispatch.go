// Package dispatch maps wire requests to supervision engine operations
// and engine results back to wire responses. It is transport-agnostic:
// every adapter in internal/transport calls HandleRaw on the JSON bytes
// it reads off the wire.
//
// A small opcode-to-method switch, structured request/response types
// with omitempty payload fields, and a batch path answer item-for-item
// even when some items fail.
package dispatch

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/engine"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/task"
)

// Opcode identifies which engine operation a Request carries.
type Opcode string

const (
	OpRun     Opcode = "Run"
	OpAdd     Opcode = "Add"
	OpReload  Opcode = "Reload"
	OpStart   Opcode = "Start"
	OpRestart Opcode = "Restart"
	OpStop    Opcode = "Stop"
	OpRemove  Opcode = "Remove"
	OpDelete  Opcode = "Delete"
	OpWrite   Opcode = "Write"
	OpPause   Opcode = "Pause"
	OpResume  Opcode = "Resume"
	OpList    Opcode = "List"
)

// Canonical response codes.
const (
	CodeOK          = 10000
	CodeClientFault = 40000
	CodeServerFault = 50000
)

// Request is one wire command. Exactly the fields relevant to Op are
// populated; the rest are left zero. RequestID is optional on the wire;
// the dispatcher assigns one when the caller leaves it blank, so every
// log line for a request (across possibly several log calls deep in the
// engine) can be correlated back to one Response.
type Request struct {
	Command   Opcode     `json:"command"`
	Task      *task.Task `json:"task,omitempty"`
	Flag      *task.Flag `json:"flag,omitempty"`
	Data      string     `json:"data,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// Response is one wire reply.
type Response struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Dispatcher binds an Engine to the opcode table.
type Dispatcher struct {
	eng *engine.Engine
	log *logging.Logger
}

// New builds a Dispatcher over eng, logging one line per request through log.
func New(eng *engine.Engine, log *logging.Logger) *Dispatcher {
	return &Dispatcher{eng: eng, log: log}
}

// HandleRaw parses raw as either a single Request object or a JSON array
// of Requests, dispatches each, and returns the matching Response(s) as
// JSON, always as an array so transports have one framing rule. A parse
// failure returns a single-element 50000 array.
func (d *Dispatcher) HandleRaw(raw []byte) []byte {
	reqs, err := parseRequests(raw)
	if err != nil {
		out, _ := json.Marshal([]Response{{Code: CodeServerFault, Msg: "malformed request: " + err.Error()}})
		return out
	}
	resps := make([]Response, len(reqs))
	for i, req := range reqs {
		resps[i] = d.Handle(req)
	}
	out, err := json.Marshal(resps)
	if err != nil {
		out, _ = json.Marshal([]Response{{Code: CodeServerFault, Msg: "failed to encode response"}})
	}
	return out
}

func parseRequests(raw []byte) ([]Request, error) {
	trimmed := trimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	return []Request{req}, nil
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpace(b[i]) {
		i++
	}
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Handle dispatches a single parsed Request to the bound Engine.
func (d *Dispatcher) Handle(req Request) Response {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	resp := d.handle(req)
	resp.RequestID = req.RequestID
	if resp.Code == CodeOK {
		d.log.Debugf("[%s] %s ok", req.RequestID, req.Command)
	} else {
		d.log.Warnf("[%s] %s failed: %d %s", req.RequestID, req.Command, resp.Code, resp.Msg)
	}
	return resp
}

func (d *Dispatcher) handle(req Request) Response {
	switch req.Command {
	case OpRun:
		return d.result(requireTask(req, func(t *task.Task) (any, error) { return d.eng.Run(t) }))
	case OpAdd:
		return d.result(requireTask(req, func(t *task.Task) (any, error) { return d.eng.Add(t) }))
	case OpReload:
		return d.result(requireTask(req, func(t *task.Task) (any, error) { return d.eng.Reload(t) }))
	case OpStart:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Start(f) }))
	case OpRestart:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Restart(f) }))
	case OpStop:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Stop(f, true) }))
	case OpRemove:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Remove(f) }))
	case OpDelete:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Delete(f) }))
	case OpWrite:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Write(f, []byte(req.Data)) }))
	case OpPause:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Pause(f) }))
	case OpResume:
		return d.result(requireFlag(req, func(f task.Flag) (any, error) { return d.eng.Resume(f) }))
	case OpList:
		list, err := d.eng.List(req.Flag)
		return d.result(list, err)
	default:
		return Response{Code: CodeClientFault, Msg: "unknown command: " + string(req.Command)}
	}
}

func requireTask(req Request, fn func(*task.Task) (any, error)) (any, error) {
	if req.Task == nil {
		return nil, apperr.Validationf("request missing task payload")
	}
	return fn(req.Task)
}

func requireFlag(req Request, fn func(task.Flag) (any, error)) (any, error) {
	if req.Flag == nil {
		return nil, apperr.Validationf("request missing flag payload")
	}
	return fn(*req.Flag)
}

func (d *Dispatcher) result(data any, err error) Response {
	if err == nil {
		return Response{Code: CodeOK, Msg: "ok", Data: data}
	}
	if ae, ok := apperr.As(err); ok {
		return Response{Code: codeFor(ae.Category), Msg: ae.Error()}
	}
	return Response{Code: CodeServerFault, Msg: err.Error()}
}

func codeFor(cat apperr.Category) int {
	switch cat {
	case apperr.Validation, apperr.NotFound, apperr.WrongState:
		return CodeClientFault
	default:
		return CodeServerFault
	}
}
