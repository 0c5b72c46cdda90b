// Package main provides the system volume plugin.
// It reads and sets the default output device's volume and mute state via
// AppleScript on macOS and pactl on Linux.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// mixer abstracts the platform volume control.
type mixer interface {
	volume() (float64, error)
	setVolume(scalar float64) error
	setMute(mute bool) error
}

// actionHandler handles one action and returns the response data.
type actionHandler func(m mixer, params json.RawMessage) (any, error)

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"get-volume": getVolume,
	"set-volume": setVolume,
	"set-mute":   setMute,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	m, err := platformMixer()
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	data, err := handler(m, req.Params)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse(data)
}

func platformMixer() (mixer, error) {
	switch runtime.GOOS {
	case "darwin":
		return appleScriptMixer{}, nil
	case "linux":
		return pactlMixer{}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response with optional data to stdout.
func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("encode data: %v", err))
			return
		}
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func getVolume(m mixer, _ json.RawMessage) (any, error) {
	v, err := m.volume()
	if err != nil {
		return nil, err
	}
	return map[string]float64{"volume": v}, nil
}

func setVolume(m mixer, params json.RawMessage) (any, error) {
	var p struct {
		Scalar *float64 `json:"scalar"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Scalar == nil {
		return nil, errors.New("params.scalar is required")
	}
	if *p.Scalar < 0 || *p.Scalar > 1 {
		return nil, fmt.Errorf("scalar %v out of range [0,1]", *p.Scalar)
	}
	return nil, m.setVolume(*p.Scalar)
}

func setMute(m mixer, params json.RawMessage) (any, error) {
	var p struct {
		Mute *bool `json:"mute"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Mute == nil {
		return nil, errors.New("params.mute is required")
	}
	return nil, m.setMute(*p.Mute)
}

// run executes a command and returns its trimmed combined output.
func run(name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// appleScriptMixer controls the macOS output volume (0-100).
type appleScriptMixer struct{}

func (appleScriptMixer) volume() (float64, error) {
	out, err := run("osascript", "-e", `output volume of (get volume settings)`)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", out, err)
	}
	return float64(n) / 100, nil
}

func (appleScriptMixer) setVolume(scalar float64) error {
	_, err := run("osascript", "-e", fmt.Sprintf("set volume output volume %d", int(math.Round(scalar*100))))
	return err
}

func (appleScriptMixer) setMute(mute bool) error {
	_, err := run("osascript", "-e", fmt.Sprintf("set volume output muted %t", mute))
	return err
}

// pactlMixer controls the default PulseAudio/PipeWire sink.
type pactlMixer struct{}

var percentRe = regexp.MustCompile(`(\d+)%`)

func (pactlMixer) volume() (float64, error) {
	out, err := run("pactl", "get-sink-volume", "@DEFAULT_SINK@")
	if err != nil {
		return 0, err
	}
	m := percentRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no volume in %q", out)
	}
	n, _ := strconv.Atoi(m[1])
	return math.Min(float64(n)/100, 1), nil
}

func (pactlMixer) setVolume(scalar float64) error {
	_, err := run("pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", int(math.Round(scalar*100))))
	return err
}

func (pactlMixer) setMute(mute bool) error {
	v := "0"
	if mute {
		v = "1"
	}
	_, err := run("pactl", "set-sink-mute", "@DEFAULT_SINK@", v)
	return err
}
