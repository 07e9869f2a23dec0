// Package settings parses the acquisition-settings text block embedded in
// a stack file's first directory, and the per-frame description blocks.
//
// The block is newline-delimited assignments of the form
//
//	SI.hRoiManager.scanFrameRate = 30.0123
//	SI.hChannels.channelSave = [1;2]
//
// Keys form a dotted namespace. The parser builds an explicit key tree and
// assigns only into the bounded Settings structure below; unrecognized
// keys are ignored without error. Values use MATLAB literal syntax:
// scalars, logicals, and row/column vectors.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors
var (
	ErrMissingKey = errors.New("missing required settings key")
	ErrBadValue   = errors.New("malformed settings value")
)

// Settings holds the recognized acquisition settings.
type Settings struct {
	// FrameRate is the scan frame rate in Hz. Required.
	FrameRate float64

	// ZoomFactor is the scan zoom factor.
	ZoomFactor float64

	// FastZEnabled reports volumetric (multi-plane) acquisition.
	FastZEnabled bool

	// NumVolumes and FramesPerVolume size a fast-Z acquisition.
	NumVolumes      int
	FramesPerVolume int

	// FramesPerSlice and NumSlices size a planar acquisition.
	FramesPerSlice int
	NumSlices      int

	// ChannelSave lists the logical channel numbers saved during
	// acquisition, in physical directory-interleave order. Required.
	ChannelSave []int

	// MotorPosition is the stage position [x y z] in micrometers.
	MotorPosition []float64
}

// NumFrames derives the declared frame count from the settings. Fast-Z
// takes precedence when enabled; missing counts default to 1.
func (s *Settings) NumFrames() int {
	if s.FastZEnabled {
		return atLeastOne(s.NumVolumes) * atLeastOne(s.FramesPerVolume)
	}
	return atLeastOne(s.FramesPerSlice) * atLeastOne(s.NumSlices)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// node is one level of the parsed key tree.
type node struct {
	children map[string]*node
	value    string
}

func (n *node) child(name string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c, ok := n.children[name]
	if !ok {
		c = &node{}
		n.children[name] = c
	}
	return c
}

// lookup walks a dotted path and returns the leaf value.
func (n *node) lookup(path ...string) (string, bool) {
	cur := n
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			return "", false
		}
		cur = next
	}
	if cur.value == "" {
		return "", false
	}
	return cur.value, true
}

// Parse parses a settings block. Only keys under the "SI" namespace are
// considered; other lines are skipped.
func Parse(text string) (*Settings, error) {
	root := buildTree(text)

	si, ok := root.children["SI"]
	if !ok {
		return nil, fmt.Errorf("%w: no SI namespace", ErrMissingKey)
	}

	s := &Settings{}
	var err error

	rate, ok := si.lookup("hRoiManager", "scanFrameRate")
	if !ok {
		return nil, fmt.Errorf("%w: SI.hRoiManager.scanFrameRate", ErrMissingKey)
	}
	if s.FrameRate, err = parseFloat(rate); err != nil {
		return nil, err
	}

	chans, ok := si.lookup("hChannels", "channelSave")
	if !ok {
		return nil, fmt.Errorf("%w: SI.hChannels.channelSave", ErrMissingKey)
	}
	if s.ChannelSave, err = parseIntVector(chans); err != nil {
		return nil, err
	}
	if len(s.ChannelSave) == 0 {
		return nil, fmt.Errorf("%w: empty channel save list", ErrBadValue)
	}

	if v, ok := si.lookup("hRoiManager", "scanZoomFactor"); ok {
		if s.ZoomFactor, err = parseFloat(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hFastZ", "enable"); ok {
		if s.FastZEnabled, err = parseBool(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hFastZ", "numVolumes"); ok {
		if s.NumVolumes, err = parseInt(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hFastZ", "numFramesPerVolume"); ok {
		if s.FramesPerVolume, err = parseInt(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hStackManager", "framesPerSlice"); ok {
		if s.FramesPerSlice, err = parseInt(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hStackManager", "numSlices"); ok {
		if s.NumSlices, err = parseInt(v); err != nil {
			return nil, err
		}
	}
	if v, ok := si.lookup("hMotors", "motorPosition"); ok {
		if s.MotorPosition, err = parseFloatVector(v); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// buildTree splits each "a.b.c = value" line into the key tree.
func buildTree(text string) *node {
	root := &node{}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}

		cur := root
		for _, part := range strings.Split(key, ".") {
			cur = cur.child(part)
		}
		cur.value = value
	}
	return root
}

// FrameTimestamp extracts the per-frame timestamp (seconds) from a
// directory's description block.
func FrameTimestamp(description string) (float64, bool) {
	root := buildTree(description)
	v, ok := root.lookup("frameTimestamps_sec")
	if !ok {
		return 0, false
	}
	ts, err := parseFloat(v)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, v)
	}
	return f, nil
}

func parseInt(v string) (int, error) {
	// MATLAB serializes integer settings as floats ("5" or "5.0").
	f, err := parseFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadValue, v)
}

// splitVector tokenizes a MATLAB vector literal: "[1;2]", "[1 2]",
// "[1,2]", or a bare scalar.
func splitVector(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "[")
	v = strings.TrimSuffix(v, "]")
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ';' || r == ',' || r == ' ' || r == '\t'
	})
}

func parseIntVector(v string) ([]int, error) {
	fields := splitVector(v)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := parseInt(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatVector(v string) ([]float64, error) {
	fields := splitVector(v)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
