// Diagnostic tool for inspecting multi-frame image stacks
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-scanstack/scanstack"
)

type summary struct {
	Path          string    `yaml:"path"`
	Width         int       `yaml:"width"`
	Height        int       `yaml:"height"`
	Channels      []int     `yaml:"channels"`
	NumFrames     int       `yaml:"num_frames"`
	FrameRate     float64   `yaml:"frame_rate_hz"`
	ZoomFactor    float64   `yaml:"zoom_factor,omitempty"`
	MotorPosition []float64 `yaml:"motor_position,omitempty"`
	FastZ         bool      `yaml:"fast_z"`
	Validated     bool      `yaml:"validated"`
	FirstTime     float64   `yaml:"first_timestamp_sec"`
	LastTime      float64   `yaml:"last_timestamp_sec"`
}

func main() {
	validate := flag.Bool("validate", false, "walk every directory and recompute frame count and timestamps")
	asYAML := flag.Bool("yaml", false, "emit a machine-readable YAML summary")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scandump [flags] <stack.tif>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	f, err := scanstack.Open(path)
	if err != nil {
		log.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	if *validate {
		declared := f.NumFrames()
		if err := f.Validate(); err != nil {
			log.Fatalf("validating %s: %v", path, err)
		}
		if f.NumFrames() != declared {
			log.Printf("warning: header declares %d frames, file holds %d", declared, f.NumFrames())
		}
	}

	if *asYAML {
		printYAML(f)
		return
	}
	printText(f)
}

func printYAML(f *scanstack.File) {
	ts := f.Timestamps()
	s := summary{
		Path:          f.Path(),
		Width:         f.Width(),
		Height:        f.Height(),
		Channels:      f.Channels(),
		NumFrames:     f.NumFrames(),
		FrameRate:     f.FrameRate(),
		ZoomFactor:    f.ZoomFactor(),
		MotorPosition: f.MotorPosition(),
		FastZ:         f.FastZ(),
		Validated:     f.Validated(),
	}
	if len(ts) > 0 {
		s.FirstTime = ts[0]
		s.LastTime = ts[len(ts)-1]
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		log.Fatalf("encoding summary: %v", err)
	}
	os.Stdout.Write(out)
}

func printText(f *scanstack.File) {
	fmt.Printf("=== %s ===\n\n", f.Path())
	fmt.Printf("Frame size:     %d x %d\n", f.Width(), f.Height())
	fmt.Printf("Channels:       %v\n", f.Channels())
	fmt.Printf("Frames:         %d", f.NumFrames())
	if f.Validated() {
		fmt.Printf(" (validated)")
	}
	fmt.Println()
	fmt.Printf("Frame rate:     %.4f Hz\n", f.FrameRate())
	if f.ZoomFactor() != 0 {
		fmt.Printf("Zoom factor:    %.2f\n", f.ZoomFactor())
	}
	if pos := f.MotorPosition(); pos != nil {
		fmt.Printf("Motor position: %v\n", pos)
	}
	fmt.Printf("Fast-Z:         %v\n", f.FastZ())

	if ts := f.Timestamps(); len(ts) > 0 {
		fmt.Printf("Timestamps:     %.4fs .. %.4fs\n", ts[0], ts[len(ts)-1])
	}
}
