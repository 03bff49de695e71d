// Command trackdlo-node is the process entry point: it loads configuration,
// wires up a Tracker, and drives it from a FrameSource until exhausted.
// Image acquisition, colour-segmentation and blob detection are external
// collaborators; this command only defines the interface seam they attach
// to.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zhao-harry/trackdlo"
	"github.com/zhao-harry/trackdlo/markers"
	"github.com/zhao-harry/trackdlo/preprocess"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"
)

var (
	configPath string
	verbose    bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "YAML/TOML/JSON config file overriding trackdlo defaults")
	flag.BoolVar(&verbose, "verbose", false, "log debug-level tracker output")
}

// Frame is one observation handed to the tracker by a FrameSource: the
// segmented foreground point cloud, the binary occlusion mask, and,
// optionally, a fresh unordered marker-blob detection to (re)seed the
// chain from.
type Frame struct {
	PointCloud *mat.Dense
	Mask       *preprocess.Mask
	RawMarkers []markers.Point
}

// FrameSource is the external collaborator that turns camera/depth/mask
// topics into Frames. A real implementation subscribes to synchronised
// RGB-D and point-cloud topics; this command only consumes the interface.
type FrameSource interface {
	Next() (Frame, bool, error)
}

// FrameSink publishes per-frame tracking results — node positions and the
// rendered overlay image — to whatever downstream consumer is listening.
type FrameSink interface {
	Publish(t *trackdlo.Tracker) error
}

func main() {
	flag.Parse()

	cfg, err := trackdlo.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("trackdlo-node: %s", err)
	}

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	logger := kitlog.NewLogfmtLogger(os.Stdout)
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	if !verbose {
		next := logger
		logger = kitlog.LoggerFunc(func(keyvals ...interface{}) error {
			for i := 0; i+1 < len(keyvals); i += 2 {
				if keyvals[i] == "level" && keyvals[i+1] == "debug" {
					return nil
				}
			}
			return next.Log(keyvals...)
		})
	}
	logger.Log("level", "info", "subsys", "main", "message", "starting", "log_level", logLevel, "config", configPath)

	tracker := trackdlo.NewTracker(cfg, logger)

	source, sink, err := wireCollaborators()
	if err != nil {
		log.Fatalf("trackdlo-node: no frame source configured: %s", err)
	}

	if err := run(tracker, source, sink); err != nil {
		log.Fatalf("trackdlo-node: %s", err)
	}
}

// run drives the tracker from source until it is exhausted, publishing
// each frame's result to sink.
func run(tracker *trackdlo.Tracker, source FrameSource, sink FrameSink) error {
	for {
		frame, more, err := source.Next()
		if !more {
			return nil
		}
		if err != nil {
			return err
		}

		if !tracker.Initialized || len(frame.RawMarkers) > 0 {
			if err := tracker.InitializeFromMarkers(frame.PointCloud, frame.RawMarkers); err != nil {
				tracker.Logger.Log("level", "warning", "subsys", "main", "message", "init failed, skipping frame", "error", err)
				continue
			}
		} else if err := tracker.StepFrame(frame.PointCloud, frame.Mask); err != nil {
			tracker.Logger.Log("level", "warning", "subsys", "main", "message", "step failed, skipping frame", "error", err)
			continue
		}

		if err := sink.Publish(tracker); err != nil {
			return fmt.Errorf("publishing result: %w", err)
		}
	}
}

// wireCollaborators is the attachment seam for a concrete FrameSource/Sink
// pair (e.g. a ROS subscriber bridge). No transport is implemented here.
func wireCollaborators() (FrameSource, FrameSink, error) {
	return nil, nil, fmt.Errorf("no FrameSource/FrameSink wired; this command only defines the interface seam")
}
