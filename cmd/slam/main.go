// Command slam replays a directory of PCD sweep files through the SLAM core and prints the
// resulting trajectory. Sweep ingestion, sequencing, and calibration loading are input-adapter
// concerns the core itself does not own; this binary is a minimal harness, not a sensor driver.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jpouderoux/LidarSlam/logging"
	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/slam"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("slam", flag.ContinueOnError)
	sweepDir := fs.String("sweeps", "", "directory of NNNN.pcd sweep files, one per frame")
	calibPath := fs.String("calibration", "", "path to a newline-separated vertical-correction calibration file")
	savePrefix := fs.String("save-prefix", "", "if set, write <prefix>_{edges,planars,blobs}.pcd after replay")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sweepDir == "" || *calibPath == "" {
		return fmt.Errorf("both -sweeps and -calibration are required")
	}

	calibration, err := loadCalibration(*calibPath)
	if err != nil {
		return err
	}

	log := logging.NewLogger("slam")
	engine, err := slam.New(slam.DefaultConfig(), log)
	if err != nil {
		return err
	}

	sweepFiles, err := listSweepFiles(*sweepDir)
	if err != nil {
		return err
	}

	for i, path := range sweepFiles {
		sweep, err := loadSweep(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		result, err := engine.AddFrame(slam.Frame{
			Sweep:       sweep,
			Calibration: calibration,
			Timestamp:   float64(i), // sweep files carry no absolute timestamp; synthesize a strictly increasing one
			SequenceID:  uint64(i),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d dropped: %v\n", i, err)
			continue
		}
		pt := result.WorldPose.Point()
		fmt.Printf("frame %d: x=%.3f y=%.3f z=%.3f degenerate=%v\n", i, pt.X, pt.Y, pt.Z, result.Degenerate)
	}

	if *savePrefix != "" {
		if err := engine.SaveMapsToPCD(*savePrefix, pointcloud.PCDBinaryCompressed); err != nil {
			return err
		}
	}
	return nil
}

func loadCalibration(path string) (*slam.CalibrationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var corrections []float64
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid calibration line %q: %w", line, err)
		}
		corrections = append(corrections, v)
	}
	return &slam.CalibrationTable{VerticalCorrection: corrections}, nil
}

func listSweepFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".pcd") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadSweep(path string) (*pointcloud.Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pointcloud.ReadPCD(f)
}
