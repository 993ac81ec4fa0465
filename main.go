// Command dbling identifies browser extensions from filesystem remnants: it
// builds an attributed graph of a mounted image or a DFXML image
// description, trims it down to the regions of forensic interest, splits it
// into disconnected candidate structures and hands each candidate to the
// matching engine.
//
// Usage:
//
//	dbling [options] -d DFXML_FILE
//	dbling [options] -m MOUNT_POINT
//
// As a reminder, the command to mount an image is:
//
//	sudo mount -o ro,noload -t <fs_type> <img_file> </mount/point>
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"dbling/graph"
	"dbling/merl"
)

func main() {
	cfg := parseArgs()
	if err := initLogging(cfg.Verbose, cfg.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		logrus.Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config holds everything the driver needs for one job.
type Config struct {
	DFXMLFile  string
	MountPoint string
	Verbose    bool
	ShowGraph  bool
	Output     string
	Plain      bool
	Patterns   string
	LogFile    string
}

// parseArgs reads the defaults from dbling.ini (when present in the working
// directory) and lets the command line override them.
func parseArgs() *Config {
	cfg := ini.Empty()
	if workDir, err := os.Getwd(); err == nil {
		path := filepath.Join(workDir, "dbling.ini")
		if loaded, err := ini.LoadSources(ini.LoadOptions{
			Insensitive:      true,
			AllowBooleanKeys: true,
		}, path); err == nil {
			cfg = loaded
		}
	}
	section := cfg.Section("")

	dfxml := flag.String("d", section.Key("dfxml").MustString(""),
		"Path to the DFXML file of the image")
	mount := flag.String("m", section.Key("mount").MustString(""),
		"Path to the mount point of the image")
	verbose := flag.Bool("v", section.Key("verbose").MustBool(false),
		"Verbose mode. Changes logging mode from INFO to DEBUG")
	show := flag.Bool("g", section.Key("show_graph").MustBool(false),
		"Write the graph in DOT format before searching for matches")
	output := flag.String("o", section.Key("output").MustString(""),
		"Output results to the given file")
	plain := flag.Bool("plain", section.Key("plain").MustBool(false),
		"Output results in a plain format instead of XML")
	patterns := flag.String("patterns", section.Key("patterns").MustString(""),
		"YAML file with the vault/encryption/slice patterns")
	logFile := flag.String("log", section.Key("log").MustString(""),
		"Append log messages to the given file")
	flag.Parse()

	return &Config{
		DFXMLFile:  *dfxml,
		MountPoint: *mount,
		Verbose:    *verbose,
		ShowGraph:  *show,
		Output:     *output,
		Plain:      *plain,
		Patterns:   *patterns,
		LogFile:    *logFile,
	}
}

// run sequences one forensic job: walk or parse, trim, decompose, match,
// report.
func run(cfg *Config) error {
	if (cfg.DFXMLFile == "") == (cfg.MountPoint == "") {
		return errors.New("exactly one of -d DFXML_FILE and -m MOUNT_POINT must be given")
	}

	pats := graph.DefaultPatterns()
	if cfg.Patterns != "" {
		var err error
		if pats, err = graph.LoadPatterns(cfg.Patterns); err != nil {
			return err
		}
	}

	g := graph.New()
	home := -1
	skipped := 0
	var imageFile, mountPoint string

	if cfg.MountPoint != "" {
		mountPoint = cfg.MountPoint
		if err := elevatePrivileges(); err != nil {
			return err
		}
		verifyMountPoint(cfg.MountPoint)

		w := &graph.Walker{Deriver: graph.Deriver{Patterns: pats, SlicePath: true}}
		stats, err := w.BuildFromDir(cfg.MountPoint, g)
		if err != nil {
			return err
		}
		skipped = stats.Skipped

		top, err := g.TreeTop()
		if err != nil {
			return err
		}
		home = top
	} else {
		imageFile = cfg.DFXMLFile
		r := &graph.DFXMLReader{Patterns: pats}
		h, stats, err := r.Read(cfg.DFXMLFile, g)
		if err != nil {
			return err
		}
		home = h
		skipped = stats.NoName
	}

	if home >= 0 {
		if _, err := g.TrimUnuseful(home, true, pats); err != nil {
			return err
		}
	} else {
		logrus.Warn("No home vertex found, skipping the trim pass.")
	}

	if cfg.ShowGraph {
		if err := dumpDOT(g, cfg.Output); err != nil {
			return err
		}
	}

	candidates, err := g.ExtractCandidates()
	if err != nil {
		return err
	}
	logrus.Infof("Searching the DB for matches for each candidate graph. (%d)", len(candidates))

	out, outPath, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	m := merl.New(out, cfg.Plain, imageFile, mountPoint)
	if err := m.MatchCandidates(merl.NullMatcher{}, candidates); err != nil {
		return err
	}
	if err := m.Save(); err != nil {
		return err
	}
	logrus.Infof("Results saved to %s", outPath)

	if skipped > 0 {
		logrus.Infof("Objects skipped during import: %d", skipped)
	}
	logrus.Info("Search complete. Exiting.")
	return nil
}

// openOutput opens the report file, inventing a timestamped name when none
// was configured.
func openOutput(cfg *Config) (*os.File, string, error) {
	path := cfg.Output
	if path == "" {
		ext := "merl"
		if cfg.Plain {
			ext = "txt"
		}
		path = fmt.Sprintf("profile_%s.%s", time.Now().Format("2006-01-02_15-04-05"), ext)
		logrus.Infof("No output file specified. Saving to %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// dumpDOT writes the graph next to the report so it can be rendered with
// Graphviz.
func dumpDOT(g *graph.Graph, output string) error {
	path := "profile_graph.dot"
	if output != "" {
		path = output + ".dot"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := g.WriteDOT(f, "dbling"); err != nil {
		return err
	}
	logrus.Infof("Graph written to %s", path)
	return nil
}
