// Command vrmtool loads a VRM avatar, prints its metadata and joint map,
// optionally poses and simulates it, and writes the result as GLB.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	vrm "github.com/flywave/go-vrm"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

type options struct {
	inputPath  string
	posePath   string
	configPath string
	outputPath string
	frames     int
	delta      float64
	verbose    bool
}

// report is what vrmtool prints about an avatar.
type report struct {
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Author      string   `yaml:"author"`
	LicenseName string   `yaml:"licenseName"`
	Bones       []string `yaml:"bones"`
	Missing     []string `yaml:"missingRequired,omitempty"`
	BlendShapes []string `yaml:"blendShapes,omitempty"`
	Animations  []string `yaml:"animations,omitempty"`
	SpringBones int      `yaml:"springBones"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, errOut io.Writer) error {
	opts, err := parseOptions(args, errOut)
	if err != nil {
		return err
	}

	cfg := vrm.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = vrm.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	avatar, err := vrm.Load(opts.inputPath, cfg)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.inputPath, err)
	}
	defer avatar.Dispose()
	cfg.Logger.Debug("avatar loaded", "path", opts.inputPath, "bones", avatar.Humanoid.Len(), "clips", len(avatar.Animations))

	rep, err := buildReport(avatar)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if opts.posePath != "" {
		pose, err := vrm.PoseFromFile(opts.posePath)
		if err != nil {
			return err
		}
		avatar.ApplyPose(pose)
	}
	for i := 0; i < opts.frames; i++ {
		avatar.Update(float32(opts.delta))
	}

	if opts.outputPath == "" {
		return nil
	}
	f, err := os.Create(opts.outputPath)
	if err != nil {
		return err
	}
	if err := avatar.WriteGLB(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", opts.outputPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", opts.outputPath)
	return nil
}

func buildReport(avatar *vrm.Avatar) (*report, error) {
	rep := &report{}
	if err := copier.Copy(rep, &avatar.Meta); err != nil {
		return nil, err
	}
	for _, n := range avatar.Humanoid.Names() {
		rep.Bones = append(rep.Bones, string(n))
	}
	for _, n := range avatar.Humanoid.MissingRequired() {
		rep.Missing = append(rep.Missing, string(n))
	}
	for _, g := range avatar.BlendShapeProxy.Groups() {
		rep.BlendShapes = append(rep.BlendShapes, g.Name)
	}
	for _, c := range avatar.Animations {
		rep.Animations = append(rep.Animations, c.Name)
	}
	if avatar.SpringBoneManager != nil {
		rep.SpringBones = len(avatar.SpringBoneManager.Bones)
	}
	return rep, nil
}

func parseOptions(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("vrmtool", flag.ContinueOnError)
	fs.SetOutput(errOut)

	in := fs.String("in", "", "input VRM file")
	pose := fs.String("pose", "", "pose file (.json, .yaml, .toml)")
	config := fs.String("config", "", "TOML config file")
	out := fs.String("out", "", "output GLB file")
	frames := fs.Int("frames", 0, "number of frames to simulate")
	dt := fs.Float64("dt", 1.0/60, "frame delta in seconds")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *in == "" && fs.NArg() > 0 {
		*in = fs.Arg(0)
	}
	if *in == "" {
		return options{}, fmt.Errorf("no input file given (-in)")
	}
	switch strings.ToLower(filepath.Ext(*in)) {
	case ".vrm", ".glb", ".gltf":
	default:
		return options{}, fmt.Errorf("unsupported input extension: %s", *in)
	}
	if *out != "" && !strings.EqualFold(filepath.Ext(*out), ".glb") && !strings.EqualFold(filepath.Ext(*out), ".vrm") {
		return options{}, fmt.Errorf("output must be .glb or .vrm: %s", *out)
	}
	if *frames < 0 {
		return options{}, fmt.Errorf("frames must not be negative: %d", *frames)
	}
	if *dt < 0 {
		return options{}, fmt.Errorf("dt must not be negative: %v", *dt)
	}

	return options{
		inputPath:  *in,
		posePath:   *pose,
		configPath: *config,
		outputPath: *out,
		frames:     *frames,
		delta:      *dt,
		verbose:    *verbose,
	}, nil
}
