// Package main is the entry point for bpmhelper CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/james-see/bpmhelper/internal/audio"
	"github.com/james-see/bpmhelper/internal/config"
	"github.com/james-see/bpmhelper/pkg/api"
	"github.com/james-see/bpmhelper/pkg/editor"
	"github.com/james-see/bpmhelper/pkg/project"
	"github.com/james-see/bpmhelper/pkg/session"
	"github.com/james-see/bpmhelper/pkg/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
	outputFile string
	cursorBeat float64
	cursorSecs float64
	beatsText  string
	baseBPM    float64
	fromBeat   float64
	toBeat     float64
	playClick  bool
	serverPort int

	cfg config.Config
	log = logrus.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bpmhelper",
	Short: "Place and retune tempo markers so a beat grid matches the audio",
	Long: `bpmhelper edits the tempo map of a project: a list of tempo markers,
each setting the BPM from its beat onward.

Projects are YAML documents or Standard MIDI Files.

Examples:
  bpmhelper init song.yaml --bpm 120
  bpmhelper insert song.yaml --cursor 0
  bpmhelper stretch song.yaml --seconds 0.52 --beats 1
  bpmhelper rebalance song.yaml --cursor 12.5
  bpmhelper convert song.yaml -o song.mid
  bpmhelper tui song.yaml
  bpmhelper serve song.yaml --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var initCmd = &cobra.Command{
	Use:   "init <project>",
	Short: "Create an empty project",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

var showCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "List the tempo markers of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var insertCmd = &cobra.Command{
	Use:   "insert <project>",
	Short: "Insert an initial marker at the cursor",
	Args:  cobra.ExactArgs(1),
	RunE:  operation("insert", (*editor.Editor).InsertMarkerAtCursor),
}

var stretchCmd = &cobra.Command{
	Use:   "stretch <project>",
	Short: "Retune the marker behind the cursor to span --beats beats",
	Args:  cobra.ExactArgs(1),
	RunE:  operation("stretch", (*editor.Editor).StretchPreviousMarker),
}

var insertStretchCmd = &cobra.Command{
	Use:   "insert-stretch <project>",
	Short: "Stretch the previous marker, then insert a marker at the new cursor",
	Args:  cobra.ExactArgs(1),
	RunE:  operation("insert-stretch", (*editor.Editor).InsertAndStretch),
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance <project>",
	Short: "Move the closest marker onto the cursor, keeping its neighbours in place",
	Args:  cobra.ExactArgs(1),
	RunE:  operation("rebalance", (*editor.Editor).Rebalance),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var clickCmd = &cobra.Command{
	Use:   "click <project>",
	Short: "List or play metronome clicks over the tempo map",
	Args:  cobra.ExactArgs(1),
	RunE:  runClick,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [project]",
	Short: "Launch interactive terminal UI",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve <project>",
	Short: "Start the API server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	// init command
	initCmd.Flags().Float64Var(&baseBPM, "bpm", 0, "Base tempo (default from config)")

	// operation commands
	for _, cmd := range []*cobra.Command{insertCmd, stretchCmd, insertStretchCmd, rebalanceCmd} {
		cmd.Flags().Float64Var(&cursorBeat, "cursor", 0, "Cursor position in beats")
		cmd.Flags().Float64Var(&cursorSecs, "seconds", -1, "Cursor position in seconds (overrides --cursor)")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: edit in place)")
	}
	stretchCmd.Flags().StringVar(&beatsText, "beats", "", "Number of beats to stretch over")
	insertStretchCmd.Flags().StringVar(&beatsText, "beats", "", "Number of beats to stretch over")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// click command
	clickCmd.Flags().Float64Var(&fromBeat, "from", 0, "First beat")
	clickCmd.Flags().Float64Var(&toBeat, "to", 16, "Last beat")
	clickCmd.Flags().BoolVar(&playClick, "play", false, "Play the clicks")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config)")

	// Add commands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(stretchCmd)
	rootCmd.AddCommand(insertStretchCmd)
	rootCmd.AddCommand(rebalanceCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log.SetLevel(cfg.Level())
	return nil
}

// newSession returns a session without autosave; commands save explicitly
func newSession() *session.Session {
	c := cfg
	c.Server.Autosave = 0
	return session.New(c, log)
}

func getOutputPath(input string) string {
	if outputFile != "" {
		return outputFile
	}
	return input
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	s := newSession()
	p := s.Create(path, baseBPM)
	if err := p.Save(); err != nil {
		return err
	}
	fmt.Printf("Created %s (base %g bpm)\n", path, p.Tempo.BaseTempo)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	p, err := project.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s: base %g bpm, %d markers\n", p.Name, p.Tempo.BaseTempo, p.Tempo.Len())
	for _, mk := range p.Tempo.Markers() {
		secs, err := p.Tempo.SecondsAt(mk.Position)
		if err != nil {
			return err
		}
		fmt.Printf("  beat %10.3f  %10.3f bpm  %10.3fs\n", mk.Position, mk.Tempo, secs)
	}
	return nil
}

func operation(name string, op func(*editor.Editor) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		input := args[0]
		p, err := project.Load(input)
		if err != nil {
			return err
		}

		s := newSession()
		s.Open(p)

		var cur session.Cursor
		if cursorSecs >= 0 {
			cur, err = s.SeekSeconds(cursorSecs)
		} else {
			cur, err = s.Seek(cursorBeat)
		}
		if err != nil {
			return err
		}
		if beatsText != "" {
			if _, err := editor.ParseBeats(beatsText); err != nil {
				return fmt.Errorf("--beats: %w", err)
			}
			if _, err := s.SetBeats(beatsText); err != nil {
				return err
			}
		}

		log.WithFields(logrus.Fields{
			"op":      name,
			"beat":    cur.Beat,
			"seconds": cur.Seconds,
		}).Debug("running operation")

		if err := s.Do(op); err != nil {
			return err
		}

		output := getOutputPath(input)
		if err := p.SaveAs(output); err != nil {
			return err
		}

		st, err := s.State()
		if err != nil {
			return err
		}
		fmt.Printf("%s: cursor now at beat %.3f (%.3fs), %d markers written to %s\n",
			name, st.Cursor.Beat, st.Cursor.Seconds, len(st.Markers), output)
		return nil
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := project.Convert(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runClick(cmd *cobra.Command, args []string) error {
	p, err := project.Load(args[0])
	if err != nil {
		return err
	}

	clicks, err := audio.ClickTimes(p.Tempo, fromBeat, toBeat)
	if err != nil {
		return err
	}
	if !playClick {
		for _, c := range clicks {
			accent := ""
			if c.Accent {
				accent = "  *"
			}
			fmt.Printf("  beat %10.3f  %10.3fs%s\n", c.Beat, c.Seconds, accent)
		}
		return nil
	}
	if len(clicks) == 0 {
		return errors.New("no clicks in range")
	}

	start := clicks[0].Seconds
	end := clicks[len(clicks)-1].Seconds + 0.25
	pcm := audio.Render(clicks, start, end-start)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Printf("Playing %d clicks (%.1fs)...\n", len(clicks), end-start)
	if err := audio.Play(ctx, pcm); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	// the terminal belongs to the UI; keep logging quiet
	log.SetOutput(io.Discard)
	return tui.Run(newSession(), path)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := args[0]
	if serverPort == 0 {
		serverPort = cfg.Server.Port
	}

	s := session.New(cfg, log)
	if err := s.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		s.Create(path, 0)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Error("failed to flush project")
		}
	}()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log.WithFields(logrus.Fields{"project": name, "port": serverPort}).Info("starting API server")
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", serverPort)
	return api.StartServer(s, serverPort)
}
