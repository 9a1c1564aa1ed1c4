package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ayusman/gvf/internal/config"
	"github.com/ayusman/gvf/internal/store"
)

// CLI is the gvf command line.
type CLI struct {
	Config string `name:"config" short:"c" type:"path" help:"path to a YAML config file"`
	DB     string `name:"db" type:"path" help:"gesture database, overrides store.path"`

	Serve       ServeCmd       `cmd:"" default:"1" help:"run the recognition service"`
	Gestures    GesturesCmd    `cmd:"" help:"manage stored gestures"`
	Activations ActivationsCmd `cmd:"" help:"list recorded activations"`
	InitConfig  InitConfigCmd  `cmd:"" name:"init-config" help:"write the default configuration"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gvf"),
		kong.Description("Gesture variation following: real-time 3D gesture recognition"),
		kong.UsageOnError(),
		kong.HelpOptions{Compact: true, FlagsLast: true},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// load returns the configuration with command line overrides applied.
func (c *CLI) load() (config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return cfg, err
		}
	}
	if c.DB != "" {
		cfg.Store.Path = c.DB
	}
	return cfg, nil
}

// openStore opens the gesture database, creating its directory.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return store.New(path)
}

// setupLogging sends the standard logger to a rotating file when one is
// configured, and to stderr as well. The returned function closes the file.
func setupLogging(cfg config.LogConfig) func() {
	if cfg.File == "" {
		return func() {}
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return func() { lj.Close() }
}

// GesturesCmd groups the gesture management commands.
type GesturesCmd struct {
	List   GesturesListCmd   `cmd:"" default:"1" help:"list stored gestures"`
	Rename GesturesRenameCmd `cmd:"" help:"rename a stored gesture"`
	Delete GesturesDeleteCmd `cmd:"" help:"delete a stored gesture"`
	Clear  GesturesClearCmd  `cmd:"" help:"delete every stored gesture"`
}

// GesturesListCmd prints the stored gestures.
type GesturesListCmd struct{}

func (cmd *GesturesListCmd) Run(cli *CLI) error {
	return withStore(cli, func(s *store.Store) error {
		gestures, err := s.Gestures().List()
		if err != nil {
			return err
		}
		if len(gestures) == 0 {
			fmt.Println("no gestures")
			return nil
		}
		fmt.Printf("%-6s %-20s %8s  %s\n", "ID", "NAME", "SAMPLES", "CREATED")
		for _, g := range gestures {
			fmt.Printf("%-6d %-20s %8d  %s\n", g.ID, g.Name, g.Samples, g.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

// GesturesRenameCmd renames one gesture.
type GesturesRenameCmd struct {
	ID   int    `arg:"" help:"gesture id"`
	Name string `arg:"" help:"new name"`
}

func (cmd *GesturesRenameCmd) Run(cli *CLI) error {
	return withStore(cli, func(s *store.Store) error {
		return s.Gestures().Rename(cmd.ID, cmd.Name)
	})
}

// GesturesDeleteCmd deletes one gesture and its activations.
type GesturesDeleteCmd struct {
	ID int `arg:"" help:"gesture id"`
}

func (cmd *GesturesDeleteCmd) Run(cli *CLI) error {
	return withStore(cli, func(s *store.Store) error {
		return s.Gestures().Delete(cmd.ID)
	})
}

// GesturesClearCmd deletes every gesture.
type GesturesClearCmd struct{}

func (cmd *GesturesClearCmd) Run(cli *CLI) error {
	return withStore(cli, func(s *store.Store) error {
		return s.Gestures().DeleteAll()
	})
}

// ActivationsCmd prints the most recent activations.
type ActivationsCmd struct {
	Gesture int `name:"gesture" short:"g" help:"only activations of this gesture id"`
	Limit   int `name:"limit" short:"n" default:"20" help:"number of activations"`
}

func (cmd *ActivationsCmd) Run(cli *CLI) error {
	return withStore(cli, func(s *store.Store) error {
		var (
			acts []*store.Activation
			err  error
		)
		if cmd.Gesture != 0 {
			acts, err = s.Activations().ListByGesture(cmd.Gesture, cmd.Limit)
		} else {
			acts, err = s.Activations().List(cmd.Limit)
		}
		if err != nil {
			return err
		}
		for _, a := range acts {
			fmt.Printf("%s  gesture %-4d alignment %.3f probability %.3f speed %.3f\n",
				a.CreatedAt.Format("2006-01-02 15:04:05"), a.GestureID, a.Alignment, a.Probability, a.Speed)
		}
		return nil
	})
}

// InitConfigCmd writes the default configuration to a file.
type InitConfigCmd struct {
	Path  string `arg:"" type:"path" default:"gvf.yaml" help:"output file"`
	Force bool   `name:"force" short:"f" help:"overwrite an existing file"`
}

func (cmd *InitConfigCmd) Run(cli *CLI) error {
	if !cmd.Force {
		if _, err := os.Stat(cmd.Path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", cmd.Path)
		}
	}
	if err := config.Default().Write(cmd.Path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", cmd.Path)
	return nil
}

func withStore(cli *CLI, fn func(s *store.Store) error) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	s, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
