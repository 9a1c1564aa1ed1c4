package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayusman/gvf/internal/app"
	"github.com/ayusman/gvf/internal/config"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/mqttbridge"
	"github.com/ayusman/gvf/internal/plugin"
	"github.com/ayusman/gvf/internal/server"
)

// ServeCmd runs the HTTP API, the event stream and the optional MQTT bridge.
type ServeCmd struct {
	Addr      string `name:"addr" help:"listen address, overrides server.addr"`
	StaticDir string `name:"static" type:"path" help:"directory of static files to serve"`
	MQTT      bool   `name:"mqtt" help:"enable the MQTT bridge"`
	Seed      uint64 `name:"seed" help:"filter random seed, overrides seed"`
	Stdin     bool   `name:"stdin" help:"also read JSON points, one per line, from stdin"`
}

func (cmd *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}
	if cmd.StaticDir != "" {
		cfg.Server.StaticDir = cmd.StaticDir
	}
	if cmd.MQTT {
		cfg.MQTT.Enabled = true
	}
	if cmd.Seed != 0 {
		cfg.Seed = cmd.Seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	fmt.Println("gvf - gesture variation following")

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	a := app.New(app.Config{
		Store:  st,
		Params: cfg.FilterParams(),
		Seed:   cfg.Seed,
	})
	if err := a.LoadGestures(); err != nil {
		return err
	}

	if cfg.MQTT.Enabled {
		bridge := mqttbridge.New(mqttbridge.Config{
			Broker:          cfg.MQTT.Broker,
			ClientID:        cfg.MQTT.ClientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			SampleTopic:     cfg.MQTT.SampleTopic,
			ActivationTopic: cfg.MQTT.ActivationTopic,
			QoS:             cfg.MQTT.QoS,
		}, a)
		if err := bridge.Connect(); err != nil {
			return err
		}
		defer bridge.Close()
	}

	if len(cfg.Plugins.Bindings) > 0 {
		dispatcher, err := newDispatcher(cfg.Plugins, a)
		if err != nil {
			return err
		}
		defer dispatcher.Wait()
		defer a.Subscribe(dispatcher.Handle)()
	}

	if cmd.Stdin {
		stdinCtx, cancelStdin := context.WithCancel(context.Background())
		defer cancelStdin()
		if err := a.Start(readPoints(stdinCtx, os.Stdin)); err != nil {
			return err
		}
		defer a.Stop()
	}

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		App:       a,
	})
	defer srv.Close()

	if cfg.Server.StaticDir != "" {
		fmt.Printf("Serving static files from: %s\n", cfg.Server.StaticDir)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// event stream clients hold their connections open
		srv.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
	return nil
}

// newDispatcher discovers the plugins and checks the configured bindings.
func newDispatcher(cfg config.PluginsConfig, a *app.App) (*plugin.Dispatcher, error) {
	manager := plugin.NewManager(cfg.Dir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}

	bindings := make([]plugin.Binding, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		var params json.RawMessage
		if b.Params != nil {
			data, err := json.Marshal(b.Params)
			if err != nil {
				return nil, fmt.Errorf("params of gesture %d binding: %w", b.Gesture, err)
			}
			params = data
		}
		bindings = append(bindings, plugin.Binding{
			GestureID: b.Gesture,
			Plugin:    b.Plugin,
			Action:    b.Action,
			Params:    params,
		})
	}

	d, err := plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.Timeout), bindings)
	if err != nil {
		return nil, err
	}
	d.Names = func(id int) string {
		g, _ := a.Gesture(id)
		return g.Name
	}
	return d, nil
}

// readPoints decodes one JSON point per line until r is exhausted or ctx
// is done. Malformed lines are logged and skipped.
func readPoints(ctx context.Context, r io.Reader) <-chan geometry.Point3D {
	out := make(chan geometry.Point3D)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for line := 1; scanner.Scan(); line++ {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			var p geometry.Point3D
			if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
				log.Printf("stdin: line %d: %v", line, err)
				continue
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("stdin: %v", err)
		}
	}()
	return out
}
