package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modelrt/internal/config"
	"modelrt/pkg/backend"
	"modelrt/pkg/runtime"
	"modelrt/pkg/types"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		zlog.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// cliConfig is the merged view of config file and flags; flags win.
type cliConfig struct {
	configPath    string
	device        string
	debugLevel    int
	engineRuntime string
	logLevel      string
}

func (c *cliConfig) options() runtime.Options {
	return runtime.Options{
		Device:        types.Device(c.device),
		DebugLevel:    c.debugLevel,
		EngineRuntime: c.engineRuntime,
	}
}

func buildRootCmd() *cobra.Command {
	cfg := &cliConfig{}
	defaultLevel := os.Getenv("MODELRT_LOG_LEVEL")
	if defaultLevel == "" {
		defaultLevel = "info"
	}

	root := &cobra.Command{
		Use:           "modelrt",
		Short:         "Inspect and run compiled model artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.configPath, "config", "", "Config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&cfg.device, "device", "", "Target device: cpu|dsp (default: sniff the artifact)")
	root.PersistentFlags().IntVar(&cfg.debugLevel, "debug-level", 0, "Backend debug level")
	root.PersistentFlags().StringVar(&cfg.engineRuntime, "engine-runtime", "", "Prediction-engine runtime library path")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", defaultLevel, "Log level: debug|info|warn|error")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg.configPath != "" {
			fileCfg, err := config.Load(cfg.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.device == "" {
				cfg.device = fileCfg.Device
			}
			if cfg.debugLevel == 0 {
				cfg.debugLevel = fileCfg.DebugLevel
			}
			if cfg.engineRuntime == "" {
				cfg.engineRuntime = fileCfg.EngineRuntime
			}
			if !cmd.Flags().Changed("log-level") && fileCfg.LogLevel != "" {
				cfg.logLevel = fileCfg.LogLevel
			}
		}
		setupLogging(cfg.logLevel)
		return nil
	}

	root.AddCommand(buildInspectCmd(cfg))
	root.AddCommand(buildPredictCmd(cfg))
	return root
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func buildInspectCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <model-dir> [more-dirs...]",
		Short:   "Print tensor metadata of a model artifact",
		Example: "  modelrt inspect ./xgboost_test",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := runtime.Open(dirArgs(args), cfg.options())
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "device: %s\n", m.Device())
			fmt.Fprintf(out, "inputs: %d\n", m.NumInputs())
			for i := 0; i < m.NumInputs(); i++ {
				name, _ := m.InputName(i)
				shape, _ := m.InputShape(i)
				typ, err := m.InputType(i)
				if backend.IsUnsupported(err) {
					typ = "?"
				}
				fmt.Fprintf(out, "  [%d] %s  type=%s  shape=%v\n", i, name, typ, shape)
			}
			fmt.Fprintf(out, "outputs: %d\n", m.NumOutputs())
			for i := 0; i < m.NumOutputs(); i++ {
				shape, _ := m.OutputShape(i)
				typ, err := m.OutputType(i)
				if backend.IsUnsupported(err) {
					typ = "?"
				}
				fmt.Fprintf(out, "  [%d] type=%s  shape=%v\n", i, typ, shape)
			}
			return nil
		},
	}
}

func buildPredictCmd(cfg *cliConfig) *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:     "predict <model-dir> [more-dirs...]",
		Short:   "Run a CSV batch through a model and print predictions",
		Example: "  modelrt predict ./xgboost_test --input batch.csv",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatchFile(inputPath)
			if err != nil {
				return err
			}
			m, err := runtime.Open(dirArgs(args), cfg.options())
			if err != nil {
				return err
			}
			defer m.Close()

			name, err := m.InputName(0)
			if err != nil {
				return err
			}
			shape, err := bindShape(m, batch)
			if err != nil {
				return err
			}
			if err := m.SetInput(name, shape, batch.data); err != nil {
				return err
			}
			if err := m.Run(); err != nil {
				return err
			}

			outShape, err := m.OutputShape(0)
			if err != nil {
				return err
			}
			size := types.ShapeSize(outShape)
			out := make([]float32, size)
			if err := m.GetOutput(0, out); err != nil {
				return err
			}
			return writePredictions(cmd.OutOrStdout(), out, outShape)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "-", "CSV input file; '-' reads stdin; empty cells are missing values")
	return cmd
}

// dirArgs flattens positional args into model directories; each arg may
// itself be a comma-separated list.
func dirArgs(args []string) []string {
	var dirs []string
	for _, a := range args {
		dirs = append(dirs, splitCSV(a)...)
	}
	return dirs
}

// bindShape picks the shape to bind: backends with a free batch axis take
// the CSV's own rows/cols; fixed-shape backends require the flattened
// batch to fill the discovered shape exactly.
func bindShape(m backend.Model, b *batch) ([]int64, error) {
	spec, err := m.InputShape(0)
	if err != nil {
		return nil, err
	}
	if len(spec) > 0 && spec[0] == types.BatchUnknown {
		return []int64{b.rows, b.cols}, nil
	}
	if types.ShapeSize(spec) != b.rows*b.cols {
		return nil, fmt.Errorf("csv batch has %d values, model input needs %d", b.rows*b.cols, types.ShapeSize(spec))
	}
	return spec, nil
}

func writePredictions(w io.Writer, out []float32, shape []int64) error {
	width := int64(1)
	if len(shape) > 0 {
		width = shape[len(shape)-1]
	}
	if width <= 0 {
		width = int64(len(out))
	}
	for i := int64(0); i < int64(len(out)); i += width {
		end := i + width
		if end > int64(len(out)) {
			end = int64(len(out))
		}
		cells := make([]string, 0, width)
		for _, v := range out[i:end] {
			cells = append(cells, fmt.Sprintf("%g", v))
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, ",")); err != nil {
			return err
		}
	}
	return nil
}
