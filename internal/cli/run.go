package cli

import (
	"fmt"
	"io"

	"detbench/processing/runner"
	"detbench/processing/task"

	"github.com/spf13/cobra"
)

type runFlags struct {
	model string
	data  string
}

var (
	evalFlags  runFlags
	benchFlags runFlags
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Validate a model against a dataset and print its mAP metrics",
	Example: `  detbench eval --model runs/best.pt --data datasets/coco8/data.yaml
  detbench eval --model runs/best.pt --data datasets/coco8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHeadless(cmd, task.KindEvaluation, evalFlags)
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure per-image inference latency and average FPS",
	Long: `Runs one warm-up inference, then times one inference per image in the
dataset image folder. The average drops the fastest and slowest image when
more than two images are measured.`,
	Example: `  detbench bench --model runs/best.pt --data datasets/coco8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHeadless(cmd, task.KindBenchmark, benchFlags)
	},
}

func init() {
	rootCmd.AddCommand(evalCmd, benchCmd)

	for _, c := range []struct {
		cmd   *cobra.Command
		flags *runFlags
	}{{evalCmd, &evalFlags}, {benchCmd, &benchFlags}} {
		c.cmd.Flags().StringVarP(&c.flags.model, "model", "m", "", "model file (overrides paths.model)")
		c.cmd.Flags().StringVarP(&c.flags.data, "data", "d", "", "dataset descriptor or folder (overrides paths.data)")
	}
}

// runHeadless drives one run through the same worker and runner as the
// window, printing events as they arrive. Task failures are reported in the
// output, not as a command error.
func runHeadless(cmd *cobra.Command, kind task.Kind, flags runFlags) error {
	s, err := newSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	if flags.model != "" {
		s.cfg.SetModelPath(flags.model)
	}
	if flags.data != "" {
		s.cfg.SetDataPath(flags.data)
	}

	worker, err := task.NewWorker(kind, task.Request{
		ModelPath: s.cfg.GetModelPath(),
		DataPath:  s.cfg.GetDataPath(),
	}, s.deps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := runner.New(runner.Immediate, s.logger)
	run, err := r.Start(worker, runner.Hooks{
		OnEvent: func(ev task.Event) {
			io.WriteString(out, ev.Text)
		},
	})
	if err != nil {
		return fmt.Errorf("starting %s: %w", kind, err)
	}

	run.Wait()
	return nil
}
