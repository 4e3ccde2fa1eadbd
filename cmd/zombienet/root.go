package main

import (
	"github.com/spf13/cobra"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/output"
)

// Exit codes of the CLI surface.
const (
	ExitOK                  = 0
	ExitConfigRejected      = 1
	ExitSpawnTimeout        = 2
	ExitNodeFailed          = 3
	ExitProviderUnavailable = 4
	ExitCancelled           = 5
)

var (
	flagVerbose bool
	flagNoColor bool

	cliOut = output.NewLogger()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zombienet",
		Short:         "Spawn ephemeral multi-node blockchain test networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cliOut.SetVerbose(flagVerbose)
			cliOut.SetNoColor(flagNoColor)
		},
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	root.AddCommand(newSpawnCmd())
	return root
}

// Execute runs the CLI and maps error kinds onto exit codes.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		cliOut.Error("%v", err)
		if hint := domain.GetRecoveryHint(err); hint != "" {
			cliOut.Info("hint: %s", hint)
		}
		return exitCodeFor(err)
	}
	return ExitOK
}

func exitCodeFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrConfigInvalid:
		return ExitConfigRejected
	case domain.ErrReadinessTimeout:
		return ExitSpawnTimeout
	case domain.ErrSpawnFailed, domain.ErrGeneratorFailed, domain.ErrPatchFailed, domain.ErrNetworkInconsistent:
		return ExitNodeFailed
	case domain.ErrProviderUnavailable:
		return ExitProviderUnavailable
	case domain.ErrOperationCancelled:
		return ExitCancelled
	}
	return ExitNodeFailed
}
