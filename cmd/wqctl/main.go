package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

func main() {
	cmd := newRootCommand()
	cmd.SetArgs(positionalNumbers(cmd, os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wqctl",
		Short:         "Water quality units and readings toolkit",
		Long:          "Inspect unit registries, convert measurements and validate sensor reading batches offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newUnitsCommand(),
		newConvertCommand(),
		newValidateCommand(),
	)

	return root
}

// positionalNumbers переносит отрицательные числа за "--", чтобы флаговый парсер
// не принял "-5" за набор коротких флагов. Остальные аргументы остаются на месте.
func positionalNumbers(root *cobra.Command, args []string) []string {
	var (
		kept    = make([]string, 0, len(args)+1)
		numbers []string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if len(numbers) == 0 {
				return args
			}
			kept = append(kept, "--")
			kept = append(kept, numbers...)
			return append(kept, args[i+1:]...)
		}
		if isNegativeNumber(arg) && !takesValue(root, prev(args, i)) {
			numbers = append(numbers, arg)
			continue
		}
		kept = append(kept, arg)
	}
	if len(numbers) == 0 {
		return args
	}

	kept = append(kept, "--")
	return append(kept, numbers...)
}

func isNegativeNumber(arg string) bool {
	if !strings.HasPrefix(arg, "-") {
		return false
	}
	_, err := strconv.ParseFloat(arg, 64)
	return err == nil
}

func prev(args []string, i int) string {
	if i == 0 {
		return ""
	}
	return args[i-1]
}

// takesValue сообщает, что arg это флаг без "=", ожидающий значение следующим аргументом
func takesValue(root *cobra.Command, arg string) bool {
	if !strings.HasPrefix(arg, "--") || strings.Contains(arg, "=") || isNegativeNumber(arg) {
		return false
	}
	name := strings.TrimPrefix(arg, "--")

	commands := append([]*cobra.Command{root}, root.Commands()...)
	for _, cmd := range commands {
		if f := cmd.Flags().Lookup(name); f != nil {
			return f.NoOptDefVal == ""
		}
	}
	return false
}

// printError выводит ошибки валидации построчно: "code path: message"
func printError(w io.Writer, err error) {
	var many valueobject.ValidationErrors
	if errors.As(err, &many) {
		for _, e := range many {
			printValidationError(w, e)
		}
		return
	}

	if single, ok := valueobject.AsValidationError(err); ok {
		printValidationError(w, single)
		return
	}

	fmt.Fprintf(w, "Error: %s\n", err)
}

func printValidationError(w io.Writer, e *valueobject.ValidationError) {
	path := e.PathString()
	if path == "" {
		path = "-"
	}
	fmt.Fprintf(w, "%s %s: %s\n", e.Code, path, e.Message)
}
